package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

type GormInstallmentRepository struct {
	db *gorm.DB
}

func NewGormInstallmentRepository(db *gorm.DB) *GormInstallmentRepository {
	return &GormInstallmentRepository{db: db}
}

func (r *GormInstallmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	if len(installments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&installments).Error
}

func (r *GormInstallmentRepository) FindByID(ctx context.Context, id uint) (*domain.Installment, error) {
	var installment domain.Installment
	err := r.db.WithContext(ctx).First(&installment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInstallmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &installment, nil
}

func (r *GormInstallmentRepository) ListByInvoiceID(ctx context.Context, invoiceID uint) ([]domain.Installment, error) {
	var installments []domain.Installment
	err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).
		Order("sequence ASC").
		Find(&installments).Error
	return installments, err
}

// ListDue returns planned installments eligible for a charge attempt: due,
// under the attempt cap, and past the retry interval since the last attempt
func (r *GormInstallmentRepository) ListDue(ctx context.Context, q domain.DueQuery) ([]domain.Installment, error) {
	var installments []domain.Installment
	cutoff := q.AsOf.Add(-q.RetryAfter)
	db := r.db.WithContext(ctx).
		Where("status = ?", domain.InstallmentPlanned).
		Where("due_date <= ?", q.AsOf).
		Where("attempt_count < ?", q.MaxAttempts).
		Where("last_attempt_at IS NULL OR last_attempt_at <= ?", cutoff).
		Order("due_date ASC, id ASC")
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	err := db.Find(&installments).Error
	return installments, err
}

func (r *GormInstallmentRepository) ListStuckProcessing(ctx context.Context, before time.Time) ([]domain.Installment, error) {
	var installments []domain.Installment
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_attempt_at <= ?", domain.InstallmentProcessing, before).
		Order("last_attempt_at ASC").
		Find(&installments).Error
	return installments, err
}

func (r *GormInstallmentRepository) ListPendingSync(ctx context.Context, limit int) ([]domain.Installment, error) {
	var installments []domain.Installment
	db := r.db.WithContext(ctx).
		Where("status = ?", domain.InstallmentPending).
		Order("invoice_id ASC, sequence ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&installments).Error
	return installments, err
}

// Claim conditionally moves a planned installment to processing and bumps
// its attempt counter. The WHERE clause is the whole concurrency guard:
// exactly one caller sees RowsAffected == 1, everyone else gets false.
func (r *GormInstallmentRepository) Claim(ctx context.Context, id uint, maxAttempts int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Installment{}).
		Where("id = ? AND status = ? AND attempt_count < ?", id, domain.InstallmentPlanned, maxAttempts).
		Updates(map[string]interface{}{
			"status":          domain.InstallmentProcessing,
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_attempt_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormInstallmentRepository) Update(ctx context.Context, installment *domain.Installment) error {
	return r.db.WithContext(ctx).Save(installment).Error
}

// PromoteStaged activates a draft plan by moving its staged installments to
// planned
func (r *GormInstallmentRepository) PromoteStaged(ctx context.Context, invoiceID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Installment{}).
		Where("invoice_id = ? AND status = ?", invoiceID, domain.InstallmentStaged).
		Update("status", domain.InstallmentPlanned)
	return res.RowsAffected, res.Error
}

// HoldRemaining freezes a payoff's target rows by moving them from planned
// or failed to processing. Attempt counters stay untouched: a hold is not a
// charge attempt. Rows already claimed by a charge worker are processing
// and do not match; a count short of len(ids) means the payoff lost the
// race. The hold time keeps abandoned rows visible to stale-claim recovery.
func (r *GormInstallmentRepository) HoldRemaining(ctx context.Context, invoiceID uint, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&domain.Installment{}).
		Where("invoice_id = ? AND id IN ? AND status IN ?", invoiceID, ids,
			[]string{domain.InstallmentPlanned, domain.InstallmentFailed}).
		Updates(map[string]interface{}{
			"status":          domain.InstallmentProcessing,
			"last_attempt_at": at,
		})
	return res.RowsAffected, res.Error
}

// SettleHeld marks held rows pending after the consolidated payoff charge,
// clearing any earlier failure reason
func (r *GormInstallmentRepository) SettleHeld(ctx context.Context, invoiceID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&domain.Installment{}).
		Where("invoice_id = ? AND id IN ? AND status = ?", invoiceID, ids, domain.InstallmentProcessing).
		Updates(map[string]interface{}{
			"status":         domain.InstallmentPending,
			"failure_reason": "",
		})
	return res.RowsAffected, res.Error
}

// ReleaseHeld reverts held rows to toStatus when the payoff charge never
// lands
func (r *GormInstallmentRepository) ReleaseHeld(ctx context.Context, invoiceID uint, ids []uint, toStatus string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&domain.Installment{}).
		Where("invoice_id = ? AND id IN ? AND status = ?", invoiceID, ids, domain.InstallmentProcessing).
		Update("status", toStatus)
	return res.RowsAffected, res.Error
}

// CancelRemaining fails every incomplete installment with the cancellation
// reason. Already-failed rows are included so they carry the reason too.
func (r *GormInstallmentRepository) CancelRemaining(ctx context.Context, invoiceID uint, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Installment{}).
		Where("invoice_id = ? AND status IN ?", invoiceID,
			[]string{domain.InstallmentStaged, domain.InstallmentPlanned, domain.InstallmentFailed}).
		Updates(map[string]interface{}{
			"status":         domain.InstallmentFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected, res.Error
}
