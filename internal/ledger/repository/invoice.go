package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

type GormInvoiceRepository struct {
	db *gorm.DB
}

func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uint) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).First(&invoice, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *GormInvoiceRepository) FindByRegistrationID(ctx context.Context, registrationID uint) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).Where("registration_id = ?", registrationID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *GormInvoiceRepository) FindByUserID(ctx context.Context, userID uint, limit, offset int) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Limit(limit).Offset(offset).
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

func (r *GormInvoiceRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).Limit(limit).Offset(offset).
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

func (r *GormInvoiceRepository) ListBySyncStatus(ctx context.Context, statuses []string, limit int) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	db := r.db.WithContext(ctx).
		Where("sync_status IN ?", statuses).
		Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&invoices).Error
	return invoices, err
}

func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

// AddPaid increments paid_amount atomically so concurrent installment
// completions never lose an update
func (r *GormInvoiceRepository) AddPaid(ctx context.Context, id uint, amount int64) error {
	return r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ?", id).
		Update("paid_amount", gorm.Expr("paid_amount + ?", amount)).Error
}
