package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

// GormLedger groups the gorm repositories behind domain.Ledger so the
// money-moving flows can compose them inside one transaction.
type GormLedger struct {
	db           *gorm.DB
	invoices     *GormInvoiceRepository
	installments *GormInstallmentRepository
	payments     *GormPaymentRepository
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{
		db:           db,
		invoices:     NewGormInvoiceRepository(db),
		installments: NewGormInstallmentRepository(db),
		payments:     NewGormPaymentRepository(db),
	}
}

// AutoMigrate creates the canonical billing schema
func (l *GormLedger) AutoMigrate() error {
	return l.db.AutoMigrate(&domain.Invoice{}, &domain.Installment{}, &domain.Payment{})
}

func (l *GormLedger) Invoices() domain.InvoiceRepository {
	return l.invoices
}

func (l *GormLedger) Installments() domain.InstallmentRepository {
	return l.installments
}

func (l *GormLedger) Payments() domain.PaymentRepository {
	return l.payments
}

// InTx runs fn with repositories bound to a single database transaction
func (l *GormLedger) InTx(ctx context.Context, fn func(domain.Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormLedger(tx))
	})
}
