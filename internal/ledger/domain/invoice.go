package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Invoice is the billing record for one finalized purchase. All amounts are
// integer minor units (cents); monetary fields never use floats.
type Invoice struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	UserID          uint           `json:"user_id" gorm:"not null;index"`
	RegistrationID  uint           `json:"registration_id" gorm:"not null;uniqueIndex"`
	ExternalID      string         `json:"external_id" gorm:"index"` // accounting-system id, set on first successful sync
	TotalAmount     int64          `json:"total_amount" gorm:"not null"`
	DiscountAmount  int64          `json:"discount_amount" gorm:"not null;default:0"`
	FinalAmount     int64          `json:"final_amount" gorm:"not null"`
	PaidAmount      int64          `json:"paid_amount" gorm:"not null;default:0"`
	SyncStatus      string         `json:"sync_status" gorm:"not null;default:'staged';index"` // draft, staged, pending, synced, failed
	InstallmentPlan bool           `json:"installment_plan" gorm:"not null;default:false"`
	SyncError       string         `json:"sync_error,omitempty"`
	SyncedAt        *time.Time     `json:"synced_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason    string         `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Invoice) TableName() string {
	return "invoices"
}

// Invoice sync statuses
const (
	InvoiceDraft   = "draft"
	InvoiceStaged  = "staged"
	InvoicePending = "pending"
	InvoiceSynced  = "synced"
	InvoiceFailed  = "failed"
)

// Settled reports whether the full final amount has been collected.
func (i *Invoice) Settled() bool {
	return i.PaidAmount >= i.FinalAmount
}

// Cancelled reports whether the plan was cancelled.
func (i *Invoice) Cancelled() bool {
	return i.CancelledAt != nil
}

// InvoiceRepository defines the contract for invoice data access
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) error
	FindByID(ctx context.Context, id uint) (*Invoice, error)
	FindByRegistrationID(ctx context.Context, registrationID uint) (*Invoice, error)
	FindByUserID(ctx context.Context, userID uint, limit, offset int) ([]Invoice, error)
	FindAll(ctx context.Context, limit, offset int) ([]Invoice, error)
	ListBySyncStatus(ctx context.Context, statuses []string, limit int) ([]Invoice, error)
	Update(ctx context.Context, invoice *Invoice) error
	AddPaid(ctx context.Context, id uint, amount int64) error
}
