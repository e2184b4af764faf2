package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is an immutable record of money movement against an invoice. A
// completed payment is never edited; refunds are separate records pointing
// back through RefundOfID.
type Payment struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	InvoiceID       uint           `json:"invoice_id" gorm:"not null;index"`
	UserID          uint           `json:"user_id" gorm:"not null;index"`
	Amount          int64          `json:"amount" gorm:"not null"`
	Currency        string         `json:"currency" gorm:"default:'USD'"`
	Status          string         `json:"status" gorm:"default:'pending'"` // pending, completed, failed, refunded
	GatewayRef      string         `json:"gateway_ref"`                     // empty for zero-amount settlements
	IdempotencyKey  string         `json:"idempotency_key" gorm:"uniqueIndex"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	Note            string         `json:"note,omitempty"`
	RefundOfID      *uint          `json:"refund_of_id,omitempty" gorm:"index"`
	GatewayResponse datatypes.JSON `json:"-"` // raw gateway payload kept for audit
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}

// Payment statuses
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// PaymentRepository defines the contract for payment data access
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uint) (*Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	ListByInvoiceID(ctx context.Context, invoiceID uint) ([]Payment, error)
	Update(ctx context.Context, payment *Payment) error
}
