package domain

import (
	"context"
	"time"
)

// Installment is one scheduled slice of an invoice. Sequence numbers are
// contiguous from 1 and the amounts of an invoice's installments always sum
// to its final amount.
type Installment struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	InvoiceID     uint       `json:"invoice_id" gorm:"not null;index;uniqueIndex:idx_invoice_sequence"`
	Sequence      int        `json:"sequence" gorm:"not null;uniqueIndex:idx_invoice_sequence"`
	Amount        int64      `json:"amount" gorm:"not null"`
	DueDate       time.Time  `json:"due_date" gorm:"not null;index"`
	Status        string     `json:"status" gorm:"not null;default:'planned';index"` // staged, planned, processing, pending, synced, failed
	AttemptCount  int        `json:"attempt_count" gorm:"not null;default:0"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	PaymentID     *uint      `json:"payment_id,omitempty" gorm:"uniqueIndex"` // a payment links back from at most one installment
	ExternalID    string     `json:"external_id" gorm:"index"`
	SyncError     string     `json:"sync_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (Installment) TableName() string {
	return "installments"
}

// Installment statuses
const (
	InstallmentStaged     = "staged"
	InstallmentPlanned    = "planned"
	InstallmentProcessing = "processing"
	InstallmentPending    = "pending"
	InstallmentSynced     = "synced"
	InstallmentFailed     = "failed"
)

// Charge policy. A planned installment is attempted up to MaxChargeAttempts
// times with at least RetryInterval between attempts.
const (
	MaxChargeAttempts       = 3
	RetryInterval           = 24 * time.Hour
	InstallmentIntervalDays = 30
)

var installmentTransitions = map[string][]string{
	InstallmentStaged:     {InstallmentPlanned, InstallmentFailed},
	InstallmentPlanned:    {InstallmentProcessing, InstallmentFailed},
	InstallmentProcessing: {InstallmentPending, InstallmentPlanned, InstallmentFailed},
	InstallmentPending:    {InstallmentSynced},
	InstallmentSynced:     nil,
	InstallmentFailed:     {InstallmentProcessing},
}

// CanTransition reports whether an installment may move between two
// statuses. Synced is terminal; pending is reachable only through
// processing, whether the row was claimed for a charge attempt or held by
// an early payoff.
func CanTransition(from, to string) bool {
	for _, next := range installmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DueQuery filters installments eligible for a charge attempt.
type DueQuery struct {
	AsOf        time.Time
	RetryAfter  time.Duration // minimum gap since the previous attempt
	MaxAttempts int
	Limit       int
}

// InstallmentRepository defines the contract for installment data access.
// Claim is the concurrency guard for charging: it conditionally moves a
// planned installment to processing and increments its attempt counter in a
// single conditional update, returning false when another worker won.
// HoldRemaining is the payoff-side counterpart: it moves a fixed set of
// planned and failed rows to processing, stamping the hold time but not the
// attempt counters, and SettleHeld or ReleaseHeld finish or revert the
// hold. The row counts returned by the bulk updates tell the caller whether
// it got every row it asked for.
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, installments []*Installment) error
	FindByID(ctx context.Context, id uint) (*Installment, error)
	ListByInvoiceID(ctx context.Context, invoiceID uint) ([]Installment, error)
	ListDue(ctx context.Context, q DueQuery) ([]Installment, error)
	ListStuckProcessing(ctx context.Context, before time.Time) ([]Installment, error)
	ListPendingSync(ctx context.Context, limit int) ([]Installment, error)
	Claim(ctx context.Context, id uint, maxAttempts int, at time.Time) (bool, error)
	Update(ctx context.Context, installment *Installment) error
	PromoteStaged(ctx context.Context, invoiceID uint) (int64, error)
	HoldRemaining(ctx context.Context, invoiceID uint, ids []uint, at time.Time) (int64, error)
	SettleHeld(ctx context.Context, invoiceID uint, ids []uint) (int64, error)
	ReleaseHeld(ctx context.Context, invoiceID uint, ids []uint, toStatus string) (int64, error)
	CancelRemaining(ctx context.Context, invoiceID uint, reason string) (int64, error)
}
