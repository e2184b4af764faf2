package kafka

import (
	"context"
	"time"
)

// InstallmentChargedEvent is emitted after an installment charge commits
type InstallmentChargedEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	InvoiceID     uint      `json:"invoice_id"`
	InstallmentID uint      `json:"installment_id"`
	Sequence      int       `json:"sequence"`
	UserID        uint      `json:"user_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentID     uint      `json:"payment_id"`
	GatewayRef    string    `json:"gateway_ref"`
	Timestamp     time.Time `json:"timestamp"`
}

// InstallmentChargeFailedEvent is emitted after a failed charge attempt is
// recorded. Terminal marks the attempt that exhausted the retry budget.
type InstallmentChargeFailedEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	InvoiceID     uint      `json:"invoice_id"`
	InstallmentID uint      `json:"installment_id"`
	Sequence      int       `json:"sequence"`
	UserID        uint      `json:"user_id"`
	Amount        int64     `json:"amount"`
	Reason        string    `json:"reason"`
	AttemptCount  int       `json:"attempt_count"`
	Terminal      bool      `json:"terminal"`
	Timestamp     time.Time `json:"timestamp"`
}

// PlanCompletedEvent is emitted when an invoice reaches its final amount
type PlanCompletedEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	InvoiceID uint      `json:"invoice_id"`
	UserID    uint      `json:"user_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// PlanCancelledEvent is emitted when a plan is cancelled
type PlanCancelledEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	InvoiceID uint      `json:"invoice_id"`
	UserID    uint      `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationCompletedEvent is the inbound event from the registration
// service. A completed registration becomes a staged invoice, and when it
// asks for more than one installment, a payment plan.
type RegistrationCompletedEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	RegistrationID uint      `json:"registration_id"`
	UserID         uint      `json:"user_id"`
	TotalAmount    int64     `json:"total_amount"`
	DiscountAmount int64     `json:"discount_amount"`
	Installments   int       `json:"installments"`
	UpfrontAmount  int64     `json:"upfront_amount"`
	GatewayRef     string    `json:"gateway_ref"`
	FirstDueDate   time.Time `json:"first_due_date"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeInstallmentCharged      = "installment.charged"
	EventTypeInstallmentChargeFailed = "installment.charge_failed"
	EventTypePlanCompleted           = "plan.completed"
	EventTypePlanCancelled           = "plan.cancelled"
	EventTypeRegistrationCompleted   = "registration.completed"
)

// Kafka topics
const (
	TopicInstallmentCharged      = "billing-installment-charged"
	TopicInstallmentChargeFailed = "billing-installment-charge-failed"
	TopicPlanCompleted           = "billing-plan-completed"
	TopicPlanCancelled           = "billing-plan-cancelled"
	TopicRegistrationCompleted   = "registration-completed"
)

// Notifier is the outbound event contract the billing flows depend on.
// Publishing happens after the database commit and failures are logged,
// never propagated into the financial flow.
type Notifier interface {
	PublishInstallmentCharged(ctx context.Context, event InstallmentChargedEvent) error
	PublishInstallmentChargeFailed(ctx context.Context, event InstallmentChargeFailedEvent) error
	PublishPlanCompleted(ctx context.Context, event PlanCompletedEvent) error
	PublishPlanCancelled(ctx context.Context, event PlanCancelledEvent) error
}
