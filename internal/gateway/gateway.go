package gateway

import (
	"context"
	"encoding/json"
	"errors"
)

// Charge outcomes reported by the payment gateway
const (
	ChargeSucceeded      = "succeeded"
	ChargeFailed         = "failed"
	ChargeRequiresAction = "requires_action"
)

var (
	// ErrChargeNotFound is returned by LookupCharge when no charge exists
	// for the idempotency key
	ErrChargeNotFound = errors.New("charge not found")

	// ErrNoSavedMethod is returned when a customer has no default payment
	// method on file
	ErrNoSavedMethod = errors.New("no saved payment method")
)

// ChargeRequest describes a single charge attempt. Amounts are integer
// minor units.
type ChargeRequest struct {
	AmountCents      int64
	Currency         string
	PaymentMethodRef string
	CustomerRef      string
	IdempotencyKey   string
	Description      string
	Metadata         map[string]string
}

// ChargeResult is the gateway's answer. A declined charge is a result with
// status failed, not an error; errors mean the outcome is unknown.
type ChargeResult struct {
	Status         string
	TransactionRef string
	FailureReason  string
	Raw            json.RawMessage
}

// Charger is the payment-gateway contract. Charge must be idempotent per
// request key: retrying with the same key returns the original outcome
// instead of moving money twice. LookupCharge retrieves that outcome by key
// so crashed attempts can be resolved.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	LookupCharge(ctx context.Context, idempotencyKey string) (*ChargeResult, error)
}

// MethodResolver looks up a customer's saved payment method
type MethodResolver interface {
	DefaultMethod(ctx context.Context, userID uint) (string, error)
}
