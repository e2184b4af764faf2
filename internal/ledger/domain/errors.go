package domain

import "errors"

// Sentinel errors surfaced by the billing flows. HTTP handlers map these to
// response statuses; anything else is treated as internal.
var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAlreadyStaged       = errors.New("registration already staged")
	ErrAlreadyScheduled    = errors.New("installments already scheduled")
	ErrChargeDeclined      = errors.New("charge declined")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNothingOutstanding  = errors.New("nothing outstanding")
	ErrNoPaymentMethod     = errors.New("no saved payment method")
	ErrPlanCancelled       = errors.New("plan is cancelled")
	ErrPlanNotActive       = errors.New("plan not active")
	ErrAlreadySettled      = errors.New("invoice already settled")
	ErrCollectionInFlight  = errors.New("collection attempt in flight")
	ErrAlreadyRefunded     = errors.New("payment already refunded")
	ErrNotChargeable       = errors.New("installment not chargeable")
)
