package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

// StageInvoiceCommand records a finalized purchase in the ledger. Amounts
// are integer minor units. An upfront amount, when present, was already
// collected at checkout and is recorded as a completed payment alongside
// the invoice.
type StageInvoiceCommand struct {
	UserID            uint
	RegistrationID    uint
	TotalAmount       int64
	DiscountAmount    int64
	Draft             bool
	UpfrontAmount     int64
	UpfrontGatewayRef string
}

// StagedInvoice is the command result: the invoice plus the upfront payment
// when one was recorded.
type StagedInvoice struct {
	Invoice        *domain.Invoice
	UpfrontPayment *domain.Payment
}

// StageInvoiceHandler handles stage invoice command
type StageInvoiceHandler struct {
	ledger domain.Ledger
}

// NewStageInvoiceHandler creates a new stage invoice handler
func NewStageInvoiceHandler(ledger domain.Ledger) *StageInvoiceHandler {
	return &StageInvoiceHandler{ledger: ledger}
}

// Handle executes the stage invoice command. Staging is pure persistence:
// no gateway or accounting call happens here.
func (h *StageInvoiceHandler) Handle(ctx context.Context, cmd StageInvoiceCommand) (*StagedInvoice, error) {
	if cmd.UserID == 0 {
		return nil, fmt.Errorf("user_id is required")
	}
	if cmd.RegistrationID == 0 {
		return nil, fmt.Errorf("registration_id is required")
	}
	if cmd.TotalAmount < 0 || cmd.DiscountAmount < 0 {
		return nil, fmt.Errorf("%w: amounts must not be negative", domain.ErrInvalidAmount)
	}
	if cmd.DiscountAmount > cmd.TotalAmount {
		return nil, fmt.Errorf("%w: discount exceeds total", domain.ErrInvalidAmount)
	}
	if cmd.UpfrontAmount < 0 {
		return nil, fmt.Errorf("%w: upfront amount must not be negative", domain.ErrInvalidAmount)
	}

	existing, err := h.ledger.Invoices().FindByRegistrationID(ctx, cmd.RegistrationID)
	if err != nil && !errors.Is(err, domain.ErrInvoiceNotFound) {
		return nil, fmt.Errorf("failed to check existing invoice: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: registration %d has invoice %d", domain.ErrAlreadyStaged, cmd.RegistrationID, existing.ID)
	}

	status := domain.InvoiceStaged
	if cmd.UpfrontAmount > 0 {
		status = domain.InvoicePending
	}
	if cmd.Draft {
		status = domain.InvoiceDraft
	}

	invoice := &domain.Invoice{
		UserID:         cmd.UserID,
		RegistrationID: cmd.RegistrationID,
		TotalAmount:    cmd.TotalAmount,
		DiscountAmount: cmd.DiscountAmount,
		FinalAmount:    cmd.TotalAmount - cmd.DiscountAmount,
		PaidAmount:     cmd.UpfrontAmount,
		SyncStatus:     status,
	}

	result := &StagedInvoice{Invoice: invoice}

	err = h.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if err := tx.Invoices().Create(ctx, invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		if cmd.UpfrontAmount > 0 {
			now := time.Now()
			payment := &domain.Payment{
				InvoiceID:      invoice.ID,
				UserID:         cmd.UserID,
				Amount:         cmd.UpfrontAmount,
				Currency:       "USD",
				Status:         domain.PaymentCompleted,
				GatewayRef:     cmd.UpfrontGatewayRef,
				IdempotencyKey: fmt.Sprintf("inv-%d-upfront", invoice.ID),
				CompletedAt:    &now,
			}
			if err := tx.Payments().Create(ctx, payment); err != nil {
				return fmt.Errorf("failed to record upfront payment: %w", err)
			}
			result.UpfrontPayment = payment
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
