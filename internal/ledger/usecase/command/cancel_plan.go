package command

import (
	"context"
	"fmt"
	"time"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/kafka"
	"github.com/clubworks/billing-engine/pkg/logger"
)

// CancelPlanCommand stops all future collection on an invoice. Money
// already collected stays collected; no charge happens here.
type CancelPlanCommand struct {
	InvoiceID uint
	Reason    string
}

// CancelPlanHandler handles cancel plan command
type CancelPlanHandler struct {
	ledger   domain.Ledger
	notifier kafka.Notifier
}

// NewCancelPlanHandler creates a new cancel plan handler
func NewCancelPlanHandler(ledger domain.Ledger, notifier kafka.Notifier) *CancelPlanHandler {
	return &CancelPlanHandler{ledger: ledger, notifier: notifier}
}

// Handle executes the cancel plan command. The cancellation timestamp on
// the invoice is the idempotency guard: a second cancel is a no-op.
func (h *CancelPlanHandler) Handle(ctx context.Context, cmd CancelPlanCommand) (*domain.Invoice, error) {
	if cmd.InvoiceID == 0 {
		return nil, fmt.Errorf("invoice_id is required")
	}
	if cmd.Reason == "" {
		cmd.Reason = "plan cancelled"
	}

	invoice, err := h.ledger.Invoices().FindByID(ctx, cmd.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Cancelled() {
		return invoice, nil
	}
	if invoice.CompletedAt != nil {
		return nil, domain.ErrAlreadySettled
	}

	now := time.Now()
	var cancelled int64
	err = h.ledger.InTx(ctx, func(tx domain.Ledger) error {
		cancelled, err = tx.Installments().CancelRemaining(ctx, invoice.ID, cmd.Reason)
		if err != nil {
			return fmt.Errorf("failed to cancel installments: %w", err)
		}
		invoice.CancelledAt = &now
		invoice.CancelReason = cmd.Reason
		if err := tx.Invoices().Update(ctx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notify after commit. Don't fail the cancellation, just log the error.
	if h.notifier != nil {
		if err := h.notifier.PublishPlanCancelled(ctx, kafka.PlanCancelledEvent{
			InvoiceID: invoice.ID,
			UserID:    invoice.UserID,
			Reason:    cmd.Reason,
		}); err != nil {
			logger.Error(ctx).Err(err).Uint("invoice_id", invoice.ID).Msg("Failed to publish plan cancelled event")
		}
	}

	logger.Info(ctx).
		Uint("invoice_id", invoice.ID).
		Int64("installments_cancelled", cancelled).
		Str("reason", cmd.Reason).
		Msg("Plan cancelled")

	return invoice, nil
}
