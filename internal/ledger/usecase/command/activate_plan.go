package command

import (
	"context"
	"fmt"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/pkg/logger"
)

// ActivatePlanCommand promotes a draft invoice once its purchase is
// confirmed: the invoice becomes staged for accounting sync and its staged
// installments become planned, which puts them in reach of the processor.
type ActivatePlanCommand struct {
	InvoiceID uint
}

// ActivatePlanHandler handles activate plan command
type ActivatePlanHandler struct {
	ledger domain.Ledger
}

// NewActivatePlanHandler creates a new activate plan handler
func NewActivatePlanHandler(ledger domain.Ledger) *ActivatePlanHandler {
	return &ActivatePlanHandler{ledger: ledger}
}

// Handle executes the activate plan command. Activating an already active
// invoice is a no-op.
func (h *ActivatePlanHandler) Handle(ctx context.Context, cmd ActivatePlanCommand) (*domain.Invoice, error) {
	if cmd.InvoiceID == 0 {
		return nil, fmt.Errorf("invoice_id is required")
	}

	invoice, err := h.ledger.Invoices().FindByID(ctx, cmd.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Cancelled() {
		return nil, domain.ErrPlanCancelled
	}
	if invoice.SyncStatus != domain.InvoiceDraft {
		return invoice, nil
	}

	var promoted int64
	err = h.ledger.InTx(ctx, func(tx domain.Ledger) error {
		promoted, err = tx.Installments().PromoteStaged(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("failed to promote installments: %w", err)
		}
		invoice.SyncStatus = domain.InvoiceStaged
		if invoice.PaidAmount > 0 {
			invoice.SyncStatus = domain.InvoicePending
		}
		if err := tx.Invoices().Update(ctx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Uint("invoice_id", invoice.ID).
		Int64("installments_promoted", promoted).
		Msg("Plan activated")

	return invoice, nil
}
