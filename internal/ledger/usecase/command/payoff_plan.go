package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/kafka"
	"github.com/clubworks/billing-engine/pkg/logger"
)

// PayoffPlanCommand settles every remaining installment of an invoice with
// one consolidated charge.
type PayoffPlanCommand struct {
	InvoiceID uint
}

// PayoffResult reports what the payoff did
type PayoffResult struct {
	Invoice *domain.Invoice
	Payment *domain.Payment
	Settled int64
}

// PayoffPlanHandler handles payoff plan command
type PayoffPlanHandler struct {
	ledger   domain.Ledger
	charger  gateway.Charger
	methods  gateway.MethodResolver
	notifier kafka.Notifier
}

// NewPayoffPlanHandler creates a new payoff plan handler
func NewPayoffPlanHandler(ledger domain.Ledger, charger gateway.Charger, methods gateway.MethodResolver, notifier kafka.Notifier) *PayoffPlanHandler {
	return &PayoffPlanHandler{ledger: ledger, charger: charger, methods: methods, notifier: notifier}
}

// Handle executes the payoff plan command. The remaining installments are
// held (moved to processing) before the consolidated charge goes out: a
// charge worker that claimed one of them first makes the hold come up
// short, and the payoff backs off with ErrCollectionInFlight instead of
// collecting an amount the plan no longer owes. The gateway idempotency key
// is derived from the invoice, so a retried payoff replays the original
// charge outcome. The consolidated payment attaches at the invoice level;
// the settled installments keep their own payment links empty.
func (h *PayoffPlanHandler) Handle(ctx context.Context, cmd PayoffPlanCommand) (*PayoffResult, error) {
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
	if invoice.SyncStatus == domain.InvoiceDraft {
		return nil, domain.ErrPlanNotActive
	}
	if invoice.Settled() && invoice.CompletedAt != nil {
		return nil, domain.ErrAlreadySettled
	}

	installments, err := h.ledger.Installments().ListByInvoiceID(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load installments: %w", err)
	}

	var outstanding int64
	var plannedIDs, failedIDs []uint
	for _, inst := range installments {
		switch inst.Status {
		case domain.InstallmentProcessing:
			return nil, domain.ErrCollectionInFlight
		case domain.InstallmentPlanned:
			plannedIDs = append(plannedIDs, inst.ID)
			outstanding += inst.Amount
		case domain.InstallmentFailed:
			failedIDs = append(failedIDs, inst.ID)
			outstanding += inst.Amount
		}
	}
	heldIDs := append(append([]uint{}, plannedIDs...), failedIDs...)
	if len(heldIDs) == 0 {
		return nil, domain.ErrNothingOutstanding
	}

	now := time.Now()
	payment := &domain.Payment{
		InvoiceID:      invoice.ID,
		UserID:         invoice.UserID,
		Amount:         outstanding,
		Currency:       "USD",
		Status:         domain.PaymentCompleted,
		IdempotencyKey: fmt.Sprintf("inv-%d-payoff", invoice.ID),
		CompletedAt:    &now,
	}

	// Resolved before the hold; a missing method leaves the plan untouched
	var method string
	if outstanding > 0 {
		method, err = h.methods.DefaultMethod(ctx, invoice.UserID)
		if err != nil {
			if errors.Is(err, gateway.ErrNoSavedMethod) {
				return nil, domain.ErrNoPaymentMethod
			}
			return nil, fmt.Errorf("failed to resolve payment method: %w", err)
		}
	}

	// The hold must land on every remaining installment or none. A short
	// count means a charge worker claimed one of them after the list above;
	// rolling back leaves nothing held.
	err = h.ledger.InTx(ctx, func(tx domain.Ledger) error {
		held, err := tx.Installments().HoldRemaining(ctx, invoice.ID, heldIDs, now)
		if err != nil {
			return fmt.Errorf("failed to hold installments: %w", err)
		}
		if held != int64(len(heldIDs)) {
			return domain.ErrCollectionInFlight
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Zero-amount remainders settle without touching the gateway
	if outstanding > 0 {
		result, err := h.charger.Charge(ctx, gateway.ChargeRequest{
			AmountCents:      outstanding,
			Currency:         payment.Currency,
			PaymentMethodRef: method,
			CustomerRef:      fmt.Sprintf("user-%d", invoice.UserID),
			IdempotencyKey:   payment.IdempotencyKey,
			Description:      fmt.Sprintf("Early payoff of invoice %d", invoice.ID),
		})
		if err != nil {
			h.releaseHold(ctx, invoice.ID, plannedIDs, failedIDs)
			return nil, fmt.Errorf("payoff charge failed: %w", err)
		}
		if result.Status != gateway.ChargeSucceeded {
			h.releaseHold(ctx, invoice.ID, plannedIDs, failedIDs)
			return nil, fmt.Errorf("%w: %s", domain.ErrChargeDeclined, result.FailureReason)
		}

		payment.GatewayRef = result.TransactionRef
		payment.GatewayResponse = datatypes.JSON(result.Raw)
	}

	res := &PayoffResult{Invoice: invoice, Payment: payment}
	err = h.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record payoff payment: %w", err)
		}

		settled, err := tx.Installments().SettleHeld(ctx, invoice.ID, heldIDs)
		if err != nil {
			return fmt.Errorf("failed to settle installments: %w", err)
		}
		if settled != int64(len(heldIDs)) {
			return fmt.Errorf("settled %d of %d held installments", settled, len(heldIDs))
		}
		res.Settled = settled

		if err := tx.Invoices().AddPaid(ctx, invoice.ID, outstanding); err != nil {
			return fmt.Errorf("failed to update paid amount: %w", err)
		}

		fresh, err := tx.Invoices().FindByID(ctx, invoice.ID)
		if err != nil {
			return err
		}
		changed := false
		if fresh.SyncStatus == domain.InvoiceStaged {
			fresh.SyncStatus = domain.InvoicePending
			changed = true
		}
		if fresh.Settled() && fresh.CompletedAt == nil {
			fresh.CompletedAt = &now
			changed = true
		}
		if changed {
			if err := tx.Invoices().Update(ctx, fresh); err != nil {
				return fmt.Errorf("failed to update invoice: %w", err)
			}
		}
		res.Invoice = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notify after commit. Don't fail the payoff, just log the error.
	if h.notifier != nil && res.Invoice.CompletedAt != nil {
		if err := h.notifier.PublishPlanCompleted(ctx, kafka.PlanCompletedEvent{
			InvoiceID: invoice.ID,
			UserID:    invoice.UserID,
			Amount:    res.Invoice.PaidAmount,
		}); err != nil {
			logger.Error(ctx).Err(err).Uint("invoice_id", invoice.ID).Msg("Failed to publish plan completed event")
		}
	}

	logger.Info(ctx).
		Uint("invoice_id", invoice.ID).
		Int64("amount", outstanding).
		Int64("installments_settled", res.Settled).
		Msg("Plan paid off")

	return res, nil
}

// releaseHold hands held installments back to their pre-hold statuses after
// a charge that never landed. Best effort: anything left behind is picked
// up by stale-claim recovery.
func (h *PayoffPlanHandler) releaseHold(ctx context.Context, invoiceID uint, plannedIDs, failedIDs []uint) {
	if _, err := h.ledger.Installments().ReleaseHeld(ctx, invoiceID, plannedIDs, domain.InstallmentPlanned); err != nil {
		logger.Error(ctx).Err(err).Uint("invoice_id", invoiceID).Msg("Failed to release held installments")
	}
	if _, err := h.ledger.Installments().ReleaseHeld(ctx, invoiceID, failedIDs, domain.InstallmentFailed); err != nil {
		logger.Error(ctx).Err(err).Uint("invoice_id", invoiceID).Msg("Failed to release held installments")
	}
}
