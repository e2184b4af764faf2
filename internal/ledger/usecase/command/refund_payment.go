package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

// RefundPaymentCommand records a refund against a completed payment. The
// original payment is never mutated; the refund is a separate record
// pointing back at it, and the invoice's paid amount drops accordingly.
type RefundPaymentCommand struct {
	PaymentID uint
	Amount    int64
	Reason    string
}

// RefundPaymentHandler handles refund payment command
type RefundPaymentHandler struct {
	ledger domain.Ledger
}

// NewRefundPaymentHandler creates a new refund payment handler
func NewRefundPaymentHandler(ledger domain.Ledger) *RefundPaymentHandler {
	return &RefundPaymentHandler{ledger: ledger}
}

// Handle executes the refund payment command. One refund per payment: the
// per-refund amount cap only holds when refunds cannot stack.
func (h *RefundPaymentHandler) Handle(ctx context.Context, cmd RefundPaymentCommand) (*domain.Payment, error) {
	if cmd.PaymentID == 0 {
		return nil, fmt.Errorf("payment_id is required")
	}
	if cmd.Amount <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidAmount)
	}

	original, err := h.ledger.Payments().FindByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.PaymentCompleted {
		return nil, fmt.Errorf("payment %d is not completed", original.ID)
	}
	if cmd.Amount > original.Amount {
		return nil, fmt.Errorf("%w: refund exceeds original payment", domain.ErrInvalidAmount)
	}

	key := fmt.Sprintf("refund-%d", original.ID)
	if _, err := h.ledger.Payments().FindByIdempotencyKey(ctx, key); err == nil {
		return nil, fmt.Errorf("%w: payment %d", domain.ErrAlreadyRefunded, original.ID)
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, fmt.Errorf("failed to check existing refund: %w", err)
	}

	now := time.Now()
	refund := &domain.Payment{
		InvoiceID:      original.InvoiceID,
		UserID:         original.UserID,
		Amount:         cmd.Amount,
		Currency:       original.Currency,
		Status:         domain.PaymentRefunded,
		GatewayRef:     original.GatewayRef,
		IdempotencyKey: key,
		Note:           cmd.Reason,
		RefundOfID:     &original.ID,
		CompletedAt:    &now,
	}

	err = h.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if err := tx.Payments().Create(ctx, refund); err != nil {
			return fmt.Errorf("failed to record refund: %w", err)
		}
		return tx.Invoices().AddPaid(ctx, original.InvoiceID, -cmd.Amount)
	})
	if err != nil {
		return nil, err
	}

	return refund, nil
}
