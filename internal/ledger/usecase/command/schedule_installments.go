package command

import (
	"context"
	"fmt"
	"time"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

// ScheduleInstallmentsCommand splits an invoice's final amount into a
// monthly installment plan. FirstPaymentID links an upfront payment that
// already covered the first installment; that installment starts pending
// instead of planned.
type ScheduleInstallmentsCommand struct {
	InvoiceID      uint
	Count          int
	FirstDueDate   time.Time
	FirstPaymentID *uint
}

// ScheduleInstallmentsHandler handles schedule installments command
type ScheduleInstallmentsHandler struct {
	ledger domain.Ledger
}

// NewScheduleInstallmentsHandler creates a new schedule installments handler
func NewScheduleInstallmentsHandler(ledger domain.Ledger) *ScheduleInstallmentsHandler {
	return &ScheduleInstallmentsHandler{ledger: ledger}
}

// Handle executes the schedule installments command. Amounts use integer
// division with the remainder folded into the first installment, so the
// parts always sum to the invoice's final amount.
func (h *ScheduleInstallmentsHandler) Handle(ctx context.Context, cmd ScheduleInstallmentsCommand) ([]domain.Installment, error) {
	if cmd.InvoiceID == 0 {
		return nil, fmt.Errorf("invoice_id is required")
	}
	if cmd.Count < 1 {
		cmd.Count = 1
	}

	invoice, err := h.ledger.Invoices().FindByID(ctx, cmd.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Cancelled() {
		return nil, domain.ErrPlanCancelled
	}

	existing, err := h.ledger.Installments().ListByInvoiceID(ctx, cmd.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing installments: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrAlreadyScheduled, cmd.InvoiceID)
	}

	firstDue := cmd.FirstDueDate
	if firstDue.IsZero() {
		firstDue = time.Now()
	}

	status := domain.InstallmentPlanned
	if invoice.SyncStatus == domain.InvoiceDraft {
		// Draft plans activate later; their installments wait in staged
		status = domain.InstallmentStaged
	}

	per := invoice.FinalAmount / int64(cmd.Count)
	remainder := invoice.FinalAmount % int64(cmd.Count)

	installments := make([]*domain.Installment, 0, cmd.Count)
	for i := 0; i < cmd.Count; i++ {
		inst := &domain.Installment{
			InvoiceID: invoice.ID,
			Sequence:  i + 1,
			Amount:    per,
			DueDate:   firstDue.AddDate(0, 0, domain.InstallmentIntervalDays*i),
			Status:    status,
		}
		if i == 0 {
			inst.Amount += remainder
			if cmd.FirstPaymentID != nil {
				inst.Status = domain.InstallmentPending
				inst.PaymentID = cmd.FirstPaymentID
			}
		}
		installments = append(installments, inst)
	}

	if cmd.FirstPaymentID != nil {
		payment, err := h.ledger.Payments().FindByID(ctx, *cmd.FirstPaymentID)
		if err != nil {
			return nil, fmt.Errorf("first payment lookup failed: %w", err)
		}
		if payment.InvoiceID != invoice.ID {
			return nil, fmt.Errorf("payment %d does not belong to invoice %d", payment.ID, invoice.ID)
		}
	}

	err = h.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if err := tx.Installments().CreateBatch(ctx, installments); err != nil {
			return fmt.Errorf("failed to create installments: %w", err)
		}
		if cmd.Count > 1 && !invoice.InstallmentPlan {
			invoice.InstallmentPlan = true
			if err := tx.Invoices().Update(ctx, invoice); err != nil {
				return fmt.Errorf("failed to flag installment plan: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.Installment, 0, len(installments))
	for _, inst := range installments {
		result = append(result, *inst)
	}
	return result, nil
}
