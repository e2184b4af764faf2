package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

func TestScheduleInstallmentsHandler_SplitsEvenly(t *testing.T) {
	tests := []struct {
		name    string
		final   int64
		count   int
		amounts []int64
	}{
		{"even split", 9000, 3, []int64{3000, 3000, 3000}},
		{"remainder lands on the first", 10000, 3, []int64{3334, 3333, 3333}},
		{"single installment", 5000, 1, []int64{5000}},
		{"remainder folds into the first", 7, 5, []int64{3, 1, 1, 1, 1}},
		{"zero amount plan", 0, 2, []int64{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newTestLedger(t)
			ctx := context.Background()

			staged, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
				UserID:         1,
				RegistrationID: 100,
				TotalAmount:    tt.final,
			})
			require.NoError(t, err)

			firstDue := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
			installments, err := NewScheduleInstallmentsHandler(ledger).Handle(ctx, ScheduleInstallmentsCommand{
				InvoiceID:    staged.Invoice.ID,
				Count:        tt.count,
				FirstDueDate: firstDue,
			})
			require.NoError(t, err)
			require.Len(t, installments, tt.count)

			var sum int64
			for i, inst := range installments {
				assert.Equal(t, i+1, inst.Sequence)
				assert.Equal(t, domain.InstallmentPlanned, inst.Status)
				assert.Equal(t, firstDue.AddDate(0, 0, domain.InstallmentIntervalDays*i), inst.DueDate)
				if i < len(tt.amounts) {
					assert.Equal(t, tt.amounts[i], inst.Amount, "sequence %d", i+1)
				}
				sum += inst.Amount
			}
			assert.Equal(t, tt.final, sum, "installments must sum to the final amount")
		})
	}
}

func TestScheduleInstallmentsHandler_Guards(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	handler := NewScheduleInstallmentsHandler(ledger)

	invoice := seedPlan(t, ledger, 100, 9000, 3)

	t.Run("rejects a second schedule", func(t *testing.T) {
		_, err := handler.Handle(ctx, ScheduleInstallmentsCommand{InvoiceID: invoice.ID, Count: 2})
		assert.ErrorIs(t, err, domain.ErrAlreadyScheduled)
	})

	t.Run("rejects a cancelled plan", func(t *testing.T) {
		staged, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
			UserID:         1,
			RegistrationID: 101,
			TotalAmount:    5000,
		})
		require.NoError(t, err)
		_, err = NewCancelPlanHandler(ledger, nil).Handle(ctx, CancelPlanCommand{InvoiceID: staged.Invoice.ID})
		require.NoError(t, err)

		_, err = handler.Handle(ctx, ScheduleInstallmentsCommand{InvoiceID: staged.Invoice.ID, Count: 2})
		assert.ErrorIs(t, err, domain.ErrPlanCancelled)
	})

	t.Run("rejects an unknown invoice", func(t *testing.T) {
		_, err := handler.Handle(ctx, ScheduleInstallmentsCommand{InvoiceID: 9999, Count: 2})
		assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	})
}

func TestScheduleInstallmentsHandler_DraftPlansStageInstallments(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	staged, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
		UserID:         1,
		RegistrationID: 100,
		TotalAmount:    6000,
		Draft:          true,
	})
	require.NoError(t, err)

	installments, err := NewScheduleInstallmentsHandler(ledger).Handle(ctx, ScheduleInstallmentsCommand{
		InvoiceID: staged.Invoice.ID,
		Count:     2,
	})
	require.NoError(t, err)
	for _, inst := range installments {
		assert.Equal(t, domain.InstallmentStaged, inst.Status)
	}
}

func TestScheduleInstallmentsHandler_FirstPaymentLink(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	staged, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
		UserID:         1,
		RegistrationID: 100,
		TotalAmount:    9000,
		UpfrontAmount:  3000,
	})
	require.NoError(t, err)
	require.NotNil(t, staged.UpfrontPayment)

	installments, err := NewScheduleInstallmentsHandler(ledger).Handle(ctx, ScheduleInstallmentsCommand{
		InvoiceID:      staged.Invoice.ID,
		Count:          3,
		FirstPaymentID: &staged.UpfrontPayment.ID,
	})
	require.NoError(t, err)
	require.Len(t, installments, 3)

	// The upfront payment already covered the first installment
	assert.Equal(t, domain.InstallmentPending, installments[0].Status)
	require.NotNil(t, installments[0].PaymentID)
	assert.Equal(t, staged.UpfrontPayment.ID, *installments[0].PaymentID)
	assert.Equal(t, domain.InstallmentPlanned, installments[1].Status)
	assert.Equal(t, domain.InstallmentPlanned, installments[2].Status)
}

func TestScheduleInstallmentsHandler_ForeignPaymentRejected(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	other, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
		UserID:         1,
		RegistrationID: 100,
		TotalAmount:    5000,
		UpfrontAmount:  5000,
	})
	require.NoError(t, err)

	staged, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
		UserID:         1,
		RegistrationID: 101,
		TotalAmount:    9000,
	})
	require.NoError(t, err)

	_, err = NewScheduleInstallmentsHandler(ledger).Handle(ctx, ScheduleInstallmentsCommand{
		InvoiceID:      staged.Invoice.ID,
		Count:          3,
		FirstPaymentID: &other.UpfrontPayment.ID,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
}

func TestScheduleInstallmentsHandler_FlagsInstallmentPlan(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	invoice := seedPlan(t, ledger, 100, 9000, 3)
	found, err := ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.True(t, found.InstallmentPlan)

	single, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
		UserID:         1,
		RegistrationID: 101,
		TotalAmount:    5000,
	})
	require.NoError(t, err)
	_, err = NewScheduleInstallmentsHandler(ledger).Handle(ctx, ScheduleInstallmentsCommand{
		InvoiceID: single.Invoice.ID,
		Count:     1,
	})
	require.NoError(t, err)

	found, err = ledger.Invoices().FindByID(ctx, single.Invoice.ID)
	require.NoError(t, err)
	assert.False(t, found.InstallmentPlan)
}
