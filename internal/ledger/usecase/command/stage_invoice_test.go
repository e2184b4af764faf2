package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

func TestStageInvoiceHandler_Handle(t *testing.T) {
	ledger := newTestLedger(t)
	handler := NewStageInvoiceHandler(ledger)
	ctx := context.Background()

	t.Run("stages a finalized purchase", func(t *testing.T) {
		staged, err := handler.Handle(ctx, StageInvoiceCommand{
			UserID:         1,
			RegistrationID: 100,
			TotalAmount:    10000,
			DiscountAmount: 1000,
		})
		require.NoError(t, err)
		assert.NotZero(t, staged.Invoice.ID)
		assert.Equal(t, int64(9000), staged.Invoice.FinalAmount)
		assert.Equal(t, int64(0), staged.Invoice.PaidAmount)
		assert.Equal(t, domain.InvoiceStaged, staged.Invoice.SyncStatus)
		assert.Nil(t, staged.UpfrontPayment)
	})

	t.Run("rejects a second invoice for the same registration", func(t *testing.T) {
		_, err := handler.Handle(ctx, StageInvoiceCommand{
			UserID:         2,
			RegistrationID: 100,
			TotalAmount:    5000,
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyStaged)
	})

	t.Run("rejects discount exceeding total", func(t *testing.T) {
		_, err := handler.Handle(ctx, StageInvoiceCommand{
			UserID:         1,
			RegistrationID: 101,
			TotalAmount:    1000,
			DiscountAmount: 2000,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		_, err := handler.Handle(ctx, StageInvoiceCommand{
			UserID:         1,
			RegistrationID: 102,
			TotalAmount:    -100,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = handler.Handle(ctx, StageInvoiceCommand{
			UserID:         1,
			RegistrationID: 102,
			TotalAmount:    100,
			UpfrontAmount:  -50,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

func TestStageInvoiceHandler_Upfront(t *testing.T) {
	ledger := newTestLedger(t)
	handler := NewStageInvoiceHandler(ledger)
	ctx := context.Background()

	staged, err := handler.Handle(ctx, StageInvoiceCommand{
		UserID:            1,
		RegistrationID:    200,
		TotalAmount:       12000,
		UpfrontAmount:     4000,
		UpfrontGatewayRef: "txn-upfront",
	})
	require.NoError(t, err)

	// Money already moved, so the invoice skips straight to pending sync
	assert.Equal(t, domain.InvoicePending, staged.Invoice.SyncStatus)
	assert.Equal(t, int64(4000), staged.Invoice.PaidAmount)

	require.NotNil(t, staged.UpfrontPayment)
	assert.Equal(t, domain.PaymentCompleted, staged.UpfrontPayment.Status)
	assert.Equal(t, int64(4000), staged.UpfrontPayment.Amount)
	assert.Equal(t, "txn-upfront", staged.UpfrontPayment.GatewayRef)
	assert.Equal(t, fmt.Sprintf("inv-%d-upfront", staged.Invoice.ID), staged.UpfrontPayment.IdempotencyKey)
	require.NotNil(t, staged.UpfrontPayment.CompletedAt)

	persisted, err := ledger.Payments().FindByIdempotencyKey(ctx, staged.UpfrontPayment.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, staged.Invoice.ID, persisted.InvoiceID)
}

func TestStageInvoiceHandler_Draft(t *testing.T) {
	ledger := newTestLedger(t)
	handler := NewStageInvoiceHandler(ledger)

	staged, err := handler.Handle(context.Background(), StageInvoiceCommand{
		UserID:         1,
		RegistrationID: 300,
		TotalAmount:    8000,
		Draft:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceDraft, staged.Invoice.SyncStatus)
}
