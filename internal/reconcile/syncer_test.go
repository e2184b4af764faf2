package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/billing-engine/internal/accounting"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

var testDue = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func TestSyncer_SyncsStagedInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice := f.seedInvoice(t, 100, domain.InvoiceStaged, 10000, 1000, 0)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1}, res)

	assert.Equal(t, 1, f.accounts.EntryCalls)
	assert.Equal(t, "contact-1", f.accounts.LastContact)
	assert.Equal(t, fmt.Sprintf("INV-%d", invoice.ID), f.accounts.LastReference)
	require.Len(t, f.accounts.LastItems, 2)
	assert.Equal(t, fmt.Sprintf("Registration %d", invoice.RegistrationID), f.accounts.LastItems[0].Description)
	assert.Equal(t, int64(10000), f.accounts.LastItems[0].AmountCents)
	assert.Equal(t, "Discount", f.accounts.LastItems[1].Description)
	assert.Equal(t, int64(-1000), f.accounts.LastItems[1].AmountCents)

	fresh, err := f.ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSynced, fresh.SyncStatus)
	assert.Equal(t, "acc-1", fresh.ExternalID)
	require.NotNil(t, fresh.SyncedAt)
	assert.Empty(t, fresh.SyncError)
}

func TestSyncer_PendingInvoiceSyncsToo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice := f.seedInvoice(t, 100, domain.InvoicePending, 5000, 0, 5000)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1}, res)

	fresh, err := f.ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSynced, fresh.SyncStatus)

	// No discount means a single line item
	require.Len(t, f.accounts.LastItems, 1)
}

func TestSyncer_ZeroAmountInvoiceStillSyncs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Fully discounted: the final amount is zero but the entry still posts,
	// as a balanced pair of lines
	invoice := f.seedInvoice(t, 100, domain.InvoiceStaged, 500, 500, 0)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1}, res)

	assert.Equal(t, 1, f.accounts.EntryCalls)
	require.Len(t, f.accounts.LastItems, 2)
	assert.Equal(t, int64(500), f.accounts.LastItems[0].AmountCents)
	assert.Equal(t, int64(-500), f.accounts.LastItems[1].AmountCents)

	fresh, err := f.ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSynced, fresh.SyncStatus)
	assert.Equal(t, "acc-1", fresh.ExternalID)
}

func TestSyncer_ExternalIDRepairsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice := f.seedInvoice(t, 100, domain.InvoiceStaged, 5000, 0, 0)
	invoice.ExternalID = "acc-existing"
	require.NoError(t, f.ledger.Invoices().Update(ctx, invoice))

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1}, res)
	assert.Zero(t, f.accounts.EntryCalls, "an entry that exists upstream is never resubmitted")

	fresh, err := f.ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSynced, fresh.SyncStatus)
	assert.Equal(t, "acc-existing", fresh.ExternalID)
}

func TestSyncer_RetryableErrorDefers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.accounts.CreateLedgerEntryFunc = func(_ context.Context, _, _ string, _ []accounting.LineItem) (*accounting.LedgerEntry, error) {
		return nil, &accounting.Error{StatusCode: http.StatusConflict, Message: "contact already being created"}
	}

	invoice := f.seedInvoice(t, 100, domain.InvoiceStaged, 5000, 0, 0)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Deferred: 1}, res)

	fresh, err := f.ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStaged, fresh.SyncStatus, "deferred invoices keep their status for the next pass")
	assert.Contains(t, fresh.SyncError, "contact already being created")
}

func TestSyncer_TerminalErrorFailsInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.accounts.CreateLedgerEntryFunc = func(_ context.Context, _, _ string, _ []accounting.LineItem) (*accounting.LedgerEntry, error) {
		return nil, &accounting.Error{StatusCode: http.StatusBadRequest, Message: "invalid contact"}
	}

	invoice := f.seedInvoice(t, 100, domain.InvoiceStaged, 5000, 0, 0)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)

	fresh, err := f.ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceFailed, fresh.SyncStatus)
	assert.Contains(t, fresh.SyncError, "invalid contact")
}

func TestSyncer_TransportErrorDefers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contacts.ResolveFunc = func(_ context.Context, _ uint) (string, error) {
		return "", errors.New("connection refused")
	}

	invoice := f.seedInvoice(t, 100, domain.InvoiceStaged, 5000, 0, 0)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Deferred: 1}, res)

	fresh, err := f.ledger.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStaged, fresh.SyncStatus)
}

func TestSyncer_InstallmentWaitsForInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice := f.seedInvoice(t, 100, domain.InvoicePending, 6000, 0, 3000)
	inst := f.seedPendingInstallment(t, invoice.ID, 1, 3000, nil)

	// First pass: the invoice entry fails upstream, so the payment line has
	// nowhere to attach yet
	f.accounts.CreateLedgerEntryFunc = func(_ context.Context, _, _ string, _ []accounting.LineItem) (*accounting.LedgerEntry, error) {
		return nil, &accounting.Error{StatusCode: http.StatusServiceUnavailable, Message: "down"}
	}
	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Deferred: 2}, res)
	assert.Zero(t, f.accounts.PaymentCalls)

	// Second pass: upstream recovered; the invoice syncs and the payment
	// line follows in the same pass
	f.accounts.CreateLedgerEntryFunc = nil
	res, err = f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 2}, res)
	assert.Equal(t, 1, f.accounts.PaymentCalls)
	assert.Equal(t, "acc-1", f.accounts.LastExternalID)

	freshInst, err := f.ledger.Installments().FindByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentSynced, freshInst.Status)
	assert.Equal(t, "pay-1", freshInst.ExternalID)
}

func TestSyncer_InstallmentUsesPaymentDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice := f.seedInvoice(t, 100, domain.InvoicePending, 3000, 0, 3000)

	completedAt := time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)
	payment := &domain.Payment{
		InvoiceID:      invoice.ID,
		UserID:         1,
		Amount:         3000,
		Currency:       "USD",
		Status:         domain.PaymentCompleted,
		GatewayRef:     "txn-abc",
		IdempotencyKey: "installment-1-attempt-1",
		CompletedAt:    &completedAt,
	}
	require.NoError(t, f.ledger.Payments().Create(ctx, payment))
	f.seedPendingInstallment(t, invoice.ID, 1, 3000, &payment.ID)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 2}, res)

	assert.Equal(t, int64(3000), f.accounts.LastLine.AmountCents)
	assert.Equal(t, "txn-abc", f.accounts.LastLine.Reference)
	assert.Equal(t, completedAt.Unix(), f.accounts.LastLine.PaidAt.Unix())
}

func TestSyncer_BlankGatewayRefKeepsFallbackReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice := f.seedInvoice(t, 100, domain.InvoicePending, 0, 0, 0)

	// Zero-amount installments settle without a gateway round trip; their
	// payment rows carry no gateway ref
	completedAt := time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)
	payment := &domain.Payment{
		InvoiceID:      invoice.ID,
		UserID:         1,
		Amount:         0,
		Currency:       "USD",
		Status:         domain.PaymentCompleted,
		IdempotencyKey: "installment-1-attempt-1",
		CompletedAt:    &completedAt,
	}
	require.NoError(t, f.ledger.Payments().Create(ctx, payment))
	inst := f.seedPendingInstallment(t, invoice.ID, 1, 0, &payment.ID)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 2}, res)

	assert.Equal(t, fmt.Sprintf("installment-%d", inst.ID), f.accounts.LastLine.Reference)
	assert.Equal(t, completedAt.Unix(), f.accounts.LastLine.PaidAt.Unix())
}

func TestSyncer_CollectedMoneyNeverFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.accounts.CreatePaymentRecordFunc = func(_ context.Context, _ string, _ accounting.PaymentLine) (*accounting.LedgerEntry, error) {
		return nil, &accounting.Error{StatusCode: http.StatusBadRequest, Message: "rejected line"}
	}

	invoice := f.seedInvoice(t, 100, domain.InvoicePending, 3000, 0, 3000)
	inst := f.seedPendingInstallment(t, invoice.ID, 1, 3000, nil)

	res, err := f.syncer.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1, Failed: 1}, res)

	fresh, err := f.ledger.Installments().FindByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPending, fresh.Status, "money in hand stays pending whatever the accounting system says")
	assert.Contains(t, fresh.SyncError, "rejected line")
}
