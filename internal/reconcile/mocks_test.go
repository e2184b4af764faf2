package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clubworks/billing-engine/internal/accounting"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/internal/ledger/repository"
)

type fixture struct {
	ledger   domain.Ledger
	accounts *accountsMock
	contacts *contactsMock
	syncer   *Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "billing.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store := repository.NewGormLedger(db)
	require.NoError(t, store.AutoMigrate())

	f := &fixture{
		ledger:   store,
		accounts: &accountsMock{},
		contacts: &contactsMock{},
	}
	f.syncer = New(f.ledger, f.accounts, f.contacts, 50)
	return f
}

func (f *fixture) seedInvoice(t *testing.T, registrationID uint, syncStatus string, total, discount, paid int64) *domain.Invoice {
	t.Helper()

	invoice := &domain.Invoice{
		UserID:         1,
		RegistrationID: registrationID,
		TotalAmount:    total,
		DiscountAmount: discount,
		FinalAmount:    total - discount,
		PaidAmount:     paid,
		SyncStatus:     syncStatus,
	}
	require.NoError(t, f.ledger.Invoices().Create(context.Background(), invoice))
	return invoice
}

func (f *fixture) seedPendingInstallment(t *testing.T, invoiceID uint, seq int, amount int64, paymentID *uint) *domain.Installment {
	t.Helper()

	inst := &domain.Installment{
		InvoiceID: invoiceID,
		Sequence:  seq,
		Amount:    amount,
		DueDate:   testDue,
		Status:    domain.InstallmentPending,
		PaymentID: paymentID,
	}
	require.NoError(t, f.ledger.Installments().CreateBatch(context.Background(), []*domain.Installment{inst}))
	return inst
}

// accountsMock implements accounting.Client
type accountsMock struct {
	CreateLedgerEntryFunc   func(ctx context.Context, contactRef, reference string, items []accounting.LineItem) (*accounting.LedgerEntry, error)
	CreatePaymentRecordFunc func(ctx context.Context, externalInvoiceID string, line accounting.PaymentLine) (*accounting.LedgerEntry, error)

	EntryCalls     int
	PaymentCalls   int
	LastContact    string
	LastReference  string
	LastItems      []accounting.LineItem
	LastExternalID string
	LastLine       accounting.PaymentLine
}

func (m *accountsMock) CreateLedgerEntry(ctx context.Context, contactRef, reference string, items []accounting.LineItem) (*accounting.LedgerEntry, error) {
	m.EntryCalls++
	m.LastContact = contactRef
	m.LastReference = reference
	m.LastItems = items
	if m.CreateLedgerEntryFunc != nil {
		return m.CreateLedgerEntryFunc(ctx, contactRef, reference, items)
	}
	return &accounting.LedgerEntry{ID: "acc-1", Number: "LED-1", Status: "posted"}, nil
}

func (m *accountsMock) CreatePaymentRecord(ctx context.Context, externalInvoiceID string, line accounting.PaymentLine) (*accounting.LedgerEntry, error) {
	m.PaymentCalls++
	m.LastExternalID = externalInvoiceID
	m.LastLine = line
	if m.CreatePaymentRecordFunc != nil {
		return m.CreatePaymentRecordFunc(ctx, externalInvoiceID, line)
	}
	return &accounting.LedgerEntry{ID: "pay-1", Status: "posted"}, nil
}

// contactsMock implements accounting.ContactResolver
type contactsMock struct {
	ResolveFunc  func(ctx context.Context, userID uint) (string, error)
	ResolveCalls int
}

func (m *contactsMock) Resolve(ctx context.Context, userID uint) (string, error) {
	m.ResolveCalls++
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, userID)
	}
	return "contact-1", nil
}
