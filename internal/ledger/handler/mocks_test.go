package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clubworks/billing-engine/internal/accounting"
	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/internal/ledger/repository"
	"github.com/clubworks/billing-engine/internal/ledger/usecase/command"
	"github.com/clubworks/billing-engine/internal/processor"
	"github.com/clubworks/billing-engine/internal/reconcile"
	"github.com/clubworks/billing-engine/pkg/auth"
)

type fixture struct {
	ledger  domain.Ledger
	db      *gorm.DB
	router  *mux.Router
	charger *chargerMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "billing.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store := repository.NewGormLedger(db)
	require.NoError(t, store.AutoMigrate())

	charger := &chargerMock{}
	methods := &methodsMock{}
	proc := processor.New(store, charger, methods, nil, processor.DefaultConfig())
	syncer := reconcile.New(store, &accountsMock{}, &contactsMock{}, 50)
	billingHandler := NewBillingHandler(store, charger, methods, nil, proc, syncer)

	router := mux.NewRouter()
	billingHandler.RegisterRoutes(router)

	return &fixture{ledger: store, db: db, router: router, charger: charger}
}

// seedPlan stages an invoice for userID and schedules count installments
func (f *fixture) seedPlan(t *testing.T, userID, registrationID uint, total int64, count int) *domain.Invoice {
	t.Helper()
	ctx := context.Background()

	staged, err := command.NewStageInvoiceHandler(f.ledger).Handle(ctx, command.StageInvoiceCommand{
		UserID:         userID,
		RegistrationID: registrationID,
		TotalAmount:    total,
	})
	require.NoError(t, err)

	_, err = command.NewScheduleInstallmentsHandler(f.ledger).Handle(ctx, command.ScheduleInstallmentsCommand{
		InvoiceID:    staged.Invoice.ID,
		Count:        count,
		FirstDueDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return staged.Invoice
}

func (f *fixture) request(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(1, "ops", "admin")
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, userID uint) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, "member", "user")
	require.NoError(t, err)
	return token
}

// chargerMock implements gateway.Charger
type chargerMock struct {
	ChargeFunc  func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
	ChargeCalls int
}

func (m *chargerMock) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	m.ChargeCalls++
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, req)
	}
	return &gateway.ChargeResult{Status: gateway.ChargeSucceeded, TransactionRef: "txn-test"}, nil
}

func (m *chargerMock) LookupCharge(ctx context.Context, idempotencyKey string) (*gateway.ChargeResult, error) {
	return nil, gateway.ErrChargeNotFound
}

// methodsMock implements gateway.MethodResolver
type methodsMock struct{}

func (m *methodsMock) DefaultMethod(ctx context.Context, userID uint) (string, error) {
	return "pm-test", nil
}

// accountsMock implements accounting.Client
type accountsMock struct{}

func (m *accountsMock) CreateLedgerEntry(ctx context.Context, contactRef, reference string, items []accounting.LineItem) (*accounting.LedgerEntry, error) {
	return &accounting.LedgerEntry{ID: "acc-1", Status: "posted"}, nil
}

func (m *accountsMock) CreatePaymentRecord(ctx context.Context, externalInvoiceID string, line accounting.PaymentLine) (*accounting.LedgerEntry, error) {
	return &accounting.LedgerEntry{ID: "pay-1", Status: "posted"}, nil
}

// contactsMock implements accounting.ContactResolver
type contactsMock struct{}

func (m *contactsMock) Resolve(ctx context.Context, userID uint) (string, error) {
	return "contact-1", nil
}
