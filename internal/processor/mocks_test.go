package processor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/internal/ledger/repository"
	"github.com/clubworks/billing-engine/internal/ledger/usecase/command"
	"github.com/clubworks/billing-engine/kafka"
)

// fixture wires a processor against a real sqlite ledger and mocked
// gateway and event sides
type fixture struct {
	ledger   domain.Ledger
	charger  *chargerMock
	methods  *methodsMock
	notifier *notifierMock
	proc     *Processor
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
		charger:  &chargerMock{},
		methods:  &methodsMock{},
		notifier: &notifierMock{},
	}
	f.proc = New(f.ledger, f.charger, f.methods, f.notifier, DefaultConfig())
	return f
}

// seedPlan stages an invoice and schedules count installments starting at
// firstDue
func (f *fixture) seedPlan(t *testing.T, registrationID uint, total int64, count int, firstDue time.Time) *domain.Invoice {
	t.Helper()
	ctx := context.Background()

	staged, err := command.NewStageInvoiceHandler(f.ledger).Handle(ctx, command.StageInvoiceCommand{
		UserID:         1,
		RegistrationID: registrationID,
		TotalAmount:    total,
	})
	require.NoError(t, err)

	_, err = command.NewScheduleInstallmentsHandler(f.ledger).Handle(ctx, command.ScheduleInstallmentsCommand{
		InvoiceID:    staged.Invoice.ID,
		Count:        count,
		FirstDueDate: firstDue,
	})
	require.NoError(t, err)
	return staged.Invoice
}

// chargerMock implements gateway.Charger
type chargerMock struct {
	ChargeFunc       func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
	LookupChargeFunc func(ctx context.Context, idempotencyKey string) (*gateway.ChargeResult, error)
	ChargeCalls      int
	LookupCalls      int
	LastRequest      gateway.ChargeRequest
}

func (m *chargerMock) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	m.ChargeCalls++
	m.LastRequest = req
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, req)
	}
	return &gateway.ChargeResult{Status: gateway.ChargeSucceeded, TransactionRef: "txn-test"}, nil
}

func (m *chargerMock) LookupCharge(ctx context.Context, idempotencyKey string) (*gateway.ChargeResult, error) {
	m.LookupCalls++
	if m.LookupChargeFunc != nil {
		return m.LookupChargeFunc(ctx, idempotencyKey)
	}
	return nil, gateway.ErrChargeNotFound
}

// methodsMock implements gateway.MethodResolver
type methodsMock struct {
	DefaultMethodFunc func(ctx context.Context, userID uint) (string, error)
}

func (m *methodsMock) DefaultMethod(ctx context.Context, userID uint) (string, error) {
	if m.DefaultMethodFunc != nil {
		return m.DefaultMethodFunc(ctx, userID)
	}
	return "pm-test", nil
}

// notifierMock implements kafka.Notifier and records every published event
type notifierMock struct {
	Charged       []kafka.InstallmentChargedEvent
	ChargesFailed []kafka.InstallmentChargeFailedEvent
	Completed     []kafka.PlanCompletedEvent
	Cancelled     []kafka.PlanCancelledEvent
}

func (m *notifierMock) PublishInstallmentCharged(_ context.Context, event kafka.InstallmentChargedEvent) error {
	m.Charged = append(m.Charged, event)
	return nil
}

func (m *notifierMock) PublishInstallmentChargeFailed(_ context.Context, event kafka.InstallmentChargeFailedEvent) error {
	m.ChargesFailed = append(m.ChargesFailed, event)
	return nil
}

func (m *notifierMock) PublishPlanCompleted(_ context.Context, event kafka.PlanCompletedEvent) error {
	m.Completed = append(m.Completed, event)
	return nil
}

func (m *notifierMock) PublishPlanCancelled(_ context.Context, event kafka.PlanCancelledEvent) error {
	m.Cancelled = append(m.Cancelled, event)
	return nil
}
