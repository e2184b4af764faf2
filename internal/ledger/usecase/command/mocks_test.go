package command

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
	"github.com/clubworks/billing-engine/kafka"
)

func newTestLedger(t *testing.T) domain.Ledger {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "billing.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ledger := repository.NewGormLedger(db)
	require.NoError(t, ledger.AutoMigrate())
	return ledger
}

// seedPlan stages an invoice and schedules it into count installments due
// monthly from 2025-01-15
func seedPlan(t *testing.T, ledger domain.Ledger, registrationID uint, total int64, count int) *domain.Invoice {
	t.Helper()
	ctx := context.Background()

	staged, err := NewStageInvoiceHandler(ledger).Handle(ctx, StageInvoiceCommand{
		UserID:         1,
		RegistrationID: registrationID,
		TotalAmount:    total,
	})
	require.NoError(t, err)

	_, err = NewScheduleInstallmentsHandler(ledger).Handle(ctx, ScheduleInstallmentsCommand{
		InvoiceID:    staged.Invoice.ID,
		Count:        count,
		FirstDueDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
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
