package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

var tracer = otel.Tracer("ledger-repository")

// LedgerWithTracing wraps a ledger so the installment hot path and the
// transaction boundary show up as spans
type LedgerWithTracing struct {
	inner domain.Ledger
}

func NewLedgerWithTracing(inner domain.Ledger) *LedgerWithTracing {
	return &LedgerWithTracing{inner: inner}
}

func (l *LedgerWithTracing) Invoices() domain.InvoiceRepository {
	return l.inner.Invoices()
}

func (l *LedgerWithTracing) Installments() domain.InstallmentRepository {
	return &InstallmentRepositoryWithTracing{inner: l.inner.Installments()}
}

func (l *LedgerWithTracing) Payments() domain.PaymentRepository {
	return l.inner.Payments()
}

// InTx with tracing. fn runs against the untraced transaction-bound
// repositories; the span covers the whole transaction.
func (l *LedgerWithTracing) InTx(ctx context.Context, fn func(domain.Ledger) error) error {
	ctx, span := tracer.Start(ctx, "ledger.InTx")
	defer span.End()

	err := l.inner.InTx(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// InstallmentRepositoryWithTracing wraps installment data access with tracing
type InstallmentRepositoryWithTracing struct {
	inner domain.InstallmentRepository
}

// CreateBatch with tracing
func (r *InstallmentRepositoryWithTracing) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	ctx, span := tracer.Start(ctx, "repository.CreateBatch",
		trace.WithAttributes(
			attribute.Int("installment.count", len(installments)),
		),
	)
	defer span.End()

	err := r.inner.CreateBatch(ctx, installments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// FindByID with tracing
func (r *InstallmentRepositoryWithTracing) FindByID(ctx context.Context, id uint) (*domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(
			attribute.Int("installment.id", int(id)),
		),
	)
	defer span.End()

	installment, err := r.inner.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("installment.status", installment.Status))
	return installment, nil
}

// ListByInvoiceID with tracing
func (r *InstallmentRepositoryWithTracing) ListByInvoiceID(ctx context.Context, invoiceID uint) ([]domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "repository.ListByInvoiceID",
		trace.WithAttributes(
			attribute.Int("invoice.id", int(invoiceID)),
		),
	)
	defer span.End()

	installments, err := r.inner.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(installments)))
	return installments, nil
}

// ListDue with tracing
func (r *InstallmentRepositoryWithTracing) ListDue(ctx context.Context, q domain.DueQuery) ([]domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "repository.ListDue",
		trace.WithAttributes(
			attribute.String("query.as_of", q.AsOf.Format(time.RFC3339)),
			attribute.Int("query.max_attempts", q.MaxAttempts),
		),
	)
	defer span.End()

	installments, err := r.inner.ListDue(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(installments)))
	return installments, nil
}

// ListStuckProcessing with tracing
func (r *InstallmentRepositoryWithTracing) ListStuckProcessing(ctx context.Context, before time.Time) ([]domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "repository.ListStuckProcessing",
		trace.WithAttributes(
			attribute.String("query.before", before.Format(time.RFC3339)),
		),
	)
	defer span.End()

	installments, err := r.inner.ListStuckProcessing(ctx, before)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(installments)))
	return installments, nil
}

// ListPendingSync with tracing
func (r *InstallmentRepositoryWithTracing) ListPendingSync(ctx context.Context, limit int) ([]domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "repository.ListPendingSync")
	defer span.End()

	installments, err := r.inner.ListPendingSync(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(installments)))
	return installments, nil
}

// Claim with tracing
func (r *InstallmentRepositoryWithTracing) Claim(ctx context.Context, id uint, maxAttempts int, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "repository.Claim",
		trace.WithAttributes(
			attribute.Int("installment.id", int(id)),
		),
	)
	defer span.End()

	claimed, err := r.inner.Claim(ctx, id, maxAttempts, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetAttributes(attribute.Bool("claim.won", claimed))
	return claimed, nil
}

// Update with tracing
func (r *InstallmentRepositoryWithTracing) Update(ctx context.Context, installment *domain.Installment) error {
	ctx, span := tracer.Start(ctx, "repository.Update",
		trace.WithAttributes(
			attribute.Int("installment.id", int(installment.ID)),
			attribute.String("installment.status", installment.Status),
		),
	)
	defer span.End()

	err := r.inner.Update(ctx, installment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// PromoteStaged with tracing
func (r *InstallmentRepositoryWithTracing) PromoteStaged(ctx context.Context, invoiceID uint) (int64, error) {
	ctx, span := tracer.Start(ctx, "repository.PromoteStaged",
		trace.WithAttributes(
			attribute.Int("invoice.id", int(invoiceID)),
		),
	)
	defer span.End()

	count, err := r.inner.PromoteStaged(ctx, invoiceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("result.count", count))
	return count, nil
}

// HoldRemaining with tracing
func (r *InstallmentRepositoryWithTracing) HoldRemaining(ctx context.Context, invoiceID uint, ids []uint, at time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "repository.HoldRemaining",
		trace.WithAttributes(
			attribute.Int("invoice.id", int(invoiceID)),
			attribute.Int("hold.requested", len(ids)),
		),
	)
	defer span.End()

	count, err := r.inner.HoldRemaining(ctx, invoiceID, ids, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("result.count", count))
	return count, nil
}

// SettleHeld with tracing
func (r *InstallmentRepositoryWithTracing) SettleHeld(ctx context.Context, invoiceID uint, ids []uint) (int64, error) {
	ctx, span := tracer.Start(ctx, "repository.SettleHeld",
		trace.WithAttributes(
			attribute.Int("invoice.id", int(invoiceID)),
		),
	)
	defer span.End()

	count, err := r.inner.SettleHeld(ctx, invoiceID, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("result.count", count))
	return count, nil
}

// ReleaseHeld with tracing
func (r *InstallmentRepositoryWithTracing) ReleaseHeld(ctx context.Context, invoiceID uint, ids []uint, toStatus string) (int64, error) {
	ctx, span := tracer.Start(ctx, "repository.ReleaseHeld",
		trace.WithAttributes(
			attribute.Int("invoice.id", int(invoiceID)),
			attribute.String("release.to", toStatus),
		),
	)
	defer span.End()

	count, err := r.inner.ReleaseHeld(ctx, invoiceID, ids, toStatus)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("result.count", count))
	return count, nil
}

// CancelRemaining with tracing
func (r *InstallmentRepositoryWithTracing) CancelRemaining(ctx context.Context, invoiceID uint, reason string) (int64, error) {
	ctx, span := tracer.Start(ctx, "repository.CancelRemaining",
		trace.WithAttributes(
			attribute.Int("invoice.id", int(invoiceID)),
		),
	)
	defer span.End()

	count, err := r.inner.CancelRemaining(ctx, invoiceID, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("result.count", count))
	return count, nil
}
