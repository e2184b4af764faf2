package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clubworks/billing-engine/internal/accounting"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/pkg/logger"
)

var tracer = otel.Tracer("billing-reconcile")

// Result summarizes one sync pass
type Result struct {
	Synced   int `json:"synced"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred"`
}

// Syncer pushes the ledger into the external accounting system. Anything
// that already carries an external id is never resubmitted; transient
// upstream trouble defers a record to the next pass instead of failing it.
type Syncer struct {
	ledger    domain.Ledger
	accounts  accounting.Client
	contacts  accounting.ContactResolver
	batchSize int
}

// New creates a syncer
func New(ledger domain.Ledger, accounts accounting.Client, contacts accounting.ContactResolver, batchSize int) *Syncer {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Syncer{ledger: ledger, accounts: accounts, contacts: contacts, batchSize: batchSize}
}

// SyncPending runs one full pass: invoices first, then the payment lines of
// installments whose invoice is already synced
func (s *Syncer) SyncPending(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "reconcile.SyncPending")
	defer span.End()

	timer := prometheus.NewTimer(passDuration)
	defer timer.ObserveDuration()

	var res Result

	if err := s.syncInvoices(ctx, &res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	if err := s.syncInstallments(ctx, &res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	span.SetAttributes(
		attribute.Int("sync.synced", res.Synced),
		attribute.Int("sync.failed", res.Failed),
		attribute.Int("sync.deferred", res.Deferred),
	)

	logger.Info(ctx).
		Int("synced", res.Synced).
		Int("failed", res.Failed).
		Int("deferred", res.Deferred).
		Msg("Reconciliation pass finished")

	return res, nil
}

func (s *Syncer) syncInvoices(ctx context.Context, res *Result) error {
	invoices, err := s.ledger.Invoices().ListBySyncStatus(ctx,
		[]string{domain.InvoiceStaged, domain.InvoicePending}, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list unsynced invoices: %w", err)
	}

	for i := range invoices {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.syncInvoice(ctx, &invoices[i], res)
	}
	return nil
}

func (s *Syncer) syncInvoice(ctx context.Context, invoice *domain.Invoice, res *Result) {
	now := time.Now()

	// An external id means the entry exists upstream; repair the status
	// instead of creating a duplicate
	if invoice.ExternalID != "" {
		s.markInvoiceSynced(ctx, invoice, invoice.ExternalID, now, res)
		return
	}

	contact, err := s.contacts.Resolve(ctx, invoice.UserID)
	if err != nil {
		s.recordInvoiceFailure(ctx, invoice, err, res)
		return
	}

	items := []accounting.LineItem{
		{Description: fmt.Sprintf("Registration %d", invoice.RegistrationID), AmountCents: invoice.TotalAmount, Quantity: 1},
	}
	if invoice.DiscountAmount > 0 {
		items = append(items, accounting.LineItem{Description: "Discount", AmountCents: -invoice.DiscountAmount, Quantity: 1})
	}

	entry, err := s.accounts.CreateLedgerEntry(ctx, contact, fmt.Sprintf("INV-%d", invoice.ID), items)
	if err != nil {
		s.recordInvoiceFailure(ctx, invoice, err, res)
		return
	}

	s.markInvoiceSynced(ctx, invoice, entry.ID, now, res)
}

func (s *Syncer) markInvoiceSynced(ctx context.Context, invoice *domain.Invoice, externalID string, now time.Time, res *Result) {
	invoice.ExternalID = externalID
	invoice.SyncStatus = domain.InvoiceSynced
	invoice.SyncedAt = &now
	invoice.SyncError = ""
	if err := s.ledger.Invoices().Update(ctx, invoice); err != nil {
		logger.Error(ctx).Err(err).Uint("invoice_id", invoice.ID).Msg("Failed to mark invoice synced")
		res.Deferred++
		syncedTotal.WithLabelValues("invoice", "deferred").Inc()
		return
	}
	res.Synced++
	syncedTotal.WithLabelValues("invoice", "synced").Inc()
}

func (s *Syncer) recordInvoiceFailure(ctx context.Context, invoice *domain.Invoice, err error, res *Result) {
	invoice.SyncError = err.Error()
	if retryable(err) {
		// Leave the status alone; the next pass picks it up again
		res.Deferred++
		syncedTotal.WithLabelValues("invoice", "deferred").Inc()
		logger.Warn(ctx).Err(err).Uint("invoice_id", invoice.ID).Msg("Invoice sync deferred")
	} else {
		invoice.SyncStatus = domain.InvoiceFailed
		res.Failed++
		syncedTotal.WithLabelValues("invoice", "failed").Inc()
		logger.Error(ctx).Err(err).Uint("invoice_id", invoice.ID).Msg("Invoice sync failed")
	}
	if uerr := s.ledger.Invoices().Update(ctx, invoice); uerr != nil {
		logger.Error(ctx).Err(uerr).Uint("invoice_id", invoice.ID).Msg("Failed to record sync error")
	}
}

func (s *Syncer) syncInstallments(ctx context.Context, res *Result) error {
	installments, err := s.ledger.Installments().ListPendingSync(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending installments: %w", err)
	}

	invoiceCache := make(map[uint]*domain.Invoice)
	for i := range installments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		inst := &installments[i]

		invoice, ok := invoiceCache[inst.InvoiceID]
		if !ok {
			invoice, err = s.ledger.Invoices().FindByID(ctx, inst.InvoiceID)
			if err != nil {
				logger.Error(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Installment sync invoice lookup failed")
				res.Deferred++
				syncedTotal.WithLabelValues("installment", "deferred").Inc()
				continue
			}
			invoiceCache[inst.InvoiceID] = invoice
		}

		// Payment lines attach to the invoice's external entry, so the
		// invoice has to be synced first
		if invoice.SyncStatus != domain.InvoiceSynced {
			res.Deferred++
			syncedTotal.WithLabelValues("installment", "deferred").Inc()
			continue
		}

		s.syncInstallment(ctx, inst, invoice, res)
	}
	return nil
}

func (s *Syncer) syncInstallment(ctx context.Context, inst *domain.Installment, invoice *domain.Invoice, res *Result) {
	if inst.ExternalID != "" {
		s.markInstallmentSynced(ctx, inst, inst.ExternalID, res)
		return
	}

	line := accounting.PaymentLine{
		AmountCents: inst.Amount,
		PaidAt:      inst.UpdatedAt,
		Reference:   fmt.Sprintf("installment-%d", inst.ID),
	}
	if inst.PaymentID != nil {
		payment, err := s.ledger.Payments().FindByID(ctx, *inst.PaymentID)
		if err == nil {
			// Zero-amount payments never reach the gateway and carry no ref
			if payment.GatewayRef != "" {
				line.Reference = payment.GatewayRef
			}
			if payment.CompletedAt != nil {
				line.PaidAt = *payment.CompletedAt
			}
		}
	}

	entry, err := s.accounts.CreatePaymentRecord(ctx, invoice.ExternalID, line)
	if err != nil {
		inst.SyncError = err.Error()
		if uerr := s.ledger.Installments().Update(ctx, inst); uerr != nil {
			logger.Error(ctx).Err(uerr).Uint("installment_id", inst.ID).Msg("Failed to record sync error")
		}
		// Collected money can't be failed; even a terminal error keeps the
		// installment pending for operator attention
		if retryable(err) {
			res.Deferred++
			syncedTotal.WithLabelValues("installment", "deferred").Inc()
			logger.Warn(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Installment sync deferred")
		} else {
			res.Failed++
			syncedTotal.WithLabelValues("installment", "failed").Inc()
			logger.Error(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Installment sync failed")
		}
		return
	}

	s.markInstallmentSynced(ctx, inst, entry.ID, res)
}

func (s *Syncer) markInstallmentSynced(ctx context.Context, inst *domain.Installment, externalID string, res *Result) {
	inst.Status = domain.InstallmentSynced
	inst.ExternalID = externalID
	inst.SyncError = ""
	if err := s.ledger.Installments().Update(ctx, inst); err != nil {
		logger.Error(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Failed to mark installment synced")
		res.Deferred++
		syncedTotal.WithLabelValues("installment", "deferred").Inc()
		return
	}
	res.Synced++
	syncedTotal.WithLabelValues("installment", "synced").Inc()
}

func retryable(err error) bool {
	var acctErr *accounting.Error
	if errors.As(err, &acctErr) {
		return acctErr.Retryable()
	}
	// Transport-level trouble is assumed transient
	return true
}
