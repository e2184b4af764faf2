package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/kafka"
	"github.com/clubworks/billing-engine/pkg/logger"
)

var tracer = otel.Tracer("billing-processor")

var errClaimLost = errors.New("claim lost")

// Config is the charge policy the processor runs under
type Config struct {
	MaxAttempts   int
	RetryInterval time.Duration
	BatchLimit    int
	StaleAfter    time.Duration
}

// DefaultConfig returns the standard policy
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   domain.MaxChargeAttempts,
		RetryInterval: domain.RetryInterval,
		BatchLimit:    100,
		StaleAfter:    30 * time.Minute,
	}
}

// Result summarizes one batch run
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Processor collects due installments. Concurrency safety rests entirely on
// the ledger's claim: whatever lists an installment, only the worker whose
// conditional update lands gets to charge it.
type Processor struct {
	ledger   domain.Ledger
	charger  gateway.Charger
	methods  gateway.MethodResolver
	notifier kafka.Notifier
	cfg      Config
}

// New creates a processor
func New(ledger domain.Ledger, charger gateway.Charger, methods gateway.MethodResolver, notifier kafka.Notifier, cfg Config) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = domain.MaxChargeAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = domain.RetryInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	return &Processor{ledger: ledger, charger: charger, methods: methods, notifier: notifier, cfg: cfg}
}

// ProcessDue runs one collection batch over everything chargeable at asOf.
// Individual installments fail without stopping the batch.
func (p *Processor) ProcessDue(ctx context.Context, asOf time.Time) (Result, error) {
	ctx, span := tracer.Start(ctx, "processor.ProcessDue",
		trace.WithAttributes(attribute.String("batch.as_of", asOf.Format(time.RFC3339))))
	defer span.End()

	start := time.Now()
	var res Result

	due, err := p.ledger.Installments().ListDue(ctx, domain.DueQuery{
		AsOf:        asOf,
		RetryAfter:  p.cfg.RetryInterval,
		MaxAttempts: p.cfg.MaxAttempts,
		Limit:       p.cfg.BatchLimit,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("failed to list due installments: %w", err)
	}

	for i := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		err := p.processInstallment(ctx, &due[i], asOf)
		switch {
		case err == nil:
			res.Processed++
			processedTotal.WithLabelValues("succeeded").Inc()
		case errors.Is(err, errClaimLost):
			res.Skipped++
			processedTotal.WithLabelValues("skipped").Inc()
		default:
			res.Failed++
			processedTotal.WithLabelValues("failed").Inc()
			logger.Error(ctx).Err(err).
				Uint("installment_id", due[i].ID).
				Msg("Installment processing failed")
		}
	}

	batchDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("batch.processed", res.Processed),
		attribute.Int("batch.failed", res.Failed),
		attribute.Int("batch.skipped", res.Skipped),
	)

	logger.Info(ctx).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("Collection batch finished")

	return res, nil
}

// ProcessOne charges a single installment out of band
func (p *Processor) ProcessOne(ctx context.Context, installmentID uint, asOf time.Time) error {
	ctx, span := tracer.Start(ctx, "processor.ProcessOne",
		trace.WithAttributes(attribute.Int("installment.id", int(installmentID))))
	defer span.End()

	inst, err := p.ledger.Installments().FindByID(ctx, installmentID)
	if err != nil {
		return err
	}
	if inst.Status != domain.InstallmentPlanned {
		return fmt.Errorf("%w: status %s", domain.ErrNotChargeable, inst.Status)
	}

	err = p.processInstallment(ctx, inst, asOf)
	if errors.Is(err, errClaimLost) {
		return fmt.Errorf("%w: another worker holds the claim", domain.ErrNotChargeable)
	}
	return err
}

// processInstallment claims, charges and records one installment. A panic
// is recovered so one poisoned row cannot take down the batch.
func (p *Processor) processInstallment(ctx context.Context, inst *domain.Installment, asOf time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic: %v", r)
			if recErr := p.recordFailure(ctx, inst, reason); recErr != nil {
				logger.Error(ctx).Err(recErr).Uint("installment_id", inst.ID).Msg("Failed to release claim after panic")
			}
			err = fmt.Errorf("installment %d: %s", inst.ID, reason)
		}
	}()

	claimed, err := p.ledger.Installments().Claim(ctx, inst.ID, p.cfg.MaxAttempts, asOf)
	if err != nil {
		return fmt.Errorf("claim failed: %w", err)
	}
	if !claimed {
		return errClaimLost
	}
	inst.Status = domain.InstallmentProcessing
	inst.AttemptCount++
	inst.LastAttemptAt = &asOf

	invoice, err := p.ledger.Invoices().FindByID(ctx, inst.InvoiceID)
	if err != nil {
		if recErr := p.recordFailure(ctx, inst, "invoice lookup failed"); recErr != nil {
			return recErr
		}
		return fmt.Errorf("invoice lookup failed: %w", err)
	}

	// Zero-amount installments settle without a gateway round trip
	if inst.Amount == 0 {
		return p.recordSuccess(ctx, inst, invoice, &gateway.ChargeResult{Status: gateway.ChargeSucceeded})
	}

	method, err := p.methods.DefaultMethod(ctx, invoice.UserID)
	if err != nil {
		reason := "no saved payment method"
		if !errors.Is(err, gateway.ErrNoSavedMethod) {
			reason = fmt.Sprintf("payment method lookup failed: %v", err)
		}
		if recErr := p.recordFailure(ctx, inst, reason); recErr != nil {
			return recErr
		}
		return fmt.Errorf("installment %d: %s", inst.ID, reason)
	}

	result, err := p.charger.Charge(ctx, gateway.ChargeRequest{
		AmountCents:      inst.Amount,
		Currency:         "USD",
		PaymentMethodRef: method,
		CustomerRef:      fmt.Sprintf("user-%d", invoice.UserID),
		IdempotencyKey:   chargeKey(inst),
		Description:      fmt.Sprintf("Installment %d of invoice %d", inst.Sequence, invoice.ID),
		Metadata: map[string]string{
			"invoice_id":     fmt.Sprintf("%d", invoice.ID),
			"installment_id": fmt.Sprintf("%d", inst.ID),
		},
	})
	if err != nil {
		reason := fmt.Sprintf("gateway error: %v", err)
		if recErr := p.recordFailure(ctx, inst, reason); recErr != nil {
			return recErr
		}
		return fmt.Errorf("installment %d: %w", inst.ID, err)
	}

	if result.Status != gateway.ChargeSucceeded {
		reason := result.FailureReason
		if reason == "" {
			reason = result.Status
		}
		if recErr := p.recordFailure(ctx, inst, reason); recErr != nil {
			return recErr
		}
		return fmt.Errorf("installment %d: %w: %s", inst.ID, domain.ErrChargeDeclined, reason)
	}

	return p.recordSuccess(ctx, inst, invoice, result)
}

// recordSuccess commits the payment, the pending installment and the
// invoice totals in one transaction, then notifies
func (p *Processor) recordSuccess(ctx context.Context, inst *domain.Installment, invoice *domain.Invoice, result *gateway.ChargeResult) error {
	now := time.Now()
	payment := &domain.Payment{
		InvoiceID:      inst.InvoiceID,
		UserID:         invoice.UserID,
		Amount:         inst.Amount,
		Currency:       "USD",
		Status:         domain.PaymentCompleted,
		GatewayRef:     result.TransactionRef,
		IdempotencyKey: chargeKey(inst),
		CompletedAt:    &now,
	}
	if len(result.Raw) > 0 {
		payment.GatewayResponse = datatypes.JSON(result.Raw)
	}

	var completed *domain.Invoice
	err := p.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		inst.Status = domain.InstallmentPending
		inst.PaymentID = &payment.ID
		inst.FailureReason = ""
		if err := tx.Installments().Update(ctx, inst); err != nil {
			return fmt.Errorf("failed to update installment: %w", err)
		}

		if err := tx.Invoices().AddPaid(ctx, inst.InvoiceID, inst.Amount); err != nil {
			return fmt.Errorf("failed to update paid amount: %w", err)
		}

		fresh, err := tx.Invoices().FindByID(ctx, inst.InvoiceID)
		if err != nil {
			return err
		}
		changed := false
		// Money moved against an unsynced invoice; flag it for the syncer
		if fresh.SyncStatus == domain.InvoiceStaged {
			fresh.SyncStatus = domain.InvoicePending
			changed = true
		}
		if fresh.Settled() && fresh.CompletedAt == nil && !fresh.Cancelled() {
			fresh.CompletedAt = &now
			completed = fresh
			changed = true
		}
		if changed {
			if err := tx.Invoices().Update(ctx, fresh); err != nil {
				return fmt.Errorf("failed to update invoice: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	amountCollected.Add(float64(inst.Amount))

	// Notify after commit. Don't fail the collection, just log the error.
	if p.notifier != nil {
		if err := p.notifier.PublishInstallmentCharged(ctx, kafka.InstallmentChargedEvent{
			InvoiceID:     inst.InvoiceID,
			InstallmentID: inst.ID,
			Sequence:      inst.Sequence,
			UserID:        invoice.UserID,
			Amount:        inst.Amount,
			Currency:      payment.Currency,
			PaymentID:     payment.ID,
			GatewayRef:    payment.GatewayRef,
		}); err != nil {
			logger.Error(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Failed to publish charged event")
		}
		if completed != nil {
			if err := p.notifier.PublishPlanCompleted(ctx, kafka.PlanCompletedEvent{
				InvoiceID: completed.ID,
				UserID:    completed.UserID,
				Amount:    completed.PaidAmount,
			}); err != nil {
				logger.Error(ctx).Err(err).Uint("invoice_id", completed.ID).Msg("Failed to publish plan completed event")
			}
		}
	}

	logger.Info(ctx).
		Uint("installment_id", inst.ID).
		Uint("invoice_id", inst.InvoiceID).
		Int64("amount", inst.Amount).
		Int("attempt", inst.AttemptCount).
		Msg("Installment collected")

	return nil
}

// recordFailure releases the claim: back to planned while attempts remain,
// failed once the budget is spent
func (p *Processor) recordFailure(ctx context.Context, inst *domain.Installment, reason string) error {
	terminal := inst.AttemptCount >= p.cfg.MaxAttempts

	inst.Status = domain.InstallmentPlanned
	if terminal {
		inst.Status = domain.InstallmentFailed
	}
	inst.FailureReason = reason

	if err := p.ledger.Installments().Update(ctx, inst); err != nil {
		return fmt.Errorf("failed to record charge failure: %w", err)
	}

	if p.notifier != nil {
		if err := p.notifier.PublishInstallmentChargeFailed(ctx, kafka.InstallmentChargeFailedEvent{
			InvoiceID:     inst.InvoiceID,
			InstallmentID: inst.ID,
			Sequence:      inst.Sequence,
			Amount:        inst.Amount,
			Reason:        reason,
			AttemptCount:  inst.AttemptCount,
			Terminal:      terminal,
		}); err != nil {
			logger.Error(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Failed to publish charge failed event")
		}
	}

	logger.Warn(ctx).
		Uint("installment_id", inst.ID).
		Str("reason", reason).
		Int("attempt", inst.AttemptCount).
		Bool("terminal", terminal).
		Msg("Installment charge failed")

	return nil
}

// RecoverStale resolves installments stuck in processing after a crash.
// The gateway is the source of truth: a charge found under the attempt's
// idempotency key completes the installment, no charge releases it.
func (p *Processor) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, span := tracer.Start(ctx, "processor.RecoverStale")
	defer span.End()

	if olderThan <= 0 {
		olderThan = p.cfg.StaleAfter
	}

	stuck, err := p.ledger.Installments().ListStuckProcessing(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck installments: %w", err)
	}

	recovered := 0
	for i := range stuck {
		inst := &stuck[i]
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}

		if inst.Amount == 0 {
			// Never reached the gateway; put it back in line
			if err := p.release(ctx, inst, "recovered stale claim"); err == nil {
				recovered++
			}
			continue
		}

		result, err := p.charger.LookupCharge(ctx, chargeKey(inst))
		switch {
		case errors.Is(err, gateway.ErrChargeNotFound):
			if err := p.release(ctx, inst, "recovered: charge never submitted"); err == nil {
				recovered++
			}
		case err != nil:
			// Unknown either way; leave it for the next sweep
			logger.Warn(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Stale claim lookup failed")
		case result.Status == gateway.ChargeSucceeded:
			invoice, ferr := p.ledger.Invoices().FindByID(ctx, inst.InvoiceID)
			if ferr != nil {
				logger.Error(ctx).Err(ferr).Uint("installment_id", inst.ID).Msg("Stale claim invoice lookup failed")
				continue
			}
			if err := p.recordSuccess(ctx, inst, invoice, result); err != nil {
				logger.Error(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Failed to complete recovered charge")
				continue
			}
			recovered++
		default:
			reason := result.FailureReason
			if reason == "" {
				reason = result.Status
			}
			if err := p.recordFailure(ctx, inst, reason); err == nil {
				recovered++
			}
		}
	}

	if recovered > 0 {
		staleRecovered.Add(float64(recovered))
		logger.Info(ctx).Int("recovered", recovered).Msg("Stale claims recovered")
	}
	return recovered, nil
}

// release puts a stuck installment back to planned and hands the attempt
// back: the charge never reached the gateway, so the retry budget must
// still allow a real attempt
func (p *Processor) release(ctx context.Context, inst *domain.Installment, reason string) error {
	inst.Status = domain.InstallmentPlanned
	inst.FailureReason = reason
	if inst.AttemptCount > 0 {
		inst.AttemptCount--
	}
	if err := p.ledger.Installments().Update(ctx, inst); err != nil {
		logger.Error(ctx).Err(err).Uint("installment_id", inst.ID).Msg("Failed to release stale claim")
		return err
	}
	return nil
}

func chargeKey(inst *domain.Installment) string {
	return fmt.Sprintf("installment-%d-attempt-%d", inst.ID, inst.AttemptCount)
}
