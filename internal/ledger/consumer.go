package ledger

import (
	"context"
	"errors"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/internal/ledger/usecase/command"
	"github.com/clubworks/billing-engine/kafka"
	"github.com/clubworks/billing-engine/pkg/logger"
)

// NewRegistrationHandler maps registration-completed events onto the staging
// flow: one invoice per registration, scheduled as a plan when the event asks
// for installments. A redelivered event finds its registration already staged
// and is dropped
func NewRegistrationHandler(stage *command.StageInvoiceHandler, schedule *command.ScheduleInstallmentsHandler) kafka.EventHandler {
	return func(ctx context.Context, event kafka.RegistrationCompletedEvent) error {
		staged, err := stage.Handle(ctx, command.StageInvoiceCommand{
			UserID:            event.UserID,
			RegistrationID:    event.RegistrationID,
			TotalAmount:       event.TotalAmount,
			DiscountAmount:    event.DiscountAmount,
			UpfrontAmount:     event.UpfrontAmount,
			UpfrontGatewayRef: event.GatewayRef,
		})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyStaged) {
				logger.Warn(ctx).
					Uint("registration_id", event.RegistrationID).
					Str("event_id", event.EventID).
					Msg("Registration already staged, dropping redelivered event")
				return nil
			}
			return err
		}

		if event.Installments > 1 {
			cmd := command.ScheduleInstallmentsCommand{
				InvoiceID:    staged.Invoice.ID,
				Count:        event.Installments,
				FirstDueDate: event.FirstDueDate,
			}
			if staged.UpfrontPayment != nil {
				cmd.FirstPaymentID = &staged.UpfrontPayment.ID
			}
			if _, err := schedule.Handle(ctx, cmd); err != nil {
				return err
			}
		}

		logger.Info(ctx).
			Uint("registration_id", event.RegistrationID).
			Uint("invoice_id", staged.Invoice.ID).
			Int("installments", event.Installments).
			Msg("Registration staged from event")

		return nil
	}
}
