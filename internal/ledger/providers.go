package ledger

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/clubworks/billing-engine/internal/accounting"
	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/internal/ledger/handler"
	"github.com/clubworks/billing-engine/internal/ledger/repository"
	"github.com/clubworks/billing-engine/internal/ledger/usecase/command"
	"github.com/clubworks/billing-engine/internal/ledger/usecase/query"
	"github.com/clubworks/billing-engine/internal/processor"
	"github.com/clubworks/billing-engine/internal/reconcile"
	"github.com/clubworks/billing-engine/kafka"
)

// ProvideLedger provides the traced ledger store
func ProvideLedger(db *gorm.DB) domain.Ledger {
	return repository.NewLedgerWithTracing(repository.NewGormLedger(db))
}

// Worker Providers
func ProvideProcessor(ledger domain.Ledger, charger gateway.Charger, methods gateway.MethodResolver, notifier kafka.Notifier) *processor.Processor {
	return processor.New(ledger, charger, methods, notifier, processor.DefaultConfig())
}

func ProvideSyncer(ledger domain.Ledger, accounts accounting.Client, contacts accounting.ContactResolver) *reconcile.Syncer {
	return reconcile.New(ledger, accounts, contacts, 50)
}

// Command Handlers Providers
func ProvideStageInvoiceHandler(ledger domain.Ledger) *command.StageInvoiceHandler {
	return command.NewStageInvoiceHandler(ledger)
}

func ProvideScheduleInstallmentsHandler(ledger domain.Ledger) *command.ScheduleInstallmentsHandler {
	return command.NewScheduleInstallmentsHandler(ledger)
}

func ProvideActivatePlanHandler(ledger domain.Ledger) *command.ActivatePlanHandler {
	return command.NewActivatePlanHandler(ledger)
}

func ProvidePayoffPlanHandler(ledger domain.Ledger, charger gateway.Charger, methods gateway.MethodResolver, notifier kafka.Notifier) *command.PayoffPlanHandler {
	return command.NewPayoffPlanHandler(ledger, charger, methods, notifier)
}

func ProvideCancelPlanHandler(ledger domain.Ledger, notifier kafka.Notifier) *command.CancelPlanHandler {
	return command.NewCancelPlanHandler(ledger, notifier)
}

func ProvideRefundPaymentHandler(ledger domain.Ledger) *command.RefundPaymentHandler {
	return command.NewRefundPaymentHandler(ledger)
}

// Query Handlers Providers
func ProvideGetInvoiceHandler(ledger domain.Ledger) *query.GetInvoiceHandler {
	return query.NewGetInvoiceHandler(ledger)
}

func ProvideListInvoicesHandler(ledger domain.Ledger) *query.ListInvoicesHandler {
	return query.NewListInvoicesHandler(ledger)
}

func ProvideListDueHandler(ledger domain.Ledger) *query.ListDueHandler {
	return query.NewListDueHandler(ledger)
}

// Service holds everything the daemon runs: the HTTP handler, the background
// workers and the inbound event handler, all sharing the same store and
// clients
type Service struct {
	Handler             *handler.BillingHandler
	Processor           *processor.Processor
	Syncer              *reconcile.Syncer
	RegistrationHandler kafka.EventHandler
}

// ProvideService provides the assembled billing service
func ProvideService(billingHandler *handler.BillingHandler, proc *processor.Processor, syncer *reconcile.Syncer, registrationHandler kafka.EventHandler) *Service {
	return &Service{
		Handler:             billingHandler,
		Processor:           proc,
		Syncer:              syncer,
		RegistrationHandler: registrationHandler,
	}
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideLedger,
)

var WorkerSet = wire.NewSet(
	ProvideProcessor,
	ProvideSyncer,
)

var CommandHandlerSet = wire.NewSet(
	ProvideStageInvoiceHandler,
	ProvideScheduleInstallmentsHandler,
	ProvideActivatePlanHandler,
	ProvidePayoffPlanHandler,
	ProvideCancelPlanHandler,
	ProvideRefundPaymentHandler,
)

var QueryHandlerSet = wire.NewSet(
	ProvideGetInvoiceHandler,
	ProvideListInvoicesHandler,
	ProvideListDueHandler,
)

var AllHandlersSet = wire.NewSet(
	RepositorySet,
	WorkerSet,
	CommandHandlerSet,
	QueryHandlerSet,
	NewRegistrationHandler,
)
