//go:build wireinject
// +build wireinject

package ledger

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/clubworks/billing-engine/internal/accounting"
	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger/handler"
	"github.com/clubworks/billing-engine/kafka"
)

// InitializeService initializes the billing service with all dependencies
func InitializeService(db *gorm.DB, charger gateway.Charger, methods gateway.MethodResolver, notifier kafka.Notifier, accounts accounting.Client, contacts accounting.ContactResolver) (*Service, error) {
	wire.Build(
		AllHandlersSet,
		handler.NewBillingHandlerWithDI,
		ProvideService,
	)
	return nil, nil
}
