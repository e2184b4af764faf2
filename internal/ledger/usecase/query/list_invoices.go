package query

import (
	"context"
	"fmt"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

// ListInvoicesQuery represents the query to list invoices. UserID narrows
// the list to one member; zero lists everything.
type ListInvoicesQuery struct {
	UserID uint
	Limit  int
	Offset int
}

// ListInvoicesHandler handles list invoices query
type ListInvoicesHandler struct {
	ledger domain.Ledger
}

// NewListInvoicesHandler creates a new list invoices handler
func NewListInvoicesHandler(ledger domain.Ledger) *ListInvoicesHandler {
	return &ListInvoicesHandler{ledger: ledger}
}

// Handle executes the list invoices query
func (h *ListInvoicesHandler) Handle(ctx context.Context, query ListInvoicesQuery) ([]domain.Invoice, error) {
	if query.Limit == 0 {
		query.Limit = 10
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	var (
		invoices []domain.Invoice
		err      error
	)
	if query.UserID != 0 {
		invoices, err = h.ledger.Invoices().FindByUserID(ctx, query.UserID, query.Limit, query.Offset)
	} else {
		invoices, err = h.ledger.Invoices().FindAll(ctx, query.Limit, query.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	return invoices, nil
}
