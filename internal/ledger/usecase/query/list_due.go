package query

import (
	"context"
	"fmt"
	"time"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

// ListDueQuery represents the query for installments the processor would
// pick up at a given time. Operators use it to preview a batch run.
type ListDueQuery struct {
	AsOf  time.Time
	Limit int
}

// ListDueHandler handles list due query
type ListDueHandler struct {
	ledger domain.Ledger
}

// NewListDueHandler creates a new list due handler
func NewListDueHandler(ledger domain.Ledger) *ListDueHandler {
	return &ListDueHandler{ledger: ledger}
}

// Handle executes the list due query using the standard charge policy
func (h *ListDueHandler) Handle(ctx context.Context, query ListDueQuery) ([]domain.Installment, error) {
	asOf := query.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	if query.Limit == 0 {
		query.Limit = 100
	}

	installments, err := h.ledger.Installments().ListDue(ctx, domain.DueQuery{
		AsOf:        asOf,
		RetryAfter:  domain.RetryInterval,
		MaxAttempts: domain.MaxChargeAttempts,
		Limit:       query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due installments: %w", err)
	}

	return installments, nil
}
