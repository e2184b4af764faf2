package query

import (
	"context"
	"fmt"

	"github.com/clubworks/billing-engine/internal/ledger/domain"
)

// GetInvoiceQuery represents the query to get an invoice with its plan
type GetInvoiceQuery struct {
	InvoiceID uint
}

// InvoiceDetails is the assembled view of an invoice: the installment plan
// and every payment recorded against it
type InvoiceDetails struct {
	Invoice      *domain.Invoice      `json:"invoice"`
	Installments []domain.Installment `json:"installments"`
	Payments     []domain.Payment     `json:"payments"`
}

// GetInvoiceHandler handles get invoice query
type GetInvoiceHandler struct {
	ledger domain.Ledger
}

// NewGetInvoiceHandler creates a new get invoice handler
func NewGetInvoiceHandler(ledger domain.Ledger) *GetInvoiceHandler {
	return &GetInvoiceHandler{ledger: ledger}
}

// Handle executes the get invoice query
func (h *GetInvoiceHandler) Handle(ctx context.Context, query GetInvoiceQuery) (*InvoiceDetails, error) {
	invoice, err := h.ledger.Invoices().FindByID(ctx, query.InvoiceID)
	if err != nil {
		return nil, err
	}

	installments, err := h.ledger.Installments().ListByInvoiceID(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load installments: %w", err)
	}

	payments, err := h.ledger.Payments().ListByInvoiceID(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	return &InvoiceDetails{
		Invoice:      invoice,
		Installments: installments,
		Payments:     payments,
	}, nil
}
