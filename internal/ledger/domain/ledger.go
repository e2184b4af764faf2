package domain

import "context"

// Ledger bundles the billing repositories behind one transactional boundary.
// InTx runs fn with repositories bound to a single database transaction; the
// money-moving flows use it so an installment, its payment and the invoice
// totals commit or roll back together.
type Ledger interface {
	Invoices() InvoiceRepository
	Installments() InstallmentRepository
	Payments() PaymentRepository
	InTx(ctx context.Context, fn func(Ledger) error) error
}
