package payment

import (
	"context"
	"time"

	"github.com/mekongagency/payment-hub/internal/core/datamodel/invoice"
	"github.com/mekongagency/payment-hub/internal/core/datamodel/transaction"
	"github.com/mekongagency/payment-hub/internal/core/events"
)

// TransactionRepository is the ledger access contract. The ledger is
// append-only for rows and one-way for status: pending rows may become
// success or failed exactly once, terminal rows never change again.
type TransactionRepository interface {
	Create(txn *transaction.GatewayTransaction) error
	GetByTransactionID(transactionID string) (*transaction.GatewayTransaction, error)

	// MarkTerminal moves a pending row to the given terminal status and
	// reports whether the transition applied. A row already terminal is
	// left untouched and reported as not applied.
	MarkTerminal(transactionID, status string, gatewayTransactionNo *string, callbackData []byte) (bool, error)

	// Upsert records a transaction first seen through its webhook: the
	// row is created if missing, otherwise left as is.
	Upsert(txn *transaction.GatewayTransaction) error
}

// InvoiceRepository resolves and settles invoices.
type InvoiceRepository interface {
	GetByID(id string) (*invoice.Invoice, error)
	GetByNumber(number string) (*invoice.Invoice, error)

	// MarkPaid settles an invoice and reports whether this call did the
	// settling. An invoice already paid is reported as not applied, which
	// callers treat as success.
	MarkPaid(id string, paidAt time.Time) (bool, error)
}

// EventPublisher decouples payment outcomes from their subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
