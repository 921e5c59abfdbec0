package payment

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/core/events"
)

// InvoiceReconciler marks invoices paid exactly once. Settlement is a
// guarded transition in the repository, so two racing webhooks (or a
// webhook replay) converge on a single paid_at and a single emitted
// event.
type InvoiceReconciler struct {
	invoices InvoiceRepository
	eventBus EventPublisher
	logger   *slog.Logger
}

func NewInvoiceReconciler(invoices InvoiceRepository, eventBus EventPublisher, logger *slog.Logger) *InvoiceReconciler {
	return &InvoiceReconciler{invoices: invoices, eventBus: eventBus, logger: logger}
}

// SettleInvoice moves the invoice to paid. An invoice that is already
// paid is a no-op success: the ledger row for the duplicate payment is
// already recorded, and re-settling must not move paid_at.
func (r *InvoiceReconciler) SettleInvoice(invoiceID, transactionID, gatewayName string) error {
	paidAt := time.Now()

	applied, err := r.invoices.MarkPaid(invoiceID, paidAt)
	if err != nil {
		r.logger.Error("failed to settle invoice",
			"error", err,
			"invoice_id", invoiceID,
			"transaction_id", transactionID)
		return errors.NewInternalError("failed to settle invoice", err)
	}

	if !applied {
		r.logger.Info("invoice already settled",
			"invoice_id", invoiceID,
			"transaction_id", transactionID)
		return nil
	}

	r.logger.Info("invoice settled",
		"invoice_id", invoiceID,
		"transaction_id", transactionID,
		"gateway", gatewayName)

	r.eventBus.Publish(context.Background(),
		events.NewInvoicePaidEvent(invoiceID, transactionID, gatewayName, paidAt))

	return nil
}
