package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mekongagency/payment-hub/internal/core/events"
)

// EventHandler consumes settlement events off the bus and writes the
// audit trail. Downstream consumers (receipt mail, client portal push)
// hang off the same subscriptions.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandlePaymentSucceeded(ctx context.Context, event events.Event) error {
	succeeded, ok := event.(*events.PaymentSucceededEvent)
	if !ok {
		h.logger.Error("invalid event type for payment succeeded handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentSucceededEvent, got %T", event)
	}

	h.logger.Info("payment confirmed by gateway",
		"transaction_id", succeeded.TransactionID,
		"gateway", succeeded.Gateway,
		"invoice_id", succeeded.InvoiceID,
		"amount_vnd", succeeded.AmountVND,
		"gateway_transaction_no", succeeded.GatewayTransactionNo,
		"event_id", succeeded.EventID())
	return nil
}

func (h *EventHandler) HandlePaymentFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment failed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}

	h.logger.Warn("payment declined by gateway",
		"transaction_id", failed.TransactionID,
		"gateway", failed.Gateway,
		"amount_vnd", failed.AmountVND,
		"reason", failed.Reason,
		"event_id", failed.EventID())
	return nil
}

func (h *EventHandler) HandleInvoicePaid(ctx context.Context, event events.Event) error {
	paid, ok := event.(*events.InvoicePaidEvent)
	if !ok {
		h.logger.Error("invalid event type for invoice paid handler", "event_type", event.EventType())
		return fmt.Errorf("expected InvoicePaidEvent, got %T", event)
	}

	h.logger.Info("invoice settled",
		"invoice_id", paid.InvoiceID,
		"transaction_id", paid.TransactionID,
		"gateway", paid.Gateway,
		"paid_at", paid.PaidAt,
		"event_id", paid.EventID())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentSucceeded, h.HandlePaymentSucceeded)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentFailed)
	eventBus.Subscribe(events.EventTypeInvoicePaid, h.HandleInvoicePaid)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{
			events.EventTypePaymentSucceeded,
			events.EventTypePaymentFailed,
			events.EventTypeInvoicePaid,
		})
}
