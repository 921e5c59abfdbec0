package payment

import (
	"log/slog"
	"net/http"

	errors "github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/gateway"
	"github.com/mekongagency/payment-hub/internal/transport"
	"github.com/mekongagency/payment-hub/pkg/logger"
)

// WebhookHandler terminates gateway notifications. Acks follow each
// gateway's documented envelope, and a rejected notification always
// gets the same generic reply regardless of which check failed.
type WebhookHandler struct {
	*transport.BaseHandler
	Registry *gateway.Registry
	Service  ServiceAPI
}

func NewWebhookHandler(registry *gateway.Registry, service ServiceAPI) *WebhookHandler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(lg),
		Registry:    registry,
		Service:     service,
	}
}

// HandleWebhook handles GET|POST /api/v1/payments/webhook?gateway=...
// The method is dispatched to the adapter, which enforces its own
// expectation (VNPay notifies over GET, MoMo and PayOS over POST).
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	kind, err := gateway.ParseKind(r.URL.Query().Get("gateway"))
	if err != nil {
		h.Logger.Warn("webhook for unknown gateway", "gateway", r.URL.Query().Get("gateway"))
		h.WriteError(w, http.StatusNotFound, "unknown gateway")
		return
	}

	gw, ok := h.Registry.Lookup(kind)
	if !ok {
		h.WriteError(w, http.StatusNotFound, "unknown gateway")
		return
	}

	notification, err := gw.VerifyWebhook(r)
	if err != nil {
		if err == gateway.ErrMethodNotAllowed {
			h.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.Logger.Error("webhook parse failed", "error", err, "gateway", kind)
		h.writeAck(w, gw.AckInvalid())
		return
	}

	if err := h.Service.HandleNotification(notification); err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeSignatureMismatch {
			h.writeAck(w, gw.AckInvalid())
			return
		}
		// Processing failed after the signature checked out; surface a
		// retryable error so the gateway redelivers.
		h.Logger.Error("webhook processing failed",
			"error", err,
			"gateway", kind,
			"transaction_id", notification.TransactionID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeAck(w, gw.AckReceived())
}

func (h *WebhookHandler) writeAck(w http.ResponseWriter, ack gateway.Ack) {
	if ack.Body == nil {
		w.WriteHeader(ack.StatusCode)
		return
	}
	h.WriteJSON(w, ack.StatusCode, ack.Body)
}
