package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	errors "github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/gateway"
	"github.com/mekongagency/payment-hub/internal/transport"
	"github.com/mekongagency/payment-hub/pkg/logger"
)

type ServiceAPI interface {
	CreatePayment(ctx context.Context, kind gateway.Kind, dto *CreatePaymentDTO, clientIP string) (*CreatePaymentResponse, error)
	HandleNotification(n *gateway.Notification) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// CreatePayment handles POST /api/v1/payments/{gateway}.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	kind, err := gateway.ParseKind(chi.URLParam(r, "gateway"))
	if err != nil {
		h.Logger.Error("CreatePayment: unknown gateway", "gateway", chi.URLParam(r, "gateway"))
		h.HandleServiceError(w, errors.ErrUnknownGateway)
		return
	}

	var dto CreatePaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreatePayment: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.CreatePayment(r.Context(), kind, &dto, clientIP(r))
	if err != nil {
		h.Logger.Error("CreatePayment: service error",
			"error", err,
			"gateway", kind,
			"invoice_number", dto.InvoiceNumber)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreatePayment: payment created",
		"gateway", kind,
		"transaction_id", resp.TransactionID)

	h.WriteJSON(w, http.StatusCreated, resp)
}

// clientIP prefers the proxy-forwarded address; VNPay requires the
// purchaser's IP in the signed request.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
