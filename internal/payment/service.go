package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errors "github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/core/datamodel/invoice"
	"github.com/mekongagency/payment-hub/internal/core/datamodel/transaction"
	"github.com/mekongagency/payment-hub/internal/core/events"
	"github.com/mekongagency/payment-hub/internal/gateway"
)

// Service orchestrates payment creation and webhook settlement across
// the registered gateways.
type Service struct {
	registry     *gateway.Registry
	transactions TransactionRepository
	invoices     InvoiceRepository
	reconciler   *InvoiceReconciler
	eventBus     EventPublisher
	logger       *slog.Logger
}

func NewService(
	registry *gateway.Registry,
	transactions TransactionRepository,
	invoices InvoiceRepository,
	reconciler *InvoiceReconciler,
	eventBus EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		registry:     registry,
		transactions: transactions,
		invoices:     invoices,
		reconciler:   reconciler,
		eventBus:     eventBus,
		logger:       logger,
	}
}

// CreatePayment validates the request, asks the gateway adapter to build
// (or create) the payment, and records a pending ledger row. The row is
// written only after the gateway accepted the request: a rejected or
// unreachable gateway leaves no trace in the ledger.
func (s *Service) CreatePayment(ctx context.Context, kind gateway.Kind, dto *CreatePaymentDTO, clientIP string) (*CreatePaymentResponse, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("payment validation failed", "error", err, "invoice_number", dto.InvoiceNumber)
		return nil, err
	}

	gw, ok := s.registry.Lookup(kind)
	if !ok {
		return nil, errors.ErrUnknownGateway
	}

	inv, err := s.invoices.GetByID(dto.InvoiceID)
	if err != nil {
		s.logger.Error("invoice lookup failed", "error", err, "invoice_id", dto.InvoiceID)
		return nil, err
	}
	if inv.Status == invoice.StatusPaid {
		return nil, errors.NewConflictError("invoice is already paid", errors.ErrCodeInvalidInvoice)
	}
	if inv.InvoiceNumber != dto.InvoiceNumber {
		return nil, errors.NewValidationError("invoice number does not match invoice", errors.ErrCodeInvalidInvoice)
	}

	result, err := gw.BuildRequest(ctx, gateway.Intent{
		InvoiceID:     dto.InvoiceID,
		InvoiceNumber: dto.InvoiceNumber,
		AmountVND:     dto.AmountVND,
		Description:   dto.OrderInfo,
		ClientID:      dto.ClientID,
		ClientIP:      clientIP,
	})
	if err != nil {
		s.logger.Error("gateway build request failed",
			"error", err,
			"gateway", kind,
			"invoice_number", dto.InvoiceNumber)
		return nil, err
	}

	invoiceID := dto.InvoiceID
	txn := &transaction.GatewayTransaction{
		TransactionID: result.TransactionID,
		Gateway:       string(kind),
		InvoiceID:     &invoiceID,
		AmountVND:     dto.AmountVND,
		Status:        transaction.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.transactions.Create(txn); err != nil {
		s.logger.Error("failed to record pending transaction",
			"error", err,
			"transaction_id", result.TransactionID)
		return nil, errors.NewInternalError("failed to record transaction", err)
	}

	s.logger.Info("payment created",
		"gateway", kind,
		"transaction_id", result.TransactionID,
		"invoice_number", dto.InvoiceNumber,
		"amount_vnd", dto.AmountVND)

	return &CreatePaymentResponse{
		Success:       true,
		TransactionID: result.TransactionID,
		PaymentURL:    result.PaymentURL,
		CheckoutURL:   result.CheckoutURL,
		Deeplink:      result.Deeplink,
	}, nil
}

// HandleNotification settles a verified webhook against the ledger.
// Replays are absorbed by the pending-to-terminal transition guard:
// only the first notification for a transaction flips its row, and only
// that caller settles the invoice.
func (s *Service) HandleNotification(n *gateway.Notification) error {
	if !n.SignatureValid {
		s.recordForgedNotification(n)
		return errors.NewValidationError("webhook signature mismatch", errors.ErrCodeSignatureMismatch)
	}

	existing, err := s.transactions.GetByTransactionID(n.TransactionID)
	if err != nil && err != errors.ErrTransactionNotFound {
		return errors.NewInternalError("transaction lookup failed", err)
	}

	invoiceID := s.resolveInvoiceID(existing, n)

	if existing == nil {
		// First contact through the webhook; the create leg may have
		// raced or happened on another node.
		txn := &transaction.GatewayTransaction{
			TransactionID: n.TransactionID,
			Gateway:       string(n.Gateway),
			InvoiceID:     invoiceID,
			AmountVND:     n.AmountVND,
			Status:        transaction.StatusPending,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if err := s.transactions.Upsert(txn); err != nil {
			return errors.NewInternalError("failed to record webhook transaction", err)
		}
	} else if existing.AmountVND != n.AmountVND {
		s.logger.Warn("webhook amount differs from recorded transaction",
			"transaction_id", n.TransactionID,
			"recorded_vnd", existing.AmountVND,
			"reported_vnd", n.AmountVND)
	}

	status := transaction.StatusFailed
	if n.Success {
		status = transaction.StatusSuccess
	}

	var gatewayTxnNo *string
	if n.GatewayTransactionNo != "" {
		gatewayTxnNo = &n.GatewayTransactionNo
	}

	applied, err := s.transactions.MarkTerminal(n.TransactionID, status, gatewayTxnNo, n.RawPayload)
	if err != nil {
		return errors.NewInternalError("failed to settle transaction", err)
	}
	if !applied {
		s.logger.Info("duplicate webhook ignored",
			"gateway", n.Gateway,
			"transaction_id", n.TransactionID)
		return nil
	}

	if !n.Success {
		s.logger.Info("payment failed",
			"gateway", n.Gateway,
			"transaction_id", n.TransactionID,
			"result_code", n.ResultCode)
		s.eventBus.Publish(context.Background(),
			events.NewPaymentFailedEvent(n.TransactionID, string(n.Gateway), n.AmountVND, n.ResultCode))
		return nil
	}

	resolvedInvoiceID := ""
	if invoiceID != nil {
		resolvedInvoiceID = *invoiceID
	}
	s.eventBus.Publish(context.Background(),
		events.NewPaymentSucceededEvent(n.TransactionID, string(n.Gateway), resolvedInvoiceID, n.AmountVND, n.GatewayTransactionNo))

	if invoiceID == nil {
		// Ledger row still settles; the invoice stays open for manual
		// reconciliation.
		s.logger.Warn("successful payment with unresolved invoice reference",
			"gateway", n.Gateway,
			"transaction_id", n.TransactionID,
			"invoice_number", n.InvoiceNumber)
		return nil
	}

	if err := s.reconciler.SettleInvoice(*invoiceID, n.TransactionID, string(n.Gateway)); err != nil {
		return err
	}
	return nil
}

// recordForgedNotification keeps an audit trail of rejected webhooks
// without ever letting them transition a legitimate pending row.
func (s *Service) recordForgedNotification(n *gateway.Notification) {
	payload, err := json.Marshal(map[string]interface{}{
		"verification_failed": true,
		"payload":             json.RawMessage(n.RawPayload),
	})
	if err != nil {
		payload = n.RawPayload
	}

	txn := &transaction.GatewayTransaction{
		TransactionID: "unverified-" + uuid.New().String(),
		Gateway:       string(n.Gateway),
		AmountVND:     n.AmountVND,
		Status:        transaction.StatusFailed,
		CallbackData:  payload,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.transactions.Create(txn); err != nil {
		s.logger.Error("failed to record rejected webhook", "error", err, "gateway", n.Gateway)
	}

	s.logger.Warn("webhook signature verification failed",
		"gateway", n.Gateway,
		"claimed_transaction_id", n.TransactionID)
}

func (s *Service) resolveInvoiceID(existing *transaction.GatewayTransaction, n *gateway.Notification) *string {
	if existing != nil && existing.InvoiceID != nil {
		return existing.InvoiceID
	}
	if n.InvoiceNumber == "" {
		return nil
	}
	inv, err := s.invoices.GetByNumber(n.InvoiceNumber)
	if err != nil {
		return nil
	}
	return &inv.ID
}
