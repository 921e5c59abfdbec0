package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentSucceeded = "payment.succeeded"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeInvoicePaid      = "invoice.paid"
)

type PaymentSucceededEvent struct {
	BaseEvent
	TransactionID        string `json:"transaction_id"`
	Gateway              string `json:"gateway"`
	InvoiceID            string `json:"invoice_id"`
	AmountVND            int64  `json:"amount_vnd"`
	GatewayTransactionNo string `json:"gateway_transaction_no"`
}

func NewPaymentSucceededEvent(transactionID, gateway, invoiceID string, amountVND int64, gatewayTransactionNo string) *PaymentSucceededEvent {
	return &PaymentSucceededEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentSucceeded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id":         transactionID,
				"gateway":                gateway,
				"invoice_id":             invoiceID,
				"amount_vnd":             amountVND,
				"gateway_transaction_no": gatewayTransactionNo,
			},
		},
		TransactionID:        transactionID,
		Gateway:              gateway,
		InvoiceID:            invoiceID,
		AmountVND:            amountVND,
		GatewayTransactionNo: gatewayTransactionNo,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	Gateway       string `json:"gateway"`
	AmountVND     int64  `json:"amount_vnd"`
	Reason        string `json:"reason"`
}

func NewPaymentFailedEvent(transactionID, gateway string, amountVND int64, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id": transactionID,
				"gateway":        gateway,
				"amount_vnd":     amountVND,
				"reason":         reason,
			},
		},
		TransactionID: transactionID,
		Gateway:       gateway,
		AmountVND:     amountVND,
		Reason:        reason,
	}
}

type InvoicePaidEvent struct {
	BaseEvent
	InvoiceID     string    `json:"invoice_id"`
	TransactionID string    `json:"transaction_id"`
	Gateway       string    `json:"gateway"`
	PaidAt        time.Time `json:"paid_at"`
}

func NewInvoicePaidEvent(invoiceID, transactionID, gateway string, paidAt time.Time) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeInvoicePaid,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"invoice_id":     invoiceID,
				"transaction_id": transactionID,
				"gateway":        gateway,
				"paid_at":        paidAt,
			},
		},
		InvoiceID:     invoiceID,
		TransactionID: transactionID,
		Gateway:       gateway,
		PaidAt:        paidAt,
	}
}
