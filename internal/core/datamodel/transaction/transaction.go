package transaction

import (
	"encoding/json"
	"time"
)

// Status values for a gateway transaction. A row is created in pending
// state and moves to exactly one terminal state on its first verified
// webhook; later webhooks for the same transaction_id must not
// re-transition it.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// GatewayTransaction is one payment attempt against a gateway, keyed by
// the locally generated transaction reference. CallbackData keeps the
// inbound webhook payload verbatim for audit and replay investigation.
type GatewayTransaction struct {
	ID                   int64           `json:"id" gorm:"primaryKey"`
	TransactionID        string          `json:"transaction_id" gorm:"column:transaction_id;not null;uniqueIndex"`
	Gateway              string          `json:"gateway" gorm:"column:gateway;not null"`
	InvoiceID            *string         `json:"invoice_id,omitempty" gorm:"column:invoice_id"`
	AmountVND            int64           `json:"amount_vnd" gorm:"column:amount_vnd;not null"`
	Status               string          `json:"status" gorm:"column:status;default:pending"`
	GatewayTransactionNo *string         `json:"gateway_transaction_no,omitempty" gorm:"column:gateway_transaction_no"`
	CallbackData         json.RawMessage `json:"callback_data,omitempty" gorm:"column:callback_data;type:jsonb"`
	CreatedAt            time.Time       `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time       `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (GatewayTransaction) TableName() string {
	return "payment_transactions"
}

func (t *GatewayTransaction) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}
