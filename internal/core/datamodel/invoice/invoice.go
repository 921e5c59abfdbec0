package invoice

import "time"

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusOverdue = "overdue"
)

// Invoice rows are owned by the billing collaborator; this subsystem only
// ever writes the pending -> paid transition, and never reverts it.
type Invoice struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	InvoiceNumber string     `json:"invoice_number" gorm:"column:invoice_number;not null;uniqueIndex"`
	ClientID      *string    `json:"client_id,omitempty" gorm:"column:client_id"`
	AmountVND     int64      `json:"amount_vnd" gorm:"column:amount_vnd;not null"`
	Status        string     `json:"status" gorm:"column:status;default:pending"`
	PaidAt        *time.Time `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Invoice) TableName() string {
	return "invoices"
}
