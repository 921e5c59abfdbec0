package postgres

import (
	"time"

	"gorm.io/gorm"

	errors "github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/core/datamodel/invoice"
	"github.com/mekongagency/payment-hub/internal/payment"
)

// InvoiceRepository implements payment.InvoiceRepository using GORM
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) payment.InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// GetByID retrieves an invoice by its primary key
func (r *InvoiceRepository) GetByID(id string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.Where("id = ?", id).First(&inv).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// GetByNumber retrieves an invoice by its human-facing number
func (r *InvoiceRepository) GetByNumber(number string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.Where("invoice_number = ?", number).First(&inv).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// MarkPaid settles an invoice. The status guard keeps the first paid_at
// in place when duplicate settlements race; zero affected rows means
// someone else (or an earlier delivery) already settled it.
func (r *InvoiceRepository) MarkPaid(id string, paidAt time.Time) (bool, error) {
	result := r.db.Model(&invoice.Invoice{}).
		Where("id = ? AND status <> ?", id, invoice.StatusPaid).
		Updates(map[string]interface{}{
			"status":     invoice.StatusPaid,
			"paid_at":    paidAt,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
