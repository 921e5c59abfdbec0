package payment

import (
	"regexp"

	errors "github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/core/common/validation"
)

var invoiceNumberFormat = regexp.MustCompile(`^INV-\d{4}-\d{3}$`)

// CreatePaymentDTO is the client request for starting a payment. Amount
// is VND major units; the chosen gateway decides the wire unit.
type CreatePaymentDTO struct {
	InvoiceID     string `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber"`
	AmountVND     int64  `json:"amount"`
	OrderInfo     string `json:"orderInfo,omitempty"`
	ClientID      string `json:"clientId,omitempty"`
}

func (dto CreatePaymentDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()

	validator.Field("invoiceId", dto.InvoiceID).Required()
	validator.Field("invoiceNumber", dto.InvoiceNumber).Required().
		MatchPattern(invoiceNumberFormat, errors.ErrCodeInvalidInvoice)
	validator.Field("amount", dto.AmountVND).Required().MinInt(1, errors.ErrCodeInvalidAmount)
	validator.Field("orderInfo", dto.OrderInfo).MaxLength(255)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// CreatePaymentResponse echoes the gateway's redirect or checkout URL.
// Exactly one of paymentUrl/checkoutUrl is set depending on the gateway.
type CreatePaymentResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
	CheckoutURL   string `json:"checkoutUrl,omitempty"`
	Deeplink      string `json:"deeplink,omitempty"`
}
