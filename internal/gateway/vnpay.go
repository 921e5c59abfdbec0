package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mekongagency/payment-hub/internal"
)

// MinAmountVNPay is the documented VNPay floor in major units.
const MinAmountVNPay = 10000

const (
	vnpayVersion    = "2.1.0"
	vnpayCommand    = "pay"
	vnpayLocale     = "vn"
	vnpayCurrency   = "VND"
	vnpayExpiry     = 15 * time.Minute
	vnpayDateFormat = "20060102150405"
)

// vnpayResponseCodes is the documented result-code table, used for
// failure logging and stored payload context.
var vnpayResponseCodes = map[string]string{
	"00": "transaction successful",
	"07": "amount deducted, transaction suspected fraudulent",
	"09": "card/account not registered for internet banking",
	"10": "authentication failed more than 3 times",
	"11": "payment window expired",
	"12": "card/account locked",
	"13": "wrong OTP",
	"24": "customer cancelled",
	"51": "insufficient balance",
	"65": "daily transaction limit exceeded",
	"75": "bank under maintenance",
	"79": "wrong payment password too many times",
	"99": "unknown error",
}

// VNPay builds redirect-URL payments signed with HMAC-SHA512 over the
// alphabetically sorted, URL-encoded parameter set, and verifies GET
// IPN callbacks with the same rule.
type VNPay struct {
	cfg    internal.VNPayConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewVNPay(cfg internal.VNPayConfig, logger *slog.Logger) *VNPay {
	return &VNPay{cfg: cfg, logger: logger, now: time.Now}
}

func (g *VNPay) Kind() Kind {
	return KindVNPay
}

func (g *VNPay) BuildRequest(_ context.Context, intent Intent) (*CreateResult, error) {
	if intent.AmountVND < MinAmountVNPay {
		return nil, internal.NewValidationError(
			fmt.Sprintf("minimum payment amount is %d VND", MinAmountVNPay),
			internal.ErrCodeAmountTooLow)
	}

	now := g.now()
	txnRef := VNPayTxnRef(intent.InvoiceNumber, now)

	orderInfo := intent.Description
	if orderInfo == "" {
		orderInfo = fmt.Sprintf("Thanh toan hoa don %s", intent.InvoiceNumber)
	}

	clientIP := intent.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	params := map[string]string{
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    vnpayCommand,
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Locale":     vnpayLocale,
		"vnp_CurrCode":   vnpayCurrency,
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  "other",
		"vnp_Amount":     strconv.FormatInt(intent.AmountVND*100, 10),
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": now.Format(vnpayDateFormat),
		"vnp_ExpireDate": now.Add(vnpayExpiry).Format(vnpayDateFormat),
	}

	canonical := CanonicalQuery(params)
	secureHash := SignSHA512(g.cfg.HashSecret, canonical)

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	values.Set("vnp_SecureHash", secureHash)

	g.logger.Info("vnpay payment url built",
		"txn_ref", txnRef,
		"amount_vnd", intent.AmountVND,
		"wire_amount", params["vnp_Amount"])

	return &CreateResult{
		TransactionID: txnRef,
		PaymentURL:    g.cfg.PayURL + "?" + values.Encode(),
	}, nil
}

// VerifyWebhook handles the VNPay IPN: a GET request carrying the
// signed parameter set in the query string.
func (g *VNPay) VerifyWebhook(r *http.Request) (*Notification, error) {
	if r.Method != http.MethodGet {
		return nil, ErrMethodNotAllowed
	}

	// VNPay signs only the vnp_ parameters it appends; anything else on
	// the URL (the webhook's own routing parameter included) is not part
	// of the signed set.
	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if strings.HasPrefix(key, "vnp_") && len(values) > 0 {
			params[key] = values[0]
		}
	}

	rawPayload, _ := json.Marshal(params)

	suppliedHash := params["vnp_SecureHash"]
	delete(params, "vnp_SecureHash")
	delete(params, "vnp_SecureHashType")

	expected := SignSHA512(g.cfg.HashSecret, CanonicalQuery(params))
	signatureValid := VerifyHex(suppliedHash, expected)

	txnRef := params["vnp_TxnRef"]
	responseCode := params["vnp_ResponseCode"]

	// VNPay reports the wire amount (x100); convert back to major units.
	wireAmount, _ := strconv.ParseInt(params["vnp_Amount"], 10, 64)

	notification := &Notification{
		Gateway:              KindVNPay,
		SignatureValid:       signatureValid,
		Success:              signatureValid && responseCode == "00",
		ResultCode:           responseCode,
		TransactionID:        txnRef,
		GatewayTransactionNo: params["vnp_TransactionNo"],
		AmountVND:            wireAmount / 100,
		InvoiceNumber:        ExtractInvoiceNumber(KindVNPay, txnRef),
		RawPayload:           rawPayload,
	}

	if signatureValid && !notification.Success {
		g.logger.Warn("vnpay reported failed payment",
			"txn_ref", txnRef,
			"response_code", responseCode,
			"reason", vnpayResponseCodes[responseCode])
	}

	return notification, nil
}

func (g *VNPay) AckReceived() Ack {
	return Ack{
		StatusCode: http.StatusOK,
		Body:       map[string]string{"RspCode": "00", "Message": "Confirm Success"},
	}
}

func (g *VNPay) AckInvalid() Ack {
	return Ack{
		StatusCode: http.StatusOK,
		Body:       map[string]string{"RspCode": "97", "Message": "Invalid Checksum"},
	}
}
