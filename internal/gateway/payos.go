package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mekongagency/payment-hub/internal"
)

// payosCreateSignatureOrder is the documented field order for the
// create-payment checksum.
var payosCreateSignatureOrder = []string{
	"amount", "cancelUrl", "description", "orderCode", "returnUrl",
}

const payosExpiry = 15 * time.Minute

type payosItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type payosCreateRequest struct {
	OrderCode   int64       `json:"orderCode"`
	Amount      int64       `json:"amount"`
	Description string      `json:"description"`
	BuyerName   string      `json:"buyerName,omitempty"`
	Items       []payosItem `json:"items"`
	CancelURL   string      `json:"cancelUrl"`
	ReturnURL   string      `json:"returnUrl"`
	ExpiredAt   int64       `json:"expiredAt"`
	Signature   string      `json:"signature"`
}

type payosCreateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		CheckoutURL   string `json:"checkoutUrl"`
		PaymentLinkID string `json:"paymentLinkId"`
		QRCode        string `json:"qrCode"`
	} `json:"data"`
}

type payosWebhookEnvelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// PayOS creates hosted payment links through the merchant API and
// verifies POSTed webhook envelopes. Checksums are HMAC-SHA256: the
// create request signs five fields in documented order, the webhook
// signs every top-level key of the data object sorted alphabetically.
type PayOS struct {
	cfg    internal.PayOSConfig
	logger *slog.Logger
	client *http.Client
	now    func() time.Time
}

func NewPayOS(cfg internal.PayOSConfig, logger *slog.Logger, client *http.Client) *PayOS {
	if client == nil {
		client = http.DefaultClient
	}
	return &PayOS{cfg: cfg, logger: logger, client: client, now: time.Now}
}

func (g *PayOS) Kind() Kind {
	return KindPayOS
}

func (g *PayOS) BuildRequest(ctx context.Context, intent Intent) (*CreateResult, error) {
	now := g.now()
	orderCode := PayOSOrderCode(now)

	// The numeric order code cannot carry the invoice number, so the
	// description must; webhook resolution pattern-matches it back out.
	description := intent.Description
	if description == "" {
		description = fmt.Sprintf("Thanh toan hoa don %s", intent.InvoiceNumber)
	}

	signature := SignSHA256(g.cfg.ChecksumKey, CanonicalFixed(payosCreateSignatureOrder, map[string]string{
		"amount":      strconv.FormatInt(intent.AmountVND, 10),
		"cancelUrl":   g.cfg.CancelURL,
		"description": description,
		"orderCode":   strconv.FormatInt(orderCode, 10),
		"returnUrl":   g.cfg.ReturnURL,
	}))

	body, err := json.Marshal(payosCreateRequest{
		OrderCode:   orderCode,
		Amount:      intent.AmountVND,
		Description: description,
		Items: []payosItem{
			{Name: intent.InvoiceNumber, Quantity: 1, Price: intent.AmountVND},
		},
		CancelURL: g.cfg.CancelURL,
		ReturnURL: g.cfg.ReturnURL,
		ExpiredAt: now.Add(payosExpiry).Unix(),
		Signature: signature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payos create request: %w", err)
	}

	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build payos create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", g.cfg.ClientID)
	req.Header.Set("x-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, internal.NewExternalError("payos gateway unreachable", internal.ErrCodeGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewExternalError("read payos response", internal.ErrCodeGatewayUnreachable, err)
	}

	var createResp payosCreateResponse
	if err := json.Unmarshal(respBody, &createResp); err != nil {
		return nil, internal.NewExternalError(
			fmt.Sprintf("payos returned unparseable response (status %d)", resp.StatusCode),
			internal.ErrCodeGatewayRejected, err)
	}

	if createResp.Code != "00" || createResp.Data.CheckoutURL == "" {
		g.logger.Warn("payos rejected payment link",
			"order_code", orderCode,
			"code", createResp.Code,
			"desc", createResp.Desc)
		return nil, internal.NewExternalError(
			fmt.Sprintf("payos rejected payment: %s", createResp.Desc),
			internal.ErrCodeGatewayRejected, nil)
	}

	g.logger.Info("payos payment link created",
		"order_code", orderCode,
		"amount_vnd", intent.AmountVND)

	return &CreateResult{
		TransactionID: strconv.FormatInt(orderCode, 10),
		CheckoutURL:   createResp.Data.CheckoutURL,
	}, nil
}

// VerifyWebhook handles the PayOS webhook: a POST whose signature covers
// the data object's own top-level keys, sorted, as raw key=value pairs.
func (g *PayOS) VerifyWebhook(r *http.Request) (*Notification, error) {
	if r.Method != http.MethodPost {
		return nil, ErrMethodNotAllowed
	}

	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read payos webhook body: %w", err)
	}

	var envelope payosWebhookEnvelope
	if err := json.Unmarshal(rawPayload, &envelope); err != nil {
		return nil, fmt.Errorf("decode payos webhook body: %w", err)
	}

	data, err := decodeJSONStrings(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payos webhook data: %w", err)
	}

	expected := SignSHA256(g.cfg.ChecksumKey, CanonicalPairs(data))
	signatureValid := VerifyHex(envelope.Signature, expected)

	orderCode := data["orderCode"]
	amount, _ := strconv.ParseInt(data["amount"], 10, 64)

	notification := &Notification{
		Gateway:              KindPayOS,
		SignatureValid:       signatureValid,
		Success:              signatureValid && envelope.Code == "00" && data["code"] == "00",
		ResultCode:           data["code"],
		TransactionID:        orderCode,
		GatewayTransactionNo: data["reference"],
		AmountVND:            amount,
		InvoiceNumber:        ExtractInvoiceNumber(KindPayOS, data["description"]),
		RawPayload:           rawPayload,
	}

	if signatureValid && !notification.Success {
		g.logger.Warn("payos reported failed payment",
			"order_code", orderCode,
			"code", data["code"],
			"desc", data["desc"])
	}

	return notification, nil
}

func (g *PayOS) AckReceived() Ack {
	return Ack{
		StatusCode: http.StatusOK,
		Body:       map[string]bool{"success": true},
	}
}

func (g *PayOS) AckInvalid() Ack {
	return Ack{
		StatusCode: http.StatusBadRequest,
		Body:       map[string]bool{"success": false},
	}
}
