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

// momoCreateSignatureOrder is the documented field order for signing the
// create-order request. MoMo rejects requests signed over any other
// ordering, so this slice is the contract, not an optimization.
var momoCreateSignatureOrder = []string{
	"accessKey", "amount", "extraData", "ipnUrl", "orderId",
	"orderInfo", "partnerCode", "redirectUrl", "requestId", "requestType",
}

// momoIPNSignatureOrder is the documented field order for verifying
// inbound IPN notifications.
var momoIPNSignatureOrder = []string{
	"accessKey", "amount", "extraData", "message", "orderId",
	"orderInfo", "orderType", "partnerCode", "payType", "requestId",
	"responseTime", "resultCode", "transId",
}

const momoRequestType = "captureWallet"

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName"`
	StoreID     string `json:"storeId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	AutoCapture bool   `json:"autoCapture"`
	Signature   string `json:"signature"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	Deeplink   string `json:"deeplink"`
	QRCodeURL  string `json:"qrCodeUrl"`
}

// MoMo talks to the hosted-checkout create-order API and verifies POSTed
// JSON IPN callbacks. Both directions sign with HMAC-SHA256 over raw
// key=value pairs in a fixed documented order.
type MoMo struct {
	cfg    internal.MoMoConfig
	logger *slog.Logger
	client *http.Client
	now    func() time.Time
}

func NewMoMo(cfg internal.MoMoConfig, logger *slog.Logger, client *http.Client) *MoMo {
	if client == nil {
		client = http.DefaultClient
	}
	return &MoMo{cfg: cfg, logger: logger, client: client, now: time.Now}
}

func (g *MoMo) Kind() Kind {
	return KindMoMo
}

func (g *MoMo) BuildRequest(ctx context.Context, intent Intent) (*CreateResult, error) {
	now := g.now()
	orderID := MoMoOrderID(intent.InvoiceNumber, now)

	orderInfo := intent.Description
	if orderInfo == "" {
		orderInfo = fmt.Sprintf("Thanh toan hoa don %s", intent.InvoiceNumber)
	}

	// MoMo amounts are plain VND major units.
	signature := SignSHA256(g.cfg.SecretKey, CanonicalFixed(momoCreateSignatureOrder, map[string]string{
		"accessKey":   g.cfg.AccessKey,
		"amount":      strconv.FormatInt(intent.AmountVND, 10),
		"extraData":   "",
		"ipnUrl":      g.cfg.IPNURL,
		"orderId":     orderID,
		"orderInfo":   orderInfo,
		"partnerCode": g.cfg.PartnerCode,
		"redirectUrl": g.cfg.RedirectURL,
		"requestId":   orderID,
		"requestType": momoRequestType,
	}))

	body, err := json.Marshal(momoCreateRequest{
		PartnerCode: g.cfg.PartnerCode,
		PartnerName: "Mekong Agency",
		StoreID:     "MekongPaymentHub",
		RequestID:   orderID,
		Amount:      intent.AmountVND,
		OrderID:     orderID,
		OrderInfo:   orderInfo,
		RedirectURL: g.cfg.RedirectURL,
		IPNURL:      g.cfg.IPNURL,
		Lang:        "vi",
		ExtraData:   "",
		RequestType: momoRequestType,
		AutoCapture: true,
		Signature:   signature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal momo create request: %w", err)
	}

	ctx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build momo create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, internal.NewExternalError("momo gateway unreachable", internal.ErrCodeGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewExternalError("read momo response", internal.ErrCodeGatewayUnreachable, err)
	}

	var createResp momoCreateResponse
	if err := json.Unmarshal(respBody, &createResp); err != nil {
		return nil, internal.NewExternalError(
			fmt.Sprintf("momo returned unparseable response (status %d)", resp.StatusCode),
			internal.ErrCodeGatewayRejected, err)
	}

	if createResp.ResultCode != 0 {
		g.logger.Warn("momo rejected create order",
			"order_id", orderID,
			"result_code", createResp.ResultCode,
			"message", createResp.Message)
		return nil, internal.NewExternalError(
			fmt.Sprintf("momo rejected payment: %s", createResp.Message),
			internal.ErrCodeGatewayRejected, nil)
	}

	g.logger.Info("momo order created",
		"order_id", orderID,
		"amount_vnd", intent.AmountVND)

	return &CreateResult{
		TransactionID: orderID,
		PaymentURL:    createResp.PayURL,
		Deeplink:      createResp.Deeplink,
	}, nil
}

// VerifyWebhook handles the MoMo IPN: a POST with a JSON body whose
// signature covers thirteen fields in documented order, with the
// partner's accessKey substituted in place of the body's partnerCode
// position.
func (g *MoMo) VerifyWebhook(r *http.Request) (*Notification, error) {
	if r.Method != http.MethodPost {
		return nil, ErrMethodNotAllowed
	}

	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read momo ipn body: %w", err)
	}

	payload, err := decodeJSONStrings(rawPayload)
	if err != nil {
		return nil, fmt.Errorf("decode momo ipn body: %w", err)
	}

	// The signature is computed with the configured accessKey, which is
	// not echoed in the notification body.
	fields := make(map[string]string, len(momoIPNSignatureOrder))
	for _, key := range momoIPNSignatureOrder {
		fields[key] = payload[key]
	}
	fields["accessKey"] = g.cfg.AccessKey

	expected := SignSHA256(g.cfg.SecretKey, CanonicalFixed(momoIPNSignatureOrder, fields))
	signatureValid := VerifyHex(payload["signature"], expected)

	orderID := payload["orderId"]
	resultCode := payload["resultCode"]
	amount, _ := strconv.ParseInt(payload["amount"], 10, 64)

	notification := &Notification{
		Gateway:              KindMoMo,
		SignatureValid:       signatureValid,
		Success:              signatureValid && resultCode == "0",
		ResultCode:           resultCode,
		TransactionID:        orderID,
		GatewayTransactionNo: payload["transId"],
		AmountVND:            amount,
		InvoiceNumber:        ExtractInvoiceNumber(KindMoMo, orderID),
		RawPayload:           rawPayload,
	}

	if signatureValid && !notification.Success {
		g.logger.Warn("momo reported failed payment",
			"order_id", orderID,
			"result_code", resultCode,
			"message", payload["message"])
	}

	return notification, nil
}

// AckReceived replies 204 with no body; MoMo treats any 2xx without
// content as a confirmed delivery.
func (g *MoMo) AckReceived() Ack {
	return Ack{StatusCode: http.StatusNoContent}
}

func (g *MoMo) AckInvalid() Ack {
	return Ack{
		StatusCode: http.StatusBadRequest,
		Body:       map[string]string{"message": "invalid notification"},
	}
}

// decodeJSONStrings flattens a JSON object's top-level values to their
// canonical string forms. Numbers keep their wire representation via
// json.Number, so 150000 never becomes "150000.000000" in a signed
// string.
func decodeJSONStrings(raw []byte) (map[string]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var payload map[string]interface{}
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case string:
			out[key] = v
		case json.Number:
			out[key] = v.String()
		case bool:
			out[key] = strconv.FormatBool(v)
		case nil:
			out[key] = ""
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			out[key] = string(encoded)
		}
	}
	return out, nil
}
