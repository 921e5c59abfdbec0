package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/mekongagency/payment-hub/internal"
)

var _ = ginkgo.Describe("PayOS adapter", func() {
	var (
		adapter    *PayOS
		cfg        internal.PayOSConfig
		mockServer *httptest.Server
		received   payosCreateRequest
		recvHeader http.Header
	)

	ginkgo.BeforeEach(func() {
		mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recvHeader = r.Header.Clone()
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &received)
			w.Header().Set("Content-Type", "application/json")
			resp := payosCreateResponse{Code: "00", Desc: "success"}
			resp.Data.CheckoutURL = "https://pay.payos.vn/web/abc123"
			resp.Data.PaymentLinkID = "abc123"
			json.NewEncoder(w).Encode(resp)
		}))

		cfg = internal.PayOSConfig{
			ClientID:    "payos-client-id",
			APIKey:      "payos-api-key",
			ChecksumKey: "payos-checksum-key",
			Endpoint:    mockServer.URL,
			ReturnURL:   "https://hub.example.com/portal/payment-result.html",
			CancelURL:   "https://hub.example.com/portal/payments.html",
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		adapter = NewPayOS(cfg, logger, mockServer.Client())
		adapter.now = func() time.Time { return time.UnixMilli(1712345678901) }
	})

	ginkgo.AfterEach(func() {
		mockServer.Close()
	})

	ginkgo.Describe("BuildRequest", func() {
		ginkgo.It("creates a payment link with merchant credentials and a valid checksum", func() {
			// Given
			intent := Intent{
				InvoiceID:     "inv-007",
				InvoiceNumber: "INV-2024-007",
				AmountVND:     150000,
			}

			// When
			result, err := adapter.BuildRequest(context.Background(), intent)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(result.CheckoutURL).To(gomega.Equal("https://pay.payos.vn/web/abc123"))

			gomega.Expect(recvHeader.Get("x-client-id")).To(gomega.Equal("payos-client-id"))
			gomega.Expect(recvHeader.Get("x-api-key")).To(gomega.Equal("payos-api-key"))

			// order code: last six digits of epoch millis plus three random
			orderCode := strconv.FormatInt(received.OrderCode, 10)
			gomega.Expect(orderCode).To(gomega.HaveLen(9))
			gomega.Expect(orderCode[:6]).To(gomega.Equal("678901"))
			gomega.Expect(result.TransactionID).To(gomega.Equal(orderCode))

			gomega.Expect(received.Description).To(gomega.Equal("Thanh toan hoa don INV-2024-007"))
			gomega.Expect(received.ExpiredAt).To(gomega.Equal(time.UnixMilli(1712345678901).Add(15 * time.Minute).Unix()))

			expected := SignSHA256(cfg.ChecksumKey, CanonicalFixed(payosCreateSignatureOrder, map[string]string{
				"amount":      "150000",
				"cancelUrl":   cfg.CancelURL,
				"description": received.Description,
				"orderCode":   orderCode,
				"returnUrl":   cfg.ReturnURL,
			}))
			gomega.Expect(received.Signature).To(gomega.Equal(expected))
		})

		ginkgo.It("rejects a response without a checkout URL", func() {
			broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(payosCreateResponse{Code: "231", Desc: "duplicate order code"})
			}))
			defer broken.Close()
			cfg.Endpoint = broken.URL
			adapter = NewPayOS(cfg, slog.Default(), broken.Client())

			result, err := adapter.BuildRequest(context.Background(), Intent{InvoiceNumber: "INV-2024-007", AmountVND: 150000})

			gomega.Expect(result).To(gomega.BeNil())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeGatewayRejected))
		})
	})

	ginkgo.Describe("VerifyWebhook", func() {
		webhookData := func() map[string]interface{} {
			return map[string]interface{}{
				"orderCode":           345678901,
				"amount":              150000,
				"description":         "Thanh toan hoa don INV-2024-007",
				"accountNumber":       "0123456789",
				"reference":           "FT2024001",
				"transactionDateTime": "2024-04-01 10:30:00",
				"currency":            "VND",
				"code":                "00",
				"desc":                "success",
			}
		}

		postWebhook := func(data map[string]interface{}, signature string) *Notification {
			envelope := map[string]interface{}{
				"code":      "00",
				"desc":      "success",
				"success":   true,
				"data":      data,
				"signature": signature,
			}
			payload, err := json.Marshal(envelope)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			req := httptest.NewRequest("POST", "/api/v1/payments/webhook?gateway=payos", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")

			notification, err := adapter.VerifyWebhook(req)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			return notification
		}

		ginkgo.It("verifies a webhook signed over the sorted data keys", func() {
			notification := postWebhook(webhookData(),
				"66ca029da751770657a6d59713c5d07910fd20524ec3f8988237c8de715c782b")

			gomega.Expect(notification.SignatureValid).To(gomega.BeTrue())
			gomega.Expect(notification.Success).To(gomega.BeTrue())
			gomega.Expect(notification.AmountVND).To(gomega.Equal(int64(150000)))
			gomega.Expect(notification.TransactionID).To(gomega.Equal("345678901"))
			gomega.Expect(notification.GatewayTransactionNo).To(gomega.Equal("FT2024001"))
			gomega.Expect(notification.InvoiceNumber).To(gomega.Equal("INV-2024-007"))
		})

		ginkgo.It("rejects a webhook with tampered data", func() {
			data := webhookData()
			data["amount"] = 1

			notification := postWebhook(data,
				"66ca029da751770657a6d59713c5d07910fd20524ec3f8988237c8de715c782b")

			gomega.Expect(notification.SignatureValid).To(gomega.BeFalse())
			gomega.Expect(notification.Success).To(gomega.BeFalse())
		})

		ginkgo.It("leaves the invoice reference empty for an unrecognizable description", func() {
			data := webhookData()
			data["description"] = "chuyen khoan ca nhan"
			signature := SignSHA256(cfg.ChecksumKey, CanonicalPairs(map[string]string{
				"orderCode":           "345678901",
				"amount":              "150000",
				"description":         "chuyen khoan ca nhan",
				"accountNumber":       "0123456789",
				"reference":           "FT2024001",
				"transactionDateTime": "2024-04-01 10:30:00",
				"currency":            "VND",
				"code":                "00",
				"desc":                "success",
			}))

			notification := postWebhook(data, signature)

			gomega.Expect(notification.SignatureValid).To(gomega.BeTrue())
			gomega.Expect(notification.InvoiceNumber).To(gomega.BeEmpty())
		})

		ginkgo.It("refuses non-POST notifications", func() {
			req := httptest.NewRequest("GET", "/api/v1/payments/webhook?gateway=payos", nil)

			notification, err := adapter.VerifyWebhook(req)

			gomega.Expect(notification).To(gomega.BeNil())
			gomega.Expect(err).To(gomega.MatchError(ErrMethodNotAllowed))
		})
	})
})
