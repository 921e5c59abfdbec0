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
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/mekongagency/payment-hub/internal"
)

var _ = ginkgo.Describe("MoMo adapter", func() {
	var (
		adapter    *MoMo
		cfg        internal.MoMoConfig
		mockServer *httptest.Server
		received   momoCreateRequest
	)

	ginkgo.BeforeEach(func() {
		mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &received)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(momoCreateResponse{
				ResultCode: 0,
				Message:    "Success",
				PayURL:     "https://test-payment.momo.vn/pay/abc123",
				Deeplink:   "momo://pay?t=abc123",
			})
		}))

		cfg = internal.MoMoConfig{
			PartnerCode: "MOMOTEST",
			AccessKey:   "F8BBA842ECF85",
			SecretKey:   "momo-test-secret",
			Endpoint:    mockServer.URL,
			RedirectURL: "https://hub.example.com/portal/payment-result.html",
			IPNURL:      "https://hub.example.com/api/v1/payments/webhook?gateway=momo",
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		adapter = NewMoMo(cfg, logger, mockServer.Client())
		adapter.now = func() time.Time { return time.UnixMilli(1712345678901) }
	})

	ginkgo.AfterEach(func() {
		mockServer.Close()
	})

	ginkgo.Describe("BuildRequest", func() {
		ginkgo.It("creates an order signed over the documented field order", func() {
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
			gomega.Expect(result.TransactionID).To(gomega.Equal("INV-2024-007-MOMO-1712345678901"))
			gomega.Expect(result.PaymentURL).To(gomega.Equal("https://test-payment.momo.vn/pay/abc123"))
			gomega.Expect(result.Deeplink).To(gomega.Equal("momo://pay?t=abc123"))

			gomega.Expect(received.PartnerCode).To(gomega.Equal("MOMOTEST"))
			gomega.Expect(received.Amount).To(gomega.Equal(int64(150000)))
			gomega.Expect(received.OrderID).To(gomega.Equal("INV-2024-007-MOMO-1712345678901"))
			gomega.Expect(received.RequestType).To(gomega.Equal("captureWallet"))
			gomega.Expect(received.AutoCapture).To(gomega.BeTrue())
			gomega.Expect(received.Signature).To(gomega.Equal(
				"d2bce2fa408e9406b8af63341bcfe0f494e388f4026bd713e3c5268cfd17b929"))
		})

		ginkgo.It("surfaces a gateway rejection without a payment URL", func() {
			rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(momoCreateResponse{ResultCode: 41, Message: "duplicate orderId"})
			}))
			defer rejecting.Close()
			cfg.Endpoint = rejecting.URL
			adapter = NewMoMo(cfg, slog.Default(), rejecting.Client())

			result, err := adapter.BuildRequest(context.Background(), Intent{InvoiceNumber: "INV-2024-007", AmountVND: 150000})

			gomega.Expect(result).To(gomega.BeNil())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeGatewayRejected))
		})

		ginkgo.It("reports an unreachable gateway as an external error", func() {
			cfg.Endpoint = "http://127.0.0.1:1"
			adapter = NewMoMo(cfg, slog.Default(), nil)

			_, err := adapter.BuildRequest(context.Background(), Intent{InvoiceNumber: "INV-2024-007", AmountVND: 150000})

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeGatewayUnreachable))
		})
	})

	ginkgo.Describe("VerifyWebhook", func() {
		ipnBody := func() map[string]interface{} {
			return map[string]interface{}{
				"partnerCode":  "MOMOTEST",
				"orderId":      "INV-2024-007-MOMO-1712345678901",
				"requestId":    "INV-2024-007-MOMO-1712345678901",
				"amount":       150000,
				"orderInfo":    "Thanh toan hoa don INV-2024-007",
				"orderType":    "momo_wallet",
				"transId":      4088878653,
				"resultCode":   0,
				"message":      "Successful.",
				"payType":      "qr",
				"responseTime": 1712345690000,
				"extraData":    "",
				"signature":    "72ef338e48998112818b27d541d251398a90bdda036e2b61582ea5b0f31fe996",
			}
		}

		postIPN := func(body map[string]interface{}) *Notification {
			payload, err := json.Marshal(body)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			req := httptest.NewRequest("POST", "/api/v1/payments/webhook?gateway=momo", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")

			notification, err := adapter.VerifyWebhook(req)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			return notification
		}

		ginkgo.It("verifies a correctly signed IPN with numeric wire fields", func() {
			notification := postIPN(ipnBody())

			gomega.Expect(notification.SignatureValid).To(gomega.BeTrue())
			gomega.Expect(notification.Success).To(gomega.BeTrue())
			gomega.Expect(notification.AmountVND).To(gomega.Equal(int64(150000)))
			gomega.Expect(notification.TransactionID).To(gomega.Equal("INV-2024-007-MOMO-1712345678901"))
			gomega.Expect(notification.GatewayTransactionNo).To(gomega.Equal("4088878653"))
			gomega.Expect(notification.InvoiceNumber).To(gomega.Equal("INV-2024-007"))
		})

		ginkgo.It("rejects an IPN with a tampered amount", func() {
			body := ipnBody()
			body["amount"] = 1

			notification := postIPN(body)

			gomega.Expect(notification.SignatureValid).To(gomega.BeFalse())
			gomega.Expect(notification.Success).To(gomega.BeFalse())
		})

		ginkgo.It("treats a signed non-zero result code as a failed payment", func() {
			body := ipnBody()
			body["resultCode"] = 1006
			body["message"] = "Transaction denied by user."
			fields := map[string]string{
				"accessKey":    cfg.AccessKey,
				"amount":       "150000",
				"extraData":    "",
				"message":      "Transaction denied by user.",
				"orderId":      "INV-2024-007-MOMO-1712345678901",
				"orderInfo":    "Thanh toan hoa don INV-2024-007",
				"orderType":    "momo_wallet",
				"partnerCode":  "MOMOTEST",
				"payType":      "qr",
				"requestId":    "INV-2024-007-MOMO-1712345678901",
				"responseTime": "1712345690000",
				"resultCode":   "1006",
				"transId":      "4088878653",
			}
			body["signature"] = SignSHA256(cfg.SecretKey, CanonicalFixed(momoIPNSignatureOrder, fields))

			notification := postIPN(body)

			gomega.Expect(notification.SignatureValid).To(gomega.BeTrue())
			gomega.Expect(notification.Success).To(gomega.BeFalse())
			gomega.Expect(notification.ResultCode).To(gomega.Equal("1006"))
		})

		ginkgo.It("refuses non-POST notifications", func() {
			req := httptest.NewRequest("GET", "/api/v1/payments/webhook?gateway=momo", nil)

			notification, err := adapter.VerifyWebhook(req)

			gomega.Expect(notification).To(gomega.BeNil())
			gomega.Expect(err).To(gomega.MatchError(ErrMethodNotAllowed))
		})
	})

	ginkgo.Describe("Acks", func() {
		ginkgo.It("acknowledges received notifications with 204 and no body", func() {
			ack := adapter.AckReceived()
			gomega.Expect(ack.StatusCode).To(gomega.Equal(204))
			gomega.Expect(ack.Body).To(gomega.BeNil())
		})

		ginkgo.It("rejects invalid notifications with a generic 400", func() {
			ack := adapter.AckInvalid()
			gomega.Expect(ack.StatusCode).To(gomega.Equal(400))
		})
	})
})
