package payment_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"os"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/core/datamodel/invoice"
	"github.com/mekongagency/payment-hub/internal/core/datamodel/transaction"
	"github.com/mekongagency/payment-hub/internal/gateway"
	paymentpkg "github.com/mekongagency/payment-hub/internal/payment"
)

var _ = ginkgo.Describe("WebhookHandler", func() {
	var (
		handler  *paymentpkg.WebhookHandler
		txnRepo  *mockTransactionRepository
		invRepo  *mockInvoiceRepository
		eventPub *mockEventPublisher
		vnpayCfg internal.VNPayConfig
		momoCfg  internal.MoMoConfig
		payosCfg internal.PayOSConfig
	)

	ginkgo.BeforeEach(func() {
		vnpayCfg = internal.VNPayConfig{
			TmnCode:    "DEMO1234",
			HashSecret: "VNPAYSECRETKEY2024",
			PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "https://hub.example.com/portal/payment-result.html",
		}
		momoCfg = internal.MoMoConfig{
			PartnerCode: "MOMOTEST",
			AccessKey:   "F8BBA842ECF85",
			SecretKey:   "momo-test-secret",
		}
		payosCfg = internal.PayOSConfig{
			ClientID:    "payos-client-id",
			APIKey:      "payos-api-key",
			ChecksumKey: "payos-checksum-key",
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		registry := gateway.NewRegistry(
			gateway.NewVNPay(vnpayCfg, logger),
			gateway.NewMoMo(momoCfg, logger, nil),
			gateway.NewPayOS(payosCfg, logger, nil),
		)

		txnRepo = newMockTransactionRepository()
		invRepo = newMockInvoiceRepository()
		eventPub = &mockEventPublisher{}

		invoiceID := "inv-007"
		invRepo.add(&invoice.Invoice{
			ID:            invoiceID,
			InvoiceNumber: "INV-2024-007",
			AmountVND:     150000,
			Status:        invoice.StatusPending,
		})
		txnRepo.Create(&transaction.GatewayTransaction{
			TransactionID: "INV-2024-007-VNPAY-1712345678901",
			Gateway:       "vnpay",
			InvoiceID:     &invoiceID,
			AmountVND:     150000,
			Status:        transaction.StatusPending,
		})

		reconciler := paymentpkg.NewInvoiceReconciler(invRepo, eventPub, logger)
		service := paymentpkg.NewService(registry, txnRepo, invRepo, reconciler, eventPub, logger)
		handler = paymentpkg.NewWebhookHandler(registry, service)
	})

	signedVNPayQuery := func(responseCode string) string {
		params := map[string]string{
			"vnp_TmnCode":       "DEMO1234",
			"vnp_Amount":        "15000000",
			"vnp_TxnRef":        "INV-2024-007-VNPAY-1712345678901",
			"vnp_ResponseCode":  responseCode,
			"vnp_TransactionNo": "14226112",
		}
		hash := gateway.SignSHA512(vnpayCfg.HashSecret, gateway.CanonicalQuery(params))

		values := url.Values{}
		for key, value := range params {
			values.Set(key, value)
		}
		values.Set("vnp_SecureHash", hash)
		values.Set("gateway", "vnpay")
		return values.Encode()
	}

	ginkgo.Context("when a valid vnpay IPN arrives over GET", func() {
		ginkgo.It("settles the payment and confirms with the vnpay envelope", func() {
			req := httptest.NewRequest("GET", "/api/v1/payments/webhook?"+signedVNPayQuery("00"), nil)
			rec := httptest.NewRecorder()

			handler.HandleWebhook(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(200))

			var body map[string]string
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(gomega.Succeed())
			gomega.Expect(body).To(gomega.HaveKeyWithValue("RspCode", "00"))

			inv, _ := invRepo.GetByID("inv-007")
			gomega.Expect(inv.Status).To(gomega.Equal(invoice.StatusPaid))
		})
	})

	ginkgo.Context("when the same IPN is replayed", func() {
		ginkgo.It("still confirms so the gateway stops retrying", func() {
			first := httptest.NewRequest("GET", "/api/v1/payments/webhook?"+signedVNPayQuery("00"), nil)
			handler.HandleWebhook(httptest.NewRecorder(), first)

			replay := httptest.NewRequest("GET", "/api/v1/payments/webhook?"+signedVNPayQuery("00"), nil)
			rec := httptest.NewRecorder()
			handler.HandleWebhook(rec, replay)

			gomega.Expect(rec.Code).To(gomega.Equal(200))
			var body map[string]string
			json.Unmarshal(rec.Body.Bytes(), &body)
			gomega.Expect(body).To(gomega.HaveKeyWithValue("RspCode", "00"))
		})
	})

	postJSONWebhook := func(gatewayName string, payload interface{}) *httptest.ResponseRecorder {
		body, err := json.Marshal(payload)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		req := httptest.NewRequest("POST", "/api/v1/payments/webhook?gateway="+gatewayName, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)
		return rec
	}

	ginkgo.Context("when a valid momo IPN arrives over POST", func() {
		signedMoMoBody := func() map[string]interface{} {
			canonical := fmt.Sprintf(
				"accessKey=%s&amount=150000&extraData=&message=Successful.&orderId=INV-2024-007-MOMO-1712345678901&orderInfo=Thanh toan hoa don INV-2024-007&orderType=momo_wallet&partnerCode=%s&payType=qr&requestId=INV-2024-007-MOMO-1712345678901&responseTime=1712345690000&resultCode=0&transId=4088878653",
				momoCfg.AccessKey, momoCfg.PartnerCode)

			return map[string]interface{}{
				"partnerCode":  momoCfg.PartnerCode,
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
				"signature":    gateway.SignSHA256(momoCfg.SecretKey, canonical),
			}
		}

		ginkgo.It("settles the invoice exactly once and acks with 204", func() {
			rec := postJSONWebhook("momo", signedMoMoBody())

			gomega.Expect(rec.Code).To(gomega.Equal(204))

			inv, _ := invRepo.GetByID("inv-007")
			gomega.Expect(inv.Status).To(gomega.Equal(invoice.StatusPaid))
			firstPaidAt := *inv.PaidAt

			txn, err := txnRepo.GetByTransactionID("INV-2024-007-MOMO-1712345678901")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(txn.Status).To(gomega.Equal(transaction.StatusSuccess))

			replay := postJSONWebhook("momo", signedMoMoBody())
			gomega.Expect(replay.Code).To(gomega.Equal(204))

			inv, _ = invRepo.GetByID("inv-007")
			gomega.Expect(*inv.PaidAt).To(gomega.Equal(firstPaidAt))
		})
	})

	ginkgo.Context("when a valid payos webhook arrives over POST", func() {
		signedPayOSBody := func() map[string]interface{} {
			signature := gateway.SignSHA256(payosCfg.ChecksumKey, gateway.CanonicalPairs(map[string]string{
				"orderCode":           "345678901",
				"amount":              "150000",
				"description":         "Thanh toan hoa don INV-2024-007",
				"accountNumber":       "0123456789",
				"reference":           "FT2024001",
				"transactionDateTime": "2024-04-01 10:30:00",
				"currency":            "VND",
				"code":                "00",
				"desc":                "success",
			}))

			return map[string]interface{}{
				"code":    "00",
				"desc":    "success",
				"success": true,
				"data": map[string]interface{}{
					"orderCode":           345678901,
					"amount":              150000,
					"description":         "Thanh toan hoa don INV-2024-007",
					"accountNumber":       "0123456789",
					"reference":           "FT2024001",
					"transactionDateTime": "2024-04-01 10:30:00",
					"currency":            "VND",
					"code":                "00",
					"desc":                "success",
				},
				"signature": signature,
			}
		}

		ginkgo.It("settles the invoice exactly once and acks with the success envelope", func() {
			rec := postJSONWebhook("payos", signedPayOSBody())

			gomega.Expect(rec.Code).To(gomega.Equal(200))
			var body map[string]bool
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(gomega.Succeed())
			gomega.Expect(body).To(gomega.HaveKeyWithValue("success", true))

			inv, _ := invRepo.GetByID("inv-007")
			gomega.Expect(inv.Status).To(gomega.Equal(invoice.StatusPaid))
			firstPaidAt := *inv.PaidAt

			txn, err := txnRepo.GetByTransactionID("345678901")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(txn.Status).To(gomega.Equal(transaction.StatusSuccess))

			replay := postJSONWebhook("payos", signedPayOSBody())
			gomega.Expect(replay.Code).To(gomega.Equal(200))

			inv, _ = invRepo.GetByID("inv-007")
			gomega.Expect(*inv.PaidAt).To(gomega.Equal(firstPaidAt))
		})
	})

	ginkgo.Context("when the IPN signature is forged", func() {
		ginkgo.It("replies with the generic invalid-checksum envelope", func() {
			query := signedVNPayQuery("00")
			tampered := query + "&vnp_OrderInfo=injected"

			req := httptest.NewRequest("GET", "/api/v1/payments/webhook?"+tampered, nil)
			rec := httptest.NewRecorder()

			handler.HandleWebhook(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(200))
			var body map[string]string
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(gomega.Succeed())
			gomega.Expect(body).To(gomega.HaveKeyWithValue("RspCode", "97"))

			inv, _ := invRepo.GetByID("inv-007")
			gomega.Expect(inv.Status).To(gomega.Equal(invoice.StatusPending))
		})
	})

	ginkgo.Context("when the method does not match the gateway", func() {
		ginkgo.It("rejects a POST to the vnpay webhook", func() {
			req := httptest.NewRequest("POST", "/api/v1/payments/webhook?gateway=vnpay", nil)
			rec := httptest.NewRecorder()

			handler.HandleWebhook(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(405))
		})

		ginkgo.It("rejects a GET to the momo webhook", func() {
			req := httptest.NewRequest("GET", "/api/v1/payments/webhook?gateway=momo", nil)
			rec := httptest.NewRecorder()

			handler.HandleWebhook(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(405))
		})
	})

	ginkgo.Context("when the gateway parameter is unknown", func() {
		ginkgo.It("replies 404", func() {
			req := httptest.NewRequest("GET", "/api/v1/payments/webhook?gateway=stripe", nil)
			rec := httptest.NewRecorder()

			handler.HandleWebhook(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(404))
		})
	})
})
