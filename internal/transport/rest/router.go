package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/mekongagency/payment-hub/internal/gateway"
	"github.com/mekongagency/payment-hub/internal/payment"
	"github.com/mekongagency/payment-hub/internal/transport/middleware"
)

// RegisterAllRoutes mounts the payment API under /api/v1. The webhook
// route accepts both GET and POST because gateways disagree on the
// notification method; each adapter enforces its own.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, registry *gateway.Registry, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, registry)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/payments", func(pr chi.Router) {
			pr.Get("/webhook", webhookHandler.HandleWebhook)
			pr.Post("/webhook", webhookHandler.HandleWebhook)

			pr.Post("/{gateway}", paymentHandler.CreatePayment)
		})
	})
}
