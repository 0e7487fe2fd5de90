package routes

import (
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
// These routes handle incoming callbacks from external services.
//
// Note: Webhook routes do NOT use the owner cookie middleware.
// Each webhook handler is responsible for verifying the request
// signature (the payment gateway signs every notification).
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/payment", deps.PaymentHandler.HandleNotification,
		middleware.MaxBodySize(middleware.WebhookMaxBodySize))
}
