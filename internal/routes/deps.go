// Package routes mounts the HTTP surface: storefront API, gateway
// webhooks, and operational endpoints.
package routes

import (
	"net/http"

	"github.com/arunika-id/arunika/internal/handler/api"
	"github.com/arunika-id/arunika/internal/handler/webhook"
)

// APIDeps contains dependencies for the storefront API routes.
type APIDeps struct {
	// Cart
	CartHandler *api.CartHandler

	// Shipping quotes
	CheckoutHandler *api.CheckoutHandler

	// Orders (create, detail, payment session, cancel, invoice)
	OrderHandler *api.OrderHandler

	// Abandoned-cart recovery links
	RecoveryHandler *api.RecoveryHandler
}

// WebhookDeps contains dependencies for webhook routes.
type WebhookDeps struct {
	PaymentHandler *webhook.PaymentHandler
}

// OpsDeps contains dependencies for operational routes.
type OpsDeps struct {
	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler

	// Healthcheck reports process liveness.
	Healthcheck http.HandlerFunc

	// FulfillmentHandler advances an order through the fulfillment chain.
	FulfillmentHandler http.HandlerFunc

	// OperatorAuth guards the back-office endpoints.
	OperatorAuth func(http.Handler) http.Handler
}
