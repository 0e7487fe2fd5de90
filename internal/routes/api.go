package routes

import (
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/router"
)

// RegisterAPIRoutes registers the storefront JSON API.
// All routes assume the owner middleware ran in the global chain; the
// recovery routes additionally carry a strict per-IP rate limit because
// tokens arrive via emailed links and could be probed.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Cart
	r.Get("/api/cart", deps.CartHandler.GetCart)
	r.Delete("/api/cart", deps.CartHandler.Clear)
	r.Post("/api/cart/items", deps.CartHandler.AddItem)
	r.Patch("/api/cart/items/{id}", deps.CartHandler.UpdateItem)
	r.Delete("/api/cart/items/{id}", deps.CartHandler.RemoveItem)

	// Shipping quotes
	r.Get("/api/shipping/quotes", deps.CheckoutHandler.ShippingQuotes)

	// Orders. Fulfillment advancement is deliberately absent here; it is
	// a back-office operation registered on the ops surface.
	r.Post("/api/orders", deps.OrderHandler.CreateOrder)
	r.Get("/api/orders/{number}", deps.OrderHandler.GetOrder)
	r.Post("/api/orders/{number}/payment-session", deps.OrderHandler.RequestPaymentSession)
	r.Post("/api/orders/{number}/cancel", deps.OrderHandler.Cancel)
	r.Get("/api/orders/{number}/invoice", deps.OrderHandler.Invoice)

	// Abandoned-cart recovery
	recoveryLimit := middleware.RateLimit(middleware.StrictRateLimiterConfig())
	r.Get("/api/cart/recover/{token}", deps.RecoveryHandler.Preview, recoveryLimit)
	r.Post("/api/cart/recover/{token}", deps.RecoveryHandler.Redeem, recoveryLimit)
}
