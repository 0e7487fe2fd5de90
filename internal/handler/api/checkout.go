package api

import (
	"net/http"

	"github.com/arunika-id/arunika/internal/handler"
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/service"
)

// CheckoutHandler serves shipping quote lookups for the current cart.
type CheckoutHandler struct {
	checkout service.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler instance
func NewCheckoutHandler(checkout service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// ShippingQuotes handles GET /api/shipping/quotes?postal_code=40115&carrier=jne
func (h *CheckoutHandler) ShippingQuotes(w http.ResponseWriter, r *http.Request) {
	postalCode := r.URL.Query().Get("postal_code")
	carrier := r.URL.Query().Get("carrier")

	quotes, err := h.checkout.GetShippingQuotes(r.Context(), middleware.GetOwnerID(r.Context()), postalCode, carrier)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]interface{}{
		"quotes": quotes,
	})
}
