// Package api contains the JSON handlers of the storefront order API.
package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/handler"
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/service"
)

// CartHandler serves the cart endpoints.
type CartHandler struct {
	carts service.CartService
}

// NewCartHandler creates a new CartHandler instance
func NewCartHandler(carts service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type addItemRequest struct {
	VariantID     string            `json:"variant_id" validate:"required"`
	Quantity      int32             `json:"quantity" validate:"required,gt=0"`
	AddOnIDs      []string          `json:"add_on_ids,omitempty"`
	Customization map[string]string `json:"customization,omitempty"`
}

type updateQuantityRequest struct {
	Quantity int32 `json:"quantity" validate:"gte=0"`
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), middleware.GetOwnerID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), middleware.GetOwnerID(r.Context()), service.AddItemParams{
		VariantID:     req.VariantID,
		Quantity:      req.Quantity,
		AddOnIDs:      req.AddOnIDs,
		Customization: req.Customization,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, cart)
}

// UpdateItem handles PATCH /api/cart/items/{id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("cart.update", "Item id is not a valid UUID"))
		return
	}

	var req updateQuantityRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.UpdateItemQuantity(r.Context(), middleware.GetOwnerID(r.Context()), itemID, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("cart.remove", "Item id is not a valid UUID"))
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), middleware.GetOwnerID(r.Context()), itemID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, cart)
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Clear(r.Context(), middleware.GetOwnerID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, cart)
}
