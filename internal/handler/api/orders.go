package api

import (
	"net/http"

	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/handler"
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/service"
)

// OrderHandler serves the order lifecycle endpoints.
type OrderHandler struct {
	orders   service.OrderService
	invoices service.InvoiceService
}

// NewOrderHandler creates a new OrderHandler instance
func NewOrderHandler(orders service.OrderService, invoices service.InvoiceService) *OrderHandler {
	return &OrderHandler{orders: orders, invoices: invoices}
}

type shippingSelectionRequest struct {
	CarrierCode   string `json:"carrier_code" validate:"required"`
	ServiceCode   string `json:"service_code" validate:"required"`
	Description   string `json:"description"`
	Cost          int64  `json:"cost" validate:"gte=0"`
	PostalCode    string `json:"postal_code" validate:"required,len=5,numeric"`
	AddressLine   string `json:"address_line" validate:"required"`
	RecipientName string `json:"recipient_name" validate:"required"`
	EtdMinDays    int    `json:"etd_min_days"`
	EtdMaxDays    int    `json:"etd_max_days"`
}

type createOrderRequest struct {
	Shipping      *shippingSelectionRequest `json:"shipping,omitempty"`
	PaymentOption string                    `json:"payment_option" validate:"required,oneof=full down_payment"`
	CustomData    map[string]string         `json:"custom_data,omitempty"`
	CustomerName  string                    `json:"customer_name,omitempty"`
	CustomerEmail string                    `json:"customer_email,omitempty" validate:"omitempty,email"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type advanceFulfillmentRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrder handles POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	params := service.CreateOrderParams{
		OwnerID:       middleware.GetOwnerID(r.Context()),
		PaymentOption: domain.PaymentOption(req.PaymentOption),
		CustomData:    req.CustomData,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	}
	if req.Shipping != nil {
		params.Shipping = &domain.ShippingSelection{
			CarrierCode:   req.Shipping.CarrierCode,
			ServiceCode:   req.Shipping.ServiceCode,
			Description:   req.Shipping.Description,
			Cost:          req.Shipping.Cost,
			PostalCode:    req.Shipping.PostalCode,
			AddressLine:   req.Shipping.AddressLine,
			RecipientName: req.Shipping.RecipientName,
			EtdMinDays:    req.Shipping.EtdMinDays,
			EtdMaxDays:    req.Shipping.EtdMaxDays,
		}
	}

	conf, err := h.orders.CreateOrder(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, conf)
}

// ownedOrder resolves the order in the path and hides it behind a
// not-found unless it belongs to the cookie identity on the request.
// Order numbers are sequential and trivially guessable, so every
// customer-facing order operation goes through this check.
func (h *OrderHandler) ownedOrder(r *http.Request) (*domain.Order, error) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("number"))
	if err != nil {
		return nil, err
	}
	if order.OwnerID != middleware.GetOwnerID(r.Context()) {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetOrder handles GET /api/orders/{number}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ownedOrder(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, order)
}

// RequestPaymentSession handles POST /api/orders/{number}/payment-session
func (h *OrderHandler) RequestPaymentSession(w http.ResponseWriter, r *http.Request) {
	order, err := h.ownedOrder(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	session, err := h.orders.RequestPaymentSession(r.Context(), order.OrderNumber)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, session)
}

// Cancel handles POST /api/orders/{number}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.ownedOrder(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cancelled, err := h.orders.Cancel(r.Context(), order.OrderNumber, req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, cancelled)
}

// AdvanceFulfillment handles POST /ops/orders/{number}/fulfillment.
// This is a back-office operation; the route carries the operator key
// middleware and is not owner-scoped.
func (h *OrderHandler) AdvanceFulfillment(w http.ResponseWriter, r *http.Request) {
	var req advanceFulfillmentRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.AdvanceFulfillment(r.Context(), r.PathValue("number"), domain.OrderStatus(req.Status))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, order)
}

// Invoice handles GET /api/orders/{number}/invoice
func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	order, err := h.ownedOrder(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	invoice, err := h.invoices.Generate(r.Context(), order.OrderNumber)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, invoice)
}
