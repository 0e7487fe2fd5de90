// Package webhook receives asynchronous callbacks from external services.
// Handlers here run without the owner cookie middleware; each one
// authenticates the caller itself (the payment gateway signs its payloads).
package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/arunika-id/arunika/internal/billing"
	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/handler"
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/service"
	"github.com/arunika-id/arunika/internal/telemetry"
)

// PaymentHandler processes payment gateway notification callbacks.
type PaymentHandler struct {
	orders service.OrderService
}

// NewPaymentHandler creates a new PaymentHandler instance
func NewPaymentHandler(orders service.OrderService) *PaymentHandler {
	return &PaymentHandler{orders: orders}
}

// HandleNotification handles POST /webhooks/payment.
//
// The gateway redelivers until it sees a 2xx, so the response code is the
// retry contract: signature and payload problems are rejected permanently
// (401/400), unknown orders 404, and anything the reconciler absorbed
// acknowledges with 200 so redelivery stops.
func (h *PaymentHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := middleware.GetLogger(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.payment", "Error reading request body"))
		return
	}

	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.Observe(time.Since(start).Seconds())
		}
	}()

	order, err := h.orders.ReconcileNotification(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			logger.Warn("notification signature rejected", "remote", middleware.GetClientIP(r))
			handler.ErrorResponse(w, r, domain.WrapError(err, domain.EUNAUTHORIZED, "webhook.payment", "Invalid notification signature"))
		case errors.Is(err, billing.ErrMalformedNotification):
			handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.payment", "Malformed notification payload"))
		default:
			handler.ErrorResponse(w, r, err)
		}
		return
	}

	logger.Info("notification reconciled",
		"order_number", order.OrderNumber,
		"payment_status", order.PaymentStatus,
		"amount_paid", order.AmountPaid,
	)
	handler.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
