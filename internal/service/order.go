package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/billing"
	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/notify"
	"github.com/arunika-id/arunika/internal/store"
	"github.com/arunika-id/arunika/internal/telemetry"
)

// CreateOrderParams describes one checkout submission.
type CreateOrderParams struct {
	OwnerID       string
	Shipping      *domain.ShippingSelection
	PaymentOption domain.PaymentOption
	CustomData    map[string]string
	CustomerName  string
	CustomerEmail string
}

// OrderConfirmation is the checkout result. Session is nil when the
// gateway was unavailable; the order still exists and a session can be
// requested again later.
type OrderConfirmation struct {
	Order   *domain.Order
	Session *domain.PaymentSession
}

// OrderService owns the order lifecycle: creation from a cart, payment
// sessions, callback reconciliation, cancellation, and fulfillment.
type OrderService interface {
	// CreateOrder converts the owner's cart into an order, clears the
	// cart, and opens the initial payment session.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*OrderConfirmation, error)

	// GetOrder resolves an order by its human-readable number.
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error)

	// RequestPaymentSession returns a live payment session for the
	// order's current collectible amount, creating one if needed.
	RequestPaymentSession(ctx context.Context, orderNumber string) (*domain.PaymentSession, error)

	// ReconcileNotification applies a raw gateway callback payload to
	// the order it references. Safe under redelivery and concurrency.
	ReconcileNotification(ctx context.Context, payload []byte) (*domain.Order, error)

	// Cancel cancels an order that has not entered fulfillment.
	Cancel(ctx context.Context, orderNumber, reason string) (*domain.Order, error)

	// AdvanceFulfillment moves the order one step forward along
	// processing -> packing -> shipped -> completed.
	AdvanceFulfillment(ctx context.Context, orderNumber string, target domain.OrderStatus) (*domain.Order, error)
}

// OrderConfig carries the tunables of the order lifecycle.
type OrderConfig struct {
	// DownPaymentPercent of the total collected as the first payment
	// for down-payment orders.
	DownPaymentPercent int64

	// SessionExpiry bounds how long a payment session stays payable.
	SessionExpiry time.Duration
}

type orderService struct {
	store    store.Store
	gateway  billing.Provider
	notifier notify.Notifier
	cfg      OrderConfig
	logger   *slog.Logger
}

// NewOrderService creates a new OrderService instance
func NewOrderService(st store.Store, gateway billing.Provider, notifier notify.Notifier, cfg OrderConfig, logger *slog.Logger) OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if cfg.DownPaymentPercent <= 0 || cfg.DownPaymentPercent > 100 {
		cfg.DownPaymentPercent = 50
	}
	if cfg.SessionExpiry <= 0 {
		cfg.SessionExpiry = 24 * time.Hour
	}
	return &orderService{store: st, gateway: gateway, notifier: notifier, cfg: cfg, logger: logger}
}

func (s *orderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*OrderConfirmation, error) {
	if !domain.ValidPaymentOption(string(params.PaymentOption)) {
		return nil, domain.ErrInvalidPaymentOption
	}

	cart, err := s.store.GetCart(ctx, params.OwnerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	if cart.RequiresShipping() && params.Shipping == nil {
		return nil, domain.ErrShippingRequired
	}

	var shippingCost int64
	if params.Shipping != nil {
		if params.Shipping.Cost < 0 {
			return nil, domain.ErrInvalidShippingCost
		}
		shippingCost = params.Shipping.Cost
	}

	now := time.Now()
	order := &domain.Order{
		ID:            uuid.New(),
		OwnerID:       params.OwnerID,
		Items:         freezeItems(cart.Items),
		Shipping:      params.Shipping,
		Subtotal:      cart.Subtotal,
		ShippingCost:  shippingCost,
		TotalAmount:   cart.Subtotal + shippingCost,
		OrderStatus:   domain.OrderStatusPendingPayment,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentOption: params.PaymentOption,
		CustomData:    params.CustomData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := s.store.DeleteCart(ctx, params.OwnerID); err != nil {
		// Order exists; a stale cart is recoverable. Log and move on.
		s.logger.Error("failed to clear cart after order creation",
			"order_number", order.OrderNumber, "error", err)
	}

	logger := s.logger.With("order_number", order.OrderNumber, "owner_id", params.OwnerID)
	logger.Info("order created",
		"total_amount", order.TotalAmount,
		"payment_option", order.PaymentOption,
		"item_count", len(order.Items),
	)

	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.WithLabelValues(string(order.PaymentOption)).Inc()
		telemetry.Business.OrderValue.Observe(float64(order.TotalAmount))
		telemetry.Business.CartValue.Observe(float64(order.Subtotal))
	}
	s.publish(ctx, notify.EventOrderCreated, order)

	session, err := s.openSession(ctx, order, params.CustomerName, params.CustomerEmail)
	if err != nil {
		// The order stands; the customer retries payment from the order
		// page once the gateway recovers.
		logger.Error("failed to open initial payment session", "error", err)
		return &OrderConfirmation{Order: order}, nil
	}
	return &OrderConfirmation{Order: order, Session: session}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.store.GetOrderByNumber(ctx, orderNumber)
}

func (s *orderService) RequestPaymentSession(ctx context.Context, orderNumber string) (*domain.PaymentSession, error) {
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == domain.OrderStatusCancelled || order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, domain.ErrOrderNotPayable
	}

	// Reuse a live session so two tabs cannot hold sessions quoting
	// different amounts.
	active, err := s.store.ActiveSession(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	amount := s.collectibleAmount(order)
	if active != nil && active.Active(time.Now()) && active.Amount == amount {
		return active, nil
	}

	return s.openSession(ctx, order, "", "")
}

// collectibleAmount is what the next payment session should charge: the
// down payment for an unpaid down-payment order, otherwise the balance.
func (s *orderService) collectibleAmount(order *domain.Order) int64 {
	if order.PaymentOption == domain.PaymentOptionDownPayment && order.AmountPaid == 0 {
		return order.DownPaymentAmount(s.cfg.DownPaymentPercent)
	}
	return order.RemainingBalance()
}

// openSession registers a transaction with the gateway and replaces any
// prior session. The gateway reference reuses the order number for the
// first session; retries get a unique suffix because the gateway
// rejects duplicate references.
func (s *orderService) openSession(ctx context.Context, order *domain.Order, name, email string) (*domain.PaymentSession, error) {
	gatewayRef := order.OrderNumber
	prior, err := s.store.ActiveSession(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if prior != nil || len(order.Payments) > 0 {
		gatewayRef = fmt.Sprintf("%s-R%d", order.OrderNumber, time.Now().Unix())
	}

	amount := s.collectibleAmount(order)
	created, err := s.gateway.CreateSession(ctx, billing.CreateSessionParams{
		OrderNumber:   gatewayRef,
		Amount:        amount,
		CustomerName:  name,
		CustomerEmail: email,
		Expiry:        s.cfg.SessionExpiry,
	})
	if err != nil {
		if billing.IsTemporary(err) {
			return nil, domain.WrapError(err, domain.EUNAVAILABLE, "order.session", "Payment gateway temporarily unavailable")
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, "order.session", "Payment gateway rejected the transaction")
	}

	session := &domain.PaymentSession{
		Token:       created.Token,
		RedirectURL: created.RedirectURL,
		OrderID:     order.ID,
		Amount:      amount,
		ExpiresAt:   created.ExpiresAt,
		CreatedAt:   time.Now(),
	}
	if err := s.store.ReplaceSession(ctx, order.ID, session); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentSessionsCreated.Inc()
	}
	s.logger.Info("payment session opened",
		"order_number", order.OrderNumber,
		"gateway_ref", gatewayRef,
		"amount", amount,
	)
	return session, nil
}

// orderNumberPattern extracts the order number from a gateway reference,
// which may carry a retry suffix ("ORD-000042-R1724031022").
var orderNumberPattern = regexp.MustCompile(`^ORD-\d{6}`)

func orderNumberFromGatewayRef(ref string) string {
	if m := orderNumberPattern.FindString(ref); m != "" {
		return m
	}
	return ref
}

// reconcileResult carries what the reconciliation closure decided, so
// side effects (events, metrics, session invalidation) run after the
// order lock is released.
type reconcileResult struct {
	duplicate bool
	applied   int64
	excess    int64
	paidFull  bool
	failed    bool
	integrity string
}

func (s *orderService) ReconcileNotification(ctx context.Context, payload []byte) (*domain.Order, error) {
	notification, err := s.gateway.DecodeNotification(payload)
	if err != nil {
		if telemetry.Business != nil {
			reason := "malformed"
			if errors.Is(err, billing.ErrInvalidSignature) {
				reason = "bad_signature"
			}
			telemetry.Business.WebhookRejected.WithLabelValues(reason).Inc()
		}
		return nil, err
	}
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(string(notification.Outcome)).Inc()
	}

	orderNumber := orderNumberFromGatewayRef(notification.OrderNumber)
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(
		"order_number", orderNumber,
		"gateway_ref", notification.GatewayRef,
		"outcome", notification.Outcome,
		"amount", notification.Amount,
	)

	var res reconcileResult
	updated, err := s.store.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
		res = reconcileResult{}
		if o.HasPayment(notification.GatewayRef) {
			res.duplicate = true
			return nil
		}

		switch notification.Outcome {
		case domain.OutcomePending:
			// The customer has not finished paying. Nothing changes.
			return nil

		case domain.OutcomeFailure:
			// A failed or expired attempt only matters while nothing has
			// been collected; a partially paid order keeps its progress.
			if o.AmountPaid == 0 && !o.OrderStatus.Terminal() {
				o.PaymentStatus = domain.PaymentStatusFailed
				res.failed = true
			}
			return nil

		case domain.OutcomeSuccess:
			if o.OrderStatus == domain.OrderStatusCancelled {
				res.integrity = "cancelled_order"
				return nil
			}
			if o.PaymentOption == domain.PaymentOptionDownPayment && o.AmountPaid == 0 {
				// Every session amount is derived here, so the first
				// confirmation can only ever quote the exact fraction.
				// Anything else is a gateway anomaly or a replay.
				if notification.Amount != o.DownPaymentAmount(s.cfg.DownPaymentPercent) {
					res.integrity = "amount_mismatch"
					return nil
				}
			}

			applied := notification.Amount
			if remaining := o.RemainingBalance(); applied > remaining {
				res.excess = applied - remaining
				applied = remaining
				o.ExcessPaid += res.excess
			}
			o.AmountPaid += applied
			o.Payments = append(o.Payments, domain.PaymentRecord{
				GatewayRef: notification.GatewayRef,
				Amount:     notification.Amount,
				AppliedAt:  time.Now(),
			})
			if o.AmountPaid >= o.TotalAmount {
				o.PaymentStatus = domain.PaymentStatusPaid
				res.paidFull = true
				// Fulfillment starts only once the order is fully paid. A
				// down payment alone leaves the order awaiting its balance.
				if o.OrderStatus == domain.OrderStatusPendingPayment {
					o.OrderStatus = domain.OrderStatusProcessing
				}
			} else {
				o.PaymentStatus = domain.PaymentStatusPartiallyPaid
			}
			res.applied = applied
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case res.duplicate:
		logger.Info("duplicate notification skipped")
		if telemetry.Business != nil {
			telemetry.Business.PaymentDuplicates.Inc()
		}

	case res.integrity != "":
		// Absorbed: acknowledged to stop redelivery, surfaced for operators.
		logger.Error("notification absorbed as integrity violation", "kind", res.integrity)
		if telemetry.Business != nil {
			telemetry.Business.PaymentIntegrityErrors.WithLabelValues(res.integrity).Inc()
		}

	case res.failed:
		logger.Warn("payment failed")
		if telemetry.Business != nil {
			telemetry.Business.PaymentFailed.Inc()
		}
		s.publish(ctx, notify.EventOrderFailed, updated)

	case res.applied > 0 || res.excess > 0:
		if res.excess > 0 {
			logger.Warn("overpayment clamped", "excess", res.excess)
			if telemetry.Business != nil {
				telemetry.Business.PaymentIntegrityErrors.WithLabelValues("overpayment").Inc()
			}
		}
		logger.Info("payment applied",
			"applied", res.applied,
			"amount_paid", updated.AmountPaid,
			"payment_status", updated.PaymentStatus,
		)
		if telemetry.Business != nil {
			telemetry.Business.PaymentSucceeded.WithLabelValues(string(updated.PaymentOption)).Inc()
			telemetry.Business.RevenueCollected.Add(float64(res.applied))
		}
		if err := s.store.InvalidateSessions(ctx, updated.ID); err != nil {
			logger.Error("failed to invalidate sessions", "error", err)
		}
		event := notify.EventOrderPartially
		if res.paidFull {
			event = notify.EventOrderPaid
		}
		s.publish(ctx, event, updated)
	}

	return updated, nil
}

func (s *orderService) Cancel(ctx context.Context, orderNumber, reason string) (*domain.Order, error) {
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
		if o.OrderStatus.Terminal() {
			return domain.ErrInvalidTransition
		}
		if !o.OrderStatus.Cancellable() {
			return domain.ErrCannotCancelShipped
		}
		o.OrderStatus = domain.OrderStatusCancelled
		o.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.InvalidateSessions(ctx, updated.ID); err != nil {
		s.logger.Error("failed to invalidate sessions on cancel",
			"order_number", orderNumber, "error", err)
	}

	hadPayment := "no"
	if updated.AmountPaid > 0 {
		hadPayment = "yes"
	}
	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues(hadPayment).Inc()
	}
	s.logger.Info("order cancelled",
		"order_number", orderNumber,
		"reason", reason,
		"amount_paid", updated.AmountPaid,
	)
	s.publish(ctx, notify.EventOrderCancelled, updated)
	return updated, nil
}

func (s *orderService) AdvanceFulfillment(ctx context.Context, orderNumber string, target domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidOrderStatus(string(target)) {
		return nil, domain.Invalid("order.advance", "Unknown order status")
	}

	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
		if !o.OrderStatus.CanAdvance(target) {
			return domain.ErrInvalidTransition
		}
		if target == domain.OrderStatusCompleted && o.RemainingBalance() > 0 {
			return domain.ErrBalanceOutstanding
		}
		o.OrderStatus = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.FulfillmentSteps.WithLabelValues(string(target)).Inc()
		if target == domain.OrderStatusCompleted {
			telemetry.Business.OrdersFulfilled.WithLabelValues(string(updated.PaymentOption)).Inc()
		}
	}
	s.logger.Info("order advanced", "order_number", orderNumber, "order_status", target)
	s.publish(ctx, notify.EventOrderAdvanced, updated)
	return updated, nil
}

func (s *orderService) publish(ctx context.Context, event string, order *domain.Order) {
	if err := s.notifier.Publish(ctx, event, orderEvent(order)); err != nil {
		s.logger.Error("failed to publish event",
			"event", event, "order_number", order.OrderNumber, "error", err)
	}
}

// orderEvent is the wire form of order lifecycle events.
func orderEvent(o *domain.Order) map[string]any {
	return map[string]any{
		"order_number":   o.OrderNumber,
		"owner_id":       o.OwnerID,
		"order_status":   o.OrderStatus,
		"payment_status": o.PaymentStatus,
		"total_amount":   o.TotalAmount,
		"amount_paid":    o.AmountPaid,
	}
}

func freezeItems(items []domain.CartItem) []domain.OrderItem {
	frozen := make([]domain.OrderItem, len(items))
	for i, item := range items {
		frozen[i] = domain.OrderItem{
			ID:            item.ID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			UnitWeight:    item.UnitWeight,
			AddOns:        append([]domain.AddOn(nil), item.AddOns...),
			Customization: item.Customization,
			LineSubtotal:  item.LineSubtotal,
		}
	}
	return frozen
}
