package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order domain errors.
var (
	ErrOrderNotFound          = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrShippingRequired       = &Error{Code: EINVALID, Message: "Shipping selection required for carts with physical items"}
	ErrInvalidTransition      = &Error{Code: ECONFLICT, Message: "Invalid order status transition"}
	ErrCannotCancelShipped    = &Error{Code: ECONFLICT, Message: "Order has entered fulfillment and can no longer be cancelled"}
	ErrBalanceOutstanding     = &Error{Code: ECONFLICT, Message: "Order cannot complete while a balance remains unpaid"}
	ErrOrderNotPayable        = &Error{Code: ECONFLICT, Message: "Order is cancelled or already paid in full"}
	ErrInvoiceNotAvailable    = &Error{Code: EPAYMENT, Message: "Invoice is available once a payment has been confirmed"}
	ErrInvalidPaymentOption   = &Error{Code: EINVALID, Message: "Payment option must be full or down_payment"}
	ErrInvalidShippingCost    = &Error{Code: EINVALID, Message: "Shipping cost must not be negative"}
)

// OrderStatus is the fulfillment axis of an order's state.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusPacking        OrderStatus = "packing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Cancellable reports whether cancel() is still permitted from this status.
// Once packing begins the order is committed to fulfillment.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPendingPayment || s == OrderStatusProcessing
}

// nextFulfillment maps each fulfillment status to its single allowed successor.
var nextFulfillment = map[OrderStatus]OrderStatus{
	OrderStatusProcessing: OrderStatusPacking,
	OrderStatusPacking:    OrderStatusShipped,
	OrderStatusShipped:    OrderStatusCompleted,
}

// CanAdvance reports whether target is the immediate forward fulfillment step
// from the current status. Skipping steps or moving backward is never allowed.
func (s OrderStatus) CanAdvance(target OrderStatus) bool {
	next, ok := nextFulfillment[s]
	return ok && next == target
}

// ValidOrderStatus reports whether the string names a known order status.
func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPendingPayment, OrderStatusProcessing, OrderStatusPacking,
		OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the payment axis, tracked orthogonally to OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusFailed        PaymentStatus = "failed"
)

// PaymentOption selects how much of the total the first payment covers.
type PaymentOption string

const (
	PaymentOptionFull        PaymentOption = "full"
	PaymentOptionDownPayment PaymentOption = "down_payment"
)

// ValidPaymentOption reports whether the string names a known payment option.
func ValidPaymentOption(s string) bool {
	return PaymentOption(s) == PaymentOptionFull || PaymentOption(s) == PaymentOptionDownPayment
}

// ShippingSelection is the quote the customer chose at checkout, snapshotted
// onto the order together with the destination.
type ShippingSelection struct {
	CarrierCode   string `json:"carrier_code"`
	ServiceCode   string `json:"service_code"`
	Description   string `json:"description"`
	Cost          int64  `json:"cost"`
	PostalCode    string `json:"postal_code"`
	AddressLine   string `json:"address_line"`
	RecipientName string `json:"recipient_name"`
	EtdMinDays    int    `json:"etd_min_days"`
	EtdMaxDays    int    `json:"etd_max_days"`
}

// OrderItem is a cart line frozen at order creation. Catalog changes after
// creation never alter it.
type OrderItem struct {
	ID            uuid.UUID         `json:"id"`
	ProductID     string            `json:"product_id"`
	VariantID     string            `json:"variant_id"`
	ProductName   string            `json:"product_name"`
	Quantity      int32             `json:"quantity"`
	UnitPrice     int64             `json:"unit_price"`
	UnitWeight    int32             `json:"unit_weight_grams"`
	AddOns        []AddOn           `json:"add_ons,omitempty"`
	Customization map[string]string `json:"customization,omitempty"`
	LineSubtotal  int64             `json:"line_subtotal"`
}

// PaymentRecord is one confirmed gateway payment applied to the order.
// GatewayRef is the gateway's transaction reference and doubles as the
// idempotency key for callback redelivery.
type PaymentRecord struct {
	GatewayRef string    `json:"gateway_ref"`
	Amount     int64     `json:"amount"`
	AppliedAt  time.Time `json:"applied_at"`
}

// Order is the persisted order aggregate. AmountPaid only ever increases and
// is driven exclusively by confirmed gateway callbacks.
type Order struct {
	ID            uuid.UUID          `json:"id"`
	OrderNumber   string             `json:"order_number"`
	OwnerID       string             `json:"owner_id"`
	Items         []OrderItem        `json:"items"`
	Shipping      *ShippingSelection `json:"shipping,omitempty"`
	Subtotal      int64              `json:"subtotal"`
	ShippingCost  int64              `json:"shipping_cost"`
	TotalAmount   int64              `json:"total_amount"`
	AmountPaid    int64              `json:"amount_paid"`
	ExcessPaid    int64              `json:"excess_paid,omitempty"`
	OrderStatus   OrderStatus        `json:"order_status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	PaymentOption PaymentOption      `json:"payment_option"`
	Payments      []PaymentRecord    `json:"payments,omitempty"`
	CustomData    map[string]string  `json:"custom_data,omitempty"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// RemainingBalance is always derived, never stored. It cannot go negative
// because AmountPaid is clamped at TotalAmount during reconciliation.
func (o *Order) RemainingBalance() int64 {
	return o.TotalAmount - o.AmountPaid
}

// HasPayment reports whether a gateway reference was already applied.
func (o *Order) HasPayment(gatewayRef string) bool {
	for _, p := range o.Payments {
		if p.GatewayRef == gatewayRef {
			return true
		}
	}
	return false
}

// DownPaymentAmount returns the first-payment amount for a down-payment
// order given the configured percentage.
func (o *Order) DownPaymentAmount(percent int64) int64 {
	return o.TotalAmount * percent / 100
}
