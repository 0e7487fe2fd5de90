// Package notify publishes order lifecycle events for downstream
// consumers (email, analytics, fulfillment dashboards).
package notify

import "context"

// Event names published on the order lifecycle stream.
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderPartially = "order.partially_paid"
	EventOrderFailed    = "order.payment_failed"
	EventOrderCancelled = "order.cancelled"
	EventOrderAdvanced  = "order.fulfillment_advanced"
	EventCartAbandoned  = "cart.abandoned"
	EventCartRecovered  = "cart.recovered"
)

// Notifier publishes lifecycle events. Publishing is best-effort;
// callers log failures but never fail the triggering operation.
type Notifier interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Noop is a Notifier that discards all events.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event string, payload any) error { return nil }
