package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Cart activity
	CartItemsAdded *prometheus.CounterVec
	CartUpdated    *prometheus.CounterVec
	CartValue      prometheus.Histogram

	// Orders
	OrdersCreated    *prometheus.CounterVec
	OrderValue       prometheus.Histogram
	OrdersCancelled  *prometheus.CounterVec
	OrdersFulfilled  *prometheus.CounterVec
	FulfillmentSteps *prometheus.CounterVec

	// Payments
	PaymentSessionsCreated prometheus.Counter
	PaymentSucceeded       *prometheus.CounterVec
	PaymentFailed          prometheus.Counter
	PaymentDuplicates      prometheus.Counter
	PaymentIntegrityErrors *prometheus.CounterVec
	RevenueCollected       prometheus.Counter

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookRejected  *prometheus.CounterVec
	WebhookLatency   prometheus.Histogram

	// Abandoned cart recovery
	RecoveryTokensIssued   prometheus.Counter
	RecoveryRedeemed       prometheus.Counter
	RecoveryRedeemFailed   *prometheus.CounterVec
	RecoveryItemsDropped   prometheus.Counter

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "arunika"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		CartItemsAdded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_items_added_total",
				Help:      "Total items added to carts (quantity-aware)",
			},
			[]string{"product_id"},
		),
		CartUpdated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_updated_total",
				Help:      "Total cart update operations",
			},
			[]string{"action"}, // action: add, update_quantity, remove, clear
		),
		CartValue: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_value",
				Help:      "Cart subtotal at order creation, smallest currency unit",
				Buckets:   []float64{50000, 100000, 250000, 500000, 1000000, 2500000, 5000000, 10000000},
			},
		),

		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders created",
			},
			[]string{"payment_option"}, // payment_option: full, down_payment
		),
		OrderValue: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value",
				Help:      "Order total distribution, smallest currency unit",
				Buckets:   []float64{50000, 100000, 250000, 500000, 1000000, 2500000, 5000000, 10000000},
			},
		),
		OrdersCancelled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_cancelled_total",
				Help:      "Total orders cancelled",
			},
			[]string{"had_payment"}, // had_payment: yes, no
		),
		OrdersFulfilled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_fulfilled_total",
				Help:      "Total orders reaching completed status",
			},
			[]string{"payment_option"},
		),
		FulfillmentSteps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fulfillment_steps_total",
				Help:      "Total fulfillment status transitions",
			},
			[]string{"to_status"},
		),

		PaymentSessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_sessions_created_total",
				Help:      "Total gateway payment sessions created",
			},
		),
		PaymentSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Total confirmed gateway payments applied",
			},
			[]string{"payment_option"},
		),
		PaymentFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Total failure notifications processed",
			},
		),
		PaymentDuplicates: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_duplicates_total",
				Help:      "Total redelivered notifications skipped by idempotency",
			},
		),
		PaymentIntegrityErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_integrity_errors_total",
				Help:      "Total notifications absorbed as integrity violations",
			},
			[]string{"kind"}, // kind: amount_mismatch, overpayment, cancelled_order
		),
		RevenueCollected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "revenue_collected",
				Help:      "Total confirmed revenue, smallest currency unit",
			},
		),

		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total payment webhooks received",
			},
			[]string{"outcome"}, // outcome: success, pending, failure
		),
		WebhookRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_rejected_total",
				Help:      "Total payment webhooks rejected before processing",
			},
			[]string{"reason"}, // reason: bad_signature, malformed
		),
		WebhookLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		RecoveryTokensIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recovery_tokens_issued_total",
				Help:      "Total abandoned-cart recovery tokens issued",
			},
		),
		RecoveryRedeemed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recovery_redeemed_total",
				Help:      "Total recovery tokens successfully redeemed",
			},
		),
		RecoveryRedeemFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recovery_redeem_failed_total",
				Help:      "Total failed recovery redemptions",
			},
			[]string{"reason"}, // reason: invalid, expired, already_redeemed
		),
		RecoveryItemsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recovery_items_dropped_total",
				Help:      "Total snapshot items dropped during redemption",
			},
		),

		JobsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_processed_total",
				Help:      "Total background jobs successfully processed",
			},
			[]string{"job_type"},
		),
		JobsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_failed_total",
				Help:      "Total background job failures",
			},
			[]string{"job_type"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Background job execution duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job_type"},
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
