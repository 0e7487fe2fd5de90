package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunika-id/arunika/internal/billing"
	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/notify"
	"github.com/arunika-id/arunika/internal/service"
	"github.com/arunika-id/arunika/internal/store"
)

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) Publish(ctx context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type orderFixture struct {
	store    *store.MemoryStore
	gateway  *billing.MockProvider
	events   *eventRecorder
	orders   service.OrderService
	notified chan struct{}
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	st := store.NewMemoryStore()
	gateway := billing.NewMockProvider()
	events := &eventRecorder{}
	orders := service.NewOrderService(st, gateway, events, service.OrderConfig{
		DownPaymentPercent: 50,
		SessionExpiry:      2 * time.Hour,
	}, nil)
	return &orderFixture{store: st, gateway: gateway, events: events, orders: orders}
}

// seedCart stores a cart totaling 1,000,000 (100 x 10,000 with no add-ons).
func (f *orderFixture) seedCart(t *testing.T, ownerID string) {
	t.Helper()
	cart := &domain.Cart{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Items: []domain.CartItem{
			{
				ID:          uuid.New(),
				ProductID:   "prod-invite",
				VariantID:   "var-classic",
				ProductName: "Wedding Invitation - Classic",
				Quantity:    100,
				UnitPrice:   10000,
				UnitWeight:  15,
			},
		},
		Status:    domain.CartStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	cart.Recompute()
	require.NoError(t, f.store.SaveCart(context.Background(), cart))
}

func shippingSelection() *domain.ShippingSelection {
	return &domain.ShippingSelection{
		CarrierCode:   "jne",
		ServiceCode:   "REG",
		Description:   "Layanan Reguler",
		Cost:          20000,
		PostalCode:    "40115",
		AddressLine:   "Jl. Braga No. 1",
		RecipientName: "Dewi Lestari",
		EtdMinDays:    2,
		EtdMaxDays:    3,
	}
}

// notifyPayment simulates a decoded gateway callback for the next
// ReconcileNotification call.
func (f *orderFixture) notifyPayment(ref, orderNumber string, outcome domain.CallbackOutcome, amount int64) {
	f.gateway.DecodeNotificationFunc = func(payload []byte) (*domain.PaymentNotification, error) {
		return &domain.PaymentNotification{
			GatewayRef:  ref,
			OrderNumber: orderNumber,
			Outcome:     outcome,
			Amount:      amount,
		}, nil
	}
}

func TestOrderService_CreateOrder_Full(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.seedCart(t, "owner-1")

	conf, err := f.orders.CreateOrder(ctx, service.CreateOrderParams{
		OwnerID:       "owner-1",
		Shipping:      shippingSelection(),
		PaymentOption: domain.PaymentOptionFull,
	})
	require.NoError(t, err)

	order := conf.Order
	assert.Equal(t, "ORD-000001", order.OrderNumber)
	assert.Equal(t, int64(1000000), order.Subtotal)
	assert.Equal(t, int64(20000), order.ShippingCost)
	assert.Equal(t, int64(1020000), order.TotalAmount)
	assert.Equal(t, domain.OrderStatusPendingPayment, order.OrderStatus)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)

	// Full payment option: the session charges the whole total.
	require.NotNil(t, conf.Session)
	assert.Equal(t, int64(1020000), conf.Session.Amount)
	require.Len(t, f.gateway.CreateSessionCalls, 1)
	assert.Equal(t, "ORD-000001", f.gateway.CreateSessionCalls[0].OrderNumber)

	// The cart is consumed by checkout.
	_, err = f.store.GetCart(ctx, "owner-1")
	assert.True(t, errors.Is(err, domain.ErrCartNotFound))

	assert.True(t, f.events.has(notify.EventOrderCreated))
}

func TestOrderService_CreateOrder_DownPayment(t *testing.T) {
	f := newOrderFixture(t)
	f.seedCart(t, "owner-1")

	conf, err := f.orders.CreateOrder(context.Background(), service.CreateOrderParams{
		OwnerID:       "owner-1",
		Shipping:      shippingSelection(),
		PaymentOption: domain.PaymentOptionDownPayment,
	})
	require.NoError(t, err)

	// 50% of 1,020,000.
	require.NotNil(t, conf.Session)
	assert.Equal(t, int64(510000), conf.Session.Amount)
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.orders.CreateOrder(ctx, service.CreateOrderParams{
		OwnerID:       "owner-1",
		PaymentOption: "installments",
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidPaymentOption))

	_, err = f.orders.CreateOrder(ctx, service.CreateOrderParams{
		OwnerID:       "owner-1",
		PaymentOption: domain.PaymentOptionFull,
	})
	assert.True(t, errors.Is(err, domain.ErrCartNotFound))

	f.seedCart(t, "owner-1")
	_, err = f.orders.CreateOrder(ctx, service.CreateOrderParams{
		OwnerID:       "owner-1",
		PaymentOption: domain.PaymentOptionFull,
	})
	assert.True(t, errors.Is(err, domain.ErrShippingRequired), "physical cart needs a shipping selection")

	badShipping := shippingSelection()
	badShipping.Cost = -1
	_, err = f.orders.CreateOrder(ctx, service.CreateOrderParams{
		OwnerID:       "owner-1",
		Shipping:      badShipping,
		PaymentOption: domain.PaymentOptionFull,
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidShippingCost))
}

func TestOrderService_CreateOrder_GatewayDownStillCreatesOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.seedCart(t, "owner-1")
	f.gateway.CreateSessionFunc = func(ctx context.Context, params billing.CreateSessionParams) (*billing.Session, error) {
		return nil, &billing.GatewayError{Message: "gateway unavailable", Temporary: true}
	}

	conf, err := f.orders.CreateOrder(context.Background(), service.CreateOrderParams{
		OwnerID:       "owner-1",
		Shipping:      shippingSelection(),
		PaymentOption: domain.PaymentOptionFull,
	})
	require.NoError(t, err, "order creation must survive a gateway outage")
	assert.NotNil(t, conf.Order)
	assert.Nil(t, conf.Session)
}

func createPaidableOrder(t *testing.T, f *orderFixture, option domain.PaymentOption) *domain.Order {
	t.Helper()
	f.seedCart(t, "owner-1")
	conf, err := f.orders.CreateOrder(context.Background(), service.CreateOrderParams{
		OwnerID:       "owner-1",
		Shipping:      shippingSelection(),
		PaymentOption: option,
	})
	require.NoError(t, err)
	return conf.Order
}

func TestOrderService_Reconcile_FullPayment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	f.notifyPayment("txn-1", order.OrderNumber, domain.OutcomeSuccess, 1020000)
	updated, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, int64(1020000), updated.AmountPaid)
	assert.Zero(t, updated.RemainingBalance())
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, updated.OrderStatus)
	require.Len(t, updated.Payments, 1)
	assert.Equal(t, "txn-1", updated.Payments[0].GatewayRef)

	// Session consumed by the confirmed payment.
	active, err := f.store.ActiveSession(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	assert.True(t, f.events.has(notify.EventOrderPaid))
}

func TestOrderService_Reconcile_DownPaymentLifecycle(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionDownPayment)

	// First payment: exactly the 50% down payment.
	f.notifyPayment("txn-dp", order.OrderNumber, domain.OutcomeSuccess, 510000)
	updated, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(510000), updated.AmountPaid)
	assert.Equal(t, int64(510000), updated.RemainingBalance())
	assert.Equal(t, domain.PaymentStatusPartiallyPaid, updated.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPendingPayment, updated.OrderStatus,
		"a down payment alone does not start fulfillment")
	assert.True(t, f.events.has(notify.EventOrderPartially))

	// Redelivery of the same gateway reference changes nothing.
	updated, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(510000), updated.AmountPaid)
	assert.Len(t, updated.Payments, 1)

	// Balance payment settles the order.
	f.notifyPayment("txn-balance", order.OrderNumber, domain.OutcomeSuccess, 510000)
	updated, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1020000), updated.AmountPaid)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, updated.OrderStatus,
		"reaching paid moves the order into fulfillment")
	assert.True(t, f.events.has(notify.EventOrderPaid))
}

func TestOrderService_Reconcile_DownPaymentAmountMismatchAbsorbed(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionDownPayment)

	f.notifyPayment("txn-odd", order.OrderNumber, domain.OutcomeSuccess, 300000)
	updated, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err, "mismatch is absorbed, not propagated, to stop redelivery")

	assert.Zero(t, updated.AmountPaid)
	assert.Equal(t, domain.PaymentStatusPending, updated.PaymentStatus)
	assert.Empty(t, updated.Payments)

	// The full total is a mismatch too: no session for that amount was
	// ever issued for an unpaid down-payment order.
	f.notifyPayment("txn-full", order.OrderNumber, domain.OutcomeSuccess, 1020000)
	updated, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Zero(t, updated.AmountPaid)
	assert.Empty(t, updated.Payments)
}

func TestOrderService_Reconcile_OverpaymentClamped(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	f.notifyPayment("txn-big", order.OrderNumber, domain.OutcomeSuccess, 1100000)
	updated, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, int64(1020000), updated.AmountPaid, "paid amount is clamped at the total")
	assert.Equal(t, int64(80000), updated.ExcessPaid)
	assert.Zero(t, updated.RemainingBalance())
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
}

func TestOrderService_Reconcile_PendingAndFailure(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionDownPayment)

	// Pending leaves everything untouched.
	f.notifyPayment("txn-1", order.OrderNumber, domain.OutcomePending, 0)
	updated, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, updated.PaymentStatus)

	// Failure before any money: payment axis flips to failed.
	f.notifyPayment("txn-2", order.OrderNumber, domain.OutcomeFailure, 0)
	updated, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, updated.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPendingPayment, updated.OrderStatus)

	// The customer can still pay; a later success recovers the order.
	f.notifyPayment("txn-3", order.OrderNumber, domain.OutcomeSuccess, 510000)
	updated, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPartiallyPaid, updated.PaymentStatus)

	// Failure after partial payment never erases progress.
	f.notifyPayment("txn-4", order.OrderNumber, domain.OutcomeFailure, 0)
	updated, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPartiallyPaid, updated.PaymentStatus)
	assert.Equal(t, int64(510000), updated.AmountPaid)
}

func TestOrderService_Reconcile_SuccessAfterCancelAbsorbed(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	_, err := f.orders.Cancel(ctx, order.OrderNumber, "changed my mind")
	require.NoError(t, err)

	f.notifyPayment("txn-late", order.OrderNumber, domain.OutcomeSuccess, 1020000)
	updated, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, updated.OrderStatus)
	assert.Zero(t, updated.AmountPaid, "cancelled orders never absorb money silently")
	assert.Empty(t, updated.Payments)
}

func TestOrderService_Reconcile_RetrySuffixResolvesOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	f.notifyPayment("txn-1", order.OrderNumber+"-R1724031022", domain.OutcomeSuccess, 1020000)
	updated, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, updated.OrderNumber)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
}

func TestOrderService_Reconcile_BadSignatureRejected(t *testing.T) {
	f := newOrderFixture(t)
	f.gateway.DecodeNotificationFunc = func(payload []byte) (*domain.PaymentNotification, error) {
		return nil, billing.ErrInvalidSignature
	}

	_, err := f.orders.ReconcileNotification(context.Background(), []byte(`{}`))
	assert.True(t, errors.Is(err, billing.ErrInvalidSignature))
}

func TestOrderService_Reconcile_ConcurrentRedelivery(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	f.notifyPayment("txn-1", order.OrderNumber, domain.OutcomeSuccess, 1020000)

	const deliveries = 25
	var wg sync.WaitGroup
	wg.Add(deliveries)
	for i := 0; i < deliveries; i++ {
		go func() {
			defer wg.Done()
			_, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1020000), final.AmountPaid, "redelivery must apply exactly once")
	assert.Len(t, final.Payments, 1)
	assert.Zero(t, final.ExcessPaid)
}

func TestOrderService_Cancel(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	cancelled, err := f.orders.Cancel(ctx, order.OrderNumber, "duplicate order")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.OrderStatus)
	assert.Equal(t, "duplicate order", cancelled.CancelReason)
	assert.True(t, f.events.has(notify.EventOrderCancelled))

	// Cancelling twice is a conflict.
	_, err = f.orders.Cancel(ctx, order.OrderNumber, "again")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestOrderService_Cancel_BlockedOnceInFulfillment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	f.notifyPayment("txn-1", order.OrderNumber, domain.OutcomeSuccess, 1020000)
	_, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)

	_, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusPacking)
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, order.OrderNumber, "too late")
	assert.True(t, errors.Is(err, domain.ErrCannotCancelShipped))
}

func TestOrderService_AdvanceFulfillment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionDownPayment)

	f.notifyPayment("txn-dp", order.OrderNumber, domain.OutcomeSuccess, 510000)
	_, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)

	// A partially paid order has not entered fulfillment yet.
	_, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusPacking)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	f.notifyPayment("txn-balance", order.OrderNumber, domain.OutcomeSuccess, 510000)
	settled, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusProcessing, settled.OrderStatus)

	// Steps cannot be skipped.
	_, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusShipped)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusPacking)
	require.NoError(t, err)
	updated, err := f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.OrderStatus)

	updated, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, updated.OrderStatus)
}

func TestOrderService_AdvanceFulfillment_CompletionRequiresZeroBalance(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionFull)

	f.notifyPayment("txn-1", order.OrderNumber, domain.OutcomeSuccess, 1020000)
	_, err := f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	_, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusPacking)
	require.NoError(t, err)
	_, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusShipped)
	require.NoError(t, err)

	// Simulate stored-state drift so the completion guard is observable;
	// the normal path never reaches shipped with money outstanding.
	_, err = f.store.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
		o.AmountPaid = 1000000
		return nil
	})
	require.NoError(t, err)

	_, err = f.orders.AdvanceFulfillment(ctx, order.OrderNumber, domain.OrderStatusCompleted)
	assert.True(t, errors.Is(err, domain.ErrBalanceOutstanding))
}

func TestOrderService_RequestPaymentSession(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := createPaidableOrder(t, f, domain.PaymentOptionDownPayment)

	// A live session quoting the right amount is reused.
	session, err := f.orders.RequestPaymentSession(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(510000), session.Amount)
	assert.Len(t, f.gateway.CreateSessionCalls, 1, "no second gateway call for a live session")

	// After the down payment, the next session quotes the balance and the
	// gateway reference gets a retry suffix.
	f.notifyPayment("txn-dp", order.OrderNumber, domain.OutcomeSuccess, 510000)
	_, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)

	session, err = f.orders.RequestPaymentSession(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(510000), session.Amount)
	require.Len(t, f.gateway.CreateSessionCalls, 2)
	assert.NotEqual(t, order.OrderNumber, f.gateway.CreateSessionCalls[1].OrderNumber)
	assert.Contains(t, f.gateway.CreateSessionCalls[1].OrderNumber, order.OrderNumber)

	// Fully paid orders are no longer payable.
	f.notifyPayment("txn-balance", order.OrderNumber, domain.OutcomeSuccess, 510000)
	_, err = f.orders.ReconcileNotification(ctx, []byte(`{}`))
	require.NoError(t, err)
	_, err = f.orders.RequestPaymentSession(ctx, order.OrderNumber)
	assert.True(t, errors.Is(err, domain.ErrOrderNotPayable))
}
