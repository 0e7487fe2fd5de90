package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunika-id/arunika/internal/billing"
	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/handler/api"
	"github.com/arunika-id/arunika/internal/middleware"
	"github.com/arunika-id/arunika/internal/service"
	"github.com/arunika-id/arunika/internal/store"
)

type orderHandlerFixture struct {
	handler *api.OrderHandler
	orders  service.OrderService
	order   *domain.Order
}

// newOrderHandlerFixture creates an order owned by "owner-1".
func newOrderHandlerFixture(t *testing.T) *orderHandlerFixture {
	t.Helper()
	st := store.NewMemoryStore()
	gateway := billing.NewMockProvider()
	orders := service.NewOrderService(st, gateway, nil, service.OrderConfig{}, nil)
	invoices := service.NewInvoiceService(st, "Arunika Studio", nil)

	cart := &domain.Cart{
		ID:      uuid.New(),
		OwnerID: "owner-1",
		Items: []domain.CartItem{{
			ID:          uuid.New(),
			ProductID:   "prod-invite",
			VariantID:   "var-classic",
			ProductName: "Wedding Invitation - Classic",
			Quantity:    100,
			UnitPrice:   10000,
			UnitWeight:  15,
		}},
		Status:    domain.CartStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	cart.Recompute()
	require.NoError(t, st.SaveCart(context.Background(), cart))

	conf, err := orders.CreateOrder(context.Background(), service.CreateOrderParams{
		OwnerID: "owner-1",
		Shipping: &domain.ShippingSelection{
			CarrierCode: "jne", ServiceCode: "REG", Cost: 20000,
			PostalCode: "40115", AddressLine: "Jl. Braga No. 1", RecipientName: "Dewi",
		},
		PaymentOption: domain.PaymentOptionFull,
	})
	require.NoError(t, err)

	return &orderHandlerFixture{
		handler: api.NewOrderHandler(orders, invoices),
		orders:  orders,
		order:   conf.Order,
	}
}

// doAs performs a request against an order endpoint with the given cookie
// identity already resolved, the way the owner middleware leaves it.
func (f *orderHandlerFixture) doAs(ownerID, method, number string, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/orders/"+number, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("number", number)
	ctx := context.WithValue(req.Context(), middleware.OwnerContextKey, ownerID)
	rec := httptest.NewRecorder()
	h(rec, req.WithContext(ctx))
	return rec
}

func TestOrderHandler_OwnerScoping(t *testing.T) {
	f := newOrderHandlerFixture(t)
	number := f.order.OrderNumber

	// The owner sees their order.
	rec := f.doAs("owner-1", http.MethodGet, number, "", f.handler.GetOrder)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Everyone else gets a not-found, never a hint the order exists.
	rec = f.doAs("owner-2", http.MethodGet, number, "", f.handler.GetOrder)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.doAs("owner-2", http.MethodPost, number, "", f.handler.RequestPaymentSession)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.doAs("owner-2", http.MethodGet, number, "", f.handler.Invoice)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.doAs("owner-2", http.MethodPost, number, `{"reason":"not mine"}`, f.handler.Cancel)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Nothing leaked through: the order is untouched.
	order, err := f.orders.GetOrder(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPendingPayment, order.OrderStatus)
}

func TestOrderHandler_OwnerCanOperate(t *testing.T) {
	f := newOrderHandlerFixture(t)
	number := f.order.OrderNumber

	rec := f.doAs("owner-1", http.MethodPost, number, "", f.handler.RequestPaymentSession)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.doAs("owner-1", http.MethodPost, number, `{"reason":"changed plans"}`, f.handler.Cancel)
	assert.Equal(t, http.StatusOK, rec.Code)

	order, err := f.orders.GetOrder(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.OrderStatus)
}
