package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/store"
)

func newCart(ownerID string, updatedAt time.Time) *domain.Cart {
	cart := &domain.Cart{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Items: []domain.CartItem{
			{
				ID:          uuid.New(),
				ProductID:   "prod-1",
				VariantID:   "var-1",
				ProductName: "Wedding Invitation - Classic",
				Quantity:    100,
				UnitPrice:   10000,
				UnitWeight:  15,
			},
		},
		Status:    domain.CartStatusActive,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	cart.Recompute()
	return cart
}

func newOrder() *domain.Order {
	now := time.Now()
	return &domain.Order{
		ID:            uuid.New(),
		OwnerID:       "owner-1",
		Subtotal:      1000000,
		ShippingCost:  20000,
		TotalAmount:   1020000,
		OrderStatus:   domain.OrderStatusPendingPayment,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentOption: domain.PaymentOptionFull,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestMemoryStore_CartRoundtrip(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetCart(ctx, "owner-1")
	assert.True(t, errors.Is(err, domain.ErrCartNotFound))

	cart := newCart("owner-1", time.Now())
	require.NoError(t, s.SaveCart(ctx, cart))

	loaded, err := s.GetCart(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, loaded.ID)
	assert.Equal(t, cart.Subtotal, loaded.Subtotal)

	// Mutating the loaded copy must not affect stored state.
	loaded.Items[0].Quantity = 1
	again, err := s.GetCart(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int32(100), again.Items[0].Quantity)

	require.NoError(t, s.DeleteCart(ctx, "owner-1"))
	_, err = s.GetCart(ctx, "owner-1")
	assert.True(t, errors.Is(err, domain.ErrCartNotFound))
}

func TestMemoryStore_ListIdleCarts(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveCart(ctx, newCart("stale-1", now.Add(-3*time.Hour))))
	require.NoError(t, s.SaveCart(ctx, newCart("stale-2", now.Add(-2*time.Hour))))
	require.NoError(t, s.SaveCart(ctx, newCart("fresh", now)))

	empty := newCart("empty", now.Add(-4*time.Hour))
	empty.Items = nil
	empty.Recompute()
	require.NoError(t, s.SaveCart(ctx, empty))

	idle, err := s.ListIdleCarts(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, idle, 2, "fresh and empty carts must be skipped")
	assert.Equal(t, "stale-1", idle[0].OwnerID, "oldest first")
	assert.Equal(t, "stale-2", idle[1].OwnerID)
}

func TestMemoryStore_CreateOrder_AssignsSequentialNumbers(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	first := newOrder()
	second := newOrder()
	require.NoError(t, s.CreateOrder(ctx, first))
	require.NoError(t, s.CreateOrder(ctx, second))

	assert.Equal(t, "ORD-000001", first.OrderNumber)
	assert.Equal(t, "ORD-000002", second.OrderNumber)

	byNumber, err := s.GetOrderByNumber(ctx, "ORD-000002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byNumber.ID)
}

func TestMemoryStore_UpdateOrder_SerializesConcurrentMutations(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	order := newOrder()
	require.NoError(t, s.CreateOrder(ctx, order))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
				o.AmountPaid += 100
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*100), final.AmountPaid, "no increment may be lost")
}

func TestMemoryStore_UpdateOrder_ErrorDiscardsChanges(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	order := newOrder()
	require.NoError(t, s.CreateOrder(ctx, order))

	boom := errors.New("boom")
	_, err := s.UpdateOrder(ctx, order.ID, func(o *domain.Order) error {
		o.AmountPaid = 999999
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	final, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Zero(t, final.AmountPaid)
}

func TestMemoryStore_ReplaceSession_InvalidatesPrior(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	orderID := uuid.New()

	active, err := s.ActiveSession(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, active)

	first := &domain.PaymentSession{Token: "tok-1", OrderID: orderID, Amount: 1020000, ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
	require.NoError(t, s.ReplaceSession(ctx, orderID, first))

	second := &domain.PaymentSession{Token: "tok-2", OrderID: orderID, Amount: 510000, ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
	require.NoError(t, s.ReplaceSession(ctx, orderID, second))

	active, err = s.ActiveSession(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "tok-2", active.Token)

	require.NoError(t, s.InvalidateSessions(ctx, orderID))
	active, err = s.ActiveSession(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestMemoryStore_RedeemRecoveryToken_SingleWinner(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	token := &domain.RecoveryToken{
		Token:     "tok-recover",
		Snapshot:  domain.CartSnapshot{OwnerID: "owner-1", CapturedAt: now},
		IssuedAt:  now,
		ExpiresAt: now.Add(72 * time.Hour),
	}
	require.NoError(t, s.SaveRecoveryToken(ctx, token))

	const attempts = 20
	var wg sync.WaitGroup
	wg.Add(attempts)
	var winners, losers int64
	var mu sync.Mutex
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := s.RedeemRecoveryToken(ctx, "tok-recover", time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			var already *domain.AlreadyRecoveredError
			assert.True(t, errors.As(err, &already))
			losers++
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners, "exactly one redemption may succeed")
	assert.Equal(t, int64(attempts-1), losers)
}

func TestMemoryStore_RedeemRecoveryToken_Expired(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	token := &domain.RecoveryToken{
		Token:     "tok-old",
		IssuedAt:  now.Add(-80 * time.Hour),
		ExpiresAt: now.Add(-8 * time.Hour),
	}
	require.NoError(t, s.SaveRecoveryToken(ctx, token))

	_, err := s.RedeemRecoveryToken(ctx, "tok-old", now)
	assert.True(t, errors.Is(err, domain.ErrTokenExpired))

	_, err = s.RedeemRecoveryToken(ctx, "tok-missing", now)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestMemoryStore_DeleteExpiredTokens(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveRecoveryToken(ctx, &domain.RecoveryToken{Token: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.SaveRecoveryToken(ctx, &domain.RecoveryToken{Token: "dead-1", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.SaveRecoveryToken(ctx, &domain.RecoveryToken{Token: "dead-2", ExpiresAt: now.Add(-time.Minute)}))

	deleted, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = s.GetRecoveryToken(ctx, "live")
	assert.NoError(t, err)
	_, err = s.GetRecoveryToken(ctx, "dead-1")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}
