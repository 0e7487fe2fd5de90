package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/domain"
)

// MemoryStore is an in-memory Store for tests and local development.
// All returned aggregates are deep copies; callers never share state
// with the store.
type MemoryStore struct {
	mu sync.RWMutex

	carts          map[string]*domain.Cart
	orders         map[uuid.UUID]*domain.Order
	ordersByNumber map[string]uuid.UUID
	sessions       map[uuid.UUID][]*domain.PaymentSession
	tokens         map[string]*domain.RecoveryToken

	// orderLocks serializes UpdateOrder per order id. The map itself is
	// guarded by mu; individual locks are held across the closure.
	orderLocks map[uuid.UUID]*sync.Mutex

	orderSeq int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:          make(map[string]*domain.Cart),
		orders:         make(map[uuid.UUID]*domain.Order),
		ordersByNumber: make(map[string]uuid.UUID),
		sessions:       make(map[uuid.UUID][]*domain.PaymentSession),
		tokens:         make(map[string]*domain.RecoveryToken),
		orderLocks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *MemoryStore) GetCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[ownerID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (s *MemoryStore) SaveCart(ctx context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.OwnerID] = cloneCart(cart)
	return nil
}

func (s *MemoryStore) DeleteCart(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, ownerID)
	return nil
}

func (s *MemoryStore) ListIdleCarts(ctx context.Context, idleSince time.Time) ([]*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var idle []*domain.Cart
	for _, cart := range s.carts {
		if cart.Status != domain.CartStatusActive || len(cart.Items) == 0 {
			continue
		}
		if cart.UpdatedAt.Before(idleSince) {
			idle = append(idle, cloneCart(cart))
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].UpdatedAt.Before(idle[j].UpdatedAt) })
	return idle, nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSeq++
	order.OrderNumber = fmt.Sprintf("ORD-%06d", s.orderSeq)
	s.orders[order.ID] = cloneOrder(order)
	s.ordersByNumber[order.OrderNumber] = order.ID
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ordersByNumber[number]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, id uuid.UUID, fn func(*domain.Order) error) (*domain.Order, error) {
	lock, err := s.orderLock(id)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	stored, ok := s.orders[id]
	var working *domain.Order
	if ok {
		working = cloneOrder(stored)
	}
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()

	s.mu.Lock()
	s.orders[id] = cloneOrder(working)
	s.mu.Unlock()
	return working, nil
}

func (s *MemoryStore) orderLock(id uuid.UUID) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return nil, domain.ErrOrderNotFound
	}
	lock, ok := s.orderLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.orderLocks[id] = lock
	}
	return lock, nil
}

func (s *MemoryStore) ActiveSession(ctx context.Context, orderID uuid.UUID) (*domain.PaymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := s.sessions[orderID]
	for i := len(sessions) - 1; i >= 0; i-- {
		if !sessions[i].Invalidated {
			cp := *sessions[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ReplaceSession(ctx context.Context, orderID uuid.UUID, session *domain.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, prior := range s.sessions[orderID] {
		prior.Invalidated = true
	}
	cp := *session
	s.sessions[orderID] = append(s.sessions[orderID], &cp)
	return nil
}

func (s *MemoryStore) InvalidateSessions(ctx context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions[orderID] {
		session.Invalidated = true
	}
	return nil
}

func (s *MemoryStore) SaveRecoveryToken(ctx context.Context, token *domain.RecoveryToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Token] = cloneToken(token)
	return nil
}

func (s *MemoryStore) GetRecoveryToken(ctx context.Context, token string) (*domain.RecoveryToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return cloneToken(stored), nil
}

func (s *MemoryStore) RedeemRecoveryToken(ctx context.Context, token string, now time.Time) (*domain.RecoveryToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	if stored.Redeemed() {
		return nil, &domain.AlreadyRecoveredError{RedeemedAt: *stored.RedeemedAt}
	}
	if stored.Expired(now) {
		return nil, domain.ErrTokenExpired
	}
	redeemedAt := now
	stored.RedeemedAt = &redeemedAt
	return cloneToken(stored), nil
}

func (s *MemoryStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, token := range s.tokens {
		if token.Expired(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = cloneCartItems(c.Items)
	return &cp
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return nil
	}
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		out[i] = item
		out[i].AddOns = append([]domain.AddOn(nil), item.AddOns...)
		if item.Customization != nil {
			out[i].Customization = make(map[string]string, len(item.Customization))
			for k, v := range item.Customization {
				out[i].Customization[k] = v
			}
		}
	}
	return out
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	if o.Items != nil {
		cp.Items = make([]domain.OrderItem, len(o.Items))
		for i, item := range o.Items {
			cp.Items[i] = item
			cp.Items[i].AddOns = append([]domain.AddOn(nil), item.AddOns...)
			if item.Customization != nil {
				cp.Items[i].Customization = make(map[string]string, len(item.Customization))
				for k, v := range item.Customization {
					cp.Items[i].Customization[k] = v
				}
			}
		}
	}
	if o.Shipping != nil {
		ship := *o.Shipping
		cp.Shipping = &ship
	}
	cp.Payments = append([]domain.PaymentRecord(nil), o.Payments...)
	if o.CustomData != nil {
		cp.CustomData = make(map[string]string, len(o.CustomData))
		for k, v := range o.CustomData {
			cp.CustomData[k] = v
		}
	}
	return &cp
}

func cloneToken(t *domain.RecoveryToken) *domain.RecoveryToken {
	cp := *t
	cp.Snapshot.Items = cloneCartItems(t.Snapshot.Items)
	if t.RedeemedAt != nil {
		redeemedAt := *t.RedeemedAt
		cp.RedeemedAt = &redeemedAt
	}
	return &cp
}
