// Package store persists carts, orders, payment sessions, and recovery
// tokens. Two implementations exist: an in-memory store for tests and
// local development, and a PostgreSQL store for production.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/domain"
)

// Store is the persistence boundary for the order core.
//
// UpdateOrder is the only way to mutate an order after creation. The
// closure runs with the order exclusively locked, so read-modify-write
// sequences inside it are atomic with respect to concurrent callbacks
// and customer actions on the same order.
type Store interface {
	// GetCart returns the owner's active cart or domain.ErrCartNotFound.
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, error)

	// SaveCart upserts the owner's cart.
	SaveCart(ctx context.Context, cart *domain.Cart) error

	// DeleteCart removes the owner's cart. Missing carts are not an error.
	DeleteCart(ctx context.Context, ownerID string) error

	// ListIdleCarts returns non-empty active carts untouched since the
	// given cutoff. Used by the abandoned-cart sweeper.
	ListIdleCarts(ctx context.Context, idleSince time.Time) ([]*domain.Cart, error)

	// CreateOrder persists a new order and assigns its sequential
	// human-readable order number.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrder returns the order or domain.ErrOrderNotFound.
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// GetOrderByNumber resolves the human-readable order number.
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)

	// UpdateOrder applies fn to the order under an exclusive per-order
	// lock and persists the result. If fn returns an error nothing is
	// written and that error is returned unchanged.
	UpdateOrder(ctx context.Context, id uuid.UUID, fn func(*domain.Order) error) (*domain.Order, error)

	// ActiveSession returns the order's most recent non-invalidated
	// payment session, or nil when none exists.
	ActiveSession(ctx context.Context, orderID uuid.UUID) (*domain.PaymentSession, error)

	// ReplaceSession invalidates any prior sessions for the order and
	// stores the new one.
	ReplaceSession(ctx context.Context, orderID uuid.UUID, session *domain.PaymentSession) error

	// InvalidateSessions invalidates all of the order's sessions.
	InvalidateSessions(ctx context.Context, orderID uuid.UUID) error

	// SaveRecoveryToken persists a newly issued recovery token.
	SaveRecoveryToken(ctx context.Context, token *domain.RecoveryToken) error

	// GetRecoveryToken returns the token or domain.ErrInvalidToken.
	GetRecoveryToken(ctx context.Context, token string) (*domain.RecoveryToken, error)

	// RedeemRecoveryToken marks the token redeemed if and only if it is
	// still unredeemed and unexpired. Exactly one concurrent caller wins;
	// losers get domain.AlreadyRecoveredError carrying the winner's
	// redemption time.
	RedeemRecoveryToken(ctx context.Context, token string, now time.Time) (*domain.RecoveryToken, error)

	// DeleteExpiredTokens removes tokens expired before the cutoff and
	// returns how many were deleted.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
