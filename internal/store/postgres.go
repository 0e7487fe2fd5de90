package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arunika-id/arunika/internal/domain"
)

// PostgresStore is the production Store backed by PostgreSQL. Aggregates
// are stored as jsonb documents with the columns needed for lookups and
// sweeps promoted alongside. Per-order serialization uses row locks:
// UpdateOrder runs its closure inside SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM carts WHERE owner_id = $1`, ownerID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "store.cart.get", "failed to load cart")
	}
	var cart domain.Cart
	if err := json.Unmarshal(doc, &cart); err != nil {
		return nil, domain.Internal(err, "store.cart.get", "failed to decode cart")
	}
	return &cart, nil
}

func (s *PostgresStore) SaveCart(ctx context.Context, cart *domain.Cart) error {
	doc, err := json.Marshal(cart)
	if err != nil {
		return domain.Internal(err, "store.cart.save", "failed to encode cart")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO carts (owner_id, status, item_count, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE
		SET status = EXCLUDED.status,
		    item_count = EXCLUDED.item_count,
		    doc = EXCLUDED.doc,
		    updated_at = EXCLUDED.updated_at`,
		cart.OwnerID, cart.Status, len(cart.Items), doc, cart.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "store.cart.save", "failed to save cart")
	}
	return nil
}

func (s *PostgresStore) DeleteCart(ctx context.Context, ownerID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE owner_id = $1`, ownerID)
	if err != nil {
		return domain.Internal(err, "store.cart.delete", "failed to delete cart")
	}
	return nil
}

func (s *PostgresStore) ListIdleCarts(ctx context.Context, idleSince time.Time) ([]*domain.Cart, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM carts
		WHERE status = $1 AND item_count > 0 AND updated_at < $2
		ORDER BY updated_at`,
		domain.CartStatusActive, idleSince)
	if err != nil {
		return nil, domain.Internal(err, "store.cart.idle", "failed to list idle carts")
	}
	defer rows.Close()

	var carts []*domain.Cart
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, domain.Internal(err, "store.cart.idle", "failed to scan cart")
		}
		var cart domain.Cart
		if err := json.Unmarshal(doc, &cart); err != nil {
			return nil, domain.Internal(err, "store.cart.idle", "failed to decode cart")
		}
		carts = append(carts, &cart)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "store.cart.idle", "failed to iterate carts")
	}
	return carts, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "store.order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return domain.Internal(err, "store.order.create", "failed to allocate order number")
	}
	order.OrderNumber = fmt.Sprintf("ORD-%06d", seq)

	doc, err := json.Marshal(order)
	if err != nil {
		return domain.Internal(err, "store.order.create", "failed to encode order")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		order.ID, order.OrderNumber, doc, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "store.order.create", "failed to insert order")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "store.order.create", "failed to commit order")
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.getOrder(ctx, `SELECT doc FROM orders WHERE id = $1`, id)
}

func (s *PostgresStore) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return s.getOrder(ctx, `SELECT doc FROM orders WHERE order_number = $1`, number)
}

func (s *PostgresStore) getOrder(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "store.order.get", "failed to load order")
	}
	var order domain.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return nil, domain.Internal(err, "store.order.get", "failed to decode order")
	}
	return &order, nil
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, id uuid.UUID, fn func(*domain.Order) error) (*domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, "store.order.update", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "store.order.update", "failed to lock order")
	}

	var order domain.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return nil, domain.Internal(err, "store.order.update", "failed to decode order")
	}

	if err := fn(&order); err != nil {
		return nil, err
	}
	order.UpdatedAt = time.Now()

	updated, err := json.Marshal(&order)
	if err != nil {
		return nil, domain.Internal(err, "store.order.update", "failed to encode order")
	}
	_, err = tx.Exec(ctx,
		`UPDATE orders SET doc = $2, updated_at = $3 WHERE id = $1`,
		id, updated, order.UpdatedAt)
	if err != nil {
		return nil, domain.Internal(err, "store.order.update", "failed to save order")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, "store.order.update", "failed to commit order")
	}
	return &order, nil
}

func (s *PostgresStore) ActiveSession(ctx context.Context, orderID uuid.UUID) (*domain.PaymentSession, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT doc FROM payment_sessions
		WHERE order_id = $1 AND NOT invalidated
		ORDER BY created_at DESC LIMIT 1`, orderID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Internal(err, "store.session.active", "failed to load session")
	}
	var session domain.PaymentSession
	if err := json.Unmarshal(doc, &session); err != nil {
		return nil, domain.Internal(err, "store.session.active", "failed to decode session")
	}
	return &session, nil
}

func (s *PostgresStore) ReplaceSession(ctx context.Context, orderID uuid.UUID, session *domain.PaymentSession) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return domain.Internal(err, "store.session.replace", "failed to encode session")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "store.session.replace", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE payment_sessions
		SET invalidated = TRUE, doc = jsonb_set(doc, '{invalidated}', 'true')
		WHERE order_id = $1 AND NOT invalidated`, orderID)
	if err != nil {
		return domain.Internal(err, "store.session.replace", "failed to invalidate prior sessions")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payment_sessions (order_id, invalidated, doc, created_at)
		VALUES ($1, FALSE, $2, $3)`,
		orderID, doc, session.CreatedAt)
	if err != nil {
		return domain.Internal(err, "store.session.replace", "failed to insert session")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "store.session.replace", "failed to commit session")
	}
	return nil
}

func (s *PostgresStore) InvalidateSessions(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payment_sessions
		SET invalidated = TRUE, doc = jsonb_set(doc, '{invalidated}', 'true')
		WHERE order_id = $1 AND NOT invalidated`, orderID)
	if err != nil {
		return domain.Internal(err, "store.session.invalidate", "failed to invalidate sessions")
	}
	return nil
}

func (s *PostgresStore) SaveRecoveryToken(ctx context.Context, token *domain.RecoveryToken) error {
	doc, err := json.Marshal(token)
	if err != nil {
		return domain.Internal(err, "store.token.save", "failed to encode token")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO recovery_tokens (token, expires_at, doc)
		VALUES ($1, $2, $3)`,
		token.Token, token.ExpiresAt, doc)
	if err != nil {
		return domain.Internal(err, "store.token.save", "failed to save token")
	}
	return nil
}

func (s *PostgresStore) GetRecoveryToken(ctx context.Context, token string) (*domain.RecoveryToken, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM recovery_tokens WHERE token = $1`, token).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, domain.Internal(err, "store.token.get", "failed to load token")
	}
	var rec domain.RecoveryToken
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, domain.Internal(err, "store.token.get", "failed to decode token")
	}
	return &rec, nil
}

func (s *PostgresStore) RedeemRecoveryToken(ctx context.Context, token string, now time.Time) (*domain.RecoveryToken, error) {
	// Single-winner redemption: the conditional UPDATE only succeeds for
	// an unredeemed, unexpired token. Losers re-read to learn why.
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		UPDATE recovery_tokens
		SET redeemed_at = $2,
		    doc = jsonb_set(doc, '{redeemed_at}', to_jsonb($2::timestamptz))
		WHERE token = $1 AND redeemed_at IS NULL AND expires_at >= $2
		RETURNING doc`, token, now).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.redeemFailure(ctx, token, now)
	}
	if err != nil {
		return nil, domain.Internal(err, "store.token.redeem", "failed to redeem token")
	}
	var rec domain.RecoveryToken
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, domain.Internal(err, "store.token.redeem", "failed to decode token")
	}
	return &rec, nil
}

func (s *PostgresStore) redeemFailure(ctx context.Context, token string, now time.Time) error {
	rec, err := s.GetRecoveryToken(ctx, token)
	if err != nil {
		return err
	}
	if rec.Redeemed() {
		return &domain.AlreadyRecoveredError{RedeemedAt: *rec.RedeemedAt}
	}
	if rec.Expired(now) {
		return domain.ErrTokenExpired
	}
	return domain.ErrInvalidToken
}

func (s *PostgresStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM recovery_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, domain.Internal(err, "store.token.sweep", "failed to delete expired tokens")
	}
	return tag.RowsAffected(), nil
}
