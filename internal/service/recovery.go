package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/catalog"
	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/notify"
	"github.com/arunika-id/arunika/internal/store"
	"github.com/arunika-id/arunika/internal/telemetry"
)

// RecoveryPreview is the read-only view behind a recovery link. Items
// still purchasable are listed; the rest are counted so the page can
// say "2 items are no longer available".
type RecoveryPreview struct {
	Snapshot     domain.CartSnapshot
	Available    []domain.CartItem
	DroppedCount int
	ExpiresAt    time.Time
}

// RecoveryResult is the outcome of a successful redemption.
type RecoveryResult struct {
	Cart         *domain.Cart
	DroppedCount int
}

// RecoveryService issues and redeems abandoned-cart recovery tokens.
type RecoveryService interface {
	// IssueToken snapshots the owner's cart, marks it abandoned, and
	// returns a single-use recovery token.
	IssueToken(ctx context.Context, ownerID string) (*domain.RecoveryToken, error)

	// Preview shows what redeeming the token would restore, without
	// consuming it.
	Preview(ctx context.Context, token string) (*RecoveryPreview, error)

	// Redeem consumes the token and replaces the owner's cart with the
	// still-available snapshot items at current catalog prices.
	Redeem(ctx context.Context, token string) (*RecoveryResult, error)
}

// RecoveryConfig carries recovery tunables.
type RecoveryConfig struct {
	// TokenTTL is how long an issued token stays redeemable.
	TokenTTL time.Duration
}

type recoveryService struct {
	store    store.Store
	catalog  catalog.Service
	notifier notify.Notifier
	cfg      RecoveryConfig
	logger   *slog.Logger
}

// NewRecoveryService creates a new RecoveryService instance
func NewRecoveryService(st store.Store, cat catalog.Service, notifier notify.Notifier, cfg RecoveryConfig, logger *slog.Logger) RecoveryService {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 72 * time.Hour
	}
	return &recoveryService{store: st, catalog: cat, notifier: notifier, cfg: cfg, logger: logger}
}

func (s *recoveryService) IssueToken(ctx context.Context, ownerID string) (*domain.RecoveryToken, error) {
	cart, err := s.store.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	value, err := generateToken()
	if err != nil {
		return nil, domain.Internal(err, "recovery.issue", "failed to generate token")
	}

	now := time.Now()
	token := &domain.RecoveryToken{
		Token: value,
		Snapshot: domain.CartSnapshot{
			OwnerID:     cart.OwnerID,
			Items:       cart.Items,
			Subtotal:    cart.Subtotal,
			TotalWeight: cart.TotalWeight,
			CapturedAt:  now,
		},
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.store.SaveRecoveryToken(ctx, token); err != nil {
		return nil, err
	}

	cart.Status = domain.CartStatusAbandoned
	cart.UpdatedAt = now
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.RecoveryTokensIssued.Inc()
	}
	s.logger.Info("recovery token issued",
		"owner_id", ownerID,
		"item_count", len(token.Snapshot.Items),
		"expires_at", token.ExpiresAt,
	)
	if err := s.notifier.Publish(ctx, notify.EventCartAbandoned, map[string]any{
		"owner_id":   ownerID,
		"token":      token.Token,
		"subtotal":   token.Snapshot.Subtotal,
		"expires_at": token.ExpiresAt,
	}); err != nil {
		s.logger.Error("failed to publish abandonment event", "owner_id", ownerID, "error", err)
	}
	return token, nil
}

func (s *recoveryService) Preview(ctx context.Context, token string) (*RecoveryPreview, error) {
	rec, err := s.store.GetRecoveryToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec.Redeemed() {
		return nil, &domain.AlreadyRecoveredError{RedeemedAt: *rec.RedeemedAt}
	}
	if rec.Expired(time.Now()) {
		return nil, domain.ErrTokenExpired
	}

	available, dropped := s.revalidate(ctx, rec.Snapshot.Items)
	return &RecoveryPreview{
		Snapshot:     rec.Snapshot,
		Available:    available,
		DroppedCount: dropped,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

func (s *recoveryService) Redeem(ctx context.Context, token string) (*RecoveryResult, error) {
	rec, err := s.store.RedeemRecoveryToken(ctx, token, time.Now())
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.RecoveryRedeemFailed.WithLabelValues(redeemFailureReason(err)).Inc()
		}
		return nil, err
	}

	// The token is consumed from here on, even if every item was dropped:
	// the customer gets whatever is still purchasable.
	available, dropped := s.revalidate(ctx, rec.Snapshot.Items)

	now := time.Now()
	cart := &domain.Cart{
		ID:        uuid.New(),
		OwnerID:   rec.Snapshot.OwnerID,
		Items:     available,
		Status:    domain.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cart.Recompute()
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.RecoveryRedeemed.Inc()
		telemetry.Business.RecoveryItemsDropped.Add(float64(dropped))
	}
	s.logger.Info("recovery token redeemed",
		"owner_id", cart.OwnerID,
		"restored_items", len(available),
		"dropped_items", dropped,
	)
	if err := s.notifier.Publish(ctx, notify.EventCartRecovered, map[string]any{
		"owner_id":      cart.OwnerID,
		"restored":      len(available),
		"dropped":       dropped,
		"cart_subtotal": cart.Subtotal,
	}); err != nil {
		s.logger.Error("failed to publish recovery event", "owner_id", cart.OwnerID, "error", err)
	}
	return &RecoveryResult{Cart: cart, DroppedCount: dropped}, nil
}

// revalidate filters snapshot lines against the current catalog and
// refreshes unit prices and weights. Missing and unpurchasable variants
// are dropped; stale prices would otherwise resurrect via old links.
func (s *recoveryService) revalidate(ctx context.Context, items []domain.CartItem) ([]domain.CartItem, int) {
	available := make([]domain.CartItem, 0, len(items))
	dropped := 0
	for _, item := range items {
		variant, err := s.catalog.GetVariant(ctx, item.VariantID)
		if err != nil || !variant.Purchasable {
			dropped++
			continue
		}
		item.ID = uuid.New()
		item.UnitPrice = variant.Price
		item.UnitWeight = variant.WeightGrams
		item.LineSubtotal = item.ComputeSubtotal()
		available = append(available, item)
	}
	return available, dropped
}

func redeemFailureReason(err error) string {
	var already *domain.AlreadyRecoveredError
	switch {
	case errors.As(err, &already):
		return "already_redeemed"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	default:
		return "invalid"
	}
}

// generateToken generates a cryptographically secure recovery token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
