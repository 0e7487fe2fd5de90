// Package jobs holds the background job implementations run by the worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arunika-id/arunika/internal/service"
	"github.com/arunika-id/arunika/internal/store"
)

// AbandonedCartJob finds carts that sat idle past the threshold and
// issues a recovery token for each. Issuing marks the cart abandoned,
// so a cart is only ever picked up once per abandonment.
type AbandonedCartJob struct {
	store         store.Store
	recovery      service.RecoveryService
	idleThreshold time.Duration
	logger        *slog.Logger
}

// NewAbandonedCartJob creates a new AbandonedCartJob instance
func NewAbandonedCartJob(st store.Store, recovery service.RecoveryService, idleThreshold time.Duration, logger *slog.Logger) *AbandonedCartJob {
	if logger == nil {
		logger = slog.Default()
	}
	if idleThreshold <= 0 {
		idleThreshold = 24 * time.Hour
	}
	return &AbandonedCartJob{
		store:         st,
		recovery:      recovery,
		idleThreshold: idleThreshold,
		logger:        logger,
	}
}

// Name implements worker.Job.
func (j *AbandonedCartJob) Name() string { return "abandoned_cart_sweep" }

// Run implements worker.Job.
func (j *AbandonedCartJob) Run(ctx context.Context) error {
	idleSince := time.Now().Add(-j.idleThreshold)
	carts, err := j.store.ListIdleCarts(ctx, idleSince)
	if err != nil {
		return fmt.Errorf("failed to list idle carts: %w", err)
	}

	issued := 0
	for _, cart := range carts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := j.recovery.IssueToken(ctx, cart.OwnerID); err != nil {
			// One bad cart must not stall the sweep.
			j.logger.Error("failed to issue recovery token",
				"owner_id", cart.OwnerID, "error", err)
			continue
		}
		issued++
	}

	if issued > 0 {
		j.logger.Info("abandoned carts swept", "idle_carts", len(carts), "tokens_issued", issued)
	}
	return nil
}

// TokenCleanupJob purges recovery tokens past their expiry. Expired
// tokens are useless to customers and only grow the store.
type TokenCleanupJob struct {
	store  store.Store
	logger *slog.Logger
}

// NewTokenCleanupJob creates a new TokenCleanupJob instance
func NewTokenCleanupJob(st store.Store, logger *slog.Logger) *TokenCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenCleanupJob{store: st, logger: logger}
}

// Name implements worker.Job.
func (j *TokenCleanupJob) Name() string { return "recovery_token_cleanup" }

// Run implements worker.Job.
func (j *TokenCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.store.DeleteExpiredTokens(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("expired recovery tokens purged", "count", deleted)
	}
	return nil
}
