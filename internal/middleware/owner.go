package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/cookie"
)

const (
	// OwnerContextKey is the context key for the cart owner identity
	OwnerContextKey contextKey = "owner_id"
)

// WithOwner identifies the cart owner from the session cookie, minting a
// new identity on first contact. Carts, orders, and recovery tokens all
// hang off this identity; no login is required to shop.
func WithOwner(cookies *cookie.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := cookie.Get(r, cookie.OwnerCookieName)
			if ownerID == "" {
				ownerID = uuid.New().String()
				cookies.SetSession(w, cookie.OwnerCookieName, ownerID, cookie.OwnerCookieMaxAge)
			}

			ctx := context.WithValue(r.Context(), OwnerContextKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOwnerID retrieves the owner identity from the context.
// Returns an empty string when the owner middleware did not run.
func GetOwnerID(ctx context.Context) string {
	if id, ok := ctx.Value(OwnerContextKey).(string); ok {
		return id
	}
	return ""
}
