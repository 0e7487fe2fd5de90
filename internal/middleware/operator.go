package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/arunika-id/arunika/internal/domain"
)

// OperatorKeyHeader carries the shared back-office credential.
const OperatorKeyHeader = "X-Operator-Key"

// RequireOperatorKey guards back-office endpoints with a shared key.
// Fulfillment advancement must never be reachable with just a shopper
// cookie; order numbers are sequential.
func RequireOperatorKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(OperatorKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				respondWithError(w, r, domain.Errorf(domain.EUNAUTHORIZED,
					"middleware.operator", "Operator credentials required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
