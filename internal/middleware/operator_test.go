package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arunika-id/arunika/internal/middleware"
)

func TestRequireOperatorKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := middleware.RequireOperatorKey("secret-key")(next)

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ops/orders/ORD-000001/fulfillment", nil)
		if key != "" {
			req.Header.Set(middleware.OperatorKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("secret-key").Code)
	assert.Equal(t, http.StatusUnauthorized, do("wrong-key").Code)
	assert.Equal(t, http.StatusUnauthorized, do("").Code)
}

func TestRequireOperatorKeyEmptyConfigDeniesAll(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := middleware.RequireOperatorKey("")(next)

	req := httptest.NewRequest(http.MethodPost, "/ops/orders/ORD-000001/fulfillment", nil)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
