package api

import (
	"net/http"

	"github.com/arunika-id/arunika/internal/handler"
	"github.com/arunika-id/arunika/internal/service"
)

// RecoveryHandler serves the abandoned-cart recovery link endpoints.
// Both endpoints are keyed on the token alone: recovery links land in
// email clients where no owner cookie exists yet.
type RecoveryHandler struct {
	recovery service.RecoveryService
}

// NewRecoveryHandler creates a new RecoveryHandler instance
func NewRecoveryHandler(recovery service.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

// Preview handles GET /api/cart/recover/{token}
func (h *RecoveryHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.recovery.Preview(r.Context(), r.PathValue("token"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]interface{}{
		"items":         preview.Available,
		"dropped_count": preview.DroppedCount,
		"expires_at":    preview.ExpiresAt,
	})
}

// Redeem handles POST /api/cart/recover/{token}
func (h *RecoveryHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	result, err := h.recovery.Redeem(r.Context(), r.PathValue("token"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]interface{}{
		"cart":          result.Cart,
		"dropped_count": result.DroppedCount,
	})
}
