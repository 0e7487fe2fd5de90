package domain

import (
	"fmt"
	"time"
)

// Recovery token errors. The three failure kinds must stay distinguishable
// so the caller can render a specific message.
var (
	ErrInvalidToken = &Error{Code: ENOTFOUND, Message: "Recovery token is not recognized"}
	ErrTokenExpired = &Error{Code: EGONE, Message: "Recovery token has expired"}
)

// AlreadyRecoveredError is returned when a recovery token is redeemed a
// second time. It carries the original redemption timestamp so the caller
// can tell the customer when the cart was restored.
type AlreadyRecoveredError struct {
	RedeemedAt time.Time
}

func (e *AlreadyRecoveredError) Error() string {
	return fmt.Sprintf("recovery token already redeemed at %s", e.RedeemedAt.Format(time.RFC3339))
}

// As lets errors.As surface the domain code for HTTP mapping.
func (e *AlreadyRecoveredError) As(target interface{}) bool {
	if t, ok := target.(**Error); ok {
		*t = &Error{Code: ECONFLICT, Message: "Cart was already recovered"}
		return true
	}
	return false
}

// CartSnapshot freezes a cart's contents, prices, and owner identity at the
// moment a recovery token is issued.
type CartSnapshot struct {
	OwnerID     string     `json:"owner_id"`
	Items       []CartItem `json:"items"`
	Subtotal    int64      `json:"subtotal"`
	TotalWeight int32      `json:"total_weight_grams"`
	CapturedAt  time.Time  `json:"captured_at"`
}

// RecoveryToken is a single-use, time-bounded credential that reconstructs
// an abandoned cart. Exactly one redemption is ever permitted.
type RecoveryToken struct {
	Token      string       `json:"token"`
	Snapshot   CartSnapshot `json:"snapshot"`
	IssuedAt   time.Time    `json:"issued_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	RedeemedAt *time.Time   `json:"redeemed_at,omitempty"`
}

// Expired reports whether the token can no longer be previewed or redeemed.
func (t *RecoveryToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Redeemed reports whether the single permitted redemption already happened.
func (t *RecoveryToken) Redeemed() bool {
	return t.RedeemedAt != nil
}
