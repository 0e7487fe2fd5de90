package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentSession is one gateway-issued checkout credential for an order.
// At most one non-expired, non-invalidated session exists per order;
// requesting a new one logically invalidates the prior session so two
// live payment UIs never quote different amounts for the same order.
type PaymentSession struct {
	Token       string    `json:"token"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	OrderID     uuid.UUID `json:"order_id"`
	Amount      int64     `json:"amount"`
	ExpiresAt   time.Time `json:"expires_at"`
	Invalidated bool      `json:"invalidated"`
	CreatedAt   time.Time `json:"created_at"`
}

// Active reports whether the session can still be presented to a customer.
func (s *PaymentSession) Active(now time.Time) bool {
	return !s.Invalidated && now.Before(s.ExpiresAt)
}

// CallbackOutcome is the typed result of a gateway notification. Client-side
// payment handlers are UI feedback only; this is the authoritative variant
// consumed by reconciliation.
type CallbackOutcome string

const (
	OutcomeSuccess CallbackOutcome = "success"
	OutcomePending CallbackOutcome = "pending"
	OutcomeFailure CallbackOutcome = "failure"
)

// PaymentNotification is a verified, decoded gateway callback.
// Amount is the confirmed amount in the smallest currency unit and is only
// meaningful when Outcome is OutcomeSuccess.
type PaymentNotification struct {
	GatewayRef  string
	OrderNumber string
	Outcome     CallbackOutcome
	Amount      int64
}
