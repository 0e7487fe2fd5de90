package billing

import (
	"context"
	"time"

	"github.com/arunika-id/arunika/internal/domain"
)

// Provider defines the interface for payment processing.
// Implementations can use Midtrans-style snap gateways, or mocks in tests.
type Provider interface {
	// CreateSession registers a pending transaction with the gateway and
	// returns a hosted payment session. One gateway transaction per call;
	// idempotency across calls is the caller's responsibility.
	CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error)

	// DecodeNotification parses and authenticates an async payment
	// notification payload. Returns ErrInvalidSignature when the payload
	// cannot be proven to come from the gateway.
	DecodeNotification(payload []byte) (*domain.PaymentNotification, error)
}

// CreateSessionParams contains parameters for opening a payment session.
type CreateSessionParams struct {
	// OrderNumber is the merchant-side reference shown to the customer.
	// The gateway echoes it back in notifications.
	OrderNumber string

	// Amount to collect in the smallest currency unit.
	Amount int64

	// CustomerName and CustomerEmail prefill the gateway payment page.
	CustomerName  string
	CustomerEmail string

	// Expiry bounds how long the hosted session stays payable.
	Expiry time.Duration
}

// Session is a hosted payment session handed to the storefront frontend.
type Session struct {
	// Token is consumed by the gateway's frontend widget.
	Token string

	// RedirectURL is the hosted payment page fallback.
	RedirectURL string

	ExpiresAt time.Time
}
