package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/arunika-id/arunika/internal/domain"
)

// MockProvider is a test implementation of Provider.
type MockProvider struct {
	CreateSessionFunc      func(ctx context.Context, params CreateSessionParams) (*Session, error)
	DecodeNotificationFunc func(payload []byte) (*domain.PaymentNotification, error)

	// CreateSessionCalls records params from every CreateSession call.
	CreateSessionCalls []CreateSessionParams
}

// NewMockProvider creates a mock provider issuing deterministic tokens.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// CreateSession delegates to the configured function or fabricates a session.
func (m *MockProvider) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	m.CreateSessionCalls = append(m.CreateSessionCalls, params)
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, params)
	}
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = defaultSessionExpiry
	}
	n := len(m.CreateSessionCalls)
	return &Session{
		Token:       fmt.Sprintf("mock-token-%s-%d", params.OrderNumber, n),
		RedirectURL: fmt.Sprintf("https://pay.example.test/%s/%d", params.OrderNumber, n),
		ExpiresAt:   time.Now().Add(expiry),
	}, nil
}

// DecodeNotification delegates to the configured function or rejects.
func (m *MockProvider) DecodeNotification(payload []byte) (*domain.PaymentNotification, error) {
	if m.DecodeNotificationFunc != nil {
		return m.DecodeNotificationFunc(payload)
	}
	return nil, ErrMalformedNotification
}
