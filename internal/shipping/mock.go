package shipping

import (
	"context"
)

// MockProvider is a test implementation of Provider.
type MockProvider struct {
	QuoteFunc func(ctx context.Context, params QuoteParams) ([]Quote, error)

	// Quotes is returned when QuoteFunc is nil.
	Quotes []Quote
}

// NewMockProvider creates a new mock shipping provider for testing.
func NewMockProvider(quotes ...Quote) *MockProvider {
	return &MockProvider{Quotes: quotes}
}

// Quote delegates to the configured function or returns the fixed list.
func (m *MockProvider) Quote(ctx context.Context, params QuoteParams) ([]Quote, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, params)
	}
	return m.Quotes, nil
}
