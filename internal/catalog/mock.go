package catalog

import (
	"context"

	"github.com/arunika-id/arunika/internal/domain"
)

// MockCatalog is an in-memory catalog for tests and local development.
type MockCatalog struct {
	Variants map[string]*Variant

	// Err, when set, is returned from every lookup.
	Err error
}

// NewMockCatalog creates an empty mock catalog.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{Variants: make(map[string]*Variant)}
}

// Add registers a variant.
func (m *MockCatalog) Add(v *Variant) {
	m.Variants[v.ID] = v
}

// GetVariant implements Service.
func (m *MockCatalog) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	v, ok := m.Variants[variantID]
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	cp := *v
	return &cp, nil
}
