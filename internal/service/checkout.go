package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/shipping"
	"github.com/arunika-id/arunika/internal/store"
)

// CheckoutService computes shipping quotes for the owner's current cart.
type CheckoutService interface {
	// GetShippingQuotes returns carrier options for the cart's total
	// weight, cheapest first. All-digital carts (zero weight) get an
	// empty list without contacting the rate provider.
	GetShippingQuotes(ctx context.Context, ownerID, destinationPostalCode, carrierCode string) ([]shipping.Quote, error)
}

type checkoutService struct {
	store    store.Store
	provider shipping.Provider
	logger   *slog.Logger

	// Quotes are cached per owner and keyed on the cart revision and
	// destination, so any cart mutation naturally invalidates them.
	mu    sync.Mutex
	cache map[string]quoteCacheEntry
}

type quoteCacheEntry struct {
	key    quoteCacheKey
	quotes []shipping.Quote
}

type quoteCacheKey struct {
	cartUpdatedAt time.Time
	postalCode    string
	carrierCode   string
}

// NewCheckoutService creates a new CheckoutService instance
func NewCheckoutService(st store.Store, provider shipping.Provider, logger *slog.Logger) CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &checkoutService{
		store:    st,
		provider: provider,
		logger:   logger,
		cache:    make(map[string]quoteCacheEntry),
	}
}

func (s *checkoutService) GetShippingQuotes(ctx context.Context, ownerID, destinationPostalCode, carrierCode string) ([]shipping.Quote, error) {
	cart, err := s.store.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	if !cart.RequiresShipping() {
		return []shipping.Quote{}, nil
	}
	if !shipping.ValidPostalCode(destinationPostalCode) {
		return nil, domain.Invalid("checkout.quotes", "Destination postal code is not valid")
	}

	key := quoteCacheKey{
		cartUpdatedAt: cart.UpdatedAt,
		postalCode:    destinationPostalCode,
		carrierCode:   carrierCode,
	}

	s.mu.Lock()
	entry, ok := s.cache[ownerID]
	s.mu.Unlock()
	if ok && entry.key == key {
		return entry.quotes, nil
	}

	quotes, err := s.provider.Quote(ctx, shipping.QuoteParams{
		DestinationPostalCode: destinationPostalCode,
		WeightGrams:           cart.TotalWeight,
		CarrierCode:           carrierCode,
	})
	if err != nil {
		if shipping.IsUnavailable(err) {
			return nil, domain.WrapError(err, domain.EUNAVAILABLE, "checkout.quotes", "Shipping quotes temporarily unavailable")
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[ownerID] = quoteCacheEntry{key: key, quotes: quotes}
	s.mu.Unlock()

	s.logger.Info("shipping quotes computed",
		"owner_id", ownerID,
		"destination", destinationPostalCode,
		"weight_grams", cart.TotalWeight,
		"quote_count", len(quotes),
	)
	return quotes, nil
}
