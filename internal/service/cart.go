// Package service implements the business logic of the order and
// payment lifecycle: carts, checkout, orders, reconciliation, recovery,
// and invoices.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/catalog"
	"github.com/arunika-id/arunika/internal/domain"
	"github.com/arunika-id/arunika/internal/store"
	"github.com/arunika-id/arunika/internal/telemetry"
)

// AddItemParams describes one add-to-cart request.
type AddItemParams struct {
	VariantID     string
	Quantity      int32
	AddOnIDs      []string
	Customization map[string]string
}

// CartService provides business logic for shopping cart operations.
type CartService interface {
	// GetCart returns the owner's cart, creating an empty one if needed.
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, error)

	// AddItem validates the variant against the catalog and adds a line,
	// merging with an existing line when variant, add-ons, and
	// customization all match.
	AddItem(ctx context.Context, ownerID string, params AddItemParams) (*domain.Cart, error)

	// UpdateItemQuantity sets a line's quantity. Zero removes the line.
	UpdateItemQuantity(ctx context.Context, ownerID string, itemID uuid.UUID, quantity int32) (*domain.Cart, error)

	// RemoveItem removes a line from the cart.
	RemoveItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*domain.Cart, error)

	// Clear removes every line from the cart.
	Clear(ctx context.Context, ownerID string) (*domain.Cart, error)
}

type cartService struct {
	store   store.Store
	catalog catalog.Service
	logger  *slog.Logger
}

// NewCartService creates a new CartService instance
func NewCartService(st store.Store, cat catalog.Service, logger *slog.Logger) CartService {
	if logger == nil {
		logger = slog.Default()
	}
	return &cartService{store: st, catalog: cat, logger: logger}
}

func (s *cartService) GetCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	cart, err := s.store.GetCart(ctx, ownerID)
	if errors.Is(err, domain.ErrCartNotFound) {
		now := time.Now()
		cart = &domain.Cart{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			Status:    domain.CartStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.SaveCart(ctx, cart); err != nil {
			return nil, err
		}
		return cart, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) AddItem(ctx context.Context, ownerID string, params AddItemParams) (*domain.Cart, error) {
	if params.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	variant, err := s.catalog.GetVariant(ctx, params.VariantID)
	if err != nil {
		return nil, err
	}
	if !variant.Purchasable {
		return nil, domain.ErrVariantUnavailable
	}
	if variant.MinOrderQty > 0 && params.Quantity < variant.MinOrderQty {
		return nil, domain.ErrBelowMinimumQuantity
	}

	addOns := make([]domain.AddOn, 0, len(params.AddOnIDs))
	for _, id := range params.AddOnIDs {
		option, ok := variant.AddOnByID(id)
		if !ok {
			return nil, domain.ErrUnknownAddOn
		}
		addOns = append(addOns, domain.AddOn{ID: option.ID, Name: option.Name, Price: option.Price})
	}

	cart, err := s.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	line := domain.CartItem{
		ID:            uuid.New(),
		ProductID:     variant.ProductID,
		VariantID:     variant.ID,
		ProductName:   variant.ProductName,
		Quantity:      params.Quantity,
		UnitPrice:     variant.Price,
		UnitWeight:    variant.WeightGrams,
		AddOns:        addOns,
		Customization: params.Customization,
	}

	merged := false
	for idx := range cart.Items {
		if cart.Items[idx].SameSelection(&line) {
			cart.Items[idx].Quantity += params.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, line)
	}

	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartItemsAdded.WithLabelValues(variant.ProductID).Add(float64(params.Quantity))
		telemetry.Business.CartUpdated.WithLabelValues("add").Inc()
	}
	s.logger.Info("cart item added",
		"owner_id", ownerID,
		"variant_id", variant.ID,
		"quantity", params.Quantity,
		"merged", merged,
	)
	return cart, nil
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, ownerID string, itemID uuid.UUID, quantity int32) (*domain.Cart, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, ownerID, itemID)
	}
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	cart, err := s.store.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.ErrCartItemNotFound
	}

	// Minimum order quantity is enforced against the current catalog, not
	// the snapshot, so a raised minimum applies to later edits too.
	variant, err := s.catalog.GetVariant(ctx, cart.Items[idx].VariantID)
	if err == nil && variant.MinOrderQty > 0 && quantity < variant.MinOrderQty {
		return nil, domain.ErrBelowMinimumQuantity
	}

	cart.Items[idx].Quantity = quantity
	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("update_quantity").Inc()
	}
	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.store.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	kept := cart.Items[:0]
	found := false
	for _, item := range cart.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, domain.ErrCartItemNotFound
	}
	cart.Items = kept

	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("remove").Inc()
	}
	return cart, nil
}

func (s *cartService) Clear(ctx context.Context, ownerID string) (*domain.Cart, error) {
	cart, err := s.store.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	cart.Items = nil

	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("clear").Inc()
	}
	return cart, nil
}

func (s *cartService) saveCart(ctx context.Context, cart *domain.Cart) error {
	cart.Recompute()
	cart.Status = domain.CartStatusActive
	cart.UpdatedAt = time.Now()
	return s.store.SaveCart(ctx, cart)
}
