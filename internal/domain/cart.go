package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart domain errors.
var (
	ErrCartNotFound         = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound     = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrEmptyCart            = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity      = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrBelowMinimumQuantity = &Error{Code: EINVALID, Message: "Quantity is below the product's minimum order quantity"}
	ErrVariantNotFound      = &Error{Code: ENOTFOUND, Message: "Product variant not found"}
	ErrVariantUnavailable   = &Error{Code: EINVALID, Message: "Product variant is not available for purchase"}
	ErrUnknownAddOn         = &Error{Code: EINVALID, Message: "Add-on is not offered for this variant"}
)

// Cart lifecycle statuses.
const (
	CartStatusActive    = "active"
	CartStatusAbandoned = "abandoned"
)

// AddOn is a priced extra attached to a cart line (e.g., gift wrapping,
// premium paper). Price is in the smallest currency unit.
type AddOn struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// CartItem is a single cart line. UnitPrice and UnitWeight are snapshots
// taken when the item was added; later catalog changes do not affect them.
type CartItem struct {
	ID            uuid.UUID         `json:"id"`
	ProductID     string            `json:"product_id"`
	VariantID     string            `json:"variant_id"`
	ProductName   string            `json:"product_name"`
	Quantity      int32             `json:"quantity"`
	UnitPrice     int64             `json:"unit_price"`
	UnitWeight    int32             `json:"unit_weight_grams"`
	AddOns        []AddOn           `json:"add_ons,omitempty"`
	Customization map[string]string `json:"customization,omitempty"`
	LineSubtotal  int64             `json:"line_subtotal"`
}

// ComputeSubtotal recalculates the line subtotal from its inputs:
// unit price times quantity plus add-on costs per unit.
func (i *CartItem) ComputeSubtotal() int64 {
	var addOnUnit int64
	for _, a := range i.AddOns {
		addOnUnit += a.Price
	}
	return (i.UnitPrice + addOnUnit) * int64(i.Quantity)
}

// SameSelection reports whether another line refers to the same variant with
// identical add-ons and customization, i.e. the lines can be merged.
func (i *CartItem) SameSelection(other *CartItem) bool {
	if i.VariantID != other.VariantID {
		return false
	}
	if len(i.AddOns) != len(other.AddOns) || len(i.Customization) != len(other.Customization) {
		return false
	}
	for idx, a := range i.AddOns {
		if other.AddOns[idx].ID != a.ID {
			return false
		}
	}
	for k, v := range i.Customization {
		if other.Customization[k] != v {
			return false
		}
	}
	return true
}

// Cart is the active cart for one owner (session or user).
// Subtotal and TotalWeight are derived from Items and must be recomputed
// inside every mutation; they are never authoritative on their own.
type Cart struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Items       []CartItem `json:"items"`
	Subtotal    int64      `json:"subtotal"`
	TotalWeight int32      `json:"total_weight_grams"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Recompute rebuilds the derived totals from the item lines.
func (c *Cart) Recompute() {
	var subtotal int64
	var weight int32
	for idx := range c.Items {
		c.Items[idx].LineSubtotal = c.Items[idx].ComputeSubtotal()
		subtotal += c.Items[idx].LineSubtotal
		weight += c.Items[idx].UnitWeight * c.Items[idx].Quantity
	}
	c.Subtotal = subtotal
	c.TotalWeight = weight
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// RequiresShipping reports whether any line has physical weight.
// All-digital carts (zero total weight) skip shipping selection entirely.
func (c *Cart) RequiresShipping() bool {
	return c.TotalWeight > 0
}
