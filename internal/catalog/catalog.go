// Package catalog defines the contract consumed from the product catalog
// collaborator. Only variant lookup is needed by the order core; catalog
// internals live elsewhere.
package catalog

import (
	"context"
)

// AddOnOption is a purchasable extra offered for a variant.
type AddOnOption struct {
	ID    string
	Name  string
	Price int64
}

// Variant is the catalog's answer for one product variant lookup.
// Price and WeightGrams are in smallest currency unit and grams.
type Variant struct {
	ID          string
	ProductID   string
	ProductName string
	Price       int64
	WeightGrams int32
	Purchasable bool
	MinOrderQty int32
	AddOns      []AddOnOption
}

// AddOnByID returns the offered add-on with the given id, if any.
func (v *Variant) AddOnByID(id string) (AddOnOption, bool) {
	for _, a := range v.AddOns {
		if a.ID == id {
			return a, true
		}
	}
	return AddOnOption{}, false
}

// Service resolves variants for cart validation and snapshot pricing.
type Service interface {
	// GetVariant returns the variant or domain.ErrVariantNotFound.
	GetVariant(ctx context.Context, variantID string) (*Variant, error)
}
