package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/arunika-id/arunika/internal/domain"
)

// FileCatalog serves variants from a JSON seed file loaded at startup.
// The catalog proper is managed by a separate system; this is the
// read-side the order core consumes until that system exposes an API.
type FileCatalog struct {
	variants map[string]*Variant
}

type catalogFile struct {
	Variants []fileVariant `json:"variants"`
}

type fileVariant struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	Price       int64        `json:"price"`
	WeightGrams int32        `json:"weight_grams"`
	Purchasable bool         `json:"purchasable"`
	MinOrderQty int32        `json:"min_order_qty"`
	AddOns      []fileAddOn  `json:"add_ons,omitempty"`
}

type fileAddOn struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// NewFileCatalog loads the seed file and indexes its variants.
func NewFileCatalog(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc catalogFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	variants := make(map[string]*Variant, len(doc.Variants))
	for _, fv := range doc.Variants {
		if fv.ID == "" {
			return nil, fmt.Errorf("catalog file %s: variant with empty id", path)
		}
		if fv.Price < 0 {
			return nil, fmt.Errorf("catalog file %s: variant %s has negative price", path, fv.ID)
		}
		v := &Variant{
			ID:          fv.ID,
			ProductID:   fv.ProductID,
			ProductName: fv.ProductName,
			Price:       fv.Price,
			WeightGrams: fv.WeightGrams,
			Purchasable: fv.Purchasable,
			MinOrderQty: fv.MinOrderQty,
		}
		for _, fa := range fv.AddOns {
			v.AddOns = append(v.AddOns, AddOnOption{ID: fa.ID, Name: fa.Name, Price: fa.Price})
		}
		variants[v.ID] = v
	}

	return &FileCatalog{variants: variants}, nil
}

// Len reports how many variants were loaded.
func (c *FileCatalog) Len() int { return len(c.variants) }

// GetVariant implements Service.
func (c *FileCatalog) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	v, ok := c.variants[variantID]
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	cp := *v
	return &cp, nil
}
