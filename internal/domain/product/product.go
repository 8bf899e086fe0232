package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by repositories when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	// Options holds the priced variants of a product with variable pricing.
	Options []Option
	// DefaultOptionID is used when a variable-priced product is added without
	// an explicit option.
	DefaultOptionID string
	// VariablePricing makes Options authoritative over Price.
	VariablePricing bool
	// QuantityDisabled collapses every requested quantity to 1.
	QuantityDisabled bool
	// TaxExempt excludes the product from tax calculation.
	TaxExempt bool
}

// Option is a priced variant (price tier) of a product.
type Option struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Option returns the priced option with the given id.
func (p *Product) Option(id string) (Option, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
