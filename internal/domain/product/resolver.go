package product

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrConfiguration is matched by every error that rejects a cart line because
// the catalog cannot price it.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError indicates a product, option or quantity that cannot be
// resolved to a price.
type ConfigurationError struct {
	ProductID string
	OptionID  string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.OptionID != "" {
		return fmt.Sprintf("product %s option %s: %s", e.ProductID, e.OptionID, e.Reason)
	}
	return fmt.Sprintf("product %s: %s", e.ProductID, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Lookup finds products by id.
type Lookup interface {
	Lookup(id string) (Product, bool)
}

// Resolution is the canonical pricing of a single cart line.
type Resolution struct {
	ProductID   string
	OptionID    string
	DisplayName string
	UnitPrice   decimal.Decimal
	Quantity    int
	IsFree      bool
	TaxExempt   bool
}

// Resolver turns product references into unit prices.
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a Resolver reading from the given lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the unit price, display name and effective quantity of a
// product reference. It has no side effects.
func (r *Resolver) Resolve(productID string, optionID *string, quantity int) (Resolution, error) {
	p, ok := r.lookup.Lookup(productID)
	if !ok {
		return Resolution{}, &ConfigurationError{ProductID: productID, Reason: "unknown product"}
	}
	if quantity < 1 {
		return Resolution{}, &ConfigurationError{ProductID: productID, Reason: "quantity must be at least 1"}
	}
	if p.QuantityDisabled {
		quantity = 1
	}

	res := Resolution{
		ProductID:   p.ID,
		DisplayName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    quantity,
		TaxExempt:   p.TaxExempt,
	}

	optID := ""
	if optionID != nil {
		optID = *optionID
	}
	if optID == "" && p.VariablePricing {
		optID = p.DefaultOptionID
		if optID == "" {
			return Resolution{}, &ConfigurationError{ProductID: productID, Reason: "price option required"}
		}
	}
	if optID != "" {
		opt, ok := p.Option(optID)
		if !ok {
			return Resolution{}, &ConfigurationError{ProductID: productID, OptionID: optID, Reason: "unknown price option"}
		}
		res.OptionID = opt.ID
		res.UnitPrice = opt.Price
		if opt.Name != "" {
			res.DisplayName = p.Name + " - " + opt.Name
		}
	}

	res.IsFree = res.UnitPrice.IsZero()
	return res, nil
}
