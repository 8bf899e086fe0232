// Package fee holds ad-hoc monetary adjustments attached to a cart session.
package fee

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/product"
)

// Scope determines where a fee is applied.
type Scope string

const (
	// ScopeCart fees are added once to the cart total.
	ScopeCart Scope = "cart"
	// ScopeItem fees are folded into the subtotal of every line of the
	// targeted product, or behave like cart fees when untargeted.
	ScopeItem Scope = "item"
)

// ErrInvalidFee is returned for fees that cannot be placed in a ledger. It
// matches product.ErrConfiguration.
var ErrInvalidFee = errors.Wrap(product.ErrConfiguration, "invalid fee")

// Fee is a flat signed adjustment. Negative amounts are discounts surfaced as
// fees for display purposes.
type Fee struct {
	ID              string
	Amount          decimal.Decimal
	Label           string
	Scope           Scope
	TargetProductID string
	// Taxable cart-level fees carry tax at the cart rate.
	Taxable bool
	// NoTax on a targeted item fee makes the targeted lines tax-exempt.
	NoTax bool
}

// Targeted reports whether the fee is folded into a specific product's lines.
func (f Fee) Targeted() bool {
	return f.Scope == ScopeItem && f.TargetProductID != ""
}

// Validate checks the fee shape.
func (f Fee) Validate() error {
	if f.ID == "" {
		return errors.Wrap(ErrInvalidFee, "id is required")
	}
	switch f.Scope {
	case ScopeCart:
		if f.TargetProductID != "" {
			return errors.Wrapf(ErrInvalidFee, "cart fee %q cannot target a product", f.ID)
		}
	case ScopeItem:
	default:
		return errors.Wrapf(ErrInvalidFee, "fee %q has unsupported scope %q", f.ID, f.Scope)
	}
	return nil
}
