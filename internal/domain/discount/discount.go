// Package discount models discount codes, the ordered stack of codes applied
// to a cart, and the validity check performed before a code enters the stack.
package discount

import (
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Storage names of discount kinds and scopes.
const (
	TypePercent = "percent"
	TypeFlat    = "flat"

	ScopeAll      = "all"
	ScopeIncluded = "included"
	ScopeExcluded = "excluded"
)

var (
	// ErrInvalidDiscount is returned when a code is unknown or malformed.
	ErrInvalidDiscount = errors.New("invalid discount code")
	// ErrExpired is returned when a code is outside its valid time window.
	ErrExpired = errors.New("discount expired")
	// ErrUsageLimitReached is returned when a code has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("discount usage limit reached")
)

// Kind is the amount rule of a discount: Percent or Flat.
type Kind interface {
	isKind()
}

// Percent takes Amount percent off each applicable item subtotal.
type Percent struct {
	Amount decimal.Decimal
}

// Flat takes a fixed Amount off the applicable items.
type Flat struct {
	Amount decimal.Decimal
}

func (Percent) isKind() {}
func (Flat) isKind()    {}

// Scope selects the products a discount applies to: All, Included or Excluded.
type Scope interface {
	Applies(productID string) bool
	isScope()
}

// All applies to every product.
type All struct{}

// Included applies only to the listed products.
type Included struct {
	Products []string
}

// Excluded applies to every product except the listed ones.
type Excluded struct {
	Products []string
}

func (All) Applies(string) bool { return true }

func (s Included) Applies(productID string) bool {
	return slices.Contains(s.Products, productID)
}

func (s Excluded) Applies(productID string) bool {
	return !slices.Contains(s.Products, productID)
}

func (All) isScope()      {}
func (Included) isScope() {}
func (Excluded) isScope() {}

// Discount is an already validated discount code ready to be priced.
type Discount struct {
	Code        string
	Description string
	Kind        Kind
	Scope       Scope
	// NotGlobal flat discounts take their full amount off every applicable
	// line instead of being split across them.
	NotGlobal bool
	// MinCartPrice is compared with the discountable subtotal; a discount
	// below the threshold contributes nothing.
	MinCartPrice decimal.Decimal
}

// Applies reports whether the discount applies to lines of the product.
func (d Discount) Applies(productID string) bool {
	if d.Scope == nil {
		return true
	}
	return d.Scope.Applies(productID)
}

// Rule is a stored discount together with its validity constraints.
type Rule struct {
	Discount   Discount
	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
	MaxUses    int
	Uses       int
}

// NormalizeCode canonicalizes a code for comparison and storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewKind builds a Kind from its storage name.
func NewKind(typ string, amount decimal.Decimal) (Kind, error) {
	if amount.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidDiscount, "negative amount %s", amount)
	}
	switch typ {
	case TypePercent:
		return Percent{Amount: amount}, nil
	case TypeFlat:
		return Flat{Amount: amount}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidDiscount, "unsupported discount type %q", typ)
	}
}

// KindName returns the storage name and amount of a Kind.
func KindName(k Kind) (string, decimal.Decimal) {
	switch k := k.(type) {
	case Percent:
		return TypePercent, k.Amount
	case Flat:
		return TypeFlat, k.Amount
	default:
		return "", decimal.Zero
	}
}

// NewScope builds a Scope from its storage name.
func NewScope(name string, products []string) (Scope, error) {
	switch name {
	case ScopeAll, "":
		return All{}, nil
	case ScopeIncluded:
		return Included{Products: products}, nil
	case ScopeExcluded:
		return Excluded{Products: products}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidDiscount, "unsupported scope %q", name)
	}
}

// ScopeName returns the storage name and product list of a Scope.
func ScopeName(s Scope) (string, []string) {
	switch s := s.(type) {
	case Included:
		return ScopeIncluded, s.Products
	case Excluded:
		return ScopeExcluded, s.Products
	default:
		return ScopeAll, nil
	}
}
