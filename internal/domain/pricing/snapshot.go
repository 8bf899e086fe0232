package pricing

import (
	"bytes"
	"maps"
	"slices"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

// SnapshotItem is the identity and quantity of one cart line.
type SnapshotItem struct {
	ProductID string
	OptionID  *string
	Quantity  int
	Options   map[string]string
	// Resolved catalog values, so a catalog reload changes the snapshot.
	Name      string
	UnitPrice decimal.Decimal
	Free      bool
	TaxExempt bool
}

// SnapshotInput lists every value a computation depends on.
type SnapshotInput struct {
	Items     []SnapshotItem
	Discounts []discount.Discount
	Fees      []fee.Fee
	TaxRate   decimal.Decimal
	Tax       tax.Settings
	Settings  Settings
}

// Snapshot is a canonical encoding of computation inputs. Two snapshots are
// equal when their encodings are byte-equal.
type Snapshot struct {
	raw []byte
}

// NewSnapshot encodes in canonically: map keys sorted, decimals normalized.
func NewSnapshot(in SnapshotInput) Snapshot {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range in.Items {
					encodeSnapshotItem(e, it)
				}
			})
		})
		e.Field("discounts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range in.Discounts {
					encodeSnapshotDiscount(e, d)
				}
			})
		})
		e.Field("fees", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, f := range in.Fees {
					encodeSnapshotFee(e, f)
				}
			})
		})
		e.Field("taxRate", func(e *jx.Encoder) { e.Str(in.TaxRate.String()) })
		e.Field("taxEnabled", func(e *jx.Encoder) { e.Bool(in.Tax.Enabled) })
		e.Field("taxInclusive", func(e *jx.Encoder) { e.Bool(in.Tax.PricesIncludeTax) })
		e.Field("places", func(e *jx.Encoder) { e.Int32(in.Settings.Places) })
		e.Field("negative", func(e *jx.Encoder) { e.Bool(in.Settings.AllowNegativePrices) })
	})

	return Snapshot{raw: slices.Clone(e.Bytes())}
}

// Equal reports structural equality.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.raw != nil && bytes.Equal(s.raw, other.raw)
}

// IsZero reports whether the snapshot was never built.
func (s Snapshot) IsZero() bool {
	return s.raw == nil
}

// String returns the canonical encoding.
func (s Snapshot) String() string {
	return string(s.raw)
}

func encodeSnapshotItem(e *jx.Encoder, it SnapshotItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("option", func(e *jx.Encoder) {
			if it.OptionID == nil {
				e.Null()
				return
			}
			e.Str(*it.OptionID)
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("options", func(e *jx.Encoder) { EncodeOptions(e, it.Options) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { e.Str(it.UnitPrice.String()) })
		e.Field("free", func(e *jx.Encoder) { e.Bool(it.Free) })
		e.Field("taxExempt", func(e *jx.Encoder) { e.Bool(it.TaxExempt) })
	})
}

// EncodeOptions writes an options map with sorted keys.
func EncodeOptions(e *jx.Encoder, options map[string]string) {
	e.Obj(func(e *jx.Encoder) {
		for _, k := range slices.Sorted(maps.Keys(options)) {
			e.Field(k, func(e *jx.Encoder) { e.Str(options[k]) })
		}
	})
}

func encodeSnapshotDiscount(e *jx.Encoder, d discount.Discount) {
	typ, amount := discount.KindName(d.Kind)
	scope, products := discount.ScopeName(d.Scope)
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(d.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(typ) })
		e.Field("amount", func(e *jx.Encoder) { e.Str(amount.String()) })
		e.Field("scope", func(e *jx.Encoder) { e.Str(scope) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range slices.Sorted(slices.Values(products)) {
					e.Str(p)
				}
			})
		})
		e.Field("notGlobal", func(e *jx.Encoder) { e.Bool(d.NotGlobal) })
		e.Field("minCartPrice", func(e *jx.Encoder) { e.Str(d.MinCartPrice.String()) })
	})
}

func encodeSnapshotFee(e *jx.Encoder, f fee.Fee) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(f.ID) })
		e.Field("amount", func(e *jx.Encoder) { e.Str(f.Amount.String()) })
		e.Field("label", func(e *jx.Encoder) { e.Str(f.Label) })
		e.Field("scope", func(e *jx.Encoder) { e.Str(string(f.Scope)) })
		e.Field("target", func(e *jx.Encoder) { e.Str(f.TargetProductID) })
		e.Field("taxable", func(e *jx.Encoder) { e.Bool(f.Taxable) })
		e.Field("noTax", func(e *jx.Encoder) { e.Bool(f.NoTax) })
	})
}
