package pricing

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Allocation is the share of one discount taken off one line.
type Allocation struct {
	Code   string
	Amount decimal.Decimal
}

// ItemDetail is the priced view of one cart line.
type ItemDetail struct {
	// Index is the position of the line in the cart.
	Index       int
	ProductID   string
	OptionID    *string
	Name        string
	Quantity    int
	UnitPrice   decimal.Decimal
	Base        decimal.Decimal
	Fees        decimal.Decimal
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Allocations []Allocation
	Tax         decimal.Decimal
	Price       decimal.Decimal
	TaxExempt   bool
}

// Totals are cart aggregates. Every field except Fees is a sum of rounded
// per-item values.
type Totals struct {
	Quantity int
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	// Fees is the cart-level fee total, added once to Total.
	Fees  decimal.Decimal
	Total decimal.Decimal
}

// Result is an immutable pricing computation.
type Result struct {
	Items  []ItemDetail
	Totals Totals
	// Places is the rounding precision money fields are rendered with.
	Places int32
}

// Encode writes the result as JSON.
func (r *Result) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range r.Items {
					r.Items[i].encode(e, r.Places)
				}
			})
		})
		e.Field("totals", func(e *jx.Encoder) { r.Totals.encode(e, r.Places) })
	})
}

func (d *ItemDetail) encode(e *jx.Encoder, places int32) {
	money := func(name string, v decimal.Decimal) { encodeMoney(e, name, v, places) }
	e.Obj(func(e *jx.Encoder) {
		e.Field("index", func(e *jx.Encoder) { e.Int(d.Index) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(d.ProductID) })
		if d.OptionID != nil {
			e.Field("optionId", func(e *jx.Encoder) { e.Str(*d.OptionID) })
		}
		e.Field("name", func(e *jx.Encoder) { e.Str(d.Name) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(d.Quantity) })
		money("unitPrice", d.UnitPrice)
		money("base", d.Base)
		money("fees", d.Fees)
		money("subtotal", d.Subtotal)
		money("discount", d.Discount)
		if len(d.Allocations) > 0 {
			e.Field("allocations", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, a := range d.Allocations {
						e.Obj(func(e *jx.Encoder) {
							e.Field("code", func(e *jx.Encoder) { e.Str(a.Code) })
							money("amount", a.Amount)
						})
					}
				})
			})
		}
		money("tax", d.Tax)
		money("price", d.Price)
		if d.TaxExempt {
			e.Field("taxExempt", func(e *jx.Encoder) { e.Bool(true) })
		}
	})
}

func (t Totals) encode(e *jx.Encoder, places int32) {
	money := func(name string, v decimal.Decimal) { encodeMoney(e, name, v, places) }
	e.Obj(func(e *jx.Encoder) {
		e.Field("quantity", func(e *jx.Encoder) { e.Int(t.Quantity) })
		money("subtotal", t.Subtotal)
		money("discount", t.Discount)
		money("tax", t.Tax)
		money("fees", t.Fees)
		money("total", t.Total)
	})
}

// Size returns the encoded size of the result in bytes.
func (r *Result) Size() int {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	r.Encode(e)
	return len(e.Bytes())
}

// encodeMoney writes amounts as strings to keep decimal precision.
func encodeMoney(e *jx.Encoder, name string, v decimal.Decimal, places int32) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v.StringFixed(places)) })
}
