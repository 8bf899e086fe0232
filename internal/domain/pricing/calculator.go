// Package pricing computes per-line and aggregate cart prices and memoizes the
// latest computation against a snapshot of its inputs.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

var hundred = decimal.NewFromInt(100)

// FeeSource is the read side of a fee ledger.
type FeeSource interface {
	Total(productID string) decimal.Decimal
	NoTax(productID string) bool
	Fees(filter fee.Filter) []fee.Fee
}

var _ FeeSource = (*fee.Ledger)(nil)

// Line is a resolved cart line.
type Line struct {
	// Index is the position of the line in the cart.
	Index int
	product.Resolution
}

// Input is everything a computation depends on.
type Input struct {
	Lines     []Line
	Fees      FeeSource
	Discounts []discount.Discount
	TaxRate   decimal.Decimal
	Tax       tax.Settings
}

// Calculator prices carts. It holds no per-cart state.
type Calculator struct {
	settings Settings
}

// NewCalculator creates a Calculator.
func NewCalculator(settings Settings) *Calculator {
	return &Calculator{settings: settings}
}

// Settings returns the calculator settings.
func (c *Calculator) Settings() Settings {
	return c.settings
}

// Calculate prices the input. Lines with a non-positive quantity are left out.
func (c *Calculator) Calculate(in Input) *Result {
	places := c.settings.Places
	items := make([]ItemDetail, 0, len(in.Lines))

	for _, l := range in.Lines {
		if l.Quantity < 1 {
			continue
		}
		base := decimal.Zero
		if !l.IsFree {
			base = c.clip(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))).Round(places)
		}
		fees := decimal.Zero
		exempt := l.TaxExempt
		if in.Fees != nil {
			fees = in.Fees.Total(l.ProductID).Round(places)
			exempt = exempt || in.Fees.NoTax(l.ProductID)
		}
		items = append(items, ItemDetail{
			Index:     l.Index,
			ProductID: l.ProductID,
			OptionID:  optionID(l.OptionID),
			Name:      l.DisplayName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Base:      base,
			Fees:      fees,
			Subtotal:  c.clip(base.Add(fees)),
			Discount:  decimal.Zero,
			TaxExempt: exempt,
		})
	}

	for _, d := range in.Discounts {
		c.allocate(items, d)
	}

	rate := decimal.Zero
	if in.Tax.Enabled && in.TaxRate.IsPositive() {
		rate = in.TaxRate
	}

	totals := Totals{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
		Fees:     decimal.Zero,
		Total:    decimal.Zero,
	}
	for i := range items {
		it := &items[i]
		sum := decimal.Zero
		for _, a := range it.Allocations {
			sum = sum.Add(a.Amount)
		}
		it.Discount = c.clipDiscount(sum, it.Subtotal)

		taxable := it.Subtotal.Sub(it.Discount)
		it.Tax = decimal.Zero
		if !it.TaxExempt {
			it.Tax = taxOn(taxable, rate, in.Tax.PricesIncludeTax, places)
		}
		it.Price = taxable
		if !in.Tax.PricesIncludeTax {
			it.Price = taxable.Add(it.Tax)
		}

		totals.Quantity += it.Quantity
		totals.Subtotal = totals.Subtotal.Add(it.Subtotal)
		totals.Discount = totals.Discount.Add(it.Discount)
		totals.Tax = totals.Tax.Add(it.Tax)
		totals.Total = totals.Total.Add(it.Price)
	}

	if in.Fees != nil {
		totals.Fees = in.Fees.Total("").Round(places)
		totals.Total = totals.Total.Add(totals.Fees)
		if !in.Tax.PricesIncludeTax && rate.IsPositive() {
			feeTax := c.cartFeeTax(in.Fees, rate)
			totals.Tax = totals.Tax.Add(feeTax)
			totals.Total = totals.Total.Add(feeTax)
		}
	}
	totals.Total = c.clip(totals.Total)

	return &Result{Items: items, Totals: totals, Places: places}
}

func optionID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// allocate records the share of d taken off each applicable line.
func (c *Calculator) allocate(items []ItemDetail, d discount.Discount) {
	places := c.settings.Places

	var qualifying []int
	discountable := decimal.Zero
	for i := range items {
		if !d.Applies(items[i].ProductID) || !items[i].Subtotal.IsPositive() {
			continue
		}
		qualifying = append(qualifying, i)
		discountable = discountable.Add(items[i].Subtotal)
	}
	if len(qualifying) == 0 {
		return
	}
	if d.MinCartPrice.IsPositive() && discountable.LessThan(d.MinCartPrice) {
		return
	}

	add := func(i int, amount decimal.Decimal) {
		items[i].Allocations = append(items[i].Allocations, Allocation{Code: d.Code, Amount: amount})
	}

	switch k := d.Kind.(type) {
	case discount.Percent:
		for _, i := range qualifying {
			add(i, items[i].Subtotal.Mul(k.Amount).Div(hundred).Round(places))
		}
	case discount.Flat:
		amount := k.Amount.Round(places)
		if d.NotGlobal {
			for _, i := range qualifying {
				add(i, amount)
			}
			return
		}
		if amount.GreaterThan(discountable) {
			amount = discountable
		}
		weights := make([]decimal.Decimal, len(qualifying))
		for j, i := range qualifying {
			weights[j] = items[i].Subtotal
		}
		for j, share := range splitByWeight(amount, weights, places) {
			add(qualifying[j], share)
		}
	}
}

func (c *Calculator) cartFeeTax(fees FeeSource, rate decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fees.Fees(fee.Filter{}) {
		if !f.Taxable || f.Targeted() {
			continue
		}
		total = total.Add(f.Amount.Mul(rate).Round(c.settings.Places))
	}
	return total
}

func taxOn(taxable, rate decimal.Decimal, inclusive bool, places int32) decimal.Decimal {
	if !taxable.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	if inclusive {
		return taxable.Sub(taxable.Div(decimal.NewFromInt(1).Add(rate))).Round(places)
	}
	return taxable.Mul(rate).Round(places)
}

// clip floors v at zero unless negative prices are allowed.
func (c *Calculator) clip(v decimal.Decimal) decimal.Decimal {
	if c.settings.AllowNegativePrices || !v.IsNegative() {
		return v
	}
	return decimal.Zero
}

// clipDiscount keeps a line discount within [0, subtotal].
func (c *Calculator) clipDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if !c.settings.AllowNegativePrices && discount.GreaterThan(subtotal) {
		return decimal.Max(subtotal, decimal.Zero)
	}
	return discount
}
