package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr(s string) *string {
	return &s
}

func newTestCatalog() *product.Catalog {
	return product.NewCatalog(
		product.Product{ID: "shirt", Name: "Shirt", Price: d("20.00")},
		product.Product{ID: "mug", Name: "Mug", Price: d("20.00")},
		product.Product{ID: "sticker", Name: "Sticker", Price: d("1.25")},
		product.Product{
			ID:              "course",
			Name:            "Course",
			VariablePricing: true,
			DefaultOptionID: "basic",
			Options: []product.Option{
				{ID: "basic", Name: "Basic", Price: d("49.00")},
				{ID: "pro", Name: "Pro", Price: d("99.00")},
			},
		},
		product.Product{ID: "support", Name: "Support", Price: d("5.00"), QuantityDisabled: true},
	)
}

func newTestCart(t *testing.T, mutate func(s *Settings), opts ...Option) *Cart {
	t.Helper()
	s := DefaultSettings()
	s.AllowMultipleDiscounts = true
	if mutate != nil {
		mutate(&s)
	}
	return New(product.NewResolver(newTestCatalog()), s, opts...)
}

func withTax(t *testing.T, rate string) Option {
	t.Helper()
	r, err := tax.NewResolver(d(rate), nil)
	require.NoError(t, err)
	return WithTaxes(r, tax.Settings{Enabled: true})
}

func percentOff(code, amount string) discount.Discount {
	return discount.Discount{Code: code, Kind: discount.Percent{Amount: d(amount)}, Scope: discount.All{}}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

func mustTotal(t *testing.T, c *Cart) decimal.Decimal {
	t.Helper()
	v, err := c.Total()
	require.NoError(t, err)
	return v
}

func TestCart_Scenarios(t *testing.T) {
	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, c.ApplyDiscount(percentOff("twenty", "20")))
	details, err := c.Details()
	require.NoError(t, err)
	require.Len(t, details, 1)
	assertMoney(t, "4.00", details[0].Discount, "discount")
	assertMoney(t, "16.00", details[0].Price, "price")
	got, err := c.DiscountTotal()
	require.NoError(t, err)
	assertMoney(t, "4.00", got, "discount total")

	r, err := tax.NewResolver(d("0.20"), nil)
	require.NoError(t, err)
	c.taxes = r
	c.SetTaxSettings(tax.Settings{Enabled: true})
	details, err = c.Details()
	require.NoError(t, err)
	assertMoney(t, "3.20", details[0].Tax, "tax")
	assertMoney(t, "19.20", details[0].Price, "price with tax")

	assert.True(t, c.RemoveDiscount("TWENTY"))
	details, err = c.Details()
	require.NoError(t, err)
	assertMoney(t, "0", details[0].Discount, "discount removed")
	assertMoney(t, "4.00", details[0].Tax, "tax on full price")
	assertMoney(t, "24.00", details[0].Price, "price")
}

func TestCart_FlatSplit(t *testing.T) {
	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
	require.NoError(t, err)
	_, err = c.Add(Item{ProductID: "mug", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, c.ApplyDiscount(discount.Discount{Code: "FLAT", Kind: discount.Flat{Amount: d("8.73")}}))

	details, err := c.Details()
	require.NoError(t, err)
	assertMoney(t, "8.73", details[0].Discount.Add(details[1].Discount), "conservation")
	assertMoney(t, "4.36", details[1].Discount, "last absorbs remainder")
}

func TestCart_CacheCorrectness(t *testing.T) {
	c := newTestCart(t, nil, withTax(t, "0.10"))

	mutations := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{name: "add item", fn: func(t *testing.T) {
			_, err := c.Add(Item{ProductID: "shirt", Quantity: 2})
			require.NoError(t, err)
		}},
		{name: "add option item", fn: func(t *testing.T) {
			_, err := c.Add(Item{ProductID: "course", OptionID: ptr("pro"), Quantity: 1})
			require.NoError(t, err)
		}},
		{name: "set quantity", fn: func(t *testing.T) { require.NoError(t, c.SetQuantity(0, 3)) }},
		{name: "apply discount", fn: func(t *testing.T) { require.NoError(t, c.ApplyDiscount(percentOff("TEN", "10"))) }},
		{name: "add fee", fn: func(t *testing.T) {
			ok, err := c.AddFee(fee.Fee{ID: "ship", Amount: d("4.99"), Scope: fee.ScopeCart, Taxable: true})
			require.NoError(t, err)
			require.True(t, ok)
		}},
		{name: "set jurisdiction", fn: func(t *testing.T) { c.SetJurisdiction(tax.Jurisdiction{Country: "US"}) }},
		{name: "tax inclusive", fn: func(t *testing.T) {
			c.SetTaxSettings(tax.Settings{Enabled: true, PricesIncludeTax: true})
		}},
		{name: "remove fee", fn: func(t *testing.T) { require.True(t, c.RemoveFee("ship")) }},
		{name: "remove discount", fn: func(t *testing.T) { require.True(t, c.RemoveDiscount("ten")) }},
		{name: "remove item", fn: func(t *testing.T) { require.NoError(t, c.Remove(0)) }},
		{name: "empty", fn: func(t *testing.T) { c.Empty() }},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			_, err := c.Calculate()
			require.NoError(t, err)
			require.True(t, c.CalculationStats().Cached)

			m.fn(t)
			assert.False(t, c.CalculationStats().Cached, "mutation must invalidate")

			got, err := c.Calculate()
			require.NoError(t, err)
			assert.True(t, c.CalculationStats().Cached)

			lines, err := c.resolve()
			require.NoError(t, err)
			assert.Equal(t, c.compute(lines), got, "cached result equals a fresh computation")
		})
	}
}

func TestCart_Idempotence(t *testing.T) {
	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
	require.NoError(t, err)

	first := mustTotal(t, c)
	size := c.CalculationStats().CacheSize
	assert.Positive(t, size)

	second := mustTotal(t, c)
	assert.True(t, first.Equal(second))
	assert.Equal(t, size, c.CalculationStats().CacheSize)

	_, err = c.Tax()
	require.NoError(t, err)
	_, err = c.Subtotal()
	require.NoError(t, err)
	_, err = c.FeeTotal()
	require.NoError(t, err)
	assert.Equal(t, size, c.CalculationStats().CacheSize)
}

func TestCart_QuantityChange(t *testing.T) {
	c := newTestCart(t, nil)
	idx, err := c.Add(Item{ProductID: "sticker", Quantity: 2})
	require.NoError(t, err)
	assertMoney(t, "2.50", mustTotal(t, c), "before")

	require.NoError(t, c.SetQuantity(idx, 5))
	assert.False(t, c.CalculationStats().Cached)
	assertMoney(t, "6.25", mustTotal(t, c), "after")
	assert.Equal(t, 5, c.Quantity())

	require.NoError(t, c.SetQuantity(idx, 0))
	assert.True(t, c.IsEmpty(), "zero quantity removes the item")
}

func TestCart_RejectedOperationsDoNotInvalidate(t *testing.T) {
	c := newTestCart(t, func(s *Settings) { s.AllowMultipleDiscounts = false })
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, c.ApplyDiscount(percentOff("ONE", "5")))
	_, err = c.AddFee(fee.Fee{ID: "ship", Amount: d("1"), Scope: fee.ScopeCart})
	require.NoError(t, err)

	_, err = c.Calculate()
	require.NoError(t, err)
	before := c.Contents()

	rejected := []struct {
		name string
		fn   func() error
	}{
		{name: "unknown product", fn: func() error {
			_, err := c.Add(Item{ProductID: "nope", Quantity: 1})
			return err
		}},
		{name: "unknown option", fn: func() error {
			_, err := c.Add(Item{ProductID: "course", OptionID: ptr("enterprise"), Quantity: 1})
			return err
		}},
		{name: "zero quantity add", fn: func() error {
			_, err := c.Add(Item{ProductID: "shirt", Quantity: 0})
			return err
		}},
		{name: "remove out of range", fn: func() error { return c.Remove(7) }},
		{name: "negative quantity", fn: func() error { return c.SetQuantity(0, -1) }},
		{name: "second discount", fn: func() error { return c.ApplyDiscount(percentOff("TWO", "5")) }},
		{name: "duplicate discount", fn: func() error { return c.ApplyDiscount(percentOff("one", "5")) }},
		{name: "malformed fee", fn: func() error {
			_, err := c.AddFee(fee.Fee{Amount: d("1"), Scope: fee.ScopeCart})
			return err
		}},
	}

	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.fn())
			assert.True(t, c.CalculationStats().Cached, "rejected operation must not invalidate")
			assert.Equal(t, before, c.Contents())
		})
	}

	ok, err := c.AddFee(fee.Fee{ID: "ship", Amount: d("9"), Scope: fee.ScopeCart})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, c.CalculationStats().Cached, "duplicate fee must not invalidate")

	assert.False(t, c.RemoveDiscount("MISSING"))
	assert.False(t, c.RemoveFee("missing"))
	assert.True(t, c.CalculationStats().Cached)
}

func TestCart_ConfigurationErrors(t *testing.T) {
	c := newTestCart(t, nil)

	_, err := c.Add(Item{ProductID: "nope", Quantity: 1})
	require.ErrorIs(t, err, product.ErrConfiguration)

	var cfgErr *product.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nope", cfgErr.ProductID)

	err = c.Remove(0)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestCart_FeeInvalidation(t *testing.T) {
	t.Run("auto", func(t *testing.T) {
		c := newTestCart(t, nil)
		_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
		require.NoError(t, err)
		assertMoney(t, "20.00", mustTotal(t, c), "before")

		_, err = c.Fees().Add(fee.Fee{ID: "wrap", Amount: d("2.00"), Scope: fee.ScopeItem, TargetProductID: "shirt"})
		require.NoError(t, err)
		assert.False(t, c.CalculationStats().Cached, "ledger notifies the cache")
		assertMoney(t, "22.00", mustTotal(t, c), "after")

		c.Fees().Remove("wrap")
		assert.False(t, c.CalculationStats().Cached)
		assertMoney(t, "20.00", mustTotal(t, c), "fee removal restores the subtotal")
	})

	t.Run("manual", func(t *testing.T) {
		c := newTestCart(t, func(s *Settings) { s.FeeAutoInvalidate = false })
		_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
		require.NoError(t, err)
		assertMoney(t, "20.00", mustTotal(t, c), "before")

		_, err = c.Fees().Add(fee.Fee{ID: "wrap", Amount: d("2.00"), Scope: fee.ScopeItem, TargetProductID: "shirt"})
		require.NoError(t, err)
		assert.True(t, c.CalculationStats().Cached, "direct ledger changes are not observed")

		c.InvalidateCache()
		assertMoney(t, "22.00", mustTotal(t, c), "after manual invalidation")

		ok, err := c.AddFee(fee.Fee{ID: "ship", Amount: d("3.00"), Scope: fee.ScopeCart})
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, c.CalculationStats().Cached, "the cart surface always invalidates")
		assertMoney(t, "25.00", mustTotal(t, c), "with cart fee")
	})
}

func TestCart_MergeQuantities(t *testing.T) {
	opts := map[string]string{"color": "red"}

	t.Run("merge", func(t *testing.T) {
		c := newTestCart(t, func(s *Settings) { s.MergeQuantities = true })
		i, err := c.Add(Item{ProductID: "shirt", Quantity: 1, Options: opts})
		require.NoError(t, err)
		j, err := c.Add(Item{ProductID: "shirt", Quantity: 2, Options: map[string]string{"color": "red"}})
		require.NoError(t, err)
		assert.Equal(t, i, j)
		require.Len(t, c.Contents(), 1)
		assert.Equal(t, 3, c.Contents()[0].Quantity)

		k, err := c.Add(Item{ProductID: "shirt", Quantity: 1, Options: map[string]string{"color": "blue"}})
		require.NoError(t, err)
		assert.Equal(t, 1, k, "different options are a different identity")

		_, err = c.Add(Item{ProductID: "support", Quantity: 1})
		require.NoError(t, err)
		_, err = c.Add(Item{ProductID: "support", Quantity: 4})
		require.NoError(t, err)
		assert.Equal(t, 1, c.Contents()[2].Quantity, "quantity disabled products stay at 1")
	})

	t.Run("append", func(t *testing.T) {
		c := newTestCart(t, nil)
		_, err := c.Add(Item{ProductID: "shirt", Quantity: 1, Options: opts})
		require.NoError(t, err)
		_, err = c.Add(Item{ProductID: "shirt", Quantity: 1, Options: opts})
		require.NoError(t, err)
		assert.Len(t, c.Contents(), 2)
	})
}

func TestCart_ContentsIsCopy(t *testing.T) {
	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1, Options: map[string]string{"size": "m"}})
	require.NoError(t, err)

	items := c.Contents()
	items[0].Quantity = 99
	items[0].Options["size"] = "xl"

	assert.Equal(t, 1, c.Contents()[0].Quantity)
	assert.Equal(t, "m", c.Contents()[0].Options["size"])
}

func TestCart_EmptyKeepsFees(t *testing.T) {
	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, c.ApplyDiscount(percentOff("TEN", "10")))
	_, err = c.AddFee(fee.Fee{ID: "ship", Amount: d("5.00"), Scope: fee.ScopeCart})
	require.NoError(t, err)

	c.Empty()
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.Discounts())
	assert.True(t, c.Fees().HasFees())
	assertMoney(t, "5.00", mustTotal(t, c), "fees only")
}

func TestCart_CacheDisabled(t *testing.T) {
	c := newTestCart(t, func(s *Settings) { s.CacheEnabled = false }, WithMetrics(pricing.NopMetrics()))
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
	require.NoError(t, err)

	assertMoney(t, "20.00", mustTotal(t, c), "total")
	assert.Equal(t, pricing.Stats{}, c.CalculationStats())
}

func TestCart_DefaultOption(t *testing.T) {
	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "course", Quantity: 1})
	require.NoError(t, err)

	details, err := c.Details()
	require.NoError(t, err)
	require.Len(t, details, 1)
	assertMoney(t, "49.00", details[0].UnitPrice, "default option price")
	assert.Equal(t, "Course - Basic", details[0].Name)
}

func TestCart_CatalogReplaceRepricesCachedCart(t *testing.T) {
	catalog := newTestCatalog()
	c := New(product.NewResolver(catalog), DefaultSettings())
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 2})
	require.NoError(t, err)

	assertMoney(t, "40.00", mustTotal(t, c), "initial price")
	require.True(t, c.CalculationStats().Cached)

	catalog.Replace([]product.Product{{ID: "shirt", Name: "Shirt", Price: d("25.00")}})

	assertMoney(t, "50.00", mustTotal(t, c), "reloaded price")
	assertMoney(t, "50.00", mustTotal(t, c), "cached after reload")
	assert.True(t, c.CalculationStats().Cached)
}

func TestCart_CatalogDropFailsCalculation(t *testing.T) {
	catalog := newTestCatalog()
	c := New(product.NewResolver(catalog), DefaultSettings())
	_, err := c.Add(Item{ProductID: "mug", Quantity: 1})
	require.NoError(t, err)
	mustTotal(t, c)

	catalog.Replace([]product.Product{{ID: "shirt", Name: "Shirt", Price: d("20.00")}})

	_, err = c.Total()
	require.ErrorIs(t, err, product.ErrConfiguration)
}
