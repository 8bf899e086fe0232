package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

type failingSource struct {
	err error
}

func (f failingSource) Resolve(_ context.Context, _ string) (*discount.Discount, error) {
	return nil, f.err
}

func TestCart_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	src := discount.NewMapSource(percentOff("TEN", "10"))

	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 2, Options: map[string]string{"size": "m"}})
	require.NoError(t, err)
	_, err = c.Add(Item{ProductID: "course", OptionID: ptr("pro"), Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, c.ApplyDiscount(percentOff("TEN", "10")))
	_, err = c.AddFee(fee.Fee{ID: "ship", Amount: d("4.00"), Scope: fee.ScopeCart})
	require.NoError(t, err)
	c.SetJurisdiction(tax.Jurisdiction{Country: "US", Region: "CA"})

	want := mustTotal(t, c)
	require.NoError(t, c.Save(ctx, store, "s1"))

	restored := newTestCart(t, nil)
	require.NoError(t, restored.Load(ctx, store, src, "s1"))

	assert.False(t, restored.CalculationStats().Cached)
	assert.Equal(t, c.Contents(), restored.Contents())
	assert.Equal(t, []string{"TEN"}, restored.discounts.Codes())
	assert.True(t, restored.Fees().HasFees())
	assert.Equal(t, tax.Jurisdiction{Country: "US", Region: "CA"}, restored.Jurisdiction())
	assertMoney(t, want.String(), mustTotal(t, restored), "same total after round trip")
}

func TestCart_LoadSkipsUnresolvable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SaveCart(ctx, "s1", []Item{
		{ProductID: "shirt", Quantity: 1},
		{ProductID: "discontinued", Quantity: 1},
	}))
	require.NoError(t, store.SaveDiscounts(ctx, "s1", []string{"GONE", "TEN"}))

	c := newTestCart(t, nil)
	require.NoError(t, c.Load(ctx, store, discount.NewMapSource(percentOff("TEN", "10")), "s1"))

	require.Len(t, c.Contents(), 1)
	assert.Equal(t, "shirt", c.Contents()[0].ProductID)
	assert.Equal(t, []string{"TEN"}, c.discounts.Codes())
	assertMoney(t, "18.00", mustTotal(t, c), "total")
}

func TestCart_LoadSourceError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SaveDiscounts(ctx, "s1", []string{"TEN"}))

	c := newTestCart(t, nil)
	err := c.Load(ctx, store, failingSource{err: errors.New("db down")}, "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve discount")
}

func TestCart_LoadInvalidates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	c := newTestCart(t, nil)
	_, err := c.Add(Item{ProductID: "shirt", Quantity: 1})
	require.NoError(t, err)
	_, err = c.Calculate()
	require.NoError(t, err)
	require.True(t, c.CalculationStats().Cached)

	require.NoError(t, c.Load(ctx, store, discount.NewMapSource(), "unknown-session"))
	assert.False(t, c.CalculationStats().Cached)
	assert.True(t, c.IsEmpty())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	items := []Item{{ProductID: "shirt", Quantity: 1, Options: map[string]string{"size": "m"}}}
	require.NoError(t, store.SaveCart(ctx, "s1", items))

	items[0].Options["size"] = "xl"
	got, err := store.LoadCart(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "m", got[0].Options["size"])

	other, err := store.LoadCart(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
