package product

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr(s string) *string {
	return &s
}

func newTestCatalog() *Catalog {
	return NewCatalog(
		Product{ID: "ebook", Name: "E-Book", Price: d("20.00")},
		Product{ID: "freebie", Name: "Sample", Price: decimal.Zero},
		Product{
			ID:              "course",
			Name:            "Course",
			VariablePricing: true,
			DefaultOptionID: "basic",
			Options: []Option{
				{ID: "basic", Name: "Basic", Price: d("49.00")},
				{ID: "pro", Name: "Pro", Price: d("99.00")},
			},
		},
		Product{
			ID:              "license",
			Name:            "License",
			VariablePricing: true,
			Options:         []Option{{ID: "site", Name: "Single site", Price: d("10.00")}},
		},
		Product{ID: "support", Name: "Support", Price: d("5.00"), QuantityDisabled: true, TaxExempt: true},
	)
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(newTestCatalog())

	tests := []struct {
		name      string
		productID string
		optionID  *string
		quantity  int
		want      Resolution
		wantErr   string
	}{
		{
			name:      "simple product",
			productID: "ebook",
			quantity:  2,
			want:      Resolution{ProductID: "ebook", DisplayName: "E-Book", UnitPrice: d("20.00"), Quantity: 2},
		},
		{
			name:      "free product",
			productID: "freebie",
			quantity:  1,
			want:      Resolution{ProductID: "freebie", DisplayName: "Sample", UnitPrice: decimal.Zero, Quantity: 1, IsFree: true},
		},
		{
			name:      "explicit option",
			productID: "course",
			optionID:  ptr("pro"),
			quantity:  1,
			want:      Resolution{ProductID: "course", OptionID: "pro", DisplayName: "Course - Pro", UnitPrice: d("99.00"), Quantity: 1},
		},
		{
			name:      "default option",
			productID: "course",
			quantity:  3,
			want:      Resolution{ProductID: "course", OptionID: "basic", DisplayName: "Course - Basic", UnitPrice: d("49.00"), Quantity: 3},
		},
		{
			name:      "quantity disabled collapses to one",
			productID: "support",
			quantity:  7,
			want:      Resolution{ProductID: "support", DisplayName: "Support", UnitPrice: d("5.00"), Quantity: 1, TaxExempt: true},
		},
		{
			name:      "unknown product",
			productID: "missing",
			quantity:  1,
			wantErr:   "product missing: unknown product",
		},
		{
			name:      "unknown option",
			productID: "course",
			optionID:  ptr("enterprise"),
			quantity:  1,
			wantErr:   "product course option enterprise: unknown price option",
		},
		{
			name:      "variable pricing without default",
			productID: "license",
			quantity:  1,
			wantErr:   "product license: price option required",
		},
		{
			name:      "zero quantity",
			productID: "ebook",
			quantity:  0,
			wantErr:   "product ebook: quantity must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.productID, tt.optionID, tt.quantity)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrConfiguration)
				var cfgErr *ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.ProductID, got.ProductID)
			assert.Equal(t, tt.want.OptionID, got.OptionID)
			assert.Equal(t, tt.want.DisplayName, got.DisplayName)
			assert.Equal(t, tt.want.Quantity, got.Quantity)
			assert.Equal(t, tt.want.IsFree, got.IsFree)
			assert.Equal(t, tt.want.TaxExempt, got.TaxExempt)
			assert.True(t, tt.want.UnitPrice.Equal(got.UnitPrice),
				"expected unit price %s, got %s", tt.want.UnitPrice, got.UnitPrice)
		})
	}
}

type mockProductRepo struct {
	products []Product
	err      error
}

func (m *mockProductRepo) List(_ context.Context) ([]Product, error) {
	return m.products, m.err
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, ErrNotFound
}

func TestCatalog_Warm(t *testing.T) {
	c := NewCatalog(Product{ID: "stale", Price: d("1")})
	repo := &mockProductRepo{products: []Product{
		{ID: "p1", Name: "Widget", Price: d("10")},
		{ID: "p2", Name: "Gadget", Price: d("20")},
	}}

	require.NoError(t, c.Warm(context.Background(), repo))
	assert.Equal(t, 2, c.Len())

	_, ok := c.Lookup("stale")
	assert.False(t, ok)

	p, ok := c.Lookup("p2")
	require.True(t, ok)
	assert.Equal(t, "Gadget", p.Name)
}

func TestCatalog_WarmError(t *testing.T) {
	c := NewCatalog(Product{ID: "kept", Price: d("1")})
	err := c.Warm(context.Background(), &mockProductRepo{err: errors.New("db down")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")
	_, ok := c.Lookup("kept")
	assert.True(t, ok)
}
