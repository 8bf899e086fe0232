package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/tax"
)

func TestTaxConfig_Resolver(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TaxConfig
		j       tax.Jurisdiction
		want    string
		wantErr bool
	}{
		{name: "default only", cfg: TaxConfig{DefaultRate: "0.05"}, j: tax.Jurisdiction{Country: "DE"}, want: "0.05"},
		{name: "empty default", cfg: TaxConfig{}, j: tax.Jurisdiction{}, want: "0"},
		{
			name: "region wins",
			cfg:  TaxConfig{DefaultRate: "0.1", Rates: map[string]string{"US": "0.05", "US/CA": "0.0725"}},
			j:    tax.Jurisdiction{Country: "us", Region: "ca"},
			want: "0.0725",
		},
		{name: "bad default", cfg: TaxConfig{DefaultRate: "ten"}, wantErr: true},
		{name: "bad rate", cfg: TaxConfig{Rates: map[string]string{"US": "x"}}, wantErr: true},
		{name: "negative rate", cfg: TaxConfig{DefaultRate: "-0.1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.cfg.Resolver()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(r.Rate(tt.j)), "got %s", r.Rate(tt.j))
		})
	}
}

func TestStoreConfig_CartSettings(t *testing.T) {
	s := StoreConfig{
		Places:                 3,
		AllowNegativePrices:    true,
		AllowMultipleDiscounts: true,
		CacheEnabled:           true,
	}.CartSettings()

	assert.Equal(t, int32(3), s.Pricing.Places)
	assert.True(t, s.Pricing.AllowNegativePrices)
	assert.True(t, s.AllowMultipleDiscounts)
	assert.False(t, s.MergeQuantities)
	assert.True(t, s.CacheEnabled)
	assert.False(t, s.FeeAutoInvalidate)
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
