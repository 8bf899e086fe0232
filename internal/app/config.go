package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Store       StoreConfig
	Tax         TaxConfig
	Session     SessionConfig
	Discounts   DiscountConfig
	Catalog     CatalogConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StoreConfig holds the store-wide cart and pricing switches.
type StoreConfig struct {
	Places                 int32 `default:"2" usage:"Decimal places money is rounded to"`
	AllowNegativePrices    bool  `default:"false" usage:"Keep negative unit prices and line totals" flag:"allow-negative-prices"`
	AllowMultipleDiscounts bool  `default:"false" usage:"Allow more than one discount code per cart" flag:"allow-multiple-discounts"`
	MergeQuantities        bool  `default:"false" usage:"Merge quantities of identical items" flag:"merge-quantities"`
	CacheEnabled           bool  `default:"true" usage:"Cache the last price calculation per cart" flag:"cache-enabled"`
	FeeAutoInvalidate      bool  `default:"true" usage:"Invalidate the price cache on fee ledger changes" flag:"fee-auto-invalidate"`
}

// TaxConfig controls tax calculation. Rates are keyed by jurisdiction, for
// example "US" or "US/CA"; the most specific key wins.
type TaxConfig struct {
	Enabled          bool              `default:"false" usage:"Calculate tax" flag:"tax-enabled"`
	PricesIncludeTax bool              `default:"false" usage:"Catalog prices already include tax" flag:"prices-include-tax"`
	DefaultRate      string            `default:"0" usage:"Rate used when no jurisdiction rate matches" flag:"tax-default-rate"`
	Rates            map[string]string `usage:"Per-jurisdiction tax rates"`
}

// SessionConfig controls how cart sessions are identified.
type SessionConfig struct {
	Header string `default:"X-Cart-Session" usage:"Request header carrying the cart session id" flag:"session-header"`
}

// DiscountConfig controls discount code lookup.
type DiscountConfig struct {
	FilterFPR float64 `default:"0.001" usage:"False positive rate of the discount code filter" flag:"discount-filter-fpr"`
}

// CatalogConfig controls how often products and discount codes are reloaded.
type CatalogConfig struct {
	RefreshInterval time.Duration `default:"5m" usage:"Catalog reload interval, 0 disables reloading" flag:"catalog-refresh"`
}

// RateLimitConfig controls the per-session sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Tax.Resolver(); err != nil {
		return nil, errors.Wrap(err, "tax config")
	}

	return &cfg, nil
}

// CartSettings converts the store section into cart settings.
func (c StoreConfig) CartSettings() cart.Settings {
	return cart.Settings{
		Pricing: pricing.Settings{
			Places:              c.Places,
			AllowNegativePrices: c.AllowNegativePrices,
		},
		AllowMultipleDiscounts: c.AllowMultipleDiscounts,
		MergeQuantities:        c.MergeQuantities,
		CacheEnabled:           c.CacheEnabled,
		FeeAutoInvalidate:      c.FeeAutoInvalidate,
	}
}

// Settings returns the tax switches.
func (c TaxConfig) Settings() tax.Settings {
	return tax.Settings{Enabled: c.Enabled, PricesIncludeTax: c.PricesIncludeTax}
}

// Resolver parses the configured rates.
func (c TaxConfig) Resolver() (*tax.Resolver, error) {
	def := decimal.Zero
	if c.DefaultRate != "" {
		v, err := decimal.NewFromString(c.DefaultRate)
		if err != nil {
			return nil, errors.Wrapf(err, "default rate %q", c.DefaultRate)
		}
		def = v
	}
	rates, err := tax.ParseRates(c.Rates)
	if err != nil {
		return nil, err
	}
	return tax.NewResolver(def, rates)
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
