// Package tax resolves the effective tax rate for a cart's jurisdiction.
package tax

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidRate is returned for negative or unparsable rates.
var ErrInvalidRate = errors.New("invalid tax rate")

// Jurisdiction identifies where a cart is taxed. A zero Jurisdiction means
// no location is known.
type Jurisdiction struct {
	Country string
	Region  string
}

// IsZero reports whether no location is set.
func (j Jurisdiction) IsZero() bool {
	return j.Country == "" && j.Region == ""
}

// Key returns the rate table key: "US" or "US/CA".
func (j Jurisdiction) Key() string {
	country := strings.ToUpper(strings.TrimSpace(j.Country))
	region := strings.ToUpper(strings.TrimSpace(j.Region))
	if region == "" {
		return country
	}
	return country + "/" + region
}

// ParseJurisdiction parses a "US" or "US/CA" key.
func ParseJurisdiction(key string) Jurisdiction {
	country, region, _ := strings.Cut(key, "/")
	return Jurisdiction{
		Country: strings.ToUpper(strings.TrimSpace(country)),
		Region:  strings.ToUpper(strings.TrimSpace(region)),
	}
}

// Settings controls whether and how tax is applied.
type Settings struct {
	Enabled bool
	// PricesIncludeTax means catalog prices already contain tax, which is
	// backed out instead of added.
	PricesIncludeTax bool
}

// Resolver maps jurisdictions to rates. It is immutable after construction.
type Resolver struct {
	defaultRate decimal.Decimal
	rates       map[string]decimal.Decimal
}

// NewResolver creates a Resolver. Rates are fractions: 0.2 is 20%.
func NewResolver(defaultRate decimal.Decimal, rates map[string]decimal.Decimal) (*Resolver, error) {
	if defaultRate.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidRate, "default rate %s", defaultRate)
	}
	r := &Resolver{defaultRate: defaultRate, rates: make(map[string]decimal.Decimal, len(rates))}
	for key, rate := range rates {
		if rate.IsNegative() {
			return nil, errors.Wrapf(ErrInvalidRate, "rate %s for %q", rate, key)
		}
		r.rates[ParseJurisdiction(key).Key()] = rate
	}
	return r, nil
}

// ParseRates converts a string rate table, as read from configuration.
func ParseRates(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for key, v := range raw {
		rate, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidRate, "rate %q for %q", v, key)
		}
		out[key] = rate
	}
	return out, nil
}

// Rate returns the rate for the jurisdiction, falling back from region to
// country to the default rate.
func (r *Resolver) Rate(j Jurisdiction) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	if j.IsZero() {
		return r.defaultRate
	}
	if rate, ok := r.rates[j.Key()]; ok {
		return rate
	}
	if rate, ok := r.rates[Jurisdiction{Country: j.Country}.Key()]; ok {
		return rate
	}
	return r.defaultRate
}
