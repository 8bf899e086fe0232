// Package cart is the mutation surface of a shopping cart. A Cart owns its
// items, discount stack, fee ledger and a single-slot pricing cache. Every
// successful mutation invalidates the cache before returning.
package cart

import (
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

// ErrItemNotFound is returned when an item index is out of range.
var ErrItemNotFound = errors.New("cart item not found")

// Item is a cart line as requested by the shopper.
type Item struct {
	ProductID string
	OptionID  *string
	Quantity  int
	Options   map[string]string
}

// SameIdentity reports whether both items refer to the same product, option
// and extra options.
func (i Item) SameIdentity(o Item) bool {
	if i.ProductID != o.ProductID {
		return false
	}
	if (i.OptionID == nil) != (o.OptionID == nil) {
		return false
	}
	if i.OptionID != nil && *i.OptionID != *o.OptionID {
		return false
	}
	return maps.Equal(i.Options, o.Options)
}

func (i Item) clone() Item {
	out := i
	if i.OptionID != nil {
		id := *i.OptionID
		out.OptionID = &id
	}
	out.Options = maps.Clone(i.Options)
	return out
}

// Resolver resolves a product reference to a priced line.
type Resolver interface {
	Resolve(productID string, optionID *string, quantity int) (product.Resolution, error)
}

var _ Resolver = (*product.Resolver)(nil)

// Settings are the store-level switches a cart is created with.
type Settings struct {
	Pricing                pricing.Settings
	AllowMultipleDiscounts bool
	// MergeQuantities adds to an existing line with the same identity instead
	// of appending a new one.
	MergeQuantities bool
	CacheEnabled    bool
	// FeeAutoInvalidate subscribes the cache to the fee ledger so direct
	// ledger changes invalidate it. When false, callers that change fees
	// through Fees() must call InvalidateCache.
	FeeAutoInvalidate bool
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Pricing:           pricing.DefaultSettings(),
		CacheEnabled:      true,
		FeeAutoInvalidate: true,
	}
}

// Cart is request-scoped cart state. It is not safe for concurrent use.
type Cart struct {
	settings Settings
	resolver Resolver
	taxes    *tax.Resolver
	calc     *pricing.Calculator
	cache    *pricing.Cache
	lg       *zap.Logger

	items        []Item
	discounts    *discount.Stack
	fees         *fee.Ledger
	jurisdiction tax.Jurisdiction
	taxSettings  tax.Settings
}

// Option configures a Cart.
type Option func(*Cart)

// WithLogger sets the logger used for debug output.
func WithLogger(lg *zap.Logger) Option {
	return func(c *Cart) { c.lg = lg }
}

// WithTaxes sets the tax rate resolver and the initial tax settings.
func WithTaxes(r *tax.Resolver, s tax.Settings) Option {
	return func(c *Cart) {
		c.taxes = r
		c.taxSettings = s
	}
}

// WithMetrics sets the shared cache metrics.
func WithMetrics(m *pricing.Metrics) Option {
	return func(c *Cart) { c.cache = pricing.NewCache(c.settings.CacheEnabled, m) }
}

// New creates an empty cart.
func New(resolver Resolver, settings Settings, opts ...Option) *Cart {
	c := &Cart{
		settings:  settings,
		resolver:  resolver,
		calc:      pricing.NewCalculator(settings.Pricing),
		lg:        zap.NewNop(),
		discounts: discount.NewStack(settings.AllowMultipleDiscounts),
		fees:      fee.NewLedger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = pricing.NewCache(settings.CacheEnabled, nil)
	}
	if settings.FeeAutoInvalidate {
		c.fees.Subscribe(c.cache)
	}
	return c
}

// Add puts an item in the cart and returns its index. The item is resolved
// first; resolution errors leave the cart unchanged.
func (c *Cart) Add(item Item) (int, error) {
	res, err := c.resolver.Resolve(item.ProductID, item.OptionID, item.Quantity)
	if err != nil {
		return -1, err
	}
	item = item.clone()
	item.Quantity = res.Quantity

	if c.settings.MergeQuantities {
		if i := slices.IndexFunc(c.items, item.SameIdentity); i >= 0 {
			merged, err := c.resolver.Resolve(item.ProductID, item.OptionID, c.items[i].Quantity+item.Quantity)
			if err != nil {
				return -1, err
			}
			c.items[i].Quantity = merged.Quantity
			c.invalidate("item merged", zap.Int("index", i), zap.Int("quantity", merged.Quantity))
			return i, nil
		}
	}

	c.items = append(c.items, item)
	idx := len(c.items) - 1
	c.invalidate("item added", zap.Int("index", idx), zap.String("product_id", item.ProductID))
	return idx, nil
}

// Remove deletes the item at index.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.items) {
		return errors.Wrapf(ErrItemNotFound, "index %d", index)
	}
	c.items = slices.Delete(c.items, index, index+1)
	c.invalidate("item removed", zap.Int("index", index))
	return nil
}

// SetQuantity changes the quantity of the item at index. Zero removes it.
func (c *Cart) SetQuantity(index, quantity int) error {
	if index < 0 || index >= len(c.items) {
		return errors.Wrapf(ErrItemNotFound, "index %d", index)
	}
	if quantity == 0 {
		return c.Remove(index)
	}
	it := c.items[index]
	res, err := c.resolver.Resolve(it.ProductID, it.OptionID, quantity)
	if err != nil {
		return err
	}
	c.items[index].Quantity = res.Quantity
	c.invalidate("quantity changed", zap.Int("index", index), zap.Int("quantity", res.Quantity))
	return nil
}

// Empty removes every item and discount. Fees are kept.
func (c *Cart) Empty() {
	c.items = nil
	c.discounts.Clear()
	c.invalidate("cart emptied")
}

// ApplyDiscount pushes an already validated discount onto the stack.
func (c *Cart) ApplyDiscount(d discount.Discount) error {
	if err := c.discounts.Push(d); err != nil {
		return err
	}
	c.invalidate("discount applied", zap.String("code", discount.NormalizeCode(d.Code)))
	return nil
}

// RemoveDiscount removes a code and reports whether it was applied.
func (c *Cart) RemoveDiscount(code string) bool {
	if !c.discounts.Remove(code) {
		return false
	}
	c.invalidate("discount removed", zap.String("code", discount.NormalizeCode(code)))
	return true
}

// AddFee adds a fee to the ledger. It returns false for a duplicate id.
func (c *Cart) AddFee(f fee.Fee) (bool, error) {
	ok, err := c.fees.Add(f)
	if err != nil || !ok {
		return ok, err
	}
	if !c.settings.FeeAutoInvalidate {
		c.invalidate("fee added", zap.String("fee_id", f.ID))
	}
	return true, nil
}

// RemoveFee removes a fee and reports whether it existed.
func (c *Cart) RemoveFee(id string) bool {
	if !c.fees.Remove(id) {
		return false
	}
	if !c.settings.FeeAutoInvalidate {
		c.invalidate("fee removed", zap.String("fee_id", id))
	}
	return true
}

// Fees gives direct access to the ledger.
func (c *Cart) Fees() *fee.Ledger {
	return c.fees
}

// SetJurisdiction changes where the cart is taxed.
func (c *Cart) SetJurisdiction(j tax.Jurisdiction) {
	c.jurisdiction = j
	c.invalidate("jurisdiction changed", zap.String("jurisdiction", j.Key()))
}

// SetTaxSettings changes how tax is applied.
func (c *Cart) SetTaxSettings(s tax.Settings) {
	c.taxSettings = s
	c.invalidate("tax settings changed")
}

// InvalidateCache discards the cached computation.
func (c *Cart) InvalidateCache() {
	c.cache.Invalidate()
}

func (c *Cart) invalidate(msg string, fields ...zap.Field) {
	c.cache.Invalidate()
	c.lg.Debug(msg, fields...)
}

// Contents returns a copy of the items in cart order.
func (c *Cart) Contents() []Item {
	out := make([]Item, len(c.items))
	for i, it := range c.items {
		out[i] = it.clone()
	}
	return out
}

// Discounts returns the applied discounts in stack order.
func (c *Cart) Discounts() []discount.Discount {
	return c.discounts.Discounts()
}

// Quantity returns the total number of units in the cart.
func (c *Cart) Quantity() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Jurisdiction returns where the cart is taxed.
func (c *Cart) Jurisdiction() tax.Jurisdiction {
	return c.jurisdiction
}

// TaxSettings returns how tax is applied.
func (c *Cart) TaxSettings() tax.Settings {
	return c.taxSettings
}

// TaxRate returns the rate for the current jurisdiction.
func (c *Cart) TaxRate() decimal.Decimal {
	return c.taxes.Rate(c.jurisdiction)
}

// CalculationStats reports the cache slot state.
func (c *Cart) CalculationStats() pricing.Stats {
	return c.cache.Stats()
}

// Calculate returns the pricing of the current cart state, served from the
// cache when the inputs did not change.
func (c *Cart) Calculate() (*pricing.Result, error) {
	lines, err := c.resolve()
	if err != nil {
		return nil, err
	}
	return c.cache.GetOrCompute(c.snapshot(lines), func() (*pricing.Result, error) {
		return c.compute(lines), nil
	})
}

// Details returns the priced lines.
func (c *Cart) Details() ([]pricing.ItemDetail, error) {
	r, err := c.Calculate()
	if err != nil {
		return nil, err
	}
	return r.Items, nil
}

// Totals returns the cart aggregates.
func (c *Cart) Totals() (pricing.Totals, error) {
	r, err := c.Calculate()
	if err != nil {
		return pricing.Totals{}, err
	}
	return r.Totals, nil
}

// Total returns the grand total.
func (c *Cart) Total() (decimal.Decimal, error) {
	return c.aggregate(func(t pricing.Totals) decimal.Decimal { return t.Total })
}

// Tax returns the tax total.
func (c *Cart) Tax() (decimal.Decimal, error) {
	return c.aggregate(func(t pricing.Totals) decimal.Decimal { return t.Tax })
}

// DiscountTotal returns the discount total.
func (c *Cart) DiscountTotal() (decimal.Decimal, error) {
	return c.aggregate(func(t pricing.Totals) decimal.Decimal { return t.Discount })
}

// Subtotal returns the sum of line subtotals.
func (c *Cart) Subtotal() (decimal.Decimal, error) {
	return c.aggregate(func(t pricing.Totals) decimal.Decimal { return t.Subtotal })
}

// FeeTotal returns the cart-level fee total.
func (c *Cart) FeeTotal() (decimal.Decimal, error) {
	return c.aggregate(func(t pricing.Totals) decimal.Decimal { return t.Fees })
}

func (c *Cart) aggregate(pick func(pricing.Totals) decimal.Decimal) (decimal.Decimal, error) {
	t, err := c.Totals()
	if err != nil {
		return decimal.Zero, err
	}
	return pick(t), nil
}

// resolve prices every line against the current catalog.
func (c *Cart) resolve() ([]pricing.Line, error) {
	lines := make([]pricing.Line, 0, len(c.items))
	for i, it := range c.items {
		res, err := c.resolver.Resolve(it.ProductID, it.OptionID, it.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve item %d", i)
		}
		lines = append(lines, pricing.Line{Index: i, Resolution: res})
	}
	return lines, nil
}

func (c *Cart) snapshot(lines []pricing.Line) pricing.Snapshot {
	items := make([]pricing.SnapshotItem, len(lines))
	for i, l := range lines {
		items[i] = pricing.SnapshotItem{
			ProductID: l.ProductID,
			OptionID:  c.items[l.Index].OptionID,
			Quantity:  l.Quantity,
			Options:   c.items[l.Index].Options,
			Name:      l.DisplayName,
			UnitPrice: l.UnitPrice,
			Free:      l.IsFree,
			TaxExempt: l.TaxExempt,
		}
	}
	return pricing.NewSnapshot(pricing.SnapshotInput{
		Items:     items,
		Discounts: c.discounts.Discounts(),
		Fees:      c.fees.Fees(fee.Filter{}),
		TaxRate:   c.TaxRate(),
		Tax:       c.taxSettings,
		Settings:  c.settings.Pricing,
	})
}

func (c *Cart) compute(lines []pricing.Line) *pricing.Result {
	result := c.calc.Calculate(pricing.Input{
		Lines:     lines,
		Fees:      c.fees,
		Discounts: c.discounts.Discounts(),
		TaxRate:   c.TaxRate(),
		Tax:       c.taxSettings,
	})
	c.lg.Debug("cart priced",
		zap.Int("lines", len(lines)),
		zap.String("total", result.Totals.Total.String()),
	)
	return result
}
