package cart

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

// SessionStore persists cart state between requests. Concurrent saves for the
// same session are last write wins.
type SessionStore interface {
	LoadCart(ctx context.Context, sessionID string) ([]Item, error)
	SaveCart(ctx context.Context, sessionID string, items []Item) error
	LoadDiscounts(ctx context.Context, sessionID string) ([]string, error)
	SaveDiscounts(ctx context.Context, sessionID string, codes []string) error
	LoadFees(ctx context.Context, sessionID string) ([]fee.Fee, error)
	SaveFees(ctx context.Context, sessionID string, fees []fee.Fee) error
	LoadJurisdiction(ctx context.Context, sessionID string) (tax.Jurisdiction, error)
	SaveJurisdiction(ctx context.Context, sessionID string, j tax.Jurisdiction) error
}

// Load replaces the cart state with the stored session. Items that no longer
// resolve and codes the source does not know are dropped. The cache is
// invalidated afterwards.
func (c *Cart) Load(ctx context.Context, store SessionStore, src discount.Source, sessionID string) error {
	items, err := store.LoadCart(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	codes, err := store.LoadDiscounts(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "load discounts")
	}
	fees, err := store.LoadFees(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "load fees")
	}
	j, err := store.LoadJurisdiction(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "load jurisdiction")
	}

	resolved := make([]discount.Discount, 0, len(codes))
	for _, code := range codes {
		d, err := src.Resolve(ctx, code)
		if err != nil {
			if errors.Is(err, discount.ErrInvalidDiscount) {
				c.lg.Debug("stored discount no longer resolves", zap.String("code", code))
				continue
			}
			return errors.Wrapf(err, "resolve discount %q", code)
		}
		resolved = append(resolved, *d)
	}

	c.items = nil
	for _, it := range items {
		res, err := c.resolver.Resolve(it.ProductID, it.OptionID, it.Quantity)
		if err != nil {
			if errors.Is(err, product.ErrConfiguration) {
				c.lg.Debug("stored item no longer resolves",
					zap.String("product_id", it.ProductID),
					zap.Error(err),
				)
				continue
			}
			return errors.Wrap(err, "resolve stored item")
		}
		it = it.clone()
		it.Quantity = res.Quantity
		c.items = append(c.items, it)
	}

	c.discounts.Clear()
	for _, d := range resolved {
		if err := c.discounts.Push(d); err != nil {
			c.lg.Debug("stored discount skipped", zap.String("code", d.Code), zap.Error(err))
		}
	}

	c.fees.Clear()
	for _, f := range fees {
		if _, err := c.fees.Add(f); err != nil {
			c.lg.Debug("stored fee skipped", zap.String("fee_id", f.ID), zap.Error(err))
		}
	}

	c.jurisdiction = j
	c.cache.Invalidate()
	return nil
}

// Save writes the cart state to the store.
func (c *Cart) Save(ctx context.Context, store SessionStore, sessionID string) error {
	if err := store.SaveCart(ctx, sessionID, c.Contents()); err != nil {
		return errors.Wrap(err, "save cart")
	}
	if err := store.SaveDiscounts(ctx, sessionID, c.discounts.Codes()); err != nil {
		return errors.Wrap(err, "save discounts")
	}
	if err := store.SaveFees(ctx, sessionID, c.fees.Fees(fee.Filter{})); err != nil {
		return errors.Wrap(err, "save fees")
	}
	if err := store.SaveJurisdiction(ctx, sessionID, c.jurisdiction); err != nil {
		return errors.Wrap(err, "save jurisdiction")
	}
	return nil
}

type session struct {
	items        []Item
	codes        []string
	fees         []fee.Fee
	jurisdiction tax.Jurisdiction
}

// MemoryStore is an in-process SessionStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session)}
}

var _ SessionStore = (*MemoryStore)(nil)

func (m *MemoryStore) read(sessionID string, fn func(s *session)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[sessionID]; ok {
		fn(s)
	}
}

func (m *MemoryStore) write(sessionID string, fn func(s *session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{}
		m.sessions[sessionID] = s
	}
	fn(s)
}

// LoadCart implements SessionStore.
func (m *MemoryStore) LoadCart(_ context.Context, sessionID string) ([]Item, error) {
	var out []Item
	m.read(sessionID, func(s *session) {
		for _, it := range s.items {
			out = append(out, it.clone())
		}
	})
	return out, nil
}

// SaveCart implements SessionStore.
func (m *MemoryStore) SaveCart(_ context.Context, sessionID string, items []Item) error {
	cp := make([]Item, len(items))
	for i, it := range items {
		cp[i] = it.clone()
	}
	m.write(sessionID, func(s *session) { s.items = cp })
	return nil
}

// LoadDiscounts implements SessionStore.
func (m *MemoryStore) LoadDiscounts(_ context.Context, sessionID string) ([]string, error) {
	var out []string
	m.read(sessionID, func(s *session) { out = slices.Clone(s.codes) })
	return out, nil
}

// SaveDiscounts implements SessionStore.
func (m *MemoryStore) SaveDiscounts(_ context.Context, sessionID string, codes []string) error {
	cp := slices.Clone(codes)
	m.write(sessionID, func(s *session) { s.codes = cp })
	return nil
}

// LoadFees implements SessionStore.
func (m *MemoryStore) LoadFees(_ context.Context, sessionID string) ([]fee.Fee, error) {
	var out []fee.Fee
	m.read(sessionID, func(s *session) { out = slices.Clone(s.fees) })
	return out, nil
}

// SaveFees implements SessionStore.
func (m *MemoryStore) SaveFees(_ context.Context, sessionID string, fees []fee.Fee) error {
	cp := slices.Clone(fees)
	m.write(sessionID, func(s *session) { s.fees = cp })
	return nil
}

// LoadJurisdiction implements SessionStore.
func (m *MemoryStore) LoadJurisdiction(_ context.Context, sessionID string) (tax.Jurisdiction, error) {
	var j tax.Jurisdiction
	m.read(sessionID, func(s *session) { j = s.jurisdiction })
	return j, nil
}

// SaveJurisdiction implements SessionStore.
func (m *MemoryStore) SaveJurisdiction(_ context.Context, sessionID string, j tax.Jurisdiction) error {
	m.write(sessionID, func(s *session) { s.jurisdiction = j })
	return nil
}
