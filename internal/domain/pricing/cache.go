package pricing

import "github.com/xenking/kart-pricing/internal/domain/fee"

// Stats describes the cache slot.
type Stats struct {
	// Cached is true while a result is stored, whether or not it matches the
	// current cart state.
	Cached bool
	// CacheSize is the encoded size of the stored result in bytes.
	CacheSize int
}

// Cache is a single-slot memo of the latest computation. It is not safe for
// concurrent use; each cart owns one.
type Cache struct {
	enabled bool
	metrics *Metrics

	snap   Snapshot
	result *Result
	size   int
}

var _ fee.Invalidator = (*Cache)(nil)

// NewCache creates a cache. A disabled cache always computes and never stores.
func NewCache(enabled bool, metrics *Metrics) *Cache {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Cache{enabled: enabled, metrics: metrics}
}

// GetOrCompute returns the stored result when snap equals the stored
// snapshot, otherwise runs compute and stores its result. Failed computations
// are not stored.
func (c *Cache) GetOrCompute(snap Snapshot, compute func() (*Result, error)) (*Result, error) {
	if c.enabled && c.result != nil && c.snap.Equal(snap) {
		c.metrics.hit()
		return c.result, nil
	}

	c.metrics.miss()
	result, err := compute()
	if err != nil {
		return nil, err
	}
	if c.enabled {
		c.snap = snap
		c.result = result
		c.size = result.Size()
	}
	return result, nil
}

// Invalidate discards the stored result.
func (c *Cache) Invalidate() {
	c.metrics.invalidate()
	c.snap = Snapshot{}
	c.result = nil
	c.size = 0
}

// Stats reports the slot state.
func (c *Cache) Stats() Stats {
	return Stats{Cached: c.result != nil, CacheSize: c.size}
}

// Enabled reports whether results are stored.
func (c *Cache) Enabled() bool {
	return c.enabled
}
