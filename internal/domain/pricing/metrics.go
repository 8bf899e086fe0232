package pricing

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const metricNamespace = "github.com/xenking/kart-pricing/pricing"

// Metrics counts result cache activity. One instance is shared by all carts.
type Metrics struct {
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewMetrics registers the cache counters on meter. A nil meter disables
// metrics. Registration failures are logged and the counter becomes a no-op.
func NewMetrics(meter metric.Meter, lg *zap.Logger) *Metrics {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(metricNamespace)
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	fallback := noop.NewMeterProvider().Meter(metricNamespace)

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			lg.Warn("pricing: unable to register metric", zap.String("metric", name), zap.Error(err))
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	return &Metrics{
		hits:          counter("pricing.cache.hits", "Cart computations served from the result cache"),
		misses:        counter("pricing.cache.misses", "Cart computations that ran the calculator"),
		invalidations: counter("pricing.cache.invalidations", "Result cache invalidations"),
	}
}

// NopMetrics returns metrics that record nothing.
func NopMetrics() *Metrics {
	return NewMetrics(nil, nil)
}

func (m *Metrics) hit()        { m.hits.Add(context.Background(), 1) }
func (m *Metrics) miss()       { m.misses.Add(context.Background(), 1) }
func (m *Metrics) invalidate() { m.invalidations.Add(context.Background(), 1) }
