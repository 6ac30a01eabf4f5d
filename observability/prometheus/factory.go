// Package prometheus adapts client_golang collectors to the
// observability.MetricFactory interface.
package prometheus

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/billing/observability"
)

var _ observability.MetricFactory = (*Factory)(nil)

// DefaultBuckets suit invoice and payment amounts in major units.
var DefaultBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000}

// Factory creates and registers Prometheus collectors on demand. Asking for
// the same name twice returns the same collector.
type Factory struct {
	registerer  prometheus.Registerer
	constLabels prometheus.Labels
	buckets     []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// Option configures a Factory.
type Option func(*Factory)

// WithConstLabels attaches labels to every collector.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(f *Factory) { f.constLabels = labels }
}

// WithBuckets overrides the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(f *Factory) {
		if len(buckets) > 0 {
			f.buckets = buckets
		}
	}
}

// NewFactory returns a Factory registering on reg. A nil reg falls back to
// prometheus.DefaultRegisterer.
func NewFactory(reg prometheus.Registerer, opts ...Option) *Factory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := &Factory{
		registerer: reg,
		buckets:    DefaultBuckets,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Counter implements observability.MetricFactory.
func (f *Factory) Counter(name string) observability.Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = MetricName(name) + "_total"
	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        "Count of " + strings.ReplaceAll(strings.TrimSuffix(name, "_total"), "_", " ") + " events.",
		ConstLabels: f.constLabels,
	})
	f.registerer.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements observability.MetricFactory.
func (f *Factory) Histogram(name string) observability.Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = MetricName(name)
	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        name,
		Help:        "Distribution of " + strings.ReplaceAll(name, "_", " ") + ".",
		ConstLabels: f.constLabels,
		Buckets:     f.buckets,
	})
	f.registerer.MustRegister(h)
	f.histograms[name] = h
	return h
}

// MetricName turns a dotted metric name into a valid Prometheus name.
func MetricName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
