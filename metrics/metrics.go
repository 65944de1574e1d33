// Package metrics exports catalog observer events as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/goforj/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the Prometheus observer.
type Config struct {
	// Namespace is the metrics namespace (default: "catalog").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus observer.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace: "catalog",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Result labels.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Observer records catalog operations. It implements catalog.Observer.
type Observer struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ catalog.Observer = (*Observer)(nil)

// New registers the metrics and returns an Observer. Registering twice on
// the same registry panics, as promauto does.
func New(opts ...Option) *Observer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Observer{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of catalog operations by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"op", "driver", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Catalog operation duration in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"op", "driver"}),
	}
}

// OnOp implements catalog.Observer.
func (o *Observer) OnOp(_ context.Context, op string, _ string, hit bool, err error, dur time.Duration, driver catalog.Driver) {
	d := string(driver)
	if d == "" {
		d = "none"
	}
	result := ResultMiss
	switch {
	case err != nil:
		result = ResultError
	case hit:
		result = ResultHit
	}
	o.ops.WithLabelValues(op, d, result).Inc()
	o.duration.WithLabelValues(op, d).Observe(dur.Seconds())
}
