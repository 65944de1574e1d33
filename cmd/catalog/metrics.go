package main

import (
	"io"

	"github.com/goforj/catalog"
	"github.com/goforj/catalog/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// metricsSink collects catalog operations on a private registry when
// --metrics is set and prints them once the command has finished.
type metricsSink struct {
	registry *prometheus.Registry
	observer *metrics.Observer
}

func newMetricsSink(enabled bool) *metricsSink {
	if !enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	return &metricsSink{
		registry: reg,
		observer: metrics.New(metrics.WithRegistry(reg)),
	}
}

// Observer returns the observer to install, or nil when metrics are off.
func (m *metricsSink) Observer() catalog.Observer {
	if m == nil {
		return nil
	}
	return m.observer
}

// Write prints the collected metrics in the Prometheus text format.
func (m *metricsSink) Write(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
