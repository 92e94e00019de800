package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter serves a Collector on its own registry.
type Exporter struct {
	registry  *prometheus.Registry
	collector *Collector
}

// NewExporter creates an exporter with an empty collector.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()
	collector := NewCollector()
	registry.MustRegister(collector)

	return &Exporter{
		registry:  registry,
		collector: collector,
	}
}

// Collector returns the collector to add sources to.
func (e *Exporter) Collector() *Collector {
	return e.collector
}

// Registry returns the registry the collector is registered with.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
