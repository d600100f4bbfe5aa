// Package metrics counts pipeline outcomes for a feed run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records what the resolver did
type Metrics interface {
	IncResolution(outcome string)
	IncCatalogLookup(result string)
	IncIconWritten(source string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncResolution(string)    {}
func (Noop) IncCatalogLookup(string) {}
func (Noop) IncIconWritten(string)   {}

// Prom implements Metrics backed by Prometheus counters on a private
// registry, so several runs in one process do not collide.
type Prom struct {
	registry       *prometheus.Registry
	resolutions    *prometheus.CounterVec
	catalogLookups *prometheus.CounterVec
	iconsWritten   *prometheus.CounterVec
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Asset resolutions by outcome",
		}, []string{"outcome"}),
		catalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookups_total",
			Help:      "Catalog lookups by result",
		}, []string{"result"}),
		iconsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icons_written_total",
			Help:      "Icons written by source",
		}, []string{"source"}),
	}
	p.registry.MustRegister(p.resolutions, p.catalogLookups, p.iconsWritten)
	return p
}

func (p *Prom) IncResolution(outcome string) {
	p.resolutions.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncCatalogLookup(result string) {
	p.catalogLookups.WithLabelValues(result).Inc()
}

func (p *Prom) IncIconWritten(source string) {
	p.iconsWritten.WithLabelValues(source).Inc()
}

// Gatherer exposes the registry
func (p *Prom) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteTextfile writes the counters in the node exporter textfile format
func (p *Prom) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
