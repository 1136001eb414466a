// Package metrics exposes document store metrics through Prometheus.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// Registry is a private Prometheus registry owned by one CLI invocation.
type Registry struct {
	registry *prometheus.Registry
}

// RegistryOption customizes NewRegistry.
type RegistryOption func(*prometheus.Registry)

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() RegistryOption {
	return func(r *prometheus.Registry) {
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	reg := prometheus.NewRegistry()
	for _, opt := range opts {
		opt(reg)
	}
	return &Registry{registry: reg}
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Registerer returns the underlying prometheus.Registerer.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// WriteText writes every family whose name starts with prefix in the
// Prometheus text format. An empty prefix writes everything.
func (r *Registry) WriteText(w io.Writer, prefix string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
