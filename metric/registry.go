// Package metric provides the Prometheus metrics registry shared by the
// runtime and its components. A nil *Registry disables metrics everywhere:
// constructors accept nil and return nil metric holders, and callers guard
// on nil before recording.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/weftworks/weft/errors"
)

// Registry manages the registration and lifecycle of metrics.
type Registry struct {
	prom       *prometheus.Registry
	registered map[string]prometheus.Collector
	mu         sync.Mutex
}

// NewRegistry creates a metrics registry with Go runtime collectors attached.
func NewRegistry() *Registry {
	prom := prometheus.NewRegistry()
	prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		prom:       prom,
		registered: make(map[string]prometheus.Collector),
	}
}

// Prometheus returns the underlying Prometheus registry, for scrape handlers
// and for testutil assertions.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// Register registers a collector under service.name, rejecting duplicates.
func (r *Registry) Register(service, name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", service, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapRegistrar(
			fmt.Errorf("metric %s already registered", key),
			"Registry", "Register", "duplicate metric check")
	}

	if err := r.prom.Register(c); err != nil {
		var dup prometheus.AlreadyRegisteredError
		if stderrors.As(err, &dup) {
			return errors.WrapRegistrar(err, "Registry", "Register",
				fmt.Sprintf("prometheus conflict for %s", key))
		}
		return errors.Wrap(err, "Registry", "Register", "prometheus registration")
	}

	r.registered[key] = c
	return nil
}

// Unregister removes a collector. It reports whether the metric was known.
func (r *Registry) Unregister(service, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", service, name)
	c, exists := r.registered[key]
	if !exists {
		return false
	}
	delete(r.registered, key)
	return r.prom.Unregister(c)
}
