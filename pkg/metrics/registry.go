// Package metrics exposes the instrumentation interfaces of the login
// pipeline. A nil AuthMetrics or SessionMetrics disables recording with no
// overhead; the Prometheus implementation lives in pkg/metrics/prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regMu    sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process registry with Go runtime and process
// collectors. Calling it again replaces the registry.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	regMu.Lock()
	registry = reg
	regMu.Unlock()
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	regMu.RLock()
	defer regMu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	regMu.RLock()
	defer regMu.RUnlock()
	return registry
}

// Reset drops the registry. Intended for tests.
func Reset() {
	regMu.Lock()
	registry = nil
	regMu.Unlock()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
