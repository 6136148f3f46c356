// Package metrics exposes component counters to Prometheus. Values are read
// from the components' atomic stats at scrape time, so the ingestion path
// never touches Prometheus types.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric registered by this package.
const Namespace = "mausd"

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Counter binds a metric name to a stats field.
type Counter struct {
	Name  string // without namespace, subsystem or _total suffix
	Help  string
	Value *atomic.Uint64
}

// RegisterCounters registers one CounterFunc per counter under
// mausd_<subsystem>_<name>_total with constant labels.
func RegisterCounters(reg prometheus.Registerer, subsystem string, labels prometheus.Labels, counters ...Counter) error {
	for _, c := range counters {
		v := c.Value
		cf := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   subsystem,
			Name:        c.Name + "_total",
			Help:        c.Help,
			ConstLabels: labels,
		}, func() float64 { return float64(v.Load()) })
		if err := reg.Register(cf); err != nil {
			return fmt.Errorf("register %s_%s: %w", subsystem, c.Name, err)
		}
	}
	return nil
}

// RegisterGauge registers a gauge evaluated on every scrape.
func RegisterGauge(reg prometheus.Registerer, subsystem, name, help string, labels prometheus.Labels, f func() float64) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, f)
	if err := reg.Register(g); err != nil {
		return fmt.Errorf("register %s_%s: %w", subsystem, name, err)
	}
	return nil
}
