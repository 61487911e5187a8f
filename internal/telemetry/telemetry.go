// Package telemetry exposes the exporter's own health on a registry kept
// apart from the per-scrape node registries: scrape outcomes and latency, the
// upstream circuit breaker state, and the Go runtime and process collectors.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presearch_exporter"

// breakerStates maps gobreaker state names to gauge values.
var breakerStates = map[string]float64{
	"disabled":  -1,
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// Telemetry implements exporter.Observer.
type Telemetry struct {
	reg      *prometheus.Registry
	scrapes  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New builds the telemetry registry. breakerState reports the current
// upstream breaker state name and may be nil.
func New(breakerState func() string) *Telemetry {
	t := &Telemetry{
		reg: prometheus.NewRegistry(),
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Scrape requests handled, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Wall time of scrape requests, upstream fetch included.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stats"}),
	}

	t.reg.MustRegister(
		t.scrapes,
		t.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if breakerState != nil {
		t.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_state",
			Help:      "Upstream circuit breaker state: -1 disabled, 0 closed, 1 half-open, 2 open.",
		}, func() float64 {
			if v, ok := breakerStates[breakerState()]; ok {
				return v
			}
			return -1
		}))
	}
	return t
}

// ObserveScrape records one scrape request.
func (t *Telemetry) ObserveScrape(outcome string, includeStats bool, elapsed time.Duration) {
	t.scrapes.WithLabelValues(outcome).Inc()
	t.duration.WithLabelValues(strconv.FormatBool(includeStats)).Observe(elapsed.Seconds())
}

// Handler serves the telemetry registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.reg, promhttp.HandlerOpts{Registry: t.reg})
}

// Gatherer exposes the telemetry registry.
func (t *Telemetry) Gatherer() prometheus.Gatherer { return t.reg }
