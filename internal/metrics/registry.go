package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the set of gauges for exactly one scrape. It is built, populated,
// rendered once and dropped; nothing in it is shared with other scrapes.
// A Registry is not meant to be populated from several goroutines.
type Registry struct {
	namespace    string
	includeStats bool
	reg          *prometheus.Registry
	instruments  []Instrument
	gauges       map[string]*prometheus.GaugeVec
}

// NewRegistry allocates a fresh registry holding the catalog instruments for
// includeStats, each prefixed with namespace. It is safe to call concurrently.
func NewRegistry(namespace string, includeStats bool) *Registry {
	r := &Registry{
		namespace:    namespace,
		includeStats: includeStats,
		reg:          prometheus.NewRegistry(),
		instruments:  Catalog(includeStats),
	}
	r.gauges = make(map[string]*prometheus.GaugeVec, len(r.instruments))
	for _, in := range r.instruments {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      in.Name,
			Help:      in.Help,
		}, in.Labels)
		r.reg.MustRegister(g)
		r.gauges[in.Name] = g
	}
	return r
}

// IncludeStats reports whether the stats instruments were allocated.
func (r *Registry) IncludeStats() bool { return r.includeStats }

// Instruments returns the allocated catalog in emission order.
func (r *Registry) Instruments() []Instrument { return r.instruments }

// FQName is the exposed metric name of in.
func (r *Registry) FQName(in Instrument) string {
	return prometheus.BuildFQName(r.namespace, "", in.Name)
}

// Gatherer exposes the underlying registry, e.g. for promhttp or testutil.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) gauge(name string) *prometheus.GaugeVec {
	return r.gauges[name]
}
