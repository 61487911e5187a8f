package metrics

import (
	"log/slog"
	"sort"

	"github.com/obsidianstack/presearch-exporter/internal/nodeid"
	"github.com/obsidianstack/presearch-exporter/internal/upstream"
)

// PopulateResult summarises one Populate call.
type PopulateResult struct {
	// Nodes is the number of nodes that produced series.
	Nodes int

	// Skipped holds the derived ids of nodes without a meta or status block,
	// sorted.
	Skipped []string
}

// Populate sets the gauges for every node in nodes. Null strings become ""
// and null numbers become 0. Nodes missing their meta or status block are
// skipped and reported; the rest of the scrape is unaffected.
func (r *Registry) Populate(nodes map[string]upstream.NodeRecord) PopulateResult {
	var res PopulateResult

	info := r.gauge(NameInfo)
	connected := r.gauge(NameConnected)
	blocked := r.gauge(NameBlocked)

	for pub, rec := range nodes {
		id := nodeid.Derive(pub)
		if rec.Meta == nil || rec.Status == nil {
			res.Skipped = append(res.Skipped, id)
			slog.Warn("metrics: skipping node with incomplete record",
				"node_id", id,
				"has_meta", rec.Meta != nil,
				"has_status", rec.Status != nil,
			)
			continue
		}

		info.WithLabelValues(
			id,
			stringOrEmpty(rec.Meta.Description),
			stringOrEmpty(rec.Meta.URL),
			rec.Meta.GatewayPool,
			rec.Meta.RemoteAddr,
			rec.Meta.Version,
		).Set(1)
		connected.WithLabelValues(id).Set(boolToFloat(rec.Status.Connected))
		blocked.WithLabelValues(id).Set(boolToFloat(rec.Status.Blocked))

		if r.includeStats {
			r.populatePeriod(id, rec.Period)
		}
		res.Nodes++
	}

	sort.Strings(res.Skipped)
	return res
}

// populatePeriod sets the stats gauges for one node. A nil period sets every
// stats gauge to 0.
func (r *Registry) populatePeriod(id string, p *upstream.Period) {
	if p == nil {
		p = &upstream.Period{}
	}

	var conns, disconns *float64
	if p.Connections != nil {
		conns = p.Connections.NumConnections
	}
	if p.Disconnections != nil {
		disconns = p.Disconnections.NumDisconnections
	}
	r.gauge(NameConnections).WithLabelValues(id).Set(floatOrZero(conns))
	r.gauge(NameDisconnections).WithLabelValues(id).Set(floatOrZero(disconns))

	for _, s := range periodStats {
		r.gauge(s.name).WithLabelValues(id).Set(floatOrZero(s.value(p)))
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
