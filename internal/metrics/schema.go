package metrics

import "github.com/obsidianstack/presearch-exporter/internal/upstream"

// Label names.
const (
	LabelNodeID          = "node_id"
	LabelNodeDescription = "node_description"
	LabelNodeURL         = "node_url"
	LabelGatewayPool     = "gateway_pool"
	LabelRemoteAddr      = "remote_addr"
	LabelVersion         = "version"
)

// Instrument names without the namespace prefix.
const (
	NameInfo           = "info"
	NameConnected      = "connected"
	NameBlocked        = "blocked"
	NameConnections    = "connections"
	NameDisconnections = "disconnections"
)

// InfoLabels is the label set of the info gauge, in emission order.
var InfoLabels = []string{
	LabelNodeID,
	LabelNodeDescription,
	LabelNodeURL,
	LabelGatewayPool,
	LabelRemoteAddr,
	LabelVersion,
}

var nodeLabels = []string{LabelNodeID}

// Instrument describes one gauge in the catalog.
type Instrument struct {
	// Name is the metric name without namespace.
	Name   string
	Help   string
	Labels []string

	// Stats marks instruments that only exist on stats scrapes.
	Stats bool
}

// periodStat binds a windowed statistic gauge to its Period field.
type periodStat struct {
	name  string
	help  string
	value func(*upstream.Period) *float64
}

// periodStats lists the windowed statistics in emission order.
var periodStats = []periodStat{
	{"total_uptime_seconds", "Seconds the node was connected within the stats window.",
		func(p *upstream.Period) *float64 { return p.TotalUptimeSeconds }},
	{"uptime_percentage", "Percentage of the stats window the node was connected.",
		func(p *upstream.Period) *float64 { return p.UptimePercentage }},
	{"avg_uptime_score", "Average uptime score within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgUptimeScore }},
	{"avg_latency_ms", "Average request latency in milliseconds within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgLatencyMs }},
	{"avg_latency_score", "Average latency score within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgLatencyScore }},
	{"total_requests", "Requests routed to the node within the stats window.",
		func(p *upstream.Period) *float64 { return p.TotalRequests }},
	{"successful_requests", "Requests the node answered successfully within the stats window.",
		func(p *upstream.Period) *float64 { return p.SuccessfulRequests }},
	{"avg_success_rate", "Average request success rate within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgSuccessRate }},
	{"avg_success_rate_score", "Average success rate score within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgSuccessRateScore }},
	{"avg_reliability_score", "Average reliability score within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgReliabilityScore }},
	{"avg_staked_capacity_percent", "Average staked capacity percentage within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgStakedCapacityPercent }},
	{"avg_utilization_percent", "Average utilization percentage within the stats window.",
		func(p *upstream.Period) *float64 { return p.AvgUtilizationPercent }},
	{"total_pre_earned", "PRE earned by the node within the stats window.",
		func(p *upstream.Period) *float64 { return p.TotalPreEarned }},
	{"rewardable_requests", "Rewardable requests served within the stats window.",
		func(p *upstream.Period) *float64 { return p.RewardableRequests }},
}

// Catalog returns the instruments allocated for a scrape. Stats instruments
// are only part of the catalog when includeStats is set.
func Catalog(includeStats bool) []Instrument {
	out := []Instrument{
		{Name: NameInfo, Help: "Node identity; always 1.", Labels: InfoLabels},
		{Name: NameConnected, Help: "1 if the node is connected to its gateway, else 0.", Labels: nodeLabels},
		{Name: NameBlocked, Help: "1 if the node is blocked, else 0.", Labels: nodeLabels},
	}
	if !includeStats {
		return out
	}
	out = append(out,
		Instrument{Name: NameConnections, Help: "Connections within the stats window.", Labels: nodeLabels, Stats: true},
		Instrument{Name: NameDisconnections, Help: "Disconnections within the stats window.", Labels: nodeLabels, Stats: true},
	)
	for _, s := range periodStats {
		out = append(out, Instrument{Name: s.name, Help: s.help, Labels: nodeLabels, Stats: true})
	}
	return out
}

// PeriodStatNames returns the windowed statistic names in emission order.
func PeriodStatNames() []string {
	names := make([]string, len(periodStats))
	for i, s := range periodStats {
		names[i] = s.name
	}
	return names
}
