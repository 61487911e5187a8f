package upstream

import (
	"encoding/json"
	"fmt"
)

// Response is the decoded body of GET /api/nodes/status/{token}.
type Response struct {
	// Nodes maps the upstream public node key to its record.
	Nodes map[string]NodeRecord

	// Diagnostics holds every other top-level field verbatim. They are only
	// logged.
	Diagnostics map[string]json.RawMessage
}

// UnmarshalJSON splits the nodes field from the remaining top-level fields.
func (r *Response) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	r.Nodes = nil
	if raw, ok := top["nodes"]; ok {
		if err := json.Unmarshal(raw, &r.Nodes); err != nil {
			return fmt.Errorf("nodes: %w", err)
		}
		delete(top, "nodes")
	}
	r.Diagnostics = top
	return nil
}

// NodeRecord is one node as reported upstream. Meta and Status are nil when
// the block is absent; Period is only present on stats requests.
type NodeRecord struct {
	Meta   *Meta   `json:"meta"`
	Status *Status `json:"status"`
	Period *Period `json:"period"`
}

// Meta describes a node's registration.
type Meta struct {
	Description *string `json:"description"`
	URL         *string `json:"url"`
	GatewayPool string  `json:"gateway_pool"`
	RemoteAddr  string  `json:"remote_addr"`
	Version     string  `json:"version"`
}

// Status is the node's current connection state.
type Status struct {
	Connected bool `json:"connected"`
	Blocked   bool `json:"blocked"`
}

// Period holds the windowed statistics for the requested start_date.
// Every numeric field is nullable upstream.
type Period struct {
	Connections    *Connections    `json:"connections"`
	Disconnections *Disconnections `json:"disconnections"`

	TotalUptimeSeconds       *float64 `json:"total_uptime_seconds"`
	UptimePercentage         *float64 `json:"uptime_percentage"`
	AvgUptimeScore           *float64 `json:"avg_uptime_score"`
	AvgLatencyMs             *float64 `json:"avg_latency_ms"`
	AvgLatencyScore          *float64 `json:"avg_latency_score"`
	TotalRequests            *float64 `json:"total_requests"`
	SuccessfulRequests       *float64 `json:"successful_requests"`
	AvgSuccessRate           *float64 `json:"avg_success_rate"`
	AvgSuccessRateScore      *float64 `json:"avg_success_rate_score"`
	AvgReliabilityScore      *float64 `json:"avg_reliability_score"`
	AvgStakedCapacityPercent *float64 `json:"avg_staked_capacity_percent"`
	AvgUtilizationPercent    *float64 `json:"avg_utilization_percent"`
	TotalPreEarned           *float64 `json:"total_pre_earned"`
	RewardableRequests       *float64 `json:"rewardable_requests"`
}

// Connections counts connection events inside the window.
type Connections struct {
	NumConnections *float64 `json:"num_connections"`
}

// Disconnections counts disconnection events inside the window.
type Disconnections struct {
	NumDisconnections *float64 `json:"num_disconnections"`
}
