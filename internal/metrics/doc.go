// Package metrics translates node status records into Prometheus gauges.
//
// schema.go is the fixed catalog: info (six identity labels, value 1),
// connected and blocked (0/1), and on stats scrapes connections,
// disconnections and fourteen windowed statistics, all labelled by node_id.
//
// NewRegistry(namespace, includeStats) allocates a private
// prometheus.Registry per scrape holding exactly the catalog for
// includeStats. Stats gauges are not allocated at all on non-stats scrapes,
// so they never appear in the output. Populate fills the gauges from the
// upstream nodes map (mapper.go) and Render encodes them with expfmt.
//
// No registry is ever reused: labels of nodes that left the upstream cannot
// linger, and concurrent scrapes cannot observe each other.
package metrics
