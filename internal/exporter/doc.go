// Package exporter implements the HTTP scrape endpoint.
//
// New(fetcher, settings, observer) returns an http.Handler that serves:
//
//	GET /metrics?token=T[&since_seconds=N] — one scrape in Prometheus text format
//	GET /                                  — {"Presearch": "Exporter"}
//
// A scrape decides the stats window, fetches node status for T, builds a
// fresh metrics registry, populates and renders it. Any fetch failure
// (non-2xx upstream, transport error, open circuit, cancellation) answers 400
// with an empty body; the upstream error body is logged. Missing token or an
// invalid since_seconds answers 400 with a JSON error. Nothing is rendered
// unless the whole scrape succeeded.
//
// Settings (policy, namespace) are read once per request from LiveSettings,
// which the config watcher swaps atomically.
package exporter
