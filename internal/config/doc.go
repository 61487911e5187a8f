// Package config loads and watches the exporter configuration file.
//
// Top-level types:
//   - Config{Server, Upstream, Stats, Metrics, Log} — full tree parsed from YAML
//   - ServerConfig — listen address, header timeout, optional telemetry path
//   - UpstreamConfig — node status API base URL, request timeout, TLS,
//     body cap and circuit breaker settings
//   - StatsConfig — stats window policy (duration | cadence) and its knobs
//   - MetricsConfig — metric name namespace (default "pre")
//
// Load(path) reads the YAML file, applies defaults (":8000", 30s upstream
// timeout, duration policy with a 20m lookback), then validates enums and
// ranges. A missing file yields the defaults so the exporter runs unconfigured.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory and calls
// onChange with the newly parsed Config whenever the file is written or
// replaced.
package config
