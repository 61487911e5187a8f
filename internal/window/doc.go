// Package window decides whether a scrape requests the upstream's windowed
// node statistics, and over which lookback.
//
// Two policies are available, selected by stats.policy:
//   - Duration — stats on every scrape; the window starts since_seconds
//     (default 20m) before now.
//   - Cadence — stats only when the current UTC minute is one of the
//     configured minutes (default 0, 15, 22, 30, 45), with a fixed 15m
//     lookback. The upstream recomputes its aggregates on that cadence and
//     the computation is costly, so off-cadence scrapes skip it.
//
// Decisions are pure functions of the injected time and are shared by the
// outbound request (start_date, stats) and the registry builder.
package window
