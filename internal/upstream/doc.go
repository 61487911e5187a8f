// Package upstream is the HTTP client for the node status API.
//
// Client.Fetch(ctx, token, decision) issues
//
//	GET {base_url}/api/nodes/status/{token}[?start_date=YYYY-MM-DD+HH:MM&stats=true]
//
// and decodes the JSON body into a Response: the nodes map plus every other
// top-level field kept raw for logging. The query parameters are only sent
// when the window decision includes stats.
//
// Each Fetch is a single attempt; there are no retries. Requests are bounded
// by the caller's context and by upstream.timeout. A gobreaker circuit
// breaker (enabled by default) short-circuits fetches after repeated upstream
// failures; 4xx answers other than 429 and caller cancellations do not count
// against it.
package upstream
