package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/obsidianstack/presearch-exporter/internal/config"
	"github.com/obsidianstack/presearch-exporter/internal/window"
)

const statusPath = "/api/nodes/status/"

// maxLoggedBody bounds how much of an error body is kept on a StatusError.
const maxLoggedBody = 4 << 10

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client fetches node status from the upstream API. It is safe for
// concurrent use; every Fetch builds its own request.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	maxBody int64
	breaker *gobreaker.CircuitBreaker[*Response]
}

// New builds a Client for cfg. The HTTP client is built once and reused.
func New(cfg config.UpstreamConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream: base url %q must be absolute", cfg.BaseURL)
	}

	c := &Client{
		baseURL: base,
		http:    buildHTTPClient(cfg),
		maxBody: cfg.MaxBodyBytes,
	}
	if c.maxBody <= 0 {
		c.maxBody = config.DefaultMaxBodyBytes
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(base.Host, cfg.Breaker, c.breakerSuccess)
	}
	return c, nil
}

// buildHTTPClient constructs the http.Client for the upstream TLS and timeout
// settings. A zero timeout leaves requests bounded only by their context.
func buildHTTPClient(cfg config.UpstreamConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

func newBreaker(name string, cfg config.BreakerConfig, isSuccessful func(error) bool) *gobreaker.CircuitBreaker[*Response] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("upstream: circuit breaker state changed",
				"upstream", name, "from", from.String(), "to", to.String())
		},
	}
	return gobreaker.NewCircuitBreaker[*Response](settings)
}

// breakerSuccess reports whether err should count as healthy for the breaker.
// Client errors (e.g. an unknown token) say nothing about upstream health;
// 429 does.
//
// A caller cancelled mid-request cannot be left uncounted once Execute has
// admitted it. While half-open it counts as a failure so the breaker never
// closes without a real answer from the upstream; while closed it counts as
// a success so disconnecting scrapers cannot trip it.
func (c *Client) breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return c.breaker.State() != gobreaker.StateHalfOpen
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// BreakerState returns the circuit breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Fetch performs GET {base}/api/nodes/status/{token}. When d.IncludeStats is
// set, start_date and stats=true are added to the query.
//
// Non-2xx answers return a *StatusError. An open breaker returns
// gobreaker.ErrOpenState without touching the network. A context that is
// already done is returned as is and never reaches the breaker.
func (c *Client) Fetch(ctx context.Context, token string, d window.Decision) (*Response, error) {
	if c.breaker == nil {
		return c.fetch(ctx, token, d)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	return c.breaker.Execute(func() (*Response, error) {
		return c.fetch(ctx, token, d)
	})
}

func (c *Client) fetch(ctx context.Context, token string, d window.Decision) (*Response, error) {
	u := c.statusURL(token)
	q := url.Values{}
	if d.IncludeStats {
		q.Set("start_date", d.StartDate())
		q.Set("stats", "true")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("upstream: requesting",
		"url", c.redactedURL(),
		"stats", d.IncludeStats,
		"start_date", q.Get("start_date"),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("upstream: read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("upstream: response exceeds %d bytes", c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(body, maxLoggedBody)}
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("upstream: decode response: %w", err)
	}
	if out.Nodes == nil {
		out.Nodes = map[string]NodeRecord{}
	}

	slog.Debug("upstream: response",
		"status", resp.StatusCode,
		"nodes", len(out.Nodes),
		"diagnostics", diagnosticKeys(out.Diagnostics),
	)
	return &out, nil
}

// statusURL joins the status path and the escaped token onto the base URL,
// keeping any path prefix the base already carries.
func (c *Client) statusURL(token string) *url.URL {
	u := *c.baseURL
	prefix := strings.TrimRight(c.baseURL.Path, "/")
	rawPrefix := strings.TrimRight(c.baseURL.EscapedPath(), "/")
	u.Path = prefix + statusPath + token
	u.RawPath = rawPrefix + statusPath + url.PathEscape(token)
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

// redactedURL is the status URL with the token replaced, safe for logs.
func (c *Client) redactedURL() string {
	return c.statusURL("REDACTED").String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}

func diagnosticKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
