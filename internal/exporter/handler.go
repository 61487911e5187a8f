package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/obsidianstack/presearch-exporter/internal/metrics"
	"github.com/obsidianstack/presearch-exporter/internal/upstream"
	"github.com/obsidianstack/presearch-exporter/internal/window"
)

// Scrape outcomes reported to the Observer.
const (
	OutcomeSuccess       = "success"
	OutcomeBadRequest    = "bad_request"
	OutcomeUpstreamError = "upstream_error"
	OutcomeCircuitOpen   = "circuit_open"
	OutcomeCancelled     = "cancelled"
	OutcomeRenderError   = "render_error"
)

// Fetcher retrieves the node status collection for a token.
type Fetcher interface {
	Fetch(ctx context.Context, token string, d window.Decision) (*upstream.Response, error)
}

// Observer is notified once per /metrics request. It may be nil.
type Observer interface {
	ObserveScrape(outcome string, includeStats bool, elapsed time.Duration)
}

// Settings are the reloadable parts of a scrape.
type Settings struct {
	Policy    window.Policy
	Namespace string
}

// LiveSettings holds the current Settings. Reads and swaps are atomic, so a
// config reload never affects a scrape already in flight.
type LiveSettings struct {
	p atomic.Pointer[Settings]
}

// NewLiveSettings returns a LiveSettings holding s.
func NewLiveSettings(s Settings) *LiveSettings {
	l := &LiveSettings{}
	l.Store(s)
	return l
}

// Load returns the current settings.
func (l *LiveSettings) Load() Settings { return *l.p.Load() }

// Store replaces the current settings.
func (l *LiveSettings) Store(s Settings) { l.p.Store(&s) }

// Handler serves the scrape endpoint and the root liveness payload.
type Handler struct {
	fetcher  Fetcher
	settings *LiveSettings
	observer Observer
	now      func() time.Time
	mux      *http.ServeMux
}

// New creates a Handler and registers its routes.
func New(f Fetcher, settings *LiveSettings, obs Observer) *Handler {
	h := &Handler{
		fetcher:  f,
		settings: settings,
		observer: obs,
		now:      time.Now,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("/metrics", h.metrics)
	h.mux.HandleFunc("/", h.root)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// root returns GET / — a static identity payload.
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"Presearch": "Exporter"})
}

// metrics returns GET /metrics?token=...&since_seconds=... — one full scrape.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := h.now()
	q := r.URL.Query()
	token := q.Get("token")
	if token == "" {
		h.observe(OutcomeBadRequest, false, start)
		jsonErr(w, http.StatusBadRequest, "token is required")
		return
	}
	req, err := parseSince(q)
	if err != nil {
		h.observe(OutcomeBadRequest, false, start)
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	st := h.settings.Load()
	d := st.Policy.Decide(start, req)

	resp, err := h.fetcher.Fetch(r.Context(), token, d)
	if err != nil {
		outcome := logFetchError(err)
		h.observe(outcome, d.IncludeStats, start)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	reg := metrics.NewRegistry(st.Namespace, d.IncludeStats)
	res := reg.Populate(resp.Nodes)

	// A scrape abandoned by the caller is not rendered.
	if err := r.Context().Err(); err != nil {
		slog.Info("exporter: scrape cancelled before render", "err", err)
		h.observe(OutcomeCancelled, d.IncludeStats, start)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := reg.Render()
	if err != nil {
		slog.Error("exporter: render failed", "err", err)
		h.observe(OutcomeRenderError, d.IncludeStats, start)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	slog.Debug("exporter: scrape complete",
		"policy", st.Policy.Name(),
		"stats", d.IncludeStats,
		"nodes", res.Nodes,
		"skipped", len(res.Skipped),
		"bytes", len(body),
	)
	h.observe(OutcomeSuccess, d.IncludeStats, start)

	w.Header().Set("Content-Type", metrics.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

// --- helpers ----------------------------------------------------------------

// parseSince reads the optional since_seconds parameter.
func parseSince(q url.Values) (window.Request, error) {
	raw := q.Get("since_seconds")
	if raw == "" {
		return window.Request{}, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return window.Request{}, errors.New("since_seconds must be an integer")
	}
	if secs < 0 {
		return window.Request{}, errors.New("since_seconds must not be negative")
	}
	if secs > int64(time.Duration(1<<63-1)/time.Second) {
		return window.Request{}, errors.New("since_seconds is too large")
	}
	return window.Request{Since: time.Duration(secs) * time.Second, HasSince: true}, nil
}

// logFetchError logs a failed fetch at a level matching its cause and returns
// the scrape outcome.
func logFetchError(err error) string {
	var se *upstream.StatusError
	switch {
	case errors.As(err, &se):
		slog.Error("exporter: upstream returned an error",
			"status", se.StatusCode, "body", se.Body)
		return OutcomeUpstreamError
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		slog.Warn("exporter: upstream circuit open, scrape rejected", "err", err)
		return OutcomeCircuitOpen
	case errors.Is(err, context.Canceled):
		slog.Info("exporter: scrape cancelled during fetch", "err", err)
		return OutcomeCancelled
	default:
		slog.Error("exporter: upstream fetch failed", "err", err)
		return OutcomeUpstreamError
	}
}

func (h *Handler) observe(outcome string, includeStats bool, start time.Time) {
	if h.observer == nil {
		return
	}
	h.observer.ObserveScrape(outcome, includeStats, h.now().Sub(start))
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
