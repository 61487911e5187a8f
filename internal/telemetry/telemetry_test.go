package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveScrape(t *testing.T) {
	tel := New(nil)

	tel.ObserveScrape("success", true, 120*time.Millisecond)
	tel.ObserveScrape("success", false, 30*time.Millisecond)
	tel.ObserveScrape("upstream_error", true, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(tel.scrapes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.scrapes.WithLabelValues("upstream_error")))
	assert.Equal(t, 2, testutil.CollectAndCount(tel.duration))
}

func TestBreakerStateGauge(t *testing.T) {
	state := "closed"
	tel := New(func() string { return state })

	expected := `
# HELP presearch_exporter_upstream_breaker_state Upstream circuit breaker state: -1 disabled, 0 closed, 1 half-open, 2 open.
# TYPE presearch_exporter_upstream_breaker_state gauge
presearch_exporter_upstream_breaker_state 0
`
	require.NoError(t, testutil.GatherAndCompare(tel.Gatherer(), strings.NewReader(expected),
		"presearch_exporter_upstream_breaker_state"))

	state = "open"
	expected = strings.Replace(expected, "state 0", "state 2", 1)
	require.NoError(t, testutil.GatherAndCompare(tel.Gatherer(), strings.NewReader(expected),
		"presearch_exporter_upstream_breaker_state"))
}

func TestHandler(t *testing.T) {
	tel := New(func() string { return "disabled" })
	tel.ObserveScrape("success", true, time.Millisecond)

	rr := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/exporter-metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `presearch_exporter_scrapes_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "presearch_exporter_upstream_breaker_state -1")
	assert.Contains(t, string(body), "go_goroutines")
}
