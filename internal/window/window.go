package window

import (
	"fmt"
	"time"

	"github.com/obsidianstack/presearch-exporter/internal/config"
)

// StartDateLayout is the upstream start_date format (UTC, minute precision).
const StartDateLayout = "2006-01-02 15:04"

// Request carries the caller-supplied scrape parameters a policy may honour.
type Request struct {
	// Since is the requested lookback. Only meaningful when HasSince is set.
	Since    time.Duration
	HasSince bool
}

// Decision is the outcome of a policy for one scrape.
type Decision struct {
	// IncludeStats reports whether windowed statistics are requested upstream
	// and whether the stats instruments are allocated.
	IncludeStats bool

	// Start is the beginning of the lookback window. Zero when IncludeStats
	// is false.
	Start time.Time
}

// StartDate formats Start for the upstream start_date query parameter.
func (d Decision) StartDate() string {
	return d.Start.UTC().Format(StartDateLayout)
}

// Policy decides, per scrape, whether stats are included and over which window.
// Implementations are pure and safe for concurrent use.
type Policy interface {
	Decide(now time.Time, req Request) Decision
	Name() string
}

// New returns the policy selected by cfg.Policy.
func New(cfg config.StatsConfig) (Policy, error) {
	switch cfg.Policy {
	case config.PolicyDuration, "":
		return NewDuration(cfg.DefaultSince), nil
	case config.PolicyCadence:
		c, err := NewCadence(cfg.Cadence.Minutes, cfg.Cadence.Lookback)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("window: unknown policy %q", cfg.Policy)
	}
}

// Duration always includes stats. The window starts Since before now, where
// Since comes from the caller or falls back to DefaultSince.
type Duration struct {
	DefaultSince time.Duration
}

// NewDuration returns a Duration policy. A non-positive default falls back to
// config.DefaultSince.
func NewDuration(defaultSince time.Duration) Duration {
	if defaultSince <= 0 {
		defaultSince = config.DefaultSince
	}
	return Duration{DefaultSince: defaultSince}
}

func (p Duration) Name() string { return config.PolicyDuration }

func (p Duration) Decide(now time.Time, req Request) Decision {
	since := p.DefaultSince
	if req.HasSince {
		since = req.Since
	}
	return Decision{IncludeStats: true, Start: now.UTC().Add(-since)}
}

// Cadence includes stats only on the configured minutes of the hour, always
// with the same fixed lookback. Caller-supplied Since is ignored.
type Cadence struct {
	allowed  [60]bool
	lookback time.Duration
}

// NewCadence returns a Cadence policy for the given minutes of the hour.
func NewCadence(minutes []int, lookback time.Duration) (*Cadence, error) {
	if len(minutes) == 0 {
		return nil, fmt.Errorf("window: cadence needs at least one minute")
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("window: cadence lookback must be positive, got %v", lookback)
	}
	c := &Cadence{lookback: lookback}
	for _, m := range minutes {
		if m < 0 || m > 59 {
			return nil, fmt.Errorf("window: cadence minute %d is out of range [0, 59]", m)
		}
		c.allowed[m] = true
	}
	return c, nil
}

func (p *Cadence) Name() string { return config.PolicyCadence }

func (p *Cadence) Decide(now time.Time, _ Request) Decision {
	now = now.UTC()
	if !p.allowed[now.Minute()] {
		return Decision{}
	}
	return Decision{IncludeStats: true, Start: now.Add(-p.lookback)}
}
