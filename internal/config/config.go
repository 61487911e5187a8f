package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListen            = ":8000"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultBaseURL           = "https://nodes.presearch.org"
	DefaultUpstreamTimeout   = 30 * time.Second
	DefaultMaxBodyBytes      = 32 << 20
	DefaultSince             = 20 * time.Minute
	DefaultCadenceLookback   = 15 * time.Minute
	DefaultNamespace         = "pre"
	DefaultLogLevel          = "info"
)

// Stats policy names accepted in stats.policy.
const (
	PolicyDuration = "duration"
	PolicyCadence  = "cadence"
)

// DefaultCadenceMinutes are the minutes of the hour at which the upstream
// refreshes its windowed statistics.
var DefaultCadenceMinutes = []int{0, 15, 22, 30, 45}

// Config is the top-level exporter configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Stats    StatsConfig    `yaml:"stats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Listen is the address the scrape endpoint binds to (host:port).
	Listen string `yaml:"listen"`

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// TelemetryPath serves the exporter's own runtime metrics when non-empty.
	TelemetryPath string `yaml:"telemetry_path"`
}

// UpstreamConfig configures the node status API client.
type UpstreamConfig struct {
	// BaseURL is the scheme and host of the node status API.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single upstream request. Zero disables the limit.
	Timeout time.Duration `yaml:"timeout"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// MaxBodyBytes caps how much of the upstream response is read.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Breaker configures the circuit breaker wrapped around every fetch.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state after which counts reset.
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration `yaml:"timeout"`

	// FailureRatio trips the breaker once at least MinRequests were seen.
	FailureRatio float64 `yaml:"failure_ratio"`
	MinRequests  uint32  `yaml:"min_requests"`
}

// StatsConfig selects how windowed statistics are requested.
type StatsConfig struct {
	// Policy is one of: duration | cadence.
	Policy string `yaml:"policy"`

	// DefaultSince is the lookback used by the duration policy when the
	// caller does not pass since_seconds.
	DefaultSince time.Duration `yaml:"default_since"`

	Cadence CadenceConfig `yaml:"cadence"`
}

// CadenceConfig configures the cadence policy.
type CadenceConfig struct {
	// Minutes lists the minutes of the hour on which stats are included.
	Minutes []int `yaml:"minutes"`

	// Lookback is the fixed window requested on an allowed minute.
	Lookback time.Duration `yaml:"lookback"`
}

// MetricsConfig controls the emitted metric names.
type MetricsConfig struct {
	// Namespace prefixes every metric name. Empty emits bare names.
	Namespace string `yaml:"namespace"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// SlogLevel converts Level to a slog.Level. Unknown values map to info;
// validate rejects them before this is reached.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults. A missing file is not an
// error: the built-in defaults are returned instead.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data on top of the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:            DefaultListen,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		Upstream: UpstreamConfig{
			BaseURL:      DefaultBaseURL,
			Timeout:      DefaultUpstreamTimeout,
			MaxBodyBytes: DefaultMaxBodyBytes,
			Breaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  1,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				FailureRatio: 0.6,
				MinRequests:  3,
			},
		},
		Stats: StatsConfig{
			Policy:       PolicyDuration,
			DefaultSince: DefaultSince,
			Cadence: CadenceConfig{
				Minutes:  append([]int(nil), DefaultCadenceMinutes...),
				Lookback: DefaultCadenceLookback,
			},
		},
		Metrics: MetricsConfig{Namespace: DefaultNamespace},
		Log:     LogConfig{Level: DefaultLogLevel},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if p := cfg.Server.TelemetryPath; p != "" && (!strings.HasPrefix(p, "/") || p == "/" || p == "/metrics") {
		return fmt.Errorf("server.telemetry_path %q must be an absolute path other than / and /metrics", p)
	}

	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q must be an absolute http(s) URL", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream.timeout must not be negative")
	}
	if cfg.Upstream.MaxBodyBytes <= 0 {
		return fmt.Errorf("upstream.max_body_bytes must be positive")
	}
	if b := cfg.Upstream.Breaker; b.Enabled {
		if b.FailureRatio <= 0 || b.FailureRatio > 1 {
			return fmt.Errorf("upstream.breaker.failure_ratio %v is out of range (0, 1]", b.FailureRatio)
		}
		if b.Interval < 0 || b.Timeout < 0 {
			return fmt.Errorf("upstream.breaker durations must not be negative")
		}
	}

	switch cfg.Stats.Policy {
	case PolicyDuration:
		if cfg.Stats.DefaultSince <= 0 {
			return fmt.Errorf("stats.default_since must be positive")
		}
	case PolicyCadence:
		if len(cfg.Stats.Cadence.Minutes) == 0 {
			return fmt.Errorf("stats.cadence.minutes must not be empty")
		}
		for _, m := range cfg.Stats.Cadence.Minutes {
			if m < 0 || m > 59 {
				return fmt.Errorf("stats.cadence.minutes: %d is out of range [0, 59]", m)
			}
		}
		if cfg.Stats.Cadence.Lookback <= 0 {
			return fmt.Errorf("stats.cadence.lookback must be positive")
		}
	default:
		return fmt.Errorf("stats.policy %q unknown: want duration|cadence", cfg.Stats.Policy)
	}

	if ns := cfg.Metrics.Namespace; ns != "" && !model.IsValidMetricName(model.LabelValue(ns)) {
		return fmt.Errorf("metrics.namespace %q is not a valid metric name prefix", ns)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	return nil
}
