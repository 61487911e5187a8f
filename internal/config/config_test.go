package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
server:
  listen: "127.0.0.1:9100"
  telemetry_path: /exporter-metrics
upstream:
  base_url: "http://localhost:8080"
  timeout: 5s
  breaker:
    enabled: false
stats:
  policy: cadence
  cadence:
    minutes: [0, 30]
    lookback: 10m
metrics:
  namespace: presearch
log:
  level: debug
`
	cfg := loadFromString(t, yaml)

	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Listen)
	assert.Equal(t, "/exporter-metrics", cfg.Server.TelemetryPath)
	assert.Equal(t, "http://localhost:8080", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.False(t, cfg.Upstream.Breaker.Enabled)
	assert.Equal(t, PolicyCadence, cfg.Stats.Policy)
	assert.Equal(t, []int{0, 30}, cfg.Stats.Cadence.Minutes)
	assert.Equal(t, 10*time.Minute, cfg.Stats.Cadence.Lookback)
	assert.Equal(t, "presearch", cfg.Metrics.Namespace)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "metrics:\n  namespace: pre\n")

	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultBaseURL, cfg.Upstream.BaseURL)
	assert.Equal(t, DefaultUpstreamTimeout, cfg.Upstream.Timeout)
	assert.True(t, cfg.Upstream.Breaker.Enabled)
	assert.Equal(t, PolicyDuration, cfg.Stats.Policy)
	assert.Equal(t, DefaultSince, cfg.Stats.DefaultSince)
	assert.Equal(t, DefaultCadenceMinutes, cfg.Stats.Cadence.Minutes)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultNamespace, cfg.Metrics.Namespace)
}

func TestDefault_CadenceMinutesNotShared(t *testing.T) {
	cfg := Default()
	cfg.Stats.Cadence.Minutes[0] = 59
	assert.Equal(t, 0, DefaultCadenceMinutes[0], "Default() must copy DefaultCadenceMinutes")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty listen", "server:\n  listen: \"\"\n"},
		{"telemetry on metrics path", "server:\n  telemetry_path: /metrics\n"},
		{"relative telemetry path", "server:\n  telemetry_path: stats\n"},
		{"bad base url", "upstream:\n  base_url: \"nodes.presearch.org\"\n"},
		{"negative timeout", "upstream:\n  timeout: -1s\n"},
		{"zero body cap", "upstream:\n  max_body_bytes: 0\n"},
		{"breaker ratio", "upstream:\n  breaker:\n    enabled: true\n    failure_ratio: 1.5\n"},
		{"unknown policy", "stats:\n  policy: sometimes\n"},
		{"zero since", "stats:\n  default_since: 0s\n"},
		{"cadence minute range", "stats:\n  policy: cadence\n  cadence:\n    minutes: [0, 60]\n"},
		{"cadence empty", "stats:\n  policy: cadence\n  cadence:\n    minutes: []\n"},
		{"cadence lookback", "stats:\n  policy: cadence\n  cadence:\n    lookback: 0s\n"},
		{"namespace", "metrics:\n  namespace: \"pre-node\"\n"},
		{"log level", "log:\n  level: verbose\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadStringErr(t, tc.yaml)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyNamespaceAllowed(t *testing.T) {
	cfg := loadFromString(t, "metrics:\n  namespace: \"\"\n")
	assert.Empty(t, cfg.Metrics.Namespace)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  namespace: first\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-reloaded:
			// A truncate event can race the write and load an empty file.
			if c.Metrics.Namespace != "second" {
				continue
			}
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
			_ = os.WriteFile(path, []byte("metrics:\n  namespace: second\n"), 0o600)
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

// TestWatch_ReloadsOnSymlinkSwap mirrors a Kubernetes ConfigMap mount:
// config.yaml -> ..data/config.yaml, with ..data atomically re-pointed at a
// new version directory on every update.
func TestWatch_ReloadsOnSymlinkSwap(t *testing.T) {
	dir := t.TempDir()
	writeVersion := func(name, namespace string) {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0o700))
		content := []byte("metrics:\n  namespace: " + namespace + "\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, name, "config.yaml"), content, 0o600))
	}
	swapData := func(name string) {
		tmp := filepath.Join(dir, "..data_tmp")
		require.NoError(t, os.Symlink(name, tmp))
		require.NoError(t, os.Rename(tmp, filepath.Join(dir, "..data")))
	}

	writeVersion("v0", "first")
	require.NoError(t, os.Symlink("v0", filepath.Join(dir, "..data")))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.Symlink(filepath.Join("..data", "config.yaml"), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		})
	}()

	// Each tick publishes a fresh version so a swap made before the watcher
	// registered is followed by one it sees.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	version := 0
	for {
		select {
		case c := <-reloaded:
			if c.Metrics.Namespace != "second" {
				continue
			}
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
			version++
			name := fmt.Sprintf("v%d", version)
			writeVersion(name, "second")
			swapData(name)
		case <-deadline:
			t.Fatal("timed out waiting for reload after symlink swap")
		}
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	require.NoError(t, err)
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return Load(path)
}
