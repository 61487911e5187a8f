package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/presearch-exporter/internal/config"
	"github.com/obsidianstack/presearch-exporter/internal/exporter"
	"github.com/obsidianstack/presearch-exporter/internal/telemetry"
	"github.com/obsidianstack/presearch-exporter/internal/upstream"
	"github.com/obsidianstack/presearch-exporter/internal/window"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file; built-in defaults are used if it does not exist")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("presearch-exporter starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Log.SlogLevel())

	slog.Info("config loaded",
		"listen", cfg.Server.Listen,
		"upstream", cfg.Upstream.BaseURL,
		"upstream_timeout", cfg.Upstream.Timeout,
		"breaker", cfg.Upstream.Breaker.Enabled,
		"stats_policy", cfg.Stats.Policy,
		"namespace", cfg.Metrics.Namespace,
	)

	policy, err := window.New(cfg.Stats)
	if err != nil {
		slog.Error("failed to build stats policy", "err", err)
		os.Exit(1)
	}

	client, err := upstream.New(cfg.Upstream)
	if err != nil {
		slog.Error("failed to build upstream client", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	live := exporter.NewLiveSettings(exporter.Settings{Policy: policy, Namespace: cfg.Metrics.Namespace})
	tel := telemetry.New(client.BreakerState)

	// Hot reload swaps policy, namespace and log level. Listener and upstream
	// settings are fixed for the life of the process.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			p, err := window.New(updated.Stats)
			if err != nil {
				slog.Error("config reload: invalid stats policy, keeping previous", "err", err)
				return
			}
			live.Store(exporter.Settings{Policy: p, Namespace: updated.Metrics.Namespace})
			level.Set(updated.Log.SlogLevel())
			if updated.Server != cfg.Server || !sameUpstream(updated.Upstream, cfg.Upstream) {
				slog.Warn("config reload: server and upstream changes need a restart")
			}
			slog.Info("config hot-reloaded",
				"stats_policy", p.Name(),
				"namespace", updated.Metrics.Namespace,
				"log_level", updated.Log.Level,
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	mux := http.NewServeMux()
	if cfg.Server.TelemetryPath != "" {
		mux.Handle(cfg.Server.TelemetryPath, tel.Handler())
		slog.Info("serving exporter telemetry", "path", cfg.Server.TelemetryPath)
	}
	mux.Handle("/", exporter.New(client, live, tel))

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("presearch-exporter shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func sameUpstream(a, b config.UpstreamConfig) bool {
	return a.BaseURL == b.BaseURL &&
		a.Timeout == b.Timeout &&
		a.InsecureSkipVerify == b.InsecureSkipVerify &&
		a.MaxBodyBytes == b.MaxBodyBytes &&
		a.Breaker == b.Breaker
}
