// Command toolrack is the main entry point for the toolrack MCP tool server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/toolrack/toolrack/internal/config"
	"github.com/toolrack/toolrack/internal/dynamic"
	"github.com/toolrack/toolrack/internal/health"
	"github.com/toolrack/toolrack/internal/observe"
	"github.com/toolrack/toolrack/internal/registry"
	"github.com/toolrack/toolrack/internal/server"
	"github.com/toolrack/toolrack/internal/tools"
	"github.com/toolrack/toolrack/internal/tools/echotool"
	"github.com/toolrack/toolrack/internal/tools/randtool"
	"github.com/toolrack/toolrack/internal/tools/statustool"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "toolrack: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "toolrack: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("toolrack starting",
		"config", *configPath,
		"transport", cfg.Server.Transport,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Server.Name,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Database pool (optional) ──────────────────────────────────────────────
	var pool *pgxpool.Pool
	if cfg.Dynamic.Enabled {
		pool, err = pgxpool.New(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			slog.Error("failed to create database pool", "err", err)
			return 1
		}
		defer pool.Close()
	}

	// ── Build-time tool batch ─────────────────────────────────────────────────
	var groups [][]tools.Static[*server.Service]
	if cfg.Tools.EchoEnabled() {
		groups = append(groups, echotool.Tools[*server.Service]())
	}
	if cfg.Tools.StatusEnabled() {
		groups = append(groups, statustool.Tools[*server.Service]())
	}
	if cfg.Tools.RandEnabled() {
		groups = append(groups, randtool.Tools[*server.Service]())
	}
	seed := tools.Entries(groups...)

	svc, err := server.New(cfg.Server.Name, seed, &server.Options{Version: version})
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}
	logBatch(seed)

	// ── Run group ─────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.Run(gctx, cfg.Server.Transport, cfg.Server.Listen)
	})

	if cfg.Dynamic.Enabled {
		store := dynamic.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to migrate tool definitions schema", "err", err)
			return 1
		}
		loader := dynamic.NewLoader[*server.Service](store, svc)
		g.Go(func() error {
			return loader.Run(gctx, cfg.Dynamic.RefreshInterval.Std())
		})
		slog.Info("dynamic tool loader started", "refresh_interval", cfg.Dynamic.RefreshInterval)
	}

	if cfg.Server.MetricsListen != "" {
		checkers := []health.Checker{health.CatalogueCheck(svc)}
		if pool != nil {
			checkers = append(checkers, health.DatabaseCheck(pool))
		}
		g.Go(func() error {
			return serveAdmin(gctx, cfg.Server.MetricsListen, health.New(checkers...))
		})
		slog.Info("admin endpoint listening", "addr", cfg.Server.MetricsListen)
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// serveAdmin exposes the Prometheus /metrics endpoint and the health probes
// until ctx is done.
func serveAdmin(ctx context.Context, addr string, h *health.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	h.Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// logBatch logs the seeded tool catalogue at startup.
func logBatch(seed []registry.Entry[*server.Service]) {
	names := make([]string, len(seed))
	for i, e := range seed {
		names[i] = e.Name()
	}
	slog.Info("build-time tools seeded", "count", len(seed), "tools", names)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
