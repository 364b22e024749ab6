// Command coordinator runs the multi-agent coordination core: one
// WebSocket endpoint and a small read-only HTTP surface per project.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfhttp "github.com/relaymesh/coordinator/internal/adapter/http"
	cfnats "github.com/relaymesh/coordinator/internal/adapter/nats"
	"github.com/relaymesh/coordinator/internal/adapter/natskv"
	"github.com/relaymesh/coordinator/internal/adapter/otel"
	"github.com/relaymesh/coordinator/internal/adapter/ristretto"
	"github.com/relaymesh/coordinator/internal/adapter/tiered"
	"github.com/relaymesh/coordinator/internal/adapter/ws"
	"github.com/relaymesh/coordinator/internal/config"
	"github.com/relaymesh/coordinator/internal/logger"
	"github.com/relaymesh/coordinator/internal/middleware"
	"github.com/relaymesh/coordinator/internal/port/cache"
	"github.com/relaymesh/coordinator/internal/projectactor"
	"github.com/relaymesh/coordinator/internal/projectregistry"
	"github.com/relaymesh/coordinator/internal/resilience"
)

// Exit codes per the specification's configuration contract.
const (
	exitOK                = 0
	exitInvalidConfig     = 64
	exitDataDirUnusable   = 65
	exitFatalIOAfterStart = 74
)

func main() {
	// Temporary bootstrap logger until config is loaded.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

// startupError tags an error with the exit code it should produce.
type startupError struct {
	code int
	err  error
}

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var se *startupError
	if errors.As(err, &se) {
		return se.code
	}
	return exitFatalIOAfterStart
}

func run() error {
	flags, err := config.ParseFlags(nil)
	if err != nil {
		return &startupError{exitInvalidConfig, fmt.Errorf("flags: %w", err)}
	}

	cfg, yamlPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return &startupError{exitInvalidConfig, fmt.Errorf("config: %w", err)}
	}

	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLog.Close()

	slog.Info("config loaded", "config_file", yamlPath, "bind_addr", cfg.Server.BindAddr, "data_dir", cfg.Server.DataDir)

	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return &startupError{exitDataDirUnusable, fmt.Errorf("data dir: %w", err)}
	}

	ctx := context.Background()

	// --- Optional infrastructure ---

	var natsPub *cfnats.Publisher
	if cfg.NATS.URL != "" {
		natsPub, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		natsPub.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		slog.Info("nats fan-out connected", "url", cfg.NATS.URL)
	}

	var metrics *otel.Metrics
	if cfg.OTEL.Enabled {
		metrics, err = otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
		slog.Info("otel metrics enabled")
	}

	// --- Read-projection cache (L1 in-process, optional L2 NATS KV mirror) ---

	l1Cache, err := ristretto.New(cfg.Cache.L1MaxSizeMB * 1024 * 1024)
	if err != nil {
		return fmt.Errorf("ristretto cache: %w", err)
	}
	defer l1Cache.Close()

	var projCache cache.Cache = l1Cache
	if natsPub != nil {
		kv, err := natsPub.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("nats kv bucket: %w", err)
		}
		projCache = tiered.New(l1Cache, natskv.New(kv), cfg.Cache.L2TTL)
		slog.Info("projection cache tiered with nats kv mirror", "bucket", cfg.Cache.L2Bucket)
	}

	// --- Connection hub and project registry ---

	hub := ws.NewHub(ws.Options{
		OutboundQueueSize:        cfg.Limits.MaxEventQueue,
		IdleTimeout:              cfg.Timing.IdleTimeout,
		PongTimeout:              cfg.Timing.PongTimeout,
		MaxConnectionsPerProject: cfg.Limits.MaxConnectionsPerProject,
		Log:                      log,
	})

	registry := projectregistry.New(projectregistry.Options{
		DataDir:     cfg.Server.DataDir,
		IdleTimeout: cfg.Timing.ProjectIdle,
		RetryWrite:  cfg.Limits.RetryWrite,
		ActorConfig: projectactor.Config{
			HeartbeatTimeout: cfg.Timing.HeartbeatTimeout,
			AgentTTL:         cfg.Timing.AgentTTL,
			OrchTimeout:      cfg.Timing.OrchTimeout,
			AuctionDefault:   cfg.Timing.AuctionDefault,
			MinLeaseTTL:      cfg.Timing.MinLeaseTTL,
			MaxLeaseTTL:      cfg.Timing.MaxLeaseTTL,
			InboxCap:         cfg.Limits.InboxCap,
			ScanInterval:     cfg.Timing.ScanInterval,
			ReapInterval:     cfg.Timing.ReapInterval,
			SnapshotEveryN:   cfg.Timing.SnapshotEveryN,
			SnapshotMaxAge:   cfg.Timing.SnapshotMaxAge,
			DefaultQuorum:    cfg.Consensus.DefaultQuorum,
			DefaultThreshold: cfg.Consensus.DefaultThreshold,
		},
		Hub:       hub,
		Responder: hub,
		Metrics:   metrics,
		NATS:      natsPub,
		Log:       log,
	})

	evictCtx, cancelEvict := context.WithCancel(ctx)
	go registry.RunIdleEviction(evictCtx, hub)

	resolver := func(ctx context.Context, projectID string) (ws.ProjectActor, error) {
		return registry.Get(ctx, projectID)
	}

	// --- HTTP ---

	handlers := cfhttp.NewHandlers(registry, log, projCache, cfg.Cache.L2TTL)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Auth(cfg.Auth.TokenHash))

	r.Get("/ws", ws.Route(hub, resolver))
	cfhttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              cfg.Server.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", cfg.Server.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done

	// Ordered graceful shutdown, per spec §5: stop accepting new
	// connections, flush pending event writes, snapshot every project,
	// then exit.
	slog.Info("shutdown phase 1: stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("shutdown phase 2: stopping idle eviction scanner")
	cancelEvict()

	slog.Info("shutdown phase 3: snapshotting and stopping every project")
	registry.Shutdown()

	if natsPub != nil {
		slog.Info("shutdown phase 4: draining nats")
		if err := natsPub.Drain(); err != nil {
			slog.Error("nats drain error", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}
