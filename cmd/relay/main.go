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
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/gait-relay/internal/audit"
	"github.com/rickgao/gait-relay/internal/bridge"
	"github.com/rickgao/gait-relay/internal/config"
	"github.com/rickgao/gait-relay/internal/connection"
	"github.com/rickgao/gait-relay/internal/database"
	"github.com/rickgao/gait-relay/internal/registry"
	"github.com/rickgao/gait-relay/internal/router"
	"github.com/rickgao/gait-relay/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Short(),
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("relay failed", "error", err)
		os.Exit(1)
	}

	logger.Info("relay stopped")
}

func run(cfg *config.RelayConfig, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	routerCfg, err := router.ConfigFromRouting(cfg.Routing)
	if err != nil {
		return fmt.Errorf("routing config: %w", err)
	}

	reg := registry.New()
	rt := router.NewRouter(routerCfg, reg, logger.With("component", "router"))

	comps := &components{registry: reg, router: rt}
	var opts []connection.Option

	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		comps.db = pool

		writer := audit.NewWriter(audit.WriterConfig{
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
		}, pool, logger.With("component", "audit"))

		if err := writer.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := writer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := writer.Stop(stopCtx); err != nil {
				logger.Warn("audit writer stop failed", "error", err)
			}
		}()

		comps.audit = writer
		opts = append(opts, connection.WithObserver(writer))
	}

	srv := connection.NewServer(
		connection.ConfigFromServer(cfg.Server),
		reg, rt,
		logger.With("component", "server"),
		opts...,
	)
	comps.server = srv

	if cfg.MQTT.Enabled() {
		b := bridge.New(bridge.ConfigFromMQTT(cfg.MQTT), rt, logger)
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt bridge: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			b.Stop(stopCtx)
		}()
		comps.bridge = b
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, srv)
	comps.routes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening",
			"port", cfg.Server.Port,
			"ws_path", cfg.Server.Path,
			"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// Hijacked WebSocket connections are not tracked by http.Server.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newLogger builds the slog handler described by the log section.
func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(lc.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
