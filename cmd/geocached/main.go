// Package main implements the geocached daemon: an in-process geolocation
// cache with an HTTP admin surface and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/geocache/gateway/httpapi"
	"github.com/c360/geocache/geo"
	"github.com/c360/geocache/metric"
	"github.com/c360/geocache/pkg/cache"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "geocached"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting geocached",
		"version", Version,
		"max_size_bytes", cfg.Cache.MaxSizeBytes,
		"default_ttl", cfg.Cache.DefaultTTL,
		"prune_interval", cfg.Cache.PruneInterval)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Metrics registry and engine
	metricsRegistry := metric.NewMetricsRegistry()

	engine, err := cache.New[any](signalCtx, cfg.Cache,
		cache.WithMetrics[any](metricsRegistry, "geolocation"),
		cache.WithLogger[any](logger),
	)
	if err != nil {
		return fmt.Errorf("create cache engine: %w", err)
	}
	defer engine.Destroy()

	// Resolver over in-memory demo collaborators
	resolver, err := geo.NewCachedResolver(engine, newStaticLocationSource(), newStaticRegionStore(), logger)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}
	warmCache(signalCtx, resolver, logger)

	// HTTP servers
	apiServer, err := httpapi.NewServer(cfg.HTTPPort, engine, logger)
	if err != nil {
		return fmt.Errorf("create admin server: %w", err)
	}
	metricsServer := metric.NewServer(cfg.MetricsPort, "/metrics", metricsRegistry)

	serverErrs := make(chan error, 2)
	go func() {
		slog.Info("Admin API listening", "port", cfg.HTTPPort)
		serverErrs <- apiServer.Start()
	}()
	go func() {
		slog.Info("Metrics listening", "address", metricsServer.Address())
		serverErrs <- metricsServer.Start()
	}()

	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serverErrs:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Ordered shutdown: servers first, engine last (deferred Destroy).
	if err := apiServer.Stop(); err != nil {
		slog.Error("Error stopping admin server", "error", err)
	}
	if err := metricsServer.Stop(); err != nil {
		slog.Error("Error stopping metrics server", "error", err)
	}

	slog.Info("geocached shutdown complete")
	return nil
}

// warmCache primes the cache with the demo records so the stats and metrics
// surfaces show activity immediately after startup.
func warmCache(ctx context.Context, resolver *geo.CachedResolver, logger *slog.Logger) {
	for _, ip := range []string{"203.0.113.9", "198.51.100.7"} {
		if _, err := resolver.Location(ctx, ip); err != nil {
			logger.Warn("cache warmup lookup failed", "ip", ip, "error", err)
		}
	}
	for _, code := range []string{"us", "eu"} {
		if _, err := resolver.Region(ctx, code, "limits"); err != nil {
			logger.Warn("cache warmup config fetch failed", "code", code, "error", err)
		}
	}
}
