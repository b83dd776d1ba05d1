// notifyd is a push notification daemon. It holds one WebSocket per client
// session and fans events received on the Redis bus out to the users they
// concern.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/notifyd/pkg/api"
	"github.com/codeready-toolchain/notifyd/pkg/bus"
	"github.com/codeready-toolchain/notifyd/pkg/config"
	"github.com/codeready-toolchain/notifyd/pkg/database"
	"github.com/codeready-toolchain/notifyd/pkg/dispatch"
	"github.com/codeready-toolchain/notifyd/pkg/logging"
	"github.com/codeready-toolchain/notifyd/pkg/metrics"
	"github.com/codeready-toolchain/notifyd/pkg/push"
	"github.com/codeready-toolchain/notifyd/pkg/verifier"
	"github.com/codeready-toolchain/notifyd/pkg/version"
)

func main() {
	// Load .env before reading any configuration.
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	// 1. Configuration and logging
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logControl, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting notifyd",
		"version", version.Full(),
		"dirty", version.Dirty(),
		"addr", cfg.ListenAddr(),
		"backend", cfg.BackendURL)

	ctx := context.Background()

	// 2. Connect to the companion app's database for the storage mapping
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to database", "host", dbConfig.Host, "database", dbConfig.Database)

	// 3. Startup self-test: fail fast on a broken mapping setup
	if err := dbClient.SelfTest(ctx); err != nil {
		slog.Error("Database self-test failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database self-test passed")

	// 4. Version handshake so the companion app can check compatibility.
	// Non-fatal: the bus listener retries Redis on its own.
	handshakeCtx, handshakeCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := bus.PublishVersion(handshakeCtx, cfg.RedisURL, version.Full()); err != nil {
		slog.Warn("Failed to publish version to the bus", "error", err)
	} else {
		slog.Info("Published version to the bus", "version", version.Full())
	}
	handshakeCancel()

	// 5. Core session state and event dispatcher
	registry := prometheus.NewRegistry()
	appMetrics := metrics.New(registry)
	connections := push.NewActiveConnections()
	preAuth := push.NewPreAuthCache()
	reset := push.NewResetBroadcast()
	verifierClient := verifier.NewClient(cfg.BackendURL)

	manager := push.NewConnectionManager(connections, preAuth, verifierClient, appMetrics, reset, push.ManagerConfig{})
	dispatcher := dispatch.NewDispatcher(connections, preAuth, dbClient, logControl, appMetrics)

	// 6. Start the bus listener
	listener := bus.NewListener(cfg.RedisURL, cfg.RedisChannel, dispatcher.Dispatch)
	if err := listener.Start(ctx); err != nil {
		slog.Error("Failed to start bus listener", "error", err)
		os.Exit(1)
	}

	// 7. Start HTTP server (non-blocking)
	httpServer := api.NewServer(manager, dispatcher, dbClient, verifierClient,
		func(ctx context.Context) error {
			return bus.PublishVersion(ctx, cfg.RedisURL, version.Full())
		}, registry)

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.ListenAddr()
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 8. SIGHUP closes every client session so they reconnect cleanly
	// (deploys, certificate rotation behind the proxy).
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for range hupCh {
			slog.Info("SIGHUP received, closing all client connections")
			reset.Signal()
		}
	}()

	slog.Info("notifyd started successfully", "channel", cfg.RedisChannel)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop ingest, wake every session, drain HTTP
	listener.Stop()
	reset.Signal()

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
