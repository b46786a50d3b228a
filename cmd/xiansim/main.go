// xiansim server — drives the cultivation-world simulation and serves its
// HTTP API and websocket event stream.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cloudrecess/xiansim/pkg/api"
	"github.com/cloudrecess/xiansim/pkg/config"
	"github.com/cloudrecess/xiansim/pkg/llm"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/version"
	"github.com/cloudrecess/xiansim/pkg/worldgen"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./configs"),
		"Path to configuration directory")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()),
		"World generation seed")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting xiansim",
		"version", version.Full(),
		"config_dir", *configDir,
		"seed", *seed)

	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Create the LLM gateway with call logging
	callLogger, err := llm.NewCallLogger(cfg.Paths.Logs)
	if err != nil {
		slog.Warn("Call logging disabled", "error", err)
	}
	client := llm.NewClient(cfg.LLM, cfg.AI, callLogger)
	slog.Info("LLM gateway initialized",
		"mode", cfg.LLM.Mode,
		"max_concurrent_requests", cfg.AI.MaxConcurrentRequests)

	// 3. Wire the initializer; the world builds on demand via POST /api/init
	builder := &worldgen.Builder{Cfg: cfg, Client: client, Seed: *seed}
	initializer := api.NewInitializer(func(ctx context.Context, onPhase func(int)) (*sim.Simulator, error) {
		builder.OnPhase = onPhase
		return builder.Build(ctx)
	})

	// 4. Create and start the HTTP server (non-blocking)
	server := api.NewServer(cfg, initializer)
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("xiansim started successfully")

	// 5. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 6. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
