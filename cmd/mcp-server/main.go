// Package main provides the FinChat MCP server entry point.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bull/finchat/internal/app"
	"github.com/bull/finchat/internal/config"
	mcpserver "github.com/bull/finchat/internal/mcp"
	"github.com/bull/finchat/internal/metrics"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Logs go to stderr: stdout carries the stdio transport.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(getEnv("FINCHAT_CONFIG", "finchat.yaml"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	defer a.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Sessions: a.Sessions,
		Loader:   a.Loader,
	})

	var health mcpserver.HealthChecker
	if a.Storage != nil {
		health = a.Storage
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(health, func() int { return len(a.Sessions.List()) }))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))
	mux.HandleFunc("/", mcpserver.NewLandingHandler())

	httpServer := &http.Server{Addr: "0.0.0.0:" + cfg.Server.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if cfg.Server.ServerMode {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "vector_store", cfg.VectorStore.Type)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode keeps health and metrics reachable for local testing.
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting FinChat MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
