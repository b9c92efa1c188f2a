// Cartwright purchase-saga server — exposes the HTTP API, runs the
// async run pool and orchestrates the five-stage purchase pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"

	"github.com/shopagent/cartwright/pkg/api"
	"github.com/shopagent/cartwright/pkg/audit"
	"github.com/shopagent/cartwright/pkg/catalog"
	"github.com/shopagent/cartwright/pkg/checkout"
	"github.com/shopagent/cartwright/pkg/config"
	"github.com/shopagent/cartwright/pkg/events"
	"github.com/shopagent/cartwright/pkg/intent"
	"github.com/shopagent/cartwright/pkg/llm"
	"github.com/shopagent/cartwright/pkg/metrics"
	"github.com/shopagent/cartwright/pkg/pricerefs"
	"github.com/shopagent/cartwright/pkg/saga"
	"github.com/shopagent/cartwright/pkg/sourcing"
	"github.com/shopagent/cartwright/pkg/trust"
	"github.com/shopagent/cartwright/pkg/version"
	"github.com/shopagent/cartwright/pkg/vision"
)

const shutdownTimeout = 15 * time.Second

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	catalogPath := flag.String("catalog",
		getEnv("CATALOG_PATH", ""),
		"Path to a catalog JSON file (empty uses the embedded catalog)")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting Cartwright",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Open the audit log
	var sinks []events.Sink
	var results []saga.ResultSink
	if cfg.Audit.Enabled {
		auditLog, auditErr := audit.New(cfg.Audit.LogPath)
		if auditErr != nil {
			slog.Error("Failed to open audit log", "path", cfg.Audit.LogPath, "error", auditErr)
			os.Exit(1)
		}
		defer func() {
			if closeErr := auditLog.Close(); closeErr != nil {
				slog.Error("Error closing audit log", "error", closeErr)
			}
		}()
		sinks = append(sinks, auditLog)
		results = append(results, auditLog)
		slog.Info("Audit log opened", "path", cfg.Audit.LogPath)
	}

	// 3. Metrics registry
	registry := metrics.NewRegistry(cfg.Metrics.MaxSamples)
	sinks = append(sinks, registry)

	// 4. Catalog and price references
	loader := catalog.NewLoader(*catalogPath)
	items, err := loader.Load()
	if err != nil {
		slog.Error("Failed to load catalog", "path", *catalogPath, "error", err)
		os.Exit(1)
	}
	refs := pricerefs.Build(items)
	slog.Info("Catalog loaded", "items", len(items))

	// 5. Optional chat model
	var model llms.Model
	if cfg.LLM.Enabled {
		model, err = llm.New(cfg.LLM)
		if err != nil {
			slog.Error("Failed to initialize LLM", "provider", cfg.LLM.Provider, "error", err)
			os.Exit(1)
		}
		slog.Info("LLM initialized", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	} else {
		slog.Info("LLM disabled, all stages run deterministically")
	}

	// 6. Stage capabilities
	var visionProvider vision.Provider = vision.NewDetector()
	if model != nil && cfg.LLM.UseVision {
		visionProvider = vision.NewRefiner(visionProvider, model)
	}
	var intentProvider intent.Provider = intent.NewParser()
	if model != nil && cfg.LLM.UseIntent {
		intentProvider = intent.NewExtractor(model)
	}
	var reranker sourcing.Reranker
	if model != nil && cfg.LLM.UseSourcing {
		reranker = sourcing.NewLLMReranker(model, cfg.LLM.Model)
	}
	var adjuster trust.Adjuster
	if model != nil && cfg.LLM.UseTrust {
		adjuster = trust.NewLLMAdjuster(model)
	}

	sourcer := sourcing.New(loader, cfg.Sourcing.TopK, reranker)
	evaluator := trust.NewEvaluator(cfg.Vendors, refs, adjuster)
	gate := checkout.NewGate(cfg.Checkout, checkout.NewStore())

	// 7. Saga engine
	engine := saga.NewEngine(cfg, saga.Options{
		Vision:  visionProvider,
		Intent:  intentProvider,
		Sourcer: sourcer,
		Trust:   evaluator,
		Gate:    gate,
		Sinks:   sinks,
		Results: results,
	})

	// 8. Run manager and pool
	manager := saga.NewManager()
	pool := saga.NewPool(cfg.Server.Workers)

	// 9. HTTP server (non-blocking start)
	server := api.NewServer(engine, manager, pool, registry)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	stats := cfg.Stats()
	slog.Info("Cartwright started successfully",
		"workers", cfg.Server.Workers,
		"budgets", stats.Budgets,
		"token_policy", stats.Policy)

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case serveErr := <-errCh:
		slog.Error("Server error triggered shutdown", "error", serveErr)
	}

	// 11. Graceful shutdown: drain the pool, then the HTTP server
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Run pool drained")
	case <-time.After(shutdownTimeout):
		slog.Warn("Run pool shutdown timeout exceeded")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("Cartwright stopped")
}
