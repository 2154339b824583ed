// FuelGuard - Fuel purchase anomaly detection for fleet operators.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fuelguard/fuelguard/internal/api"
	"github.com/fuelguard/fuelguard/internal/bus"
	"github.com/fuelguard/fuelguard/internal/cache"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/engine"
	"github.com/fuelguard/fuelguard/internal/repository"
	"github.com/fuelguard/fuelguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("FUELGUARD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting fuelguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("FUELGUARD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize evaluation engines. Each company gets its own engine
	// with its custom rules loaded from the database on first use.
	engines := engine.NewManager(cfg, repo, cacheImpl, logger)
	defer engines.Close()
	slog.Info("evaluation engine initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("FUELGUARD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, func(companyID string) worker.Evaluator {
			return engines.Engine(companyID)
		})

		// Companies to process (comma-separated)
		var companyIDs []string
		if envCompanies := os.Getenv("FUELGUARD_COMPANIES"); envCompanies != "" {
			for _, id := range strings.Split(envCompanies, ",") {
				if id = strings.TrimSpace(id); id != "" {
					companyIDs = append(companyIDs, id)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{CompanyIDs: companyIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "company_count", len(companyIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engines, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fuelguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fuelguard shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              ⛽ FUELGUARD                 ║")
	fmt.Println("  ║     Fuel Purchase Anomaly Detection       ║")
	fmt.Println("  ║       Every liter accounted for.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST  /transactions       - Ingest and screen a fuel purchase")
	fmt.Println("    GET   /transactions       - List transactions")
	fmt.Println("    GET   /transactions/{id}  - Get transaction by ID")
	fmt.Println("    GET   /anomalies          - List flagged anomalies")
	fmt.Println("    PATCH /anomalies/{id}     - Review an anomaly")
	fmt.Println("    POST  /vehicles           - Register a vehicle")
	fmt.Println("    POST  /projects           - Register a project geofence")
	fmt.Println("    POST  /workers            - Register a driver")
	fmt.Println("    POST  /providers/{name}/sync - Pull transactions from a fuel card provider")
	fmt.Println("    GET   /rules              - List custom rules")
	fmt.Println("    POST  /rules              - Create a custom rule")
	fmt.Println("    POST  /rules/reload       - Hot-reload rules from database")
	fmt.Println("    GET   /stats              - Aggregate statistics")
	fmt.Println("    GET   /health             - Health check")
	fmt.Println()
}
