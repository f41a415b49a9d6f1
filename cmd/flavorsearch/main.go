// flavorsearch - cross-cloud flavor discovery and price matching service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/api"
	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/config"
	"github.com/optscale/flavorsearch/internal/flavor"
	"github.com/optscale/flavorsearch/internal/inventory"
	"github.com/optscale/flavorsearch/internal/metrics"
	"github.com/optscale/flavorsearch/internal/migration"
	"github.com/optscale/flavorsearch/internal/skucache"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "flavorsearch.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flavorsearch %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := setupLogger()

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Msg("Starting flavorsearch")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}
	applyLogLevel(cfg.Logging.Level)

	// Create data directory
	if err := os.MkdirAll(cfg.Cache.DataDir, 0755); err != nil {
		logger.Fatal().Err(err).Str("data_dir", cfg.Cache.DataDir).Msg("Failed to create data directory")
	}

	cloudCfg := cfg.CloudConfig()

	// Initialize SKU cache storage
	skuStore, err := skucache.NewBadgerStore(cfg.Cache.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize sku storage")
	}
	defer skuStore.Close()

	// The AWS Price List API feeds the SKU cache.
	ctx := context.Background()
	awsClient, err := cloud.NewAWSClient(ctx, cloudCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize aws client")
	}
	skuCache := skucache.New(skuStore, awsClient, logger)

	// Initialize inventory storage
	invStore, err := inventory.NewStore(cfg.Cache.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize inventory storage")
	}
	defer invStore.Close()

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	skuCache.SetMetrics(m)

	// Flavor lookup controller
	factory := flavor.NewFactory(cloudCfg, logger)
	factory.SetWorkers(cfg.Workers.PoolSize)
	controller := flavor.NewController(factory, m, logger)

	// Migration recommendation engine
	alibabaClient, err := cloud.NewAlibabaClient(cloudCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize alibaba client")
	}
	engine := migration.NewEngine(invStore, invStore, skuCache, alibabaClient,
		cfg.Migration.ExcludedPools, logger)
	engine.SetWorkers(cfg.Workers.PoolSize)
	engine.SetMemoTTL(cfg.Workers.MemoTTL.Duration())

	// Initialize API
	handler := api.NewHandler(controller, engine, invStore, logger)
	router := api.NewRouter(handler, m, logger)

	// Start HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	logger.Info().Msg("flavorsearch stopped")
}

func setupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Caller().Logger()

	applyLogLevel(os.Getenv("FLAVORSEARCH_LOG_LEVEL"))
	return logger
}

func applyLogLevel(level string) {
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
