package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/ff-link-preview/internal/bootstrap"
	"github.com/feral-file/ff-link-preview/internal/config"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/store"
	"github.com/feral-file/ff-link-preview/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		Environment:     cfg.Environment,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "link-preview-sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Sweeper")

	db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to open database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	dataStore := store.NewPGStore(db)

	pipeline, err := bootstrap.NewPipeline(ctx, cfg.PipelineConfig, dataStore)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to build preview pipeline", zap.Error(err))
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Error(err)
		}
	}()

	refreshSweeper := sweeper.NewPreviewRefreshSweeper(sweeper.PreviewRefreshSweeperConfig{
		Interval:         cfg.PreviewSweeper.Interval,
		BatchSize:        cfg.PreviewSweeper.BatchSize,
		WorkerPoolSize:   cfg.PreviewSweeper.Worker.WorkerPoolSize,
		FailedRetryAfter: cfg.PreviewSweeper.FailedRetryAfter,
	}, dataStore, pipeline.Service, pipeline.Clock)

	logger.InfoCtx(ctx, "Initialized preview refresh sweeper",
		zap.Duration("interval", cfg.PreviewSweeper.Interval),
		zap.Int("batch_size", cfg.PreviewSweeper.BatchSize),
		zap.Int("worker_pool_size", cfg.PreviewSweeper.Worker.WorkerPoolSize),
		zap.Duration("failed_retry_after", cfg.PreviewSweeper.FailedRetryAfter),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := refreshSweeper.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the sweeper
	cancel()

	// In-flight refreshes are bounded by the batch item timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Batch.ItemTimeout+5*time.Second)
	defer shutdownCancel()

	if err := refreshSweeper.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.Info("Sweeper stopped")
}
