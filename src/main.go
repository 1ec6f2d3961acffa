package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/hosting"
	"github.com/wavecrate/wavecrate/src/features/ingesting"
	"github.com/wavecrate/wavecrate/src/features/jobs"
	"github.com/wavecrate/wavecrate/src/features/library"
	"github.com/wavecrate/wavecrate/src/features/logging"
	"github.com/wavecrate/wavecrate/src/features/metrics"
	"github.com/wavecrate/wavecrate/src/infra/artwork"
	"github.com/wavecrate/wavecrate/src/infra/database"
	"github.com/wavecrate/wavecrate/src/infra/extract"
	"github.com/wavecrate/wavecrate/src/infra/objectstore"
	"github.com/wavecrate/wavecrate/src/infra/transcode"
)

func main() {
	// Load configuration
	cfgManager, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Setup default logger with slog
	logger := logging.SetupLogger(cfgManager)
	slog.SetDefault(logger)

	if err := cfgManager.EnsureDirectories(); err != nil {
		log.Fatalf("failed to create working directories: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the catalog store
	dbCtx, dbCancel := context.WithTimeout(ctx, 15*time.Second)
	catalog, err := database.NewMongoCatalog(dbCtx, cfgManager.Get().Database.URI, cfgManager.Get().Database.Name)
	dbCancel()
	if err != nil {
		log.Fatalf("failed to connect to catalog store: %v", err)
	}

	// Connect the object store gateway
	storeCtx, storeCancel := context.WithTimeout(ctx, 15*time.Second)
	gateway, err := objectstore.NewGateway(storeCtx, cfgManager)
	storeCancel()
	if err != nil {
		log.Fatalf("failed to connect to object store: %v", err)
	}

	// Create the job service
	jobService := jobs.NewService(&cfgManager.Get().Jobs)

	// Create the ingesting service and its pipeline stages
	extractor := extract.NewExtractor(cfgManager)
	transcoder := transcode.NewFFmpegTranscoder(cfgManager)
	artService := artwork.NewService(cfgManager)
	ingestingService := ingesting.NewService(catalog, extractor, transcoder, gateway, artService, cfgManager, jobService)

	batchTask := ingesting.NewBatchIngestTask(ingestingService)
	jobService.RegisterHandler("batch_ingest", jobs.NewBaseTaskHandler(batchTask))

	// Create the library and metrics services
	libraryService := library.NewService(catalog, gateway, artService)
	metricsService := metrics.NewService(catalog)

	// Start the watch folder monitor, active only if configured
	folderWatcher, err := ingesting.NewFolderWatcher(ingestingService, cfgManager)
	if err != nil {
		log.Fatalf("failed to create watch folder: %v", err)
	}
	if err := folderWatcher.Start(ctx); err != nil {
		log.Fatalf("failed to start watch folder: %v", err)
	}
	defer folderWatcher.Stop()
	if cfgManager.Get().Watch.Enabled {
		if err := folderWatcher.Enable(); err != nil {
			log.Fatalf("failed to enable watch folder: %v", err)
		}
	}

	// Create and start the HTTP server
	server := hosting.NewServer(cfgManager, ingestingService, folderWatcher, libraryService, jobService, metricsService)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()
	slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfgManager.Get().Server.Port)

	// Wait for a shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")
	cancel()

	if err := server.Shutdown(); err != nil {
		log.Fatalf("failed to shutdown server: %v", err)
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := catalog.Close(closeCtx); err != nil {
		slog.Error("failed to close catalog store", "error", err)
	}
	slog.Info("Server gracefully shut down.")
}
