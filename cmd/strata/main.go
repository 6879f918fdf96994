package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strata-lab/project-strata/internal/analyses"
	"github.com/strata-lab/project-strata/internal/config"
	"github.com/strata-lab/project-strata/internal/core/aggregate"
	"github.com/strata-lab/project-strata/internal/core/analysis"
	"github.com/strata-lab/project-strata/internal/export"
	"github.com/strata-lab/project-strata/internal/ingestion"
	"github.com/strata-lab/project-strata/internal/migrations"
	"github.com/strata-lab/project-strata/internal/pipeline"
	"github.com/strata-lab/project-strata/internal/server"
	"github.com/strata-lab/project-strata/internal/storage/document"
	"github.com/strata-lab/project-strata/internal/storage/sessionlog"
)

func main() {
	configPath := flag.String("config", "strata.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	scheduleInterval, err := time.ParseDuration(cfg.Analytics.ScheduleInterval)
	if err != nil {
		slog.Error("Invalid schedule interval", "value", cfg.Analytics.ScheduleInterval, "error", err)
		os.Exit(1)
	}

	// 2. Initialize Document Store (PostgreSQL)
	docStore, err := document.NewAdapter(
		cfg.Document.DSN,
		cfg.Document.MaxOpenConns,
		cfg.Document.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize document store", "error", err)
		os.Exit(1)
	}
	defer docStore.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(docStore.DB(), cfg.Document.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Session Log (BadgerDB)
	sessionStore, err := sessionlog.Open(sessionlog.Config{
		Path:       cfg.SessionLog.Path,
		InMemory:   cfg.SessionLog.InMemory,
		SyncWrites: cfg.SessionLog.SyncWrites,
		Logger:     logger,
	})
	if err != nil {
		slog.Error("Failed to open session log", "error", err)
		os.Exit(1)
	}
	defer sessionStore.Close()

	// 4. Load Analysis Definitions
	defs, err := analysis.NewFileSystemRepository(cfg.Analytics.DefinitionsDir)
	if err != nil {
		slog.Error("Failed to load analysis definitions", "error", err)
		os.Exit(1)
	}

	// 5. Initialize Pipeline
	pipe := pipeline.New(docStore, sessionStore, defs,
		pipeline.WithAggregateOptions(aggregate.Options{
			Partitions: cfg.Analytics.Partitions,
			Workers:    cfg.Analytics.Workers,
		}),
	)

	// 6. Optional bulk seed load before serving
	if cfg.Analytics.SeedDir != "" {
		loader := ingestion.NewLoader(docStore, sessionStore)
		stats, err := loader.Load(context.Background(), cfg.Analytics.SeedDir)
		if err != nil {
			slog.Error("Bulk load failed", "dir", cfg.Analytics.SeedDir, "error", err)
			os.Exit(1)
		}
		slog.Info("Bulk load finished",
			"entities", stats.Entities,
			"transactions", stats.Transactions,
			"sessions", stats.Sessions,
			"duplicates", stats.Duplicates,
			"invalid", stats.Invalid,
		)
	}

	// 7. Initialize HTTP Services
	ingestionSvc := ingestion.NewService(docStore, sessionStore, cfg.Server.MaxBodySizeMB)
	analysesSvc := analyses.NewService(pipe, defs)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), docStore.DB(), sessionStore, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	analysesSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduled pipeline runs with file export, if enabled.
	if cfg.Analytics.ScheduleEnabled {
		var emitter pipeline.Emitter
		if cfg.Analytics.ExportEnabled {
			emitter = export.New(cfg.Analytics.ExportDir)
		}
		scheduler := pipeline.NewScheduler(scheduleInterval, pipe, emitter)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Pipeline scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
