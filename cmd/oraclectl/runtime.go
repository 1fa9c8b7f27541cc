package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"fxoracle/config"
	"fxoracle/core/events"
	"fxoracle/core/state"
	"fxoracle/indexer"
	"fxoracle/native/common"
	"fxoracle/native/oracle"
	"fxoracle/observability/logging"
	telemetry "fxoracle/observability/otel"
	"fxoracle/storage"
)

// engineNow is the clock handed to the engine; tests override it.
var engineNow = time.Now

type runtime struct {
	cfg      *config.Config
	db       storage.Database
	journal  *indexer.Journal
	engine   *oracle.Engine
	logger   *slog.Logger
	closers  []func() error
	shutdown func(context.Context) error
}

func openRuntime(ctx context.Context, path string) (*runtime, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	opts := logging.Options{Service: cfg.Service, Env: cfg.Environment, Level: cfg.Logging.Level}
	if cfg.Logging.File != "" {
		opts.File = &logging.FileOptions{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	logger := logging.SetupWithOptions(opts)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Service,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, shutdown: shutdown}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("open state at %s: %w", cfg.DataDir, err)
	}
	rt.db = db
	rt.closers = append(rt.closers, func() error { db.Close(); return nil })

	gormDB, err := indexer.Open(cfg.Journal.DSN)
	if err != nil {
		rt.close()
		return nil, err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		rt.closers = append(rt.closers, sqlDB.Close)
	}
	rt.journal = indexer.NewJournal(gormDB)
	rt.journal.SetLogger(logger)

	engine := oracle.NewEngine(state.NewManager(db))
	engine.SetEmitter(events.MultiEmitter{rt.journal})
	engine.SetPauses(common.NewPauseSet(cfg.PausedModules...))
	engine.SetClock(engineNow)
	engine.SetLogger(logger)
	rt.engine = engine

	logger.Debug("runtime ready",
		slog.String("data_dir", cfg.DataDir),
		logging.MaskField("journal_dsn", cfg.Journal.DSN))
	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && rt.logger != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
	rt.closers = nil
	if rt.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.shutdown(ctx)
		rt.shutdown = nil
	}
}

// withRuntime opens the runtime for the duration of fn.
func withRuntime(configPath string, stderr io.Writer, fn func(ctx context.Context, rt *runtime) int) int {
	ctx := context.Background()
	rt, err := openRuntime(ctx, configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer rt.close()
	return fn(ctx, rt)
}
