package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Veraticus/spice-inbox/internal/categorize"
	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/config"
	"github.com/Veraticus/spice-inbox/internal/connectivity"
	"github.com/Veraticus/spice-inbox/internal/dedup"
	"github.com/Veraticus/spice-inbox/internal/events"
	"github.com/Veraticus/spice-inbox/internal/ingest"
	"github.com/Veraticus/spice-inbox/internal/ledger"
	"github.com/Veraticus/spice-inbox/internal/metrics"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/queue"
	"github.com/Veraticus/spice-inbox/internal/service"
	"github.com/Veraticus/spice-inbox/internal/sheets"
	"github.com/Veraticus/spice-inbox/internal/storage"
	"github.com/Veraticus/spice-inbox/internal/syncer"
)

// app holds the wired pipeline for one command invocation.
type app struct {
	store    *storage.SQLiteStorage
	config   *config.Pipeline
	queue    *queue.Queue
	rules    *categorize.RuleStore
	monitor  *connectivity.Monitor
	engine   *syncer.Engine
	orch     *ingest.Orchestrator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	ledgerOK bool
}

// initStorage opens the SQLite database and runs migrations.
func initStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initLedger returns the Sheets ledger, or an Unconfigured ledger when no
// credentials are set so drains halt with operations kept.
func initLedger(ctx context.Context, kv service.KeyValueStore, logger *slog.Logger) (service.Ledger, bool) {
	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		logger.Warn("Sheets ledger not configured, operations will stay queued", "error", err)
		return ledger.Unconfigured{Cause: err}, false
	}

	l, err := sheets.NewLedger(ctx, *cfg, kv, logger)
	if err != nil {
		logger.Warn("Failed to connect Sheets ledger, operations will stay queued", "error", err)
		return ledger.Unconfigured{Cause: err}, false
	}
	return l, true
}

func loadTables(path string) (*categorize.Tables, error) {
	if path == "" {
		return categorize.LoadEmbedded()
	}
	return categorize.LoadFromFile(path)
}

// newApp wires storage, the queue, the stores, connectivity, the sync engine
// and the orchestrator. Callers must Close the result.
func newApp(ctx context.Context) (*app, error) {
	logger := slog.Default()

	cfg, err := config.LoadPipelineConfig()
	if err != nil {
		return nil, common.NewUserError("Configuration is invalid: "+err.Error(), err)
	}

	store, err := initStorage(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	tables, err := loadTables(cfg.TablesPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load categorization tables: %w", err)
	}

	m := metrics.New()
	q := queue.New(store, queue.Options{Logger: logger, MaxRetries: cfg.MaxRetries})
	rules := categorize.NewRuleStore(store, logger)
	fingerprints := dedup.NewStore(store, dedup.Options{
		Logger:  logger,
		TTL:     cfg.DedupTTL,
		SoftCap: cfg.DedupSoftCap,
	})

	monitor := connectivity.NewMonitor(
		connectivity.NewHTTPProber(cfg.ProbeURL, &http.Client{}),
		events.NewBus[model.ConnectivityChange](),
		connectivity.MonitorOptions{
			Logger:   logger,
			Interval: cfg.ProbeInterval,
			Timeout:  cfg.ProbeTimeout,
		},
	)

	l, ledgerOK := initLedger(ctx, store, logger)
	engine := syncer.NewEngine(q, l, monitor, syncer.Options{
		Logger:  logger,
		Metrics: m,
	})

	opts := ingest.Options{
		Logger:  logger,
		Metrics: m,
		Conn:    monitor,
		Budget:  cfg.IngestBudget,
	}
	if ledgerOK {
		opts.Pusher = engine
	}
	orch := ingest.New(fingerprints, rules, categorize.New(tables), q, opts)

	return &app{
		store:    store,
		config:   cfg,
		queue:    q,
		rules:    rules,
		monitor:  monitor,
		engine:   engine,
		orch:     orch,
		metrics:  m,
		logger:   logger,
		ledgerOK: ledgerOK,
	}, nil
}

// Close releases the database.
func (a *app) Close() error {
	return a.store.Close()
}

// probe runs one connectivity check when a ledger is configured; without
// one there is nothing to reach.
func (a *app) probe(ctx context.Context) model.ConnectivityState {
	if !a.ledgerOK {
		return a.monitor.State()
	}
	return a.monitor.Check(ctx)
}
