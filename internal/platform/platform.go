// Package platform assembles the running system from configuration: store,
// outbox sinks, coordinator, sync workers and the application service.
package platform

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"factory-erp/internal/ai"
	"factory-erp/internal/app"
	"factory-erp/internal/config"
	"factory-erp/internal/core"
	"factory-erp/internal/db"
	"factory-erp/internal/logger"
	"factory-erp/internal/store"
	"factory-erp/internal/syncer"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Runtime is a fully wired system. Close releases its connections.
type Runtime struct {
	Service     app.ApplicationService
	Coordinator *core.Coordinator
	Dispatcher  *syncer.Dispatcher
	Puller      *syncer.Puller

	cfg     *config.Config
	log     logger.Logger
	pool    *pgxpool.Pool
	closers []func()
}

type outboxStore interface {
	core.Store
	syncer.Outbox
}

// Build connects to the configured store and loads its state. With no
// DATABASE_URL the state lives in memory for the life of the process.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	rt := &Runtime{cfg: cfg, log: log}

	client := &http.Client{Timeout: 30 * time.Second}
	var sinks []syncer.Sink
	if cfg.Sheet.ScriptURL != "" {
		sinks = append(sinks, syncer.NewSheetSink(cfg.Sheet.ScriptURL, client))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := syncer.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ks)
		rt.closers = append(rt.closers, ks.Close)
	}
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}

	var st outboxStore
	if cfg.DB.URL != "" {
		pool, err := db.NewPool(ctx, cfg.DB.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("database: %w", err)
		}
		rt.pool = pool
		st = store.NewPostgresStore(pool, names...)
		log.Info("using postgres store", logger.Any("sinks", names))
	} else {
		st = store.NewMemoryStore(names...)
		log.Warn("DATABASE_URL not set, state is kept in memory only")
	}

	rt.Dispatcher = syncer.NewDispatcher(st, sinks, syncer.DispatcherConfig{
		MaxAttempts: cfg.Outbox.MaxAttempts,
		BaseBackoff: cfg.Outbox.BaseBackoff,
	}, log)

	rt.Coordinator = core.NewCoordinator(st, log, core.WithCommitHook(rt.Dispatcher.Notify))
	if err := rt.Coordinator.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}

	if url := cfg.Sheet.ExportURL(); url != "" {
		rt.Puller = syncer.NewPuller(url, client, rt.Coordinator, cfg.App.TombstoneRetention, log)
	}

	if cfg.AI.OpenAIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, suggestions use the built-in ordering")
	}

	rt.Service = app.NewAppService(app.Dependencies{
		Coordinator: rt.Coordinator,
		Planner:     ai.NewAgent(cfg.AI.OpenAIKey, log),
		Outbox:      st,
		Dispatcher:  rt.Dispatcher,
		Puller:      rt.Puller,
		Master: app.MasterCredential{
			Name:     cfg.Auth.MasterAdminUser,
			Email:    cfg.Auth.MasterAdminEmail,
			Password: cfg.Auth.MasterAdminPassword,
		},
		AutoSync: cfg.Sheet.AutoSync,
		Logger:   log,
	})
	return rt, nil
}

// StartWorkers runs the outbox dispatcher and, when auto-sync is on, the
// periodic pull. Both stop when ctx is cancelled.
func (rt *Runtime) StartWorkers(ctx context.Context) {
	go rt.Dispatcher.Run(ctx, rt.cfg.Outbox.PollInterval)
	if rt.Puller != nil && rt.cfg.Sheet.AutoSync {
		go rt.Puller.Run(ctx, rt.cfg.Sheet.SyncInterval)
	}
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}
