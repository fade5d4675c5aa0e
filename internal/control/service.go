// Package control is the composition root: it builds, starts, and stops
// the spooling service.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/dbexec"
	"github.com/spoolhouse/sqlspool/internal/infra/files"
	"github.com/spoolhouse/sqlspool/internal/infra/queuestore"
	"github.com/spoolhouse/sqlspool/internal/infra/storage"
	"github.com/spoolhouse/sqlspool/internal/ops"
	"github.com/spoolhouse/sqlspool/internal/processors/loaderlog"
	"github.com/spoolhouse/sqlspool/internal/processors/sqlscript"
	"github.com/spoolhouse/sqlspool/internal/resilience"
	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
	"github.com/spoolhouse/sqlspool/internal/spooling/registry"
	"github.com/spoolhouse/sqlspool/internal/spooling/watcher"
)

// Service owns the lifecycle of all components.
type Service struct {
	cfg         *config.AppConfig
	provider    *config.Provider
	db          *storage.DB
	store       queuestore.Store
	handler     *resilience.ErrorHandler
	breaker     *resilience.CircuitBreaker
	retry       *resilience.RetryService
	degradation *resilience.Degradation
	registry    *registry.Registry
	watcher     *watcher.Service
	monitor     *ops.Monitor
	opsServer   *ops.Server
	diskProbe   *ops.DiskProbe
	healthStop  chan struct{}
	log         *slog.Logger

	diskForcedOpen bool
}

// NewService creates a Service instance with all dependencies initialized.
func NewService(cfg *config.AppConfig) (*Service, error) {
	sink := metrics.NewPromSink()

	// 1. Storage and journal
	var db *storage.DB
	var journal *storage.Journal
	if cfg.Database.URL != "" {
		var err error
		db, err = storage.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := storage.Migrate(db); err != nil {
			return nil, err
		}
		journal = storage.NewJournal(db.DB)
		slog.Info("Using PostgreSQL execution journal")
	} else if name, needed := databaseRequiredBy(cfg.Watches); needed {
		return nil, fmt.Errorf(
			"watch %s uses a database-backed processor but database.url is not set", name)
	}

	// 2. Queue index store
	var store queuestore.Store
	if cfg.Redis.URL != "" {
		redisStore, err := queuestore.NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis queue store: %w", err)
		}
		store = redisStore
		slog.Info("Using Redis queue index")
	} else {
		store = queuestore.NewMemoryStore()
		slog.Info("Using in-memory queue index")
	}

	// 3. Resilience subsystem
	mover := files.NewMover(cfg.Spool.QueueFolder)
	handler := resilience.NewErrorHandler(cfg.Resilience.Errors.EscalationThreshold, sink)
	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Resilience.Breaker.FailureThreshold,
		Window:           cfg.Resilience.Breaker.Window,
		Cooldown:         cfg.Resilience.Breaker.Cooldown,
	}, sink)
	retry := resilience.NewRetryService(resilience.RetryConfig{
		MaxAttempts:  cfg.Resilience.Retry.MaxAttempts,
		InitialDelay: cfg.Resilience.Retry.InitialDelay,
		Multiplier:   cfg.Resilience.Retry.Multiplier,
		MaxDelay:     cfg.Resilience.Retry.MaxDelay,
	}, sink)
	degradation := resilience.NewDegradation(store, mover, breaker, sink, cfg.Spool.QueueFolder)

	// 4. Processor registry. Processors register explicitly, by type.
	reg := registry.New(sink)
	if db != nil {
		executor := dbexec.NewExecutor(db.DB, breaker, retry, handler, degradation, sink)
		reg.Register(sqlscript.New(executor, journal))
		reg.Register(loaderlog.New(journal))
	}

	// 5. Watcher and live configuration
	watchSvc := watcher.New(reg, degradation, mover, handler, sink)
	provider := config.NewProvider(cfg.Watches)
	provider.Subscribe(watchSvc)

	// 6. Ops surface
	monitor := ops.NewMonitor(watchSvc, reg, breaker, degradation, retry, provider, db)
	opsServer := ops.NewServer(cfg.Server.Port, monitor, reg, breaker, handler, degradation, watchSvc, provider)
	diskProbe := ops.NewDiskProbe(cfg.Spool.QueueFolder, cfg.Spool.DiskThresholdPercent)

	return &Service{
		cfg:         cfg,
		provider:    provider,
		db:          db,
		store:       store,
		handler:     handler,
		breaker:     breaker,
		retry:       retry,
		degradation: degradation,
		registry:    reg,
		watcher:     watchSvc,
		monitor:     monitor,
		opsServer:   opsServer,
		diskProbe:   diskProbe,
		healthStop:  make(chan struct{}),
		log:         slog.Default(),
	}, nil
}

// databaseRequiredBy returns the first watch configuration that needs a
// database-backed processor.
func databaseRequiredBy(watches []config.WatchConfig) (string, bool) {
	for _, w := range watches {
		if w.ProcessorType == sqlscript.TypeName || w.ProcessorType == loaderlog.TypeName {
			return w.Name, true
		}
	}
	return "", false
}

// Start starts the service and all its components.
func (s *Service) Start(ctx context.Context) error {
	// Re-index files queued by a previous run so they remain replayable.
	if err := s.degradation.RestoreIndex(ctx); err != nil {
		s.log.Warn("Failed to restore queue index", "error", err)
	}

	for _, w := range s.provider.Watches() {
		if !w.Enabled {
			continue
		}
		if err := s.watcher.Register(w); err != nil {
			return fmt.Errorf("failed to register watch %s: %w", w.Name, err)
		}
	}

	go func() {
		if err := s.opsServer.Start(); err != nil {
			s.log.Error("Ops server failed", "error", err)
		}
	}()

	go s.runHealthLoop(ctx)

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	return nil
}

// runHealthLoop runs the periodic system health check on its own cadence,
// independent of the file-polling tasks.
func (s *Service) runHealthLoop(ctx context.Context) {
	interval := s.cfg.Spool.HealthInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.healthStop:
			return
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

// checkHealth runs the disk probe and reconciles degraded-mode flags with
// the circuit breakers.
func (s *Service) checkHealth(ctx context.Context) {
	if s.diskProbe.Enabled() {
		percent, above, err := s.diskProbe.Check()
		switch {
		case err != nil:
			s.log.Warn("Disk probe failed", "error", err)
		case above && !s.diskForcedOpen:
			s.log.Error("Disk usage above threshold, opening filesystem breaker",
				"usage_percent", percent)
			s.breaker.ForceOpen(domain.ResourceFilesystem)
			s.diskForcedOpen = true
		case !above && s.diskForcedOpen:
			s.log.Info("Disk usage recovered, closing filesystem breaker",
				"usage_percent", percent)
			s.breaker.ForceClose(domain.ResourceFilesystem)
			s.diskForcedOpen = false
		}
	}

	s.degradation.CheckSystemHealth(ctx)
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	close(s.healthStop)

	if err := s.watcher.Stop(ctx); err != nil {
		s.log.Warn("Watcher tasks did not drain in time", "error", err)
	}

	if err := s.store.Close(); err != nil {
		s.log.Warn("Failed to close queue store", "error", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return s.opsServer.Stop(ctx)
}

// Monitor exposes the ops monitor, used by tests and the CLI.
func (s *Service) Monitor() *ops.Monitor { return s.monitor }
