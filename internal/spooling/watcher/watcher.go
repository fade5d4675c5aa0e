// Package watcher owns the polling lifecycle per watch configuration and
// dispatches eligible files to the processor registry.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
)

// Dispatcher routes a file to its processor. Implemented by the registry.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string, cfg config.WatchConfig) domain.ProcessingResult
	ResourceFor(procType string) string
}

// Degrader diverts and replays files around degraded resources.
// Implemented by the degradation service.
type Degrader interface {
	IsDegraded(resource string) bool
	HandleUnavailable(ctx context.Context, resource, path, configName string) bool
	ProcessQueuedFiles(ctx context.Context, configName, watchFolder string) int
	QueueDepth(ctx context.Context, configName string) int
}

// FileMover relocates processed files. Implemented by the mover.
type FileMover interface {
	EnsureDirectories(cfg config.WatchConfig) error
	MoveToCompleted(path string, cfg config.WatchConfig) (string, error)
	MoveToError(path, reason string, cfg config.WatchConfig) (string, error)
}

// ErrorReporter classifies tick-level errors. Implemented by the error
// handler.
type ErrorReporter interface {
	Handle(context string, err error, operation string) domain.ErrorReport
}

// TaskStatus is a snapshot of one configuration's polling task.
type TaskStatus struct {
	Name           string    `json:"name"`
	ProcessorType  string    `json:"processor_type"`
	Paused         bool      `json:"paused"`
	LastTick       time.Time `json:"last_tick"`
	FilesProcessed int64     `json:"files_processed"`
}

// Service schedules one polling task per registered watch configuration.
type Service struct {
	mu          sync.Mutex
	tasks       map[string]*task
	dispatcher  Dispatcher
	degradation Degrader
	mover       FileMover
	reporter    ErrorReporter
	sink        metrics.Sink
	stopped     atomic.Bool
	wg          sync.WaitGroup
}

// New creates the watcher service.
func New(
	dispatcher Dispatcher,
	degradation Degrader,
	mover FileMover,
	reporter ErrorReporter,
	sink metrics.Sink,
) *Service {
	if sink == nil {
		sink = metrics.NewNop()
	}
	return &Service{
		tasks:       make(map[string]*task),
		dispatcher:  dispatcher,
		degradation: degradation,
		mover:       mover,
		reporter:    reporter,
		sink:        sink,
	}
}

// Register schedules a recurring polling task for cfg, replacing any prior
// task with the same name. Disabled configurations unregister instead.
func (s *Service) Register(cfg config.WatchConfig) error {
	if !cfg.Enabled {
		slog.Info("Watch configuration disabled, not scheduling", "config", cfg.Name)
		s.Unregister(cfg.Name)
		return nil
	}
	if s.stopped.Load() {
		return fmt.Errorf("watcher is stopped")
	}

	if err := s.mover.EnsureDirectories(cfg); err != nil {
		return fmt.Errorf("failed to prepare folders for %s: %w", cfg.Name, err)
	}

	t, err := newTask(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if old, ok := s.tasks[cfg.Name]; ok {
		old.close()
	}
	s.tasks[cfg.Name] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runTask(t)

	slog.Info("Watch configuration registered",
		"config", cfg.Name, "folder", cfg.WatchFolder, "interval", cfg.PollInterval)
	return nil
}

// Unregister stops and removes the task for name. Idempotent.
func (s *Service) Unregister(name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()

	if ok {
		t.close()
		slog.Info("Watch configuration unregistered", "config", name)
	}
}

// Pause makes the task's ticks no-ops. The schedule keeps firing.
func (s *Service) Pause(name string) {
	if t := s.task(name); t != nil {
		t.paused.Store(true)
		slog.Info("Watch paused", "config", name)
	}
}

// Resume re-enables a paused task.
func (s *Service) Resume(name string) {
	if t := s.task(name); t != nil {
		t.paused.Store(false)
		slog.Info("Watch resumed", "config", name)
	}
}

func (s *Service) task(name string) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[name]
}

// Stop halts all tasks, waiting up to the context deadline for in-flight
// ticks to finish before abandoning them.
func (s *Service) Stop(ctx context.Context) error {
	s.stopped.Store(true)

	s.mu.Lock()
	for _, t := range s.tasks {
		t.close()
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.Warn("Shutdown grace period expired, abandoning in-flight ticks")
		return ctx.Err()
	}
}

// Status returns a snapshot of all scheduled tasks, sorted by name.
func (s *Service) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ConfigAdded implements config.Listener.
func (s *Service) ConfigAdded(cfg config.WatchConfig) {
	if err := s.Register(cfg); err != nil {
		slog.Error("Failed to register added configuration", "config", cfg.Name, "error", err)
	}
}

// ConfigUpdated implements config.Listener. Re-registering replaces the
// running task.
func (s *Service) ConfigUpdated(cfg config.WatchConfig) {
	if err := s.Register(cfg); err != nil {
		slog.Error("Failed to re-register updated configuration", "config", cfg.Name, "error", err)
	}
}

// ConfigRemoved implements config.Listener.
func (s *Service) ConfigRemoved(name string) {
	s.Unregister(name)
}

// runTask is the per-configuration polling loop: an immediate first tick,
// then fixed-interval ticks with no same-configuration overlap. An
// fsnotify kick triggers an early tick without disturbing the schedule.
func (s *Service) runTask(t *task) {
	defer s.wg.Done()
	defer t.stopEvents()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	s.tick(t)
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			s.tick(t)
		case <-t.kick:
			s.tick(t)
		}
	}
}

// tick lists, filters, sorts, and processes the eligible files of one
// configuration. Errors and panics inside a tick are contained; the next
// tick proceeds normally.
func (s *Service) tick(t *task) {
	if s.stopped.Load() || t.paused.Load() {
		return
	}
	t.lastTick.Store(time.Now().UnixMilli())

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("tick panic: %v", rec)
			s.reporter.Handle("file-watcher", err, "poll "+t.cfg.Name)
			slog.Error("Recovered from tick panic", "config", t.cfg.Name, "panic", rec)
		}
	}()

	names, err := t.eligibleFiles()
	if err != nil {
		s.reporter.Handle("file-watcher", err, "list "+t.cfg.WatchFolder)
		return
	}

	ctx := context.Background()
	for _, name := range names {
		if s.stopped.Load() {
			return
		}
		s.processFile(ctx, t, filepath.Join(t.cfg.WatchFolder, name))
	}
}

// processFile routes one file: diverted to the queue while its resource is
// degraded, otherwise dispatched and moved by outcome.
func (s *Service) processFile(ctx context.Context, t *task, path string) {
	cfg := t.cfg
	resource := s.dispatcher.ResourceFor(cfg.ProcessorType)

	if s.degradation.IsDegraded(resource) {
		s.degradation.HandleUnavailable(ctx, resource, path, cfg.Name)
		return
	}

	result := s.dispatcher.Dispatch(ctx, path, cfg)
	s.sink.RecordProcessingResult(cfg.Name, result)
	t.filesProcessed.Add(1)

	switch result.Status {
	case domain.StatusSuccess:
		if _, err := s.mover.MoveToCompleted(path, cfg); err != nil {
			s.reporter.Handle("file-watcher", err, "move completed "+path)
		}
		// The resource just proved healthy; replay anything queued while
		// it was degraded.
		if !s.degradation.IsDegraded(resource) && s.degradation.QueueDepth(ctx, cfg.Name) > 0 {
			s.degradation.ProcessQueuedFiles(ctx, cfg.Name, cfg.WatchFolder)
		}
	case domain.StatusFailure:
		slog.Warn("File processing failed",
			"config", cfg.Name, "file", path, "error", result.ErrorMessage)
		if _, err := s.mover.MoveToError(path, result.ErrorMessage, cfg); err != nil {
			s.reporter.Handle("file-watcher", err, "move error "+path)
		}
	case domain.StatusSkipped:
		// Leave the file for a later tick.
		slog.Debug("File skipped", "config", cfg.Name, "file", path)
	}
}

// eligibleFiles lists the watch folder, drops non-regular files and
// in-progress markers, applies the configured glob patterns, and returns
// names sorted lexicographically for deterministic ordering.
func (t *task) eligibleFiles() ([]string, error) {
	entries, err := os.ReadDir(t.cfg.WatchFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to list watch folder: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".processing") {
			continue
		}
		if len(t.patterns) > 0 && !t.matchesAny(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (t *task) matchesAny(name string) bool {
	for _, re := range t.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
