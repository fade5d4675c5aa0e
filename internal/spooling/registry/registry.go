// Package registry routes dropped files to processor implementations and
// tracks per-processor health.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
)

// UnhealthyThreshold is the consecutive-failure count past which a
// processor is marked unhealthy and short-circuited.
const UnhealthyThreshold = 5

// FileProcessor handles files of one processor type. Implementations are
// registered explicitly at start-up.
type FileProcessor interface {
	// Type returns the processor type string this implementation serves.
	Type() string

	// Resource names the guarded resource this processor depends on.
	Resource() string

	// Supports reports whether this processor can serve the configuration.
	Supports(cfg config.WatchConfig) bool

	// Process handles one file and returns its result. Internal errors
	// should be translated into failed results; the registry still
	// converts any panic that escapes.
	Process(ctx context.Context, path string, cfg config.WatchConfig) domain.ProcessingResult
}

// Metadata is the health bookkeeping for one registered processor.
type Metadata struct {
	SourceID            string
	ImplementationName  string
	LastRegisteredAt    time.Time
	Healthy             bool
	LastError           string
	SuccessCount        int
	FailureCount        int
	ConsecutiveFailures int
}

// Registry maps processor-type strings to implementations.
type Registry struct {
	mu         sync.Mutex
	processors map[string]FileProcessor
	metadata   map[string]*Metadata
	resources  map[string]string
	sink       metrics.Sink
}

// New creates an empty registry.
func New(sink metrics.Sink) *Registry {
	if sink == nil {
		sink = metrics.NewNop()
	}
	return &Registry{
		processors: make(map[string]FileProcessor),
		metadata:   make(map[string]*Metadata),
		resources:  make(map[string]string),
		sink:       sink,
	}
}

// Register adds a processor under its type string, silently overwriting a
// prior registration (with a warning) and seeding fresh metadata.
func (r *Registry) Register(p FileProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	procType := p.Type()
	if _, exists := r.processors[procType]; exists {
		slog.Warn("Overwriting registered processor", "type", procType)
	}

	r.processors[procType] = p
	r.resources[procType] = p.Resource()
	r.metadata[procType] = &Metadata{
		SourceID:           uuid.New().String(),
		ImplementationName: fmt.Sprintf("%T", p),
		LastRegisteredAt:   time.Now(),
		Healthy:            true,
	}
	slog.Info("Registered file processor", "type", procType, "resource", p.Resource())
}

// Unregister removes a processor and its metadata. Idempotent.
func (r *Registry) Unregister(procType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processors, procType)
	delete(r.metadata, procType)
	delete(r.resources, procType)
}

// Dispatch resolves the configuration's processor type and invokes it.
// Unknown types, unsupported configurations, unhealthy processors, and
// processor panics all come back as FAILURE results; nothing propagates.
func (r *Registry) Dispatch(ctx context.Context, path string, cfg config.WatchConfig) domain.ProcessingResult {
	r.mu.Lock()
	proc, ok := r.processors[cfg.ProcessorType]
	if !ok {
		known := r.typesLocked()
		r.mu.Unlock()
		return domain.Failure(path, cfg.ProcessorType, fmt.Sprintf(
			"unknown processor type %q (known types: %s)",
			cfg.ProcessorType, strings.Join(known, ", ")))
	}

	meta := r.metadata[cfg.ProcessorType]
	if !meta.Healthy {
		failures := meta.ConsecutiveFailures
		r.mu.Unlock()
		return domain.Failure(path, cfg.ProcessorType, fmt.Sprintf(
			"processor %q is unhealthy after %d consecutive failures",
			cfg.ProcessorType, failures))
	}
	r.mu.Unlock()

	if !proc.Supports(cfg) {
		return domain.Failure(path, cfg.ProcessorType, fmt.Sprintf(
			"processor %q does not support configuration %q", cfg.ProcessorType, cfg.Name))
	}

	start := time.Now()
	result := r.invoke(ctx, proc, path, cfg)
	result.DurationMs = time.Since(start).Milliseconds()
	result.ExecutedAt = start

	r.recordOutcome(cfg.ProcessorType, result)
	return result
}

// invoke calls the processor, converting a panic into a FAILURE result.
func (r *Registry) invoke(ctx context.Context, proc FileProcessor, path string, cfg config.WatchConfig) (result domain.ProcessingResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Processor panicked", "type", cfg.ProcessorType, "file", path, "panic", rec)
			result = domain.Failure(path, cfg.ProcessorType, fmt.Sprintf("processor panic: %v", rec))
		}
	}()
	return proc.Process(ctx, path, cfg)
}

// recordOutcome updates health bookkeeping after a dispatch. SKIPPED
// results leave the counters untouched.
func (r *Registry) recordOutcome(procType string, result domain.ProcessingResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, ok := r.metadata[procType]
	if !ok {
		return
	}

	switch result.Status {
	case domain.StatusSuccess:
		meta.SuccessCount++
		meta.ConsecutiveFailures = 0
		meta.Healthy = true
		meta.LastError = ""
	case domain.StatusFailure:
		meta.FailureCount++
		meta.ConsecutiveFailures++
		meta.LastError = result.ErrorMessage
		if meta.ConsecutiveFailures > UnhealthyThreshold {
			if meta.Healthy {
				slog.Warn("Marking processor unhealthy",
					"type", procType, "consecutive_failures", meta.ConsecutiveFailures)
			}
			meta.Healthy = false
		}
	}
}

// IsHealthy reports whether the processor is registered and healthy.
func (r *Registry) IsHealthy(procType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.metadata[procType]
	return ok && meta.Healthy
}

// ResetHealth clears the unhealthy flag and the consecutive-failure count.
// Used for operator-driven recovery.
func (r *Registry) ResetHealth(procType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if meta, ok := r.metadata[procType]; ok {
		meta.Healthy = true
		meta.ConsecutiveFailures = 0
		slog.Info("Processor health reset", "type", procType)
	}
}

// ResourceFor returns the guarded resource for a processor type, defaulting
// to the database.
func (r *Registry) ResourceFor(procType string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if resource, ok := r.resources[procType]; ok && resource != "" {
		return resource
	}
	return domain.ResourceDatabase
}

// Metadata returns a snapshot of all processor metadata.
func (r *Registry) Metadata() map[string]Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Metadata, len(r.metadata))
	for procType, meta := range r.metadata {
		out[procType] = *meta
	}
	return out
}

// Types returns the registered processor types, sorted.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typesLocked()
}

func (r *Registry) typesLocked() []string {
	out := make([]string, 0, len(r.processors))
	for procType := range r.processors {
		out = append(out, procType)
	}
	sort.Strings(out)
	return out
}
