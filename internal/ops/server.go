package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/resilience"
	"github.com/spoolhouse/sqlspool/internal/spooling/registry"
	"github.com/spoolhouse/sqlspool/internal/spooling/watcher"
)

// Server exposes health, metrics, and administrative endpoints.
type Server struct {
	monitor     *Monitor
	registry    *registry.Registry
	breaker     *resilience.CircuitBreaker
	handler     *resilience.ErrorHandler
	degradation *resilience.Degradation
	watcher     *watcher.Service
	provider    *config.Provider
	server      *http.Server
}

// NewServer creates the ops HTTP server.
func NewServer(
	port int,
	monitor *Monitor,
	reg *registry.Registry,
	breaker *resilience.CircuitBreaker,
	errHandler *resilience.ErrorHandler,
	degradation *resilience.Degradation,
	w *watcher.Service,
	provider *config.Provider,
) *Server {
	s := &Server{
		monitor:     monitor,
		registry:    reg,
		breaker:     breaker,
		handler:     errHandler,
		degradation: degradation,
		watcher:     w,
		provider:    provider,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/processors/{type}/reset", s.handleProcessorReset)
	r.Post("/breakers/{resource}/open", s.handleBreakerOpen)
	r.Post("/breakers/{resource}/close", s.handleBreakerClose)
	r.Post("/errors/reset", s.handleErrorsReset)
	r.Post("/configs/{name}/pause", s.handleConfigPause)
	r.Post("/configs/{name}/resume", s.handleConfigResume)
	r.Post("/configs/{name}/requeue", s.handleConfigRequeue)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.CheckHealth(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if !snap.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"healthy": snap.Healthy})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.CheckHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleProcessorReset(w http.ResponseWriter, r *http.Request) {
	procType := chi.URLParam(r, "type")
	if !contains(s.registry.Types(), procType) {
		http.Error(w, "unknown processor type", http.StatusNotFound)
		return
	}
	s.registry.ResetHealth(procType)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBreakerOpen(w http.ResponseWriter, r *http.Request) {
	s.breaker.ForceOpen(chi.URLParam(r, "resource"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBreakerClose(w http.ResponseWriter, r *http.Request) {
	s.breaker.ForceClose(chi.URLParam(r, "resource"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleErrorsReset(w http.ResponseWriter, r *http.Request) {
	s.handler.ClearPatterns()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigPause(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.provider.Get(name); !ok {
		http.Error(w, "unknown configuration", http.StatusNotFound)
		return
	}
	s.watcher.Pause(name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigResume(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.provider.Get(name); !ok {
		http.Error(w, "unknown configuration", http.StatusNotFound)
		return
	}
	s.watcher.Resume(name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigRequeue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cfg, ok := s.provider.Get(name)
	if !ok {
		http.Error(w, "unknown configuration", http.StatusNotFound)
		return
	}
	if s.degradation.IsDegraded(domain.ResourceDatabase) {
		http.Error(w, "database is degraded, requeue refused", http.StatusConflict)
		return
	}

	restored := s.degradation.ProcessQueuedFiles(r.Context(), name, cfg.WatchFolder)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"restored": restored})
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
