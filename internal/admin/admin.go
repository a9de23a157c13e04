// Package admin provides the gorilla/mux HTTP server exposing
// operational endpoints for a running aggregator process, grounded on
// a log-capturer's admin HTTP surface (internal/app.initHTTPServer/
// registerHandlers) but scoped
// to this module's surface: health, metrics, and per-run status instead
// of log-ingestion-specific endpoints.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/resourcemon"
)

// RunStatus is a snapshot of one pipeline run's outcome, retained for
// /runs/{id} queries.
type RunStatus struct {
	ID          string               `json:"id"`
	Pipeline    string               `json:"pipeline"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at,omitempty"`
	ItemCount   int                  `json:"item_count"`
	Err         string               `json:"error,omitempty"`
	Finding     *resourcemon.Finding `json:"resource_finding,omitempty"`
}

// RunRegistry is an in-memory, bounded record of recent run statuses.
// The admin server reads it; pipeline drivers write to it as runs
// complete.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[string]RunStatus
	order []string
	cap   int
}

// NewRunRegistry builds a registry retaining at most capacity runs,
// evicting the oldest on overflow.
func NewRunRegistry(capacity int) *RunRegistry {
	if capacity <= 0 {
		capacity = 100
	}
	return &RunRegistry{runs: make(map[string]RunStatus), cap: capacity}
}

// Record stores or replaces a run's status.
func (r *RunRegistry) Record(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[status.ID]; !exists {
		r.order = append(r.order, status.ID)
		if len(r.order) > r.cap {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.runs, oldest)
		}
	}
	r.runs[status.ID] = status
}

// Get retrieves a run's status by id.
func (r *RunRegistry) Get(id string) (RunStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.runs[id]
	return s, ok
}

// Server is the admin HTTP server.
type Server struct {
	httpServer *http.Server
	registry   *RunRegistry
}

// New builds an admin Server listening on addr (host:port), backed by
// registry for /runs/{id} lookups.
func New(addr string, registry *RunRegistry) *Server {
	router := mux.NewRouter()
	s := &Server{registry: registry}

	router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", s.runHandler).Methods(http.MethodGet)

	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// ListenAndServe blocks serving the admin endpoints until the server is
// shut down or fails to bind.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, delegating to http.Server.Shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, ok := s.registry.Get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
