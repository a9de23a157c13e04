package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(registry *RunRegistry) *mux.Router {
	s := &Server{registry: registry}
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", s.runHandler).Methods(http.MethodGet)
	return router
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	router := newTestRouter(NewRunRegistry(10))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRunHandler_UnknownIDReturns404(t *testing.T) {
	router := newTestRouter(NewRunRegistry(10))
	req := httptest.NewRequest(http.MethodGet, "/runs/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunHandler_ReturnsRecordedStatus(t *testing.T) {
	registry := NewRunRegistry(10)
	registry.Record(RunStatus{ID: "run-1", Pipeline: "aggregate", ItemCount: 42, StartedAt: time.Unix(0, 0)})

	router := newTestRouter(registry)
	req := httptest.NewRequest(http.MethodGet, "/runs/run-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 42, status.ItemCount)
}

func TestRunRegistry_EvictsOldestOnOverflow(t *testing.T) {
	registry := NewRunRegistry(2)
	registry.Record(RunStatus{ID: "a"})
	registry.Record(RunStatus{ID: "b"})
	registry.Record(RunStatus{ID: "c"})

	_, ok := registry.Get("a")
	assert.False(t, ok)
	_, ok = registry.Get("c")
	assert.True(t, ok)
}
