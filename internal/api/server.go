// Package api serves a read-only HTTP view of a running line: health and
// stage status, recent events, the live event stream and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/EspressoLine/internal/events"
	"github.com/AaronLay10/EspressoLine/internal/logging"
	"github.com/AaronLay10/EspressoLine/internal/orchestrator"
	"github.com/AaronLay10/EspressoLine/internal/storage/postgres"
	"github.com/AaronLay10/EspressoLine/internal/version"
)

// StatusSource reports stage status. *orchestrator.Runtime satisfies it.
type StatusSource interface {
	Stages() []orchestrator.StageStatus
}

// History reads stored events. *postgres.Client satisfies it.
type History interface {
	Query(ctx context.Context, runID string, limit int) ([]postgres.EventRow, error)
}

type Options struct {
	Bus     *events.Bus
	Status  StatusSource
	Metrics http.Handler
	History History
	Auth    Credentials
	Logger  *logging.Logger
}

// Server holds the handlers of the API.
type Server struct {
	bus     *events.Bus
	status  StatusSource
	metrics http.Handler
	history History
	auth    Credentials
	log     *logging.Logger
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		bus:     opts.Bus,
		status:  opts.Status,
		metrics: opts.Metrics,
		history: opts.History,
		auth:    opts.Auth,
		log:     log,
	}
}

type HealthResponse struct {
	Status    string                     `json:"status"`
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Hostname  string                     `json:"hostname"`
	RunID     string                     `json:"run_id,omitempty"`
	Drained   bool                       `json:"drained"`
	Stages    []orchestrator.StageStatus `json:"stages"`
	Timestamp string                     `json:"ts"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   version.Service,
		Version:   version.Version,
		Hostname:  host,
		RunID:     s.bus.RunID(),
		Stages:    []orchestrator.StageStatus{},
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if s.status != nil {
		resp.Stages = s.status.Stages()
	}
	resp.Drained = len(resp.Stages) > 0 && orchestrator.IsDrained(resp.Stages)
	writeJSON(w, http.StatusOK, resp)
}

// eventsHandler returns the buffered events, oldest first. ?limit=n keeps the
// newest n.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		writeJSON(w, http.StatusOK, s.bus.RecentEvents(n))
		return
	}
	writeJSON(w, http.StatusOK, s.bus.Snapshot())
}

// historyHandler reads stored events, filtered by ?run=<run id>.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "event store not configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	rows, err := s.history.Query(r.Context(), r.URL.Query().Get("run"), limit)
	if err != nil {
		s.log.Error("history query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []postgres.EventRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

// Handler returns the API routes. /health and /metrics stay open; the event
// routes require credentials when they are configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", getOnly(s.healthHandler))
	mux.HandleFunc("/events", s.auth.Require(getOnly(s.eventsHandler)))
	mux.HandleFunc("/events/history", s.auth.Require(getOnly(s.historyHandler)))
	mux.HandleFunc("/ws", s.auth.Require(s.wsEventsHandler))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start serves on addr in a goroutine. Errors are logged, not returned.
// Shut the returned server down to stop it.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.log.Info("api listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server error", zap.Error(err))
		}
	}()
	return srv
}
