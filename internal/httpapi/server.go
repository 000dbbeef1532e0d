package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gpu_sniper/internal/config"
	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/model"
	"gpu_sniper/internal/ws"
)

const maxEventLimit = 1000

// StateSource is the running engine.
type StateSource interface {
	State() model.EngineState
}

// EventLister is the run journal.
type EventLister interface {
	ListEvents(ctx context.Context, runID string, limit int) ([]model.Event, error)
}

type Options struct {
	Cfg      config.ServerConfig
	Bus      *logbus.Bus
	Engine   StateSource
	Events   EventLister
	Gatherer prometheus.Gatherer
}

// Server is the read-only status surface of a run.
type Server struct {
	cfg      config.ServerConfig
	engine   StateSource
	events   EventLister
	gatherer prometheus.Gatherer
	ws       *ws.Handler
}

func New(opts Options) *Server {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      opts.Cfg,
		engine:   opts.Engine,
		events:   opts.Events,
		gatherer: gatherer,
		ws:       ws.NewHandler(opts.Bus, opts.Cfg.Cors.AllowOrigins),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.ws)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/state", s.handleState)
	api.HandleFunc("/api/v1/events", s.handleEvents)

	mux.Handle("/api/", readOnly(s.cfg.Cors.AllowOrigins, api))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if s.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "engine not available"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.engine.State()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if s.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "event journal not available"})
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxEventLimit)
	}
	events, err := s.events.ListEvents(r.Context(), q.Get("runId"), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": events})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
