package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sicney/eve-mo/internal/config"
	"github.com/sicney/eve-mo/internal/db"
	"github.com/sicney/eve-mo/internal/engine"
)

// Store is the read side of the persistent store used by the query endpoints.
type Store interface {
	LoadAllHistory() ([]engine.HistoryRecord, error)
	CountHistory() (rows, series int, err error)
	GetTypeName(typeID int32) (string, bool)
	GetRuns(limit int) []db.RunRecord
}

// Server is the HTTP query service over the store and the latest analysis run.
type Server struct {
	cfg   *config.Config
	store Store

	mu       sync.RWMutex
	latest   *engine.RunResult
	finished time.Time
	trigger  func() bool
}

// NewServer creates a Server with the given config and store.
func NewServer(cfg *config.Config, store Store) *Server {
	return &Server{cfg: cfg, store: store}
}

// SetResult publishes the result of a completed run.
func (s *Server) SetResult(res *engine.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = res
	s.finished = time.Now()
}

// SetTrigger installs the function behind POST /api/run. It reports whether a
// run was started.
func (s *Server) SetTrigger(fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = fn
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ping", s.handlePing)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/undervalued", s.handleUndervalued)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.Handle("GET /metrics", promhttp.Handler())
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// intParam reads a non-negative integer query parameter, falling back to def when absent.
func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rows, series, err := s.store.CountHistory()
	if err != nil {
		writeError(w, 500, "store unavailable")
		return
	}
	result := map[string]interface{}{
		"history_rows":   rows,
		"history_series": series,
		"ranking":        s.cfg.Analysis.Ranking,
		"schedule":       s.cfg.Server.Schedule,
	}

	s.mu.RLock()
	if s.latest != nil {
		result["last_run"] = s.finished.Unix()
		result["buy_count"] = s.latest.Summary.BuyCount
		result["sell_count"] = s.latest.Summary.SellCount
	}
	s.mu.RUnlock()

	writeJSON(w, result)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	res := s.latest
	s.mu.RUnlock()
	if res == nil {
		writeError(w, 404, "no analysis run yet")
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 50)
	if !ok {
		writeError(w, 400, "limit must be a non-negative integer")
		return
	}
	writeJSON(w, s.store.GetRuns(limit))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	trigger := s.trigger
	s.mu.RUnlock()
	if trigger == nil {
		writeError(w, 503, "runs are not enabled")
		return
	}
	if !trigger() {
		writeError(w, 409, "a run is already in progress")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}
