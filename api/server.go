package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/wricardo/livestate/live/host"
	"github.com/wricardo/livestate/live/registry"
	"go.uber.org/zap"
)

// Routes is the part of the Registry the API reads.
type Routes interface {
	Hosts(ctx context.Context) ([]*host.Host, error)
	Lookup(ctx context.Context, route string) (*host.Host, bool, error)
	Kinds() []registry.RouteInfo
}

// LiveHandler serves WebSocket sessions and counts them.
type LiveHandler interface {
	http.Handler
	ActiveSessions() int64
}

// Options configures a Server.
type Options struct {
	Version   string
	StaticDir string
}

// Server represents the REST API server
type Server struct {
	routes  Routes
	live    LiveHandler
	log     *zap.Logger
	opts    Options
	router  *mux.Router
	started time.Time
}

// NewServer creates a new API server
func NewServer(routes Routes, live LiveHandler, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		routes:  routes,
		live:    live,
		log:     logger.Named("api"),
		opts:    opts,
		router:  mux.NewRouter(),
		started: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	// Registered on the root router: a /api subrouter answers 404 instead of
	// 405 on a method mismatch.
	s.router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/kinds", s.handleListKinds).Methods("GET")
	s.router.HandleFunc("/api/routes", s.handleListRoutes).Methods("GET")
	// Route names contain slashes, e.g. /api/routes/setup/abc.
	s.router.HandleFunc("/api/routes/{name:.+}", s.handleGetRoute).Methods("GET")

	if s.live != nil {
		s.router.Handle("/ws", s.live)
	}

	if s.opts.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.StaticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
	})
}

// ProcessStats is a snapshot of the server process.
type ProcessStats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Threads    int32   `json:"threads"`
	CPUPercent float64 `json:"cpu_percent"`
}

// Status summarizes the running server.
type Status struct {
	Version    string        `json:"version"`
	Uptime     string        `json:"uptime"`
	Routes     int           `json:"routes"`
	Sessions   int64         `json:"sessions"`
	Goroutines int           `json:"goroutines"`
	Process    *ProcessStats `json:"process,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.routes.Hosts(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	status := Status{
		Version:    s.opts.Version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Routes:     len(hosts),
		Goroutines: runtime.NumGoroutine(),
		Process:    s.processStats(r.Context()),
	}
	if s.live != nil {
		status.Sessions = s.live.ActiveSessions()
	}

	respondJSON(w, http.StatusOK, status)
}

// processStats is best effort: platforms without support report nothing.
func (s *Server) processStats(ctx context.Context) *ProcessStats {
	pid := os.Getpid()
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		s.log.Debug("process stats unavailable", zap.Error(err))
		return nil
	}

	stats := &ProcessStats{PID: pid}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil {
		stats.RSSBytes = mem.RSS
	}
	if threads, err := p.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = threads
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}

func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.routes.Kinds())
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.routes.Hosts(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	kind := r.URL.Query().Get("kind")

	routes := make([]host.Stats, 0, len(hosts))
	for _, h := range hosts {
		if kind != "" && h.Kind() != kind {
			continue
		}
		stats, err := h.Stats(r.Context())
		if err != nil {
			s.log.Warn("skipping route without stats", zap.String("route", h.Route()), zap.Error(err))
			continue
		}
		routes = append(routes, stats)
	}

	respondJSON(w, http.StatusOK, routes)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	name := "/" + strings.TrimPrefix(mux.Vars(r)["name"], "/")

	h, ok, err := s.routes.Lookup(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "route not found: "+name)
		return
	}

	stats, err := h.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
