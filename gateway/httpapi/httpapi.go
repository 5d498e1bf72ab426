// Package httpapi exposes the cache engine's diagnostic and admin surface
// over HTTP: health, stats, prune, and pattern invalidation.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/c360/geocache/errors"
	"github.com/c360/geocache/pkg/cache"
)

// Engine is the slice of the cache surface the API needs. Satisfied by
// *cache.Engine of any value type.
type Engine interface {
	Stats() *cache.Statistics
	Prune() int
	DeletePattern(pattern string) (int, error)
	Len() int
	SizeBytes() int64
}

// Server serves the admin API for one cache engine.
type Server struct {
	port   int
	engine Engine
	logger *slog.Logger
	server *http.Server
	mu     sync.Mutex // protects server field
}

// NewServer creates an admin API server. The logger may be nil, in which case
// slog.Default() is used.
func NewServer(port int, engine Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "httpapi", "NewServer",
			"cache engine is required")
	}
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		port:   port,
		engine: engine,
		logger: logger,
	}, nil
}

// Router builds the request router. Exposed for tests and for embedding the
// API under another server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(logMiddleware(s.logger))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/cache/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/cache/prune", s.handlePrune).Methods(http.MethodPost)
	r.HandleFunc("/cache/keys", s.handleDeleteKeys).Methods(http.MethodDelete)

	return r
}

// Start starts the admin HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "httpapi", "Start",
			"server already running")
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router(),
	}
	s.mu.Unlock()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "httpapi", "Start",
			fmt.Sprintf("failed to start server on port %d", s.port))
	}
	return nil
}

// Stop stops the admin server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		err := s.server.Close()
		s.server = nil
		if err != nil {
			return errors.WrapTransient(err, "httpapi", "Stop", "failed to stop HTTP server")
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"entries":    s.engine.Len(),
		"size_bytes": s.engine.SizeBytes(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats().Summary())
}

func (s *Server) handlePrune(w http.ResponseWriter, _ *http.Request) {
	removed := s.engine.Prune()
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleDeleteKeys(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern query parameter is required")
		return
	}

	deleted, err := s.engine.DeletePattern(pattern)
	if err != nil {
		s.logger.Warn("pattern deletion rejected", "pattern", pattern, "error", err)
		writeError(w, statusForError(err), "invalid pattern")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// statusForError maps classified errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	data, _ := json.Marshal(payload)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"error":  message,
		"status": statusCode,
	})
}
