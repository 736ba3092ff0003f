// Package httpapi serves the read-only status endpoints for a running sweep.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/smohades/reachcheck/internal/scheduler"
)

type Server struct {
	Logger   *zap.Logger
	Progress *scheduler.Progress
}

func NewServer(l *zap.Logger, p *scheduler.Progress) *Server {
	return &Server{Logger: l, Progress: p}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/progress", s.handleProgress)

	return r
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap := s.Progress.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.Logger.Warn("progress_encode", zap.Error(err))
	}
}
