// Package ops serves the operational surface: health, Prometheus
// metrics, and a queue depth snapshot.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/infra/queue"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Server is the internal HTTP endpoint. It is not exposed to users.
type Server struct {
	queues *queue.Service
	db     pinger
	redis  pinger
	srv    *http.Server
	log    *zerolog.Logger
}

func NewServer(port int, queues *queue.Service, db, redis pinger, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "OpsServer").Logger()
	s := &Server{queues: queues, db: db, redis: redis, log: &l}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/queues", s.handleQueues)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{"db": "ok", "redis": "ok"}
	healthy := true
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status["db"] = err.Error()
			healthy = false
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	depths, err := s.queues.Depths(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("queue depth snapshot failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot failed"})
		return
	}

	out := map[string]map[string]int{}
	for q, states := range depths {
		out[q] = map[string]int{}
		for st, n := range states {
			out[q][string(st)] = n
		}
		for _, st := range []model.JobState{model.JobStateCreated, model.JobStateActive, model.JobStateCompleted, model.JobStateFailed} {
			if _, ok := out[q][string(st)]; !ok {
				out[q][string(st)] = 0
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
