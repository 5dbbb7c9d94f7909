// Package server exposes presets and rendered WAV audio over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hiway/resonate/pkg/engine"
	"github.com/hiway/resonate/pkg/metrics"
	"github.com/hiway/resonate/pkg/wav"
)

const (
	// DefaultMinutes is the session length when the request does not set one.
	DefaultMinutes = 1.0
	// RenderWait is how long a render request waits for a free worker.
	RenderWait = 30 * time.Second
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// New creates the server for an engine.
func New(e *engine.Engine, log zerolog.Logger) *Server {
	return &Server{
		engine: e,
		log:    log.With().Str("component", "server").Logger(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(s.logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{RequestIDHeader, "X-Sample-Count", "X-Sample-Rate"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	limit := s.renderLimit()
	r.Route("/v1", func(r chi.Router) {
		r.With(limit).Get("/sweep.wav", s.Sweep)
		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.ListPresets)
			r.Route("/{presetId}", func(r chi.Router) {
				r.Get("/", s.GetPreset)
				r.With(limit).Get("/session.wav", s.Session)
			})
		})
	})
	return r
}

// renderLimit allows one in-flight render per worker and queue_length waiting
// renders. Anything beyond that, or waiting longer than RenderWait, gets 503.
func (s *Server) renderLimit() func(http.Handler) http.Handler {
	cfg := s.engine.Config()
	return chimw.ThrottleWithOpts(chimw.ThrottleOpts{
		Limit:          cfg.Workers,
		BacklogLimit:   cfg.QueueLength,
		BacklogTimeout: RenderWait,
		StatusCode:     http.StatusServiceUnavailable,
		RetryAfterFn:   func(bool) time.Duration { return time.Second },
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListPresets handles GET /v1/presets.
func (s *Server) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sample_rate": s.engine.SampleRate(),
		"presets":     s.engine.Presets().All(),
	})
}

// GetPreset handles GET /v1/presets/{presetId}.
func (s *Server) GetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Presets().Lookup(chi.URLParam(r, "presetId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Session handles GET /v1/presets/{presetId}/session.wav?minutes=.
func (s *Server) Session(w http.ResponseWriter, r *http.Request) {
	minutes, err := floatParam(r, "minutes", DefaultMinutes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit := s.engine.Config().MaxMinutes; minutes > limit {
		s.writeError(w, r, fmt.Errorf("%w: minutes must be at most %g", errBadRequest, limit))
		return
	}

	info, pcm, err := s.engine.Session(r.Context(), chi.URLParam(r, "presetId"), minutes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeWAV(w, r, pcm, info.SampleRate)
}

// Sweep handles GET /v1/sweep.wav?start=&end=&seconds=.
func (s *Server) Sweep(w http.ResponseWriter, r *http.Request) {
	start, err := floatParam(r, "start", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := floatParam(r, "end", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seconds, err := floatParam(r, "seconds", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit := s.engine.Config().MaxMinutes * 60; seconds > limit {
		s.writeError(w, r, fmt.Errorf("%w: seconds must be at most %g", errBadRequest, limit))
		return
	}

	pcm, err := s.engine.Sweep(r.Context(), start, end, seconds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeWAV(w, r, pcm, s.engine.SampleRate())
}

func (s *Server) writeWAV(w http.ResponseWriter, r *http.Request, pcm []int16, sampleRate int) {
	data, err := wav.Bytes(pcm, sampleRate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Sample-Count", strconv.Itoa(len(pcm)))
	w.Header().Set("X-Sample-Rate", strconv.Itoa(sampleRate))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Debug().Err(err).Msg("Client went away during WAV write")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("Request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

func statusCode(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	switch engine.Outcome(err) {
	case metrics.OutcomeUnknownPreset:
		return http.StatusNotFound
	case metrics.OutcomeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func floatParam(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be a finite number, got %q", errBadRequest, name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
