package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lucid-vigil/hostwatch/pkg/engine"
	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// StateReader is the engine surface the API serves.
type StateReader interface {
	Status() []string
	Anomalies() ([]string, bool)
	History(limit int) []sample.Sample
	Settings() engine.Settings
	Dismiss(ctx context.Context, signal string, value float64) (string, error)
}

// Server exposes health, Prometheus metrics and the read-only monitoring API.
type Server struct {
	router   *chi.Mux
	state    StateReader
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

type statusResponse struct {
	Status     []string `json:"status"`
	Anomalies  []string `json:"anomalies"`
	HasAnomaly bool     `json:"has_anomaly"`
}

type metricsResponse struct {
	Metrics []sample.Sample `json:"metrics"`
	Count   int             `json:"count"`
}

type feedbackRequest struct {
	Signal string   `json:"signal"`
	Value  *float64 `json:"value"`
}

type feedbackResponse struct {
	Key string `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the router. A nil gatherer serves the default registry.
func NewServer(state StateReader, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router:   chi.NewRouter(),
		state:    state,
		gatherer: gatherer,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/settings", s.handleSettings)
		r.Post("/feedback", s.handleFeedback)
	})
}

// ServeHTTP makes the server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Msgf("API server starting on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("API server shutting down.")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	lines, has := s.state.Anomalies()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     s.state.Status(),
		Anomalies:  lines,
		HasAnomaly: has,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	limit := engine.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	history := s.state.History(limit)
	writeJSON(w, http.StatusOK, metricsResponse{Metrics: history, Count: len(history)})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Settings())
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Signal == "" || req.Value == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "signal and value are required"})
		return
	}

	key, err := s.state.Dismiss(r.Context(), req.Signal, *req.Value)
	if errors.Is(err, engine.ErrUnknownSignal) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("signal", req.Signal).Msg("Failed to record feedback.")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "engine unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, feedbackResponse{Key: key})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
