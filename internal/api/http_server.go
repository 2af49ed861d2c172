package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kitchenprint/internal/config"
	"kitchenprint/internal/database"
	"kitchenprint/internal/metrics"
	"kitchenprint/internal/models"
	"kitchenprint/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// HealthChecker reports whether a dependency is ready to serve.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RecentEvents returns a tenant's latest job events as JSON documents, newest first.
type RecentEvents interface {
	Recent(ctx context.Context, tenantID int64, limit int64) ([]string, error)
}

// Services bundles what the HTTP layer calls into. Events is nil when no relay runs.
type Services struct {
	Dispatch *service.DispatchService
	Agent    *service.AgentService
	Devices  *service.DeviceService
	Health   HealthChecker
	Events   RecentEvents
}

// HTTPServer exposes the agent protocol, order intake and operator endpoints.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	server  *http.Server
	handler http.Handler
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	srv := &HTTPServer{cfg: cfg, svc: svc, logger: logger}
	srv.handler = srv.routes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	auth := NewHTTPAuth(s.cfg)
	deviceAuth := NewDeviceAuth(s.svc.Agent, s.cfg.AgentRateLimit, s.logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/agent", func(r chi.Router) {
		r.Use(deviceAuth.Wrap)
		r.Get("/jobs", s.handlePoll)
		r.Post("/jobs/{jobID}/ack", s.handleAck)
		r.Post("/heartbeat", s.handleHeartbeat)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(auth.Require(permWriteOrders)).Post("/orders", s.handleCreateOrder)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.With(auth.Require(permReadJobs)).Get("/jobs", s.handleListJobs)
			r.With(auth.Require(permReadJobs)).Get("/jobs/stuck", s.handleStuckJobs)
			r.With(auth.Require(permReadJobs)).Get("/events", s.handleRecentEvents)
			r.With(auth.Require(permWriteJobs)).Post("/jobs/{jobID}/reprint", s.handleReprint)
			r.With(auth.Require(permReadDevices)).Get("/devices", s.handleListDevices)
			r.With(auth.Require(permProbePrinters)).Post("/printers/{printerID}/probe", s.handleProbe)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Health.HealthCheck(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// writeServiceError maps service and store errors to HTTP responses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *service.ProtocolError
	switch {
	case errors.As(err, &perr):
		switch perr.Kind {
		case service.KindUnknownJob:
			writeError(w, http.StatusNotFound, perr.Message)
		case service.KindNotClaimed:
			writeError(w, http.StatusConflict, perr.Message)
		default:
			writeError(w, http.StatusBadRequest, perr.Message)
		}
	case errors.Is(err, service.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrPrinterBehindAgent):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrJobNotFound),
		errors.Is(err, database.ErrPrinterNotFound),
		errors.Is(err, database.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", w.Header().Get(requestIDHeader)).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func loggingMiddleware(logger *zerolog.Logger) func(http.Handler) http.Handler {
	base := logger.With().Str("component", "http").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			dur := time.Since(start)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			metrics.IncHTTP(route, strconv.Itoa(recorder.status))

			base.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("route", route).
				Str("remote", remoteHost(r)).
				Int("status", recorder.status).
				Dur("duration", dur).
				Msg("http request")
		})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func pathInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, models.ErrorResponse{Success: false, Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
