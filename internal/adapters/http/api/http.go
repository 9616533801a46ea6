// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/cors"

	service "github.com/okian/mebeatme/internal/app"
	"github.com/okian/mebeatme/internal/domain/model"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RunsDependencies
	SessionsDependencies
	ImportDependencies
	PPIDependencies
	HealthDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	runsHandler     *RunsHandler
	sessionsHandler *SessionsHandler
	importHandler   *ImportHandler
	ppiHandler      *PPIHandler
	healthHandler   *HealthHandler
	metricsHandler  *MetricsHandler
	statsHandler    *StatsHandler

	allowedOrigins []string
}

// Option applies a configuration option to the Server.
type Option func(*serverConfig)

type serverConfig struct {
	version        string
	domain         string
	allowedOrigins []string
	clock          func() time.Time
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(c *serverConfig) {
		if v != "" {
			c.version = v
		}
	}
}

// WithDomain sets the domain reported by /health.
func WithDomain(d string) Option {
	return func(c *serverConfig) {
		if d != "" {
			c.domain = d
		}
	}
}

// WithAllowedOrigins sets the CORS origins. "*" allows every origin.
func WithAllowedOrigins(origins []string) Option {
	return func(c *serverConfig) {
		if len(origins) > 0 {
			c.allowedOrigins = origins
		}
	}
}

// WithClock replaces time.Now for response timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *serverConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{
		version:        "1.0.0",
		domain:         "localhost",
		allowedOrigins: []string{"*"},
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		runsHandler:     NewRunsHandler(deps),
		sessionsHandler: NewSessionsHandler(deps),
		importHandler:   NewImportHandler(deps),
		ppiHandler:      NewPPIHandler(deps),
		healthHandler:   NewHealthHandler(deps, cfg.version, cfg.domain, cfg.clock),
		metricsHandler:  NewMetricsHandler(),
		statsHandler:    NewStatsHandler(deps),
		allowedOrigins:  cfg.allowedOrigins,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.metricsHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sync/runs", MetricsMiddleware(s.runsHandler.HandlePostRuns, "sync_runs"))
	mux.HandleFunc("/sync/runs/", MetricsMiddleware(s.runsHandler.HandleRun, "sync_run"))
	mux.HandleFunc("/sync/sessions", MetricsMiddleware(s.sessionsHandler.HandleGetSessions, "sync_sessions"))
	mux.HandleFunc("/sync/bests", MetricsMiddleware(s.sessionsHandler.HandleGetBests, "sync_bests"))
	mux.HandleFunc("/sync/import", MetricsMiddleware(s.importHandler.HandlePostImport, "sync_import"))
	mux.HandleFunc("/ppi/score", MetricsMiddleware(s.ppiHandler.HandleGetScore, "ppi_score"))
	mux.HandleFunc("/ppi/required", MetricsMiddleware(s.ppiHandler.HandleGetRequired, "ppi_required"))
	mux.HandleFunc("/ppi/curve", MetricsMiddleware(s.ppiHandler.HandleGetCurve, "ppi_curve"))
}

// Handler wraps h with the CORS policy of the server.
func (s *Server) Handler(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(h)
}

// runRequest mirrors the OpenAPI schema of one run in POST /sync/runs.
type runRequest struct {
	ID               string   `json:"id,omitempty"`
	DistanceMeters   *float64 `json:"distanceMeters"`
	ElapsedSeconds   *float64 `json:"elapsedSeconds"`
	StartedAtEpochMs int64    `json:"startedAtEpochMs,omitempty"`
}

func (r runRequest) validate() error {
	switch {
	case r.DistanceMeters == nil:
		return errors.New("missing distanceMeters")
	case r.ElapsedSeconds == nil:
		return errors.New("missing elapsedSeconds")
	case r.StartedAtEpochMs < 0:
		return errors.New("startedAtEpochMs must not be negative")
	}
	return nil
}

func (r runRequest) submission() model.RunSubmission {
	return model.RunSubmission{
		ID:               r.ID,
		DistanceMeters:   *r.DistanceMeters,
		ElapsedSeconds:   *r.ElapsedSeconds,
		StartedAtEpochMs: r.StartedAtEpochMs,
	}
}

// decodeRuns accepts a JSON array of runs or a single run object.
func decodeRuns(raw json.RawMessage) ([]model.RunSubmission, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("no runs")
	}

	var reqs []runRequest
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, fmt.Errorf("decode runs: %w", err)
		}
	} else {
		var one runRequest
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		reqs = []runRequest{one}
	}
	if len(reqs) == 0 {
		return nil, errors.New("no runs")
	}

	runs := make([]model.RunSubmission, 0, len(reqs))
	for i, req := range reqs {
		if err := req.validate(); err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		runs = append(runs, req.submission())
	}
	return runs, nil
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service errors to statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrImportBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
