package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/mebeatme/pkg/metrics"
)

// HealthDependencies exposes what /health reports.
type HealthDependencies interface {
	Count(ctx context.Context) int
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps    HealthDependencies
	version string
	domain  string
	clock   func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies, version, domain string, clock func() time.Time) *HealthHandler {
	return &HealthHandler{deps: deps, version: version, domain: domain, clock: clock}
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Domain    string `json:"domain"`
	Timestamp int64  `json:"timestamp"`
	Workouts  int    `json:"workouts"`
}

// HandleHealth handles GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   h.version,
		Domain:    h.domain,
		Timestamp: h.clock().UnixMilli(),
		Workouts:  h.deps.Count(r.Context()),
	})
}

// MetricsHandler serves the Prometheus registry.
type MetricsHandler struct {
	h http.Handler
}

// NewMetricsHandler creates a handler over the service's custom registry.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{h: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})}
}

// HandleMetrics handles GET /metrics.
func (m *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	m.h.ServeHTTP(w, r)
}
