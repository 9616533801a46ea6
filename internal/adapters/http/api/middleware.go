package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/mebeatme/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class per route.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		code := strconv.Itoa(sw.status)

		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, ms)

		if sw.status >= http.StatusBadRequest {
			class := errorClass(sw.status)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
			metrics.RecordErrorByType(class, errorSeverity(sw.status))
		}
	}
}

// errorClass buckets a failing status into the codes writeError emits.
func errorClass(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "backpressure"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "client_error"
}

// errorSeverity: backpressure and unavailability are operational, not client mistakes.
func errorSeverity(status int) string {
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		return "high"
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return "medium"
	default:
		return "low"
	}
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
