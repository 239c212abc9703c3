// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/proxtag/pkg/metrics"
)

// MetricsMiddleware wraps a handler to record request counts, latency, and
// the endpoint's error taxonomy.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsedMS := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(rec.status)

		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsedMS)

		if rec.status >= http.StatusBadRequest {
			kind := errorKind(rec.status)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
			metrics.RecordErrorByType(kind, errorSeverity(rec.status))
			metrics.RecordErrorLatency("http", kind, elapsedMS)
		}
	}
}

// errorKind buckets a status code into the error families this API emits:
// malformed requests, unknown players or rooms, state-machine conflicts,
// telemetry backpressure, code-space exhaustion, and everything 5xx.
func errorKind(status int) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "capacity"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusTooManyRequests:
		return "backpressure"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusNotFound:
		return "not_found"
	default:
		return "client_error"
	}
}

// errorSeverity grades an error status. Backpressure on the telemetry
// endpoints is a normal operating mode under load and stays low.
func errorSeverity(status int) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "high"
	case status >= http.StatusInternalServerError:
		return "high"
	case status == http.StatusTooManyRequests:
		return "low"
	default:
		return "medium"
	}
}

// statusRecorder captures the status code a handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
