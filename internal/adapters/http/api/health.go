// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/okian/proxtag/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler serves GET /healthz. The endpoint doubles as the Prometheus
// scrape target: a 200 with the exposition body means the arbitration core
// is up and serving.
type HealthHandler struct {
	exposition http.Handler
}

// NewHealthHandler creates a health handler backed by the service registry.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		exposition: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	h.exposition.ServeHTTP(w, r)
}
