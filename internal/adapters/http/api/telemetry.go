// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/proxtag/internal/domain/model"
)

// TelemetryDependencies defines the interface for telemetry ingestion.
type TelemetryDependencies interface {
	EnqueueTelemetry(ctx context.Context, u model.TelemetryUpdate) bool
}

// TelemetryHandler handles telemetry ingestion requests.
type TelemetryHandler struct {
	deps TelemetryDependencies
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(deps TelemetryDependencies) *TelemetryHandler {
	return &TelemetryHandler{deps: deps}
}

// signalRequest mirrors the schema for POST /telemetry/signal.
type signalRequest struct {
	PlayerID string `json:"player_id"`
	RSSIDBM  int    `json:"rssi_dbm"`
	TS       string `json:"ts"`
}

// validate checks structure only. Any integer is a valid reading; the store
// takes readings as reported and consumers judge them.
func (s signalRequest) validate() error {
	if strings.TrimSpace(s.PlayerID) == "" {
		return errors.New("missing player_id")
	}
	if s.TS != "" {
		if _, err := time.Parse(time.RFC3339, s.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

// motionRequest mirrors the schema for POST /telemetry/motion.
type motionRequest struct {
	PlayerID string  `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	TS       string  `json:"ts"`
}

func (m motionRequest) validate() error {
	if strings.TrimSpace(m.PlayerID) == "" {
		return errors.New("missing player_id")
	}
	if m.TS != "" {
		if _, err := time.Parse(time.RFC3339, m.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

// parseTS returns the carried timestamp or now when absent. Validation has
// already rejected malformed values.
func parseTS(ts string) time.Time {
	if ts == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Now()
	}
	return t
}

// HandleSignal handles POST /telemetry/signal requests.
func (h *TelemetryHandler) HandleSignal(w http.ResponseWriter, r *http.Request) {
	const op = "api.telemetry_signal"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	update := model.TelemetryUpdate{
		PlayerID: req.PlayerID,
		Kind:     model.TelemetrySignal,
		RSSI:     req.RSSIDBM,
		At:       parseTS(req.TS),
	}
	if ok := h.deps.EnqueueTelemetry(r.Context(), update); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandleMotion handles POST /telemetry/motion requests.
func (h *TelemetryHandler) HandleMotion(w http.ResponseWriter, r *http.Request) {
	const op = "api.telemetry_motion"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req motionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	update := model.TelemetryUpdate{
		PlayerID: req.PlayerID,
		Kind:     model.TelemetryMotion,
		Vector:   model.MotionVector{X: req.X, Y: req.Y, Z: req.Z},
		At:       parseTS(req.TS),
	}
	if ok := h.deps.EnqueueTelemetry(r.Context(), update); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
