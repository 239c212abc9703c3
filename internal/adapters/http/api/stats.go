// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// StatsProvider exposes the service's runtime counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// statsResponse names the counters the arbitration service tracks: the
// player and room registries, the telemetry ingestion queue, and the
// snapshot subscriber population.
type statsResponse struct {
	Started       bool `json:"started"`
	Workers       int  `json:"workers"`
	QueueCapacity int  `json:"queue_capacity"`
	QueueDepth    int  `json:"queue_depth"`
	Players       int  `json:"players"`
	OnlinePlayers int  `json:"online_players"`
	Rooms         int  `json:"rooms"`
	RunningRooms  int  `json:"running_rooms"`
	Subscribers   int  `json:"subscribers"`
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw := h.provider.GetStats()
	writeJSON(w, http.StatusOK, statsResponse{
		Started:       boolStat(raw, "started"),
		Workers:       intStat(raw, "workerCount"),
		QueueCapacity: intStat(raw, "queueSize"),
		QueueDepth:    intStat(raw, "queueLength"),
		Players:       intStat(raw, "players"),
		OnlinePlayers: intStat(raw, "onlinePlayers"),
		Rooms:         intStat(raw, "rooms"),
		RunningRooms:  intStat(raw, "runningRooms"),
		Subscribers:   intStat(raw, "subscribers"),
	})
}

func intStat(m map[string]interface{}, key string) int {
	v, _ := m[key].(int)
	return v
}

func boolStat(m map[string]interface{}, key string) bool {
	v, _ := m[key].(bool)
	return v
}
