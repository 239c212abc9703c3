// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/internal/game"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Player lifecycle.
	CreatePlayer(ctx context.Context, deviceToken, name string) (*model.Player, error)
	Player(ctx context.Context, playerID string) (*model.Player, error)

	// Room lifecycle.
	CreateRoom(ctx context.Context, creatorID, name string, settings model.RoomSettings) (*model.Room, error)
	JoinRoom(ctx context.Context, playerID, code string) (*model.Room, error)
	LeaveRoom(ctx context.Context, playerID string) error
	StartGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error)
	FinishGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error)
	DeleteRoom(ctx context.Context, roomID string) error

	// Arbitration and reads.
	AttemptTag(ctx context.Context, attackerID, defenderID string) (*game.TagResult, error)
	RoomState(ctx context.Context, roomID string) (*model.RoomSnapshot, error)
	RoomByCode(ctx context.Context, code string) (*model.RoomSnapshot, error)
	RecentEvents(ctx context.Context, roomID string, limit int) ([]model.TagEvent, error)

	// Telemetry ingestion. EnqueueTelemetry returns false on backpressure.
	EnqueueTelemetry(ctx context.Context, u model.TelemetryUpdate) bool

	// Snapshot streaming.
	Subscribe(ctx context.Context, roomID string) (*game.Subscription, error)
}

// Server wires HTTP routes for the game API.
type Server struct {
	playersHandler   *PlayersHandler
	roomsHandler     *RoomsHandler
	tagHandler       *TagHandler
	telemetryHandler *TelemetryHandler
	subscribeHandler *SubscribeHandler
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	subscribe := NewSubscribeHandler(deps)
	return &Server{
		playersHandler:   NewPlayersHandler(deps),
		roomsHandler:     NewRoomsHandler(deps, subscribe),
		tagHandler:       NewTagHandler(deps),
		telemetryHandler: NewTelemetryHandler(deps),
		subscribeHandler: subscribe,
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/players", MetricsMiddleware(s.playersHandler.HandlePlayers, "players"))
	mux.HandleFunc("/players/", MetricsMiddleware(s.playersHandler.HandlePlayerByID, "player"))
	mux.HandleFunc("/rooms", MetricsMiddleware(s.roomsHandler.HandleRooms, "rooms"))
	mux.HandleFunc("/rooms/", s.roomsHandler.HandleRoomOps)
	mux.HandleFunc("/tag", MetricsMiddleware(s.tagHandler.HandleTag, "tag"))
	mux.HandleFunc("/telemetry/signal", MetricsMiddleware(s.telemetryHandler.HandleSignal, "telemetry_signal"))
	mux.HandleFunc("/telemetry/motion", MetricsMiddleware(s.telemetryHandler.HandleMotion, "telemetry_motion"))
}

type ackResponse struct {
	Status string `json:"status"`
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

// writeGameError translates arbitration-core sentinels to HTTP statuses.
func writeGameError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, game.ErrPlayerNotFound), errors.Is(err, game.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, game.ErrRoomNotJoinable),
		errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrInsufficientPlayers),
		errors.Is(err, game.ErrRoomNotRunning),
		errors.Is(err, game.ErrCrossRoomTag):
		writeError(w, http.StatusConflict, "conflict", Wrap(op, err))
	case errors.Is(err, game.ErrCodeSpaceExhausted):
		writeError(w, http.StatusServiceUnavailable, "code_space_exhausted", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
