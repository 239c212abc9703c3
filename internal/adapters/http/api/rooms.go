// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/proxtag/internal/domain/model"
)

// Default cap on events returned by GET /rooms/{id}/events.
const defaultEventsLimit = 32

// RoomDependencies defines the interface for room operations.
type RoomDependencies interface {
	CreateRoom(ctx context.Context, creatorID, name string, settings model.RoomSettings) (*model.Room, error)
	JoinRoom(ctx context.Context, playerID, code string) (*model.Room, error)
	LeaveRoom(ctx context.Context, playerID string) error
	StartGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error)
	FinishGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error)
	DeleteRoom(ctx context.Context, roomID string) error
	RoomState(ctx context.Context, roomID string) (*model.RoomSnapshot, error)
	RoomByCode(ctx context.Context, code string) (*model.RoomSnapshot, error)
	RecentEvents(ctx context.Context, roomID string, limit int) ([]model.TagEvent, error)
}

// RoomsHandler handles room lifecycle and read requests.
type RoomsHandler struct {
	deps      RoomDependencies
	subscribe *SubscribeHandler
}

// NewRoomsHandler creates a new rooms handler.
func NewRoomsHandler(deps RoomDependencies, subscribe *SubscribeHandler) *RoomsHandler {
	return &RoomsHandler{deps: deps, subscribe: subscribe}
}

// roomSettingsRequest carries per-room overrides in wire-friendly units.
type roomSettingsRequest struct {
	SignalThresholdDBM float64 `json:"signal_threshold_dbm"`
	CooldownMS         int     `json:"cooldown_ms"`
	ImmunityMS         int     `json:"immunity_ms"`
}

func (s roomSettingsRequest) toModel() model.RoomSettings {
	return model.RoomSettings{
		SignalThresholdDBM: s.SignalThresholdDBM,
		Cooldown:           time.Duration(s.CooldownMS) * time.Millisecond,
		Immunity:           time.Duration(s.ImmunityMS) * time.Millisecond,
	}
}

// createRoomRequest mirrors the schema for POST /rooms.
type createRoomRequest struct {
	CreatorID string              `json:"creator_id"`
	Name      string              `json:"name"`
	Settings  roomSettingsRequest `json:"settings"`
}

func (c createRoomRequest) validate() error {
	if strings.TrimSpace(c.CreatorID) == "" {
		return errors.New("missing creator_id")
	}
	return nil
}

// joinRoomRequest mirrors the schema for POST /rooms/join.
type joinRoomRequest struct {
	PlayerID string `json:"player_id"`
	Code     string `json:"code"`
}

func (j joinRoomRequest) validate() error {
	switch {
	case strings.TrimSpace(j.PlayerID) == "":
		return errors.New("missing player_id")
	case strings.TrimSpace(j.Code) == "":
		return errors.New("missing code")
	}
	return nil
}

// leaveRoomRequest mirrors the schema for POST /rooms/leave.
type leaveRoomRequest struct {
	PlayerID string `json:"player_id"`
}

// roomResponse is the read shape for room records.
type roomResponse struct {
	ID         string           `json:"id"`
	Code       string           `json:"code"`
	Name       string           `json:"name,omitempty"`
	Status     model.RoomStatus `json:"status"`
	ItPlayerID string           `json:"it_player_id,omitempty"`
}

func toRoomResponse(room *model.Room) roomResponse {
	return roomResponse{
		ID:         room.ID,
		Code:       room.Code,
		Name:       room.Name,
		Status:     room.Status,
		ItPlayerID: room.ItPlayerID,
	}
}

// HandleRooms handles POST /rooms and GET /rooms?code=XXXX requests.
func (h *RoomsHandler) HandleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleLookupByCode(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *RoomsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_room"
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	room, err := h.deps.CreateRoom(r.Context(), req.CreatorID, req.Name, req.Settings.toModel())
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoomResponse(room))
}

func (h *RoomsHandler) handleLookupByCode(w http.ResponseWriter, r *http.Request) {
	const op = "api.room_by_code"
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	snap, err := h.deps.RoomByCode(r.Context(), code)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleRoomOps dispatches /rooms/... subpaths: the join and leave verbs plus
// per-room operations ({id}/start, {id}/finish, {id}/state, {id}/events,
// {id}/subscribe, and DELETE {id}).
func (h *RoomsHandler) HandleRoomOps(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/rooms/")
	switch rest {
	case "join":
		MetricsMiddleware(h.handleJoin, "rooms_join")(w, r)
		return
	case "leave":
		MetricsMiddleware(h.handleLeave, "rooms_leave")(w, r)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	roomID := parts[0]
	if roomID == "" {
		http.NotFound(w, r)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		if r.Method == http.MethodDelete {
			MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				h.handleDelete(w, r, roomID)
			}, "rooms_delete")(w, r)
			return
		}
		http.NotFound(w, r)
	case "start":
		MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			h.handleStart(w, r, roomID)
		}, "rooms_start")(w, r)
	case "finish":
		MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			h.handleFinish(w, r, roomID)
		}, "rooms_finish")(w, r)
	case "state":
		MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			h.handleState(w, r, roomID)
		}, "rooms_state")(w, r)
	case "events":
		MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			h.handleEvents(w, r, roomID)
		}, "rooms_events")(w, r)
	case "subscribe":
		// Websocket upgrades bypass the metrics wrapper; hijacking the
		// connection does not compose with the status-recording writer.
		h.subscribe.HandleSubscribe(w, r, roomID)
	default:
		http.NotFound(w, r)
	}
}

func (h *RoomsHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_room"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	room, err := h.deps.JoinRoom(r.Context(), req.PlayerID, req.Code)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponse(room))
}

func (h *RoomsHandler) handleLeave(w http.ResponseWriter, r *http.Request) {
	const op = "api.leave_room"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req leaveRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.LeaveRoom(r.Context(), req.PlayerID); err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "left"})
}

func (h *RoomsHandler) handleStart(w http.ResponseWriter, r *http.Request, roomID string) {
	const op = "api.start_game"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.StartGame(r.Context(), roomID)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RoomsHandler) handleFinish(w http.ResponseWriter, r *http.Request, roomID string) {
	const op = "api.finish_game"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.FinishGame(r.Context(), roomID)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RoomsHandler) handleDelete(w http.ResponseWriter, r *http.Request, roomID string) {
	const op = "api.delete_room"
	if err := h.deps.DeleteRoom(r.Context(), roomID); err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "deleted"})
}

func (h *RoomsHandler) handleState(w http.ResponseWriter, r *http.Request, roomID string) {
	const op = "api.room_state"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.RoomState(r.Context(), roomID)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RoomsHandler) handleEvents(w http.ResponseWriter, r *http.Request, roomID string) {
	const op = "api.room_events"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := defaultEventsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	events, err := h.deps.RecentEvents(r.Context(), roomID, limit)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
