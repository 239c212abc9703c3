// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/proxtag/internal/domain/model"
)

// PlayerDependencies defines the interface for player operations.
type PlayerDependencies interface {
	CreatePlayer(ctx context.Context, deviceToken, name string) (*model.Player, error)
	Player(ctx context.Context, playerID string) (*model.Player, error)
}

// PlayersHandler handles player registration and lookup.
type PlayersHandler struct {
	deps PlayerDependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerDependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

// createPlayerRequest mirrors the schema for POST /players.
type createPlayerRequest struct {
	DeviceToken string `json:"device_token"`
	Name        string `json:"name"`
}

func (p createPlayerRequest) validate() error {
	if strings.TrimSpace(p.DeviceToken) == "" {
		return errors.New("missing device_token")
	}
	return nil
}

// playerResponse is the read shape for player records.
type playerResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RoomID       string `json:"room_id,omitempty"`
	IsIt         bool   `json:"is_it"`
	Score        int    `json:"score"`
	TagsMade     int    `json:"tags_made"`
	TagsReceived int    `json:"tags_received"`
	Online       bool   `json:"online"`
}

func toPlayerResponse(p *model.Player) playerResponse {
	return playerResponse{
		ID:           p.ID,
		Name:         p.Name,
		RoomID:       p.RoomID,
		IsIt:         p.IsIt,
		Score:        p.Score,
		TagsMade:     p.TagsMade,
		TagsReceived: p.TagsReceived,
		Online:       p.Online,
	}
}

// HandlePlayers handles POST /players requests.
// Registration is idempotent per device token.
func (h *PlayersHandler) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_player"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req createPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	player, err := h.deps.CreatePlayer(r.Context(), req.DeviceToken, req.Name)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlayerResponse(player))
}

// HandlePlayerByID handles GET /players/{id} requests.
func (h *PlayersHandler) HandlePlayerByID(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_player"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/players/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	player, err := h.deps.Player(r.Context(), id)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlayerResponse(player))
}
