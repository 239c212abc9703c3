// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/proxtag/internal/game"
)

// TagDependencies defines the interface for tag arbitration.
type TagDependencies interface {
	AttemptTag(ctx context.Context, attackerID, defenderID string) (*game.TagResult, error)
}

// TagHandler handles tag attempt requests.
type TagHandler struct {
	deps TagDependencies
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(deps TagDependencies) *TagHandler {
	return &TagHandler{deps: deps}
}

// tagRequest mirrors the schema for POST /tag.
type tagRequest struct {
	AttackerID string `json:"attacker_id"`
	DefenderID string `json:"defender_id"`
}

func (t tagRequest) validate() error {
	switch {
	case strings.TrimSpace(t.AttackerID) == "":
		return errors.New("missing attacker_id")
	case strings.TrimSpace(t.DefenderID) == "":
		return errors.New("missing defender_id")
	case t.AttackerID == t.DefenderID:
		return errors.New("attacker and defender must differ")
	}
	return nil
}

// HandleTag handles POST /tag requests.
//
// A rejected attempt (cooldown, immunity, distance, missing signal) is a
// valid arbitration outcome and returns 200 with success=false; only
// structural problems map to error statuses.
func (h *TagHandler) HandleTag(w http.ResponseWriter, r *http.Request) {
	const op = "api.tag"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	result, err := h.deps.AttemptTag(r.Context(), req.AttackerID, req.DefenderID)
	if err != nil {
		writeGameError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
