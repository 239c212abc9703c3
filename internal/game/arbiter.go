package game

import (
	"context"
	"math"
	"time"

	"github.com/okian/proxtag/internal/domain/eligibility"
	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/internal/domain/signal"
	"github.com/okian/proxtag/pkg/logger"
	"github.com/okian/proxtag/pkg/metrics"
)

// TagResult is the structured outcome of a tag attempt. A rejection is a
// normal result, not an error; Reason carries the cause either way.
type TagResult struct {
	Success       bool             `json:"success"`
	Reason        model.TagOutcome `json:"reason"`
	NewItPlayerID string           `json:"new_it_player_id,omitempty"`
	MeanSignalDBM float64          `json:"mean_signal_dbm,omitempty"`
	Distance      float64          `json:"distance,omitempty"`
}

// AttemptTag arbitrates one tag attempt. The whole read-validate-mutate
// sequence runs under the shared room's mutex against a single captured
// "now", so a concurrent attempt on the same room re-validates against the
// already-committed state. Exactly one TagEvent is appended per call.
func (w *World) AttemptTag(ctx context.Context, attackerID, defenderID string) (*TagResult, error) {
	w.mu.RLock()
	attacker, ok := w.players[attackerID]
	if !ok {
		w.mu.RUnlock()
		return nil, ErrPlayerNotFound
	}
	defender, ok := w.players[defenderID]
	if !ok {
		w.mu.RUnlock()
		return nil, ErrPlayerNotFound
	}
	attackerRoom, defenderRoom := attacker.RoomID, defender.RoomID
	w.mu.RUnlock()

	if attackerRoom == "" || attackerRoom != defenderRoom {
		return nil, ErrCrossRoomTag
	}
	rs, err := w.roomState(attackerRoom)
	if err != nil {
		return nil, ErrCrossRoomTag
	}

	rs.mu.Lock()
	// Membership may have changed while the lock was contended.
	if _, ok := rs.members[attackerID]; !ok {
		rs.mu.Unlock()
		return nil, ErrCrossRoomTag
	}
	if _, ok := rs.members[defenderID]; !ok {
		rs.mu.Unlock()
		return nil, ErrCrossRoomTag
	}
	if rs.room.Status != model.StatusRunning {
		rs.mu.Unlock()
		return nil, ErrRoomNotRunning
	}

	threshold, cooldown, immunity := w.resolveThresholds(rs.room.Settings)
	now := w.now()

	result := w.validate(ctx, attacker, defender, threshold, cooldown, immunity, now)

	event := model.TagEvent{
		At:            now,
		RoomID:        rs.room.ID,
		AttackerID:    attackerID,
		DefenderID:    defenderID,
		Success:       result.Success,
		Reason:        result.Reason,
		MeanSignalDBM: result.MeanSignalDBM,
		Distance:      result.Distance,
	}
	rs.events.append(event)

	attacker.LastTagAttemptAt = now
	attacker.TagAttempts++

	if result.Success {
		newIt := w.commitTransferLocked(ctx, rs, attacker, defender, now)
		result.NewItPlayerID = newIt
	}

	snap := w.buildSnapshotLocked(rs)
	rs.mu.Unlock()

	metrics.RecordTagAttempt(string(result.Reason))
	w.broadcaster.Publish(ctx, snap)
	return result, nil
}

// validate runs the tag-validation algorithm against a single captured now.
// Side-effect free; the caller commits the outcome.
func (w *World) validate(ctx context.Context, attacker, defender *model.Player, threshold float64, cooldown, immunity time.Duration, now time.Time) *TagResult {
	attackerSignal, aok := w.telemetry.Signal(ctx, attacker.ID)
	defenderSignal, dok := w.telemetry.Signal(ctx, defender.ID)
	if !aok || !dok {
		return &TagResult{Reason: model.OutcomeMissingSignal}
	}

	if !eligibility.CanAttempt(attacker.LastTagAttemptAt, now, cooldown) {
		return &TagResult{Reason: model.OutcomeAttackerCooldown}
	}
	if eligibility.HasImmunity(defender.LastTaggedAt, now, immunity) {
		return &TagResult{Reason: model.OutcomeDefenderImmunity}
	}

	mean := signal.MeanReading(attackerSignal.RSSI, defenderSignal.RSSI)
	distance := w.estimator.EstimateDistance(int(math.Round(mean)))
	if mean < threshold {
		return &TagResult{
			Reason:        model.OutcomeTooFar,
			MeanSignalDBM: mean,
			Distance:      distance,
		}
	}

	return &TagResult{
		Success:       true,
		Reason:        model.OutcomeSuccess,
		MeanSignalDBM: mean,
		Distance:      distance,
	}
}

// commitTransferLocked determines the new it-holder and commits the role
// transfer plus counters. Caller holds rs.mu. The third-party fallback runs
// only in a desynchronized state and is worth alerting on.
func (w *World) commitTransferLocked(ctx context.Context, rs *roomState, attacker, defender *model.Player, now time.Time) string {
	var newIt *model.Player
	switch {
	case attacker.IsIt:
		newIt = defender
	case defender.IsIt:
		newIt = attacker
	default:
		newIt = attacker
		metrics.RecordFallbackTransfer()
		if w.log != nil {
			w.log.Warn(ctx, "no party held it, falling back to attacker",
				logger.String("roomID", rs.room.ID),
				logger.String("attackerID", attacker.ID),
				logger.String("defenderID", defender.ID),
			)
		}
	}

	attacker.IsIt = false
	defender.IsIt = false
	newIt.IsIt = true
	rs.room.ItPlayerID = newIt.ID

	attacker.Score++
	attacker.TagsMade++
	defender.LastTaggedAt = now
	defender.TagsReceived++

	metrics.RecordRoleTransfer()
	return newIt.ID
}

// resolveThresholds applies room-level overrides over the global defaults.
func (w *World) resolveThresholds(s model.RoomSettings) (threshold float64, cooldown, immunity time.Duration) {
	threshold = w.defaults.SignalThresholdDBM
	if s.SignalThresholdDBM != 0 {
		threshold = s.SignalThresholdDBM
	}
	cooldown = w.defaults.Cooldown
	if s.Cooldown > 0 {
		cooldown = s.Cooldown
	}
	immunity = w.defaults.Immunity
	if s.Immunity > 0 {
		immunity = s.Immunity
	}
	return threshold, cooldown, immunity
}
