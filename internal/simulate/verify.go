package simulate

import (
	"context"
	"fmt"

	"github.com/okian/proxtag/pkg/logger"
)

// verifyRooms checks the arbitration invariants on every room after the
// traffic phase: a running room has exactly one it-holder matching the
// snapshot's it_player_id, and the scores across all rooms add up to the
// number of successful tags.
func verifyRooms(ctx context.Context, config *Config, rooms []*room, stats *Stats) error {
	logger.Get().Info(ctx, "verifying room invariants", logger.Int("rooms", len(rooms)))

	client := newHTTPClient(config.Timeout)
	totalScore := 0

	for _, r := range rooms {
		snap, err := fetchSnapshot(ctx, client, config.BaseURL, r.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch room %s: %w", r.ID, err)
		}

		if snap.PlayerCount != len(r.Members) {
			return fmt.Errorf("room %s: expected %d members, snapshot has %d", r.ID, len(r.Members), snap.PlayerCount)
		}

		itCount := 0
		itID := ""
		for _, p := range snap.Players {
			if p.IsIt {
				itCount++
				itID = p.ID
			}
			if p.Score < 0 {
				return fmt.Errorf("room %s: player %s has negative score", r.ID, p.ID)
			}
			totalScore += p.Score
		}

		switch snap.Status {
		case "running":
			if itCount != 1 {
				return fmt.Errorf("room %s: running with %d it-holders", r.ID, itCount)
			}
			if itID != snap.ItPlayerID {
				return fmt.Errorf("room %s: it flag on %s but snapshot names %s", r.ID, itID, snap.ItPlayerID)
			}
		case "finished":
			if itCount != 0 {
				return fmt.Errorf("room %s: finished but %d it-flags remain", r.ID, itCount)
			}
		default:
			return fmt.Errorf("room %s: unexpected status %q after start", r.ID, snap.Status)
		}

		stats.RoomsVerified++
	}

	// A request cut off by the traffic deadline may have committed server-side
	// after the client gave up, so the total can exceed the acknowledged
	// successes by at most the number of failed requests.
	if totalScore < stats.TagsSucceeded || totalScore > stats.TagsSucceeded+stats.TagsFailed {
		return fmt.Errorf("score total %d inconsistent with %d successful and %d failed tags",
			totalScore, stats.TagsSucceeded, stats.TagsFailed)
	}

	logger.Get().Info(ctx, "room invariants hold",
		logger.Int("roomsVerified", stats.RoomsVerified),
		logger.Int("totalScore", totalScore))
	return nil
}
