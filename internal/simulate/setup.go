package simulate

import (
	"context"
	"fmt"

	"github.com/okian/proxtag/pkg/logger"
)

// registerPlayers registers the configured number of players and returns them.
func registerPlayers(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) ([]*player, error) {
	logger.Get().Info(ctx, "registering players", logger.Int("count", config.Players))

	players := make([]*player, 0, config.Players)
	for i := 0; i < config.Players; i++ {
		var resp playerResponse
		body := map[string]string{
			"device_token": fmt.Sprintf("sim-device-%04d", i),
			"name":         fmt.Sprintf("sim-player-%04d", i),
		}
		if _, err := client.postJSON(ctx, config.BaseURL+"/players", body, &resp, StatusCreated); err != nil {
			return nil, fmt.Errorf("failed to register player %d: %w", i, err)
		}
		players = append(players, &player{ID: resp.ID, Name: resp.Name})
	}

	stats.PlayersRegistered = len(players)
	logger.Get().Info(ctx, "players registered", logger.Int("count", len(players)))
	return players, nil
}

// setupRooms partitions the players into rooms, joins everyone, and starts
// every room that gathered at least two members.
func setupRooms(ctx context.Context, client *HTTPClient, config *Config, players []*player, stats *Stats) ([]*room, error) {
	size := config.RoomSize
	if size < 2 {
		size = 2
	}

	var rooms []*room
	for start := 0; start < len(players); start += size {
		end := start + size
		if end > len(players) {
			end = len(players)
		}
		group := players[start:end]
		if len(group) < 2 {
			// A trailing singleton cannot play; leave it roomless.
			break
		}

		var created roomResponse
		body := map[string]any{
			"creator_id": group[0].ID,
			"name":       fmt.Sprintf("sim-room-%d", len(rooms)),
		}
		if _, err := client.postJSON(ctx, config.BaseURL+"/rooms", body, &created, StatusCreated); err != nil {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}

		r := &room{ID: created.ID, Code: created.Code}
		for _, p := range group {
			joinBody := map[string]string{"player_id": p.ID, "code": created.Code}
			if _, err := client.postJSON(ctx, config.BaseURL+"/rooms/join", joinBody, nil, StatusOK); err != nil {
				return nil, fmt.Errorf("failed to join room %s: %w", created.Code, err)
			}
			p.RoomID = created.ID
			p.Code = created.Code
			r.Members = append(r.Members, p.ID)
		}
		rooms = append(rooms, r)
	}
	stats.RoomsCreated = len(rooms)

	for _, r := range rooms {
		var snap snapshotResponse
		url := fmt.Sprintf("%s/rooms/%s/start", config.BaseURL, r.ID)
		if _, err := client.postJSON(ctx, url, nil, &snap, StatusOK); err != nil {
			return nil, fmt.Errorf("failed to start room %s: %w", r.ID, err)
		}
		stats.GamesStarted++
	}

	logger.Get().Info(ctx, "rooms running",
		logger.Int("rooms", stats.RoomsCreated),
		logger.Int("started", stats.GamesStarted))
	return rooms, nil
}
