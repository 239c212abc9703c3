package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/proxtag/pkg/logger"
)

// settleDelay gives the telemetry workers time to drain the queue before the
// final snapshots are verified.
const settleDelay = 2 * time.Second

// Run executes a complete simulation: register players, partition them into
// rooms, stream telemetry and tag attempts for the configured duration, then
// verify the arbitration invariants and finish every room.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting proxtag simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("roomSize", config.RoomSize),
		logger.String("duration", config.Duration.String()),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	client := newHTTPClient(config.Timeout)

	// Step 2: Register players
	players, err := registerPlayers(ctx, client, config, stats)
	if err != nil {
		return fmt.Errorf("player registration failed: %w", err)
	}

	// Step 3: Create rooms and start games
	rooms, err := setupRooms(ctx, client, config, players, stats)
	if err != nil {
		return fmt.Errorf("room setup failed: %w", err)
	}

	// Step 4: Stream telemetry and tag attempts
	if err := streamTraffic(ctx, config, rooms, stats); err != nil {
		return fmt.Errorf("traffic streaming failed: %w", err)
	}

	// Step 5: Wait for queued telemetry to drain
	logger.Get().Info(ctx, "waiting for telemetry to be processed")
	time.Sleep(settleDelay)

	// Step 6: Verify room invariants
	if err := verifyRooms(ctx, config, rooms, stats); err != nil {
		return fmt.Errorf("room verification failed: %w", err)
	}

	// Step 7: Finish every room
	if err := finishRooms(ctx, config, rooms); err != nil {
		logger.Get().Warn(ctx, "failed to finish rooms", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// finishRooms transitions every simulated room to finished.
func finishRooms(ctx context.Context, config *Config, rooms []*room) error {
	client := newHTTPClient(config.Timeout)

	for _, r := range rooms {
		var snap snapshotResponse
		url := fmt.Sprintf("%s/rooms/%s/finish", config.BaseURL, r.ID)
		if _, err := client.postJSON(ctx, url, nil, &snap, StatusOK); err != nil {
			return fmt.Errorf("failed to finish room %s: %w", r.ID, err)
		}
	}

	logger.Get().Info(ctx, "all rooms finished", logger.Int("rooms", len(rooms)))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, signalsPerSecond float64

	if stats.TagsAttempted > 0 {
		successRate = float64(stats.TagsSucceeded) / float64(stats.TagsAttempted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		signalsPerSecond = float64(stats.SignalsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("playersRegistered", stats.PlayersRegistered),
		logger.Int("roomsCreated", stats.RoomsCreated),
		logger.Int("gamesStarted", stats.GamesStarted),
		logger.Int("signalsSubmitted", stats.SignalsSubmitted),
		logger.Int("signalsRejected", stats.SignalsRejected),
		logger.Int("tagsAttempted", stats.TagsAttempted),
		logger.Int("tagsSucceeded", stats.TagsSucceeded),
		logger.Int("tagsRejected", stats.TagsRejected),
		logger.Int("tagsFailed", stats.TagsFailed),
		logger.Int("roomsVerified", stats.RoomsVerified),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("tagSuccessRate", successRate),
		logger.Float64("signalsPerSecond", signalsPerSecond))
}
