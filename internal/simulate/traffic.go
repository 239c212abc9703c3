package simulate

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// streamTraffic pushes telemetry and tag attempts at the service until the
// configured duration elapses.
func streamTraffic(ctx context.Context, config *Config, rooms []*room, stats *Stats) error {
	log.Printf("📡 Streaming traffic for %s with %d workers...", config.Duration, config.Workers)

	client := newHTTPClient(config.Timeout)

	var (
		signals         int64
		signalsRejected int64
		tags            int64
		tagsSucceeded   int64
		tagsRejected    int64
		tagsFailed      int64
	)

	trafficCtx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID))) //nolint:gosec // simulation randomness

			for {
				select {
				case <-trafficCtx.Done():
					return
				default:
				}

				r := rooms[rng.Intn(len(rooms))]

				// Every member reports a reading each cycle.
				for _, id := range r.Members {
					rssi := config.SignalFloor + rng.Intn(config.SignalCeil-config.SignalFloor+1)
					body := map[string]any{
						"player_id": id,
						"rssi_dbm":  rssi,
						"ts":        time.Now().Format(time.RFC3339),
					}
					status, err := client.postJSON(trafficCtx, config.BaseURL+"/telemetry/signal", body, nil, StatusAccepted)
					if err != nil {
						if status == StatusTooManyRequests {
							atomic.AddInt64(&signalsRejected, 1)
						}
						continue
					}
					atomic.AddInt64(&signals, 1)
				}

				// A random member tries to tag another.
				attacker := r.Members[rng.Intn(len(r.Members))]
				defender := r.Members[rng.Intn(len(r.Members))]
				if attacker == defender {
					continue
				}
				var result tagResponse
				body := map[string]string{"attacker_id": attacker, "defender_id": defender}
				if _, err := client.postJSON(trafficCtx, config.BaseURL+"/tag", body, &result, StatusOK); err != nil {
					atomic.AddInt64(&tagsFailed, 1)
				} else {
					atomic.AddInt64(&tags, 1)
					if result.Success {
						atomic.AddInt64(&tagsSucceeded, 1)
					} else {
						atomic.AddInt64(&tagsRejected, 1)
					}
				}

				if config.Verbose {
					log.Printf("📊 worker %d: signals=%d tags=%d (ok=%d rejected=%d)",
						workerID,
						atomic.LoadInt64(&signals),
						atomic.LoadInt64(&tags),
						atomic.LoadInt64(&tagsSucceeded),
						atomic.LoadInt64(&tagsRejected))
				}

				if config.TagInterval > 0 {
					select {
					case <-trafficCtx.Done():
						return
					case <-time.After(config.TagInterval):
					}
				}
			}
		}(i)
	}

	wg.Wait()

	stats.SignalsSubmitted = int(atomic.LoadInt64(&signals))
	stats.SignalsRejected = int(atomic.LoadInt64(&signalsRejected))
	stats.TagsAttempted = int(atomic.LoadInt64(&tags))
	stats.TagsSucceeded = int(atomic.LoadInt64(&tagsSucceeded))
	stats.TagsRejected = int(atomic.LoadInt64(&tagsRejected))
	stats.TagsFailed = int(atomic.LoadInt64(&tagsFailed))

	log.Printf(`✅ Traffic completed:
   Signals: %d (rejected: %d)
   Tags: %d (succeeded: %d, rejected: %d, failed: %d)
`, stats.SignalsSubmitted, stats.SignalsRejected,
		stats.TagsAttempted, stats.TagsSucceeded, stats.TagsRejected, stats.TagsFailed)

	return nil
}

// fetchSnapshot retrieves the current snapshot of a room.
func fetchSnapshot(ctx context.Context, client *HTTPClient, baseURL, roomID string) (*snapshotResponse, error) {
	var snap snapshotResponse
	url := fmt.Sprintf("%s/rooms/%s/state", baseURL, roomID)
	if err := client.getJSON(ctx, url, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
