// Package service provides the core game service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	telemetryqueue "github.com/okian/proxtag/internal/adapters/mq/queue"
	workerpool "github.com/okian/proxtag/internal/adapters/mq/worker"
	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/internal/domain/signal"
	"github.com/okian/proxtag/internal/game"
	"github.com/okian/proxtag/pkg/logger"
	"github.com/okian/proxtag/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize       = 4096
	defaultSweepInterval   = 30 * time.Second
	defaultIdleTimeout     = 2 * time.Minute
	defaultMaxRecentEvents = 100
)

// Service wires the world, the telemetry pipeline, and the background
// sweeper together behind the surface the HTTP API consumes.
type Service struct {
	mu sync.RWMutex

	// Core components
	world      *game.World
	queue      telemetryqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	subscriberBuffer int
	sweepInterval    time.Duration
	idleTimeout      time.Duration
	defaults         game.Defaults
	referencePower   float64
	pathLossExponent float64
	codeLength       int
	codeRetries      int
	eventLogSize     int
	maxRecentEvents  int

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of telemetry worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the telemetry queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber snapshot channel depth.
func WithSubscriberBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.subscriberBuffer = size
		}
	}
}

// WithSweepInterval sets how often the inactivity sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithIdleTimeout sets how long a player may be silent before being marked
// offline.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithGameDefaults sets the global threshold, cooldown, and immunity applied
// when a room carries no override.
func WithGameDefaults(d game.Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithSignalCalibration sets the path-loss model parameters.
func WithSignalCalibration(referencePower, exponent float64) Option {
	return func(s *Service) {
		if referencePower != 0 {
			s.referencePower = referencePower
		}
		if exponent > 0 {
			s.pathLossExponent = exponent
		}
	}
}

// WithRoomCodes sets the generated code length and collision retry bound.
func WithRoomCodes(length, retries int) Option {
	return func(s *Service) {
		if length > 0 {
			s.codeLength = length
		}
		if retries > 0 {
			s.codeRetries = retries
		}
	}
}

// WithEventLogSize bounds each room's recent-event ring.
func WithEventLogSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.eventLogSize = size
		}
	}
}

// WithMaxRecentEvents caps the limit a recent-events read may request.
func WithMaxRecentEvents(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecentEvents = n
		}
	}
}

// WithWorld injects a prebuilt world. Used by tests.
func WithWorld(w *game.World) Option {
	return func(s *Service) {
		if w != nil {
			s.world = w
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       defaultQueueSize,
		sweepInterval:   defaultSweepInterval,
		idleTimeout:     defaultIdleTimeout,
		maxRecentEvents: defaultMaxRecentEvents,
		stopCh:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting tag arbitration service...")

	if s.world == nil {
		worldOpts := []game.Option{
			game.WithDefaults(s.defaults),
			game.WithLogger(s.logger.Named("world")),
		}
		if s.referencePower != 0 || s.pathLossExponent > 0 {
			worldOpts = append(worldOpts, game.WithEstimator(signal.NewEstimator(
				signal.WithReferencePower(s.referencePower),
				signal.WithPathLossExponent(s.pathLossExponent),
			)))
		}
		if s.subscriberBuffer > 0 {
			worldOpts = append(worldOpts, game.WithBroadcaster(game.NewBroadcaster(
				game.WithSubscriberBuffer(s.subscriberBuffer),
			)))
		}
		if s.codeLength > 0 || s.codeRetries > 0 {
			worldOpts = append(worldOpts, game.WithCodeLength(s.codeLength), game.WithCodeRetries(s.codeRetries))
		}
		if s.eventLogSize > 0 {
			worldOpts = append(worldOpts, game.WithEventLogSize(s.eventLogSize))
		}
		s.world = game.NewWorld(worldOpts...)
	}

	s.queue = telemetryqueue.NewInMemoryQueue(
		telemetryqueue.WithCapacity(s.queueSize),
		telemetryqueue.WithBufferSize(s.queueSize),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.world.Telemetry(), s.world, s.world.Broadcaster())
	s.workerPool.Start(ctx)

	go s.sweepLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "tag arbitration service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("sweepInterval", s.sweepInterval),
		logger.Duration("idleTimeout", s.idleTimeout),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping tag arbitration service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(context.Background())
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "tag arbitration service stopped")
}

// sweepLoop periodically marks silent players offline and refreshes the
// room and player gauges.
func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			swept := s.world.SweepInactive(ctx, s.idleTimeout)
			if swept > 0 {
				s.logger.Debug(ctx, "swept inactive players", logger.Int("count", swept))
			}
		}
	}
}

// CreatePlayer registers a player on first contact from a device identity.
func (s *Service) CreatePlayer(ctx context.Context, deviceToken, name string) (*model.Player, error) {
	return s.world.CreatePlayer(ctx, deviceToken, name)
}

// Player returns a copy of the player record.
func (s *Service) Player(ctx context.Context, playerID string) (*model.Player, error) {
	return s.world.Player(ctx, playerID)
}

// CreateRoom creates a lobby room with a fresh join code.
func (s *Service) CreateRoom(ctx context.Context, creatorID, name string, settings model.RoomSettings) (*model.Room, error) {
	return s.world.CreateRoom(ctx, creatorID, name, settings)
}

// JoinRoom adds a player to the room addressed by its join code.
func (s *Service) JoinRoom(ctx context.Context, playerID, code string) (*model.Room, error) {
	return s.world.JoinRoom(ctx, playerID, code)
}

// LeaveRoom removes a player from their current room.
func (s *Service) LeaveRoom(ctx context.Context, playerID string) error {
	return s.world.LeaveRoom(ctx, playerID)
}

// StartGame transitions a lobby room to running and picks the first it-holder.
func (s *Service) StartGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	return s.world.StartGame(ctx, roomID)
}

// FinishGame transitions a running room to finished.
func (s *Service) FinishGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	return s.world.FinishGame(ctx, roomID)
}

// DeleteRoom removes a room and detaches its members.
func (s *Service) DeleteRoom(ctx context.Context, roomID string) error {
	return s.world.DeleteRoom(ctx, roomID)
}

// AttemptTag arbitrates one tag attempt.
func (s *Service) AttemptTag(ctx context.Context, attackerID, defenderID string) (*game.TagResult, error) {
	return s.world.AttemptTag(ctx, attackerID, defenderID)
}

// RoomState returns the current snapshot of a room.
func (s *Service) RoomState(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	return s.world.RoomState(ctx, roomID)
}

// RoomByCode returns the current snapshot of the room owning a join code.
func (s *Service) RoomByCode(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	return s.world.RoomByCode(ctx, code)
}

// RecentEvents returns a room's most recent tag events, newest first. The
// requested limit is clamped to the configured maximum.
func (s *Service) RecentEvents(ctx context.Context, roomID string, limit int) ([]model.TagEvent, error) {
	if s.maxRecentEvents > 0 && limit > s.maxRecentEvents {
		limit = s.maxRecentEvents
	}
	return s.world.RecentEvents(ctx, roomID, limit)
}

// EnqueueTelemetry submits a telemetry update for asynchronous processing.
// Returns false when the queue is saturated.
func (s *Service) EnqueueTelemetry(ctx context.Context, u model.TelemetryUpdate) bool {
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return false
	}
	return q.Enqueue(ctx, u)
}

// Subscribe attaches a snapshot subscription to a room.
func (s *Service) Subscribe(ctx context.Context, roomID string) (*game.Subscription, error) {
	if _, err := s.world.RoomState(ctx, roomID); err != nil {
		return nil, err
	}
	return s.world.Broadcaster().Subscribe(roomID), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		for k, v := range s.world.Stats() {
			stats[k] = v
		}
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["subscribers"] = s.world.Broadcaster().SubscriberCount()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateSubscriberCount(s.world.Broadcaster().SubscriberCount())
	}

	return stats
}
