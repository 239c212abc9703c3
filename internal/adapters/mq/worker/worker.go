// Package worker drains the telemetry queue and applies updates to the game
// state asynchronously.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/proxtag/internal/adapters/mq/queue"
	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/pkg/logger"
	"github.com/okian/proxtag/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Update abstracts what workers read off the queue.
type Update = model.TelemetryUpdate

// Recorder stores raw telemetry samples.
type Recorder interface {
	RecordSignal(ctx context.Context, playerID string, rssi int, at time.Time)
	RecordMotion(ctx context.Context, playerID string, v model.MotionVector, at time.Time)
}

// Presence refreshes a player's last-seen time and reports the snapshot of
// the player's running room when one should be rebroadcast.
type Presence interface {
	TouchPlayer(ctx context.Context, playerID string, now time.Time) (*model.RoomSnapshot, bool)
}

// Publisher fans snapshots out to room subscribers.
type Publisher interface {
	Publish(ctx context.Context, snap model.RoomSnapshot)
}

// Queue defines how workers receive updates.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Update
}

// Worker processes telemetry updates using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining updates before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing telemetry updates.
type InMemoryWorker struct {
	queue     Queue
	recorder  Recorder
	presence  Presence
	publisher Publisher
	name      string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, recorder Recorder, presence Presence, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		recorder:  recorder,
		presence:  presence,
		publisher: publisher,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	updateChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case update, ok := <-updateChan:
			if !ok {
				return
			}

			if err := w.processUpdate(ctx, update); err != nil {
				w.logger.Error(ctx, "error processing telemetry update", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processUpdate handles a single telemetry update.
func (w *InMemoryWorker) processUpdate(ctx context.Context, update queue.Update) error {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	at := update.At
	if at.IsZero() {
		at = time.Now()
	}

	switch update.Kind {
	case model.TelemetrySignal:
		w.recorder.RecordSignal(ctx, update.PlayerID, update.RSSI, at)
	case model.TelemetryMotion:
		w.recorder.RecordMotion(ctx, update.PlayerID, update.Vector, at)
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "unknown_kind")
		return fmt.Errorf("unknown telemetry kind %q for player %s", update.Kind, update.PlayerID)
	}
	metrics.RecordTelemetryUpdate(string(update.Kind))

	// Presence refresh may report a running-room snapshot to rebroadcast.
	if snap, ok := w.presence.TouchPlayer(ctx, update.PlayerID, at); ok && snap != nil {
		w.publisher.Publish(ctx, *snap)
	}

	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	recorder  Recorder
	presence  Presence
	publisher Publisher

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, recorder Recorder, presence Presence, publisher Publisher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		recorder:  recorder,
		presence:  presence,
		publisher: publisher,
		shutdown:  make(chan struct{}),
		logger:    logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			recorder,
			presence,
			publisher,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// Close the queue first so workers drain what remains and exit.
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
