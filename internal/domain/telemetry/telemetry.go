// Package telemetry holds the latest sensor sample per player.
//
// The store is a pure data holder: unconditional timestamped overwrite, no
// plausibility validation, no room-membership requirement. Consumers decide
// whether a reading's age invalidates its use.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/okian/proxtag/internal/domain/model"
)

// SignalReading is the latest signal-strength sample for a player.
type SignalReading struct {
	RSSI int
	At   time.Time
}

// MotionSample is the latest motion vector for a player.
type MotionSample struct {
	Vector model.MotionVector
	At     time.Time
}

// Store provides read/write access to per-player sensor state.
type Store interface {
	// RecordSignal overwrites the player's signal-strength sample.
	RecordSignal(ctx context.Context, playerID string, rssi int, now time.Time)

	// RecordMotion overwrites the player's motion sample.
	RecordMotion(ctx context.Context, playerID string, v model.MotionVector, now time.Time)

	// Signal returns the latest signal reading, if any was ever recorded.
	Signal(ctx context.Context, playerID string) (SignalReading, bool)

	// Motion returns the latest motion sample, if any was ever recorded.
	Motion(ctx context.Context, playerID string) (MotionSample, bool)

	// Forget drops all samples for a player.
	Forget(ctx context.Context, playerID string)
}

// inMemoryStore implements Store with maps guarded by a RWMutex. Writes for
// different players carry no ordering relationship and need no cross-player
// coordination.
type inMemoryStore struct {
	mu      sync.RWMutex
	signals map[string]SignalReading
	motions map[string]MotionSample
}

// Option applies a configuration option to the in-memory store.
type Option func(*inMemoryStore)

// WithCapacityHint presizes the internal maps.
func WithCapacityHint(n int) Option {
	return func(s *inMemoryStore) {
		if n > 0 {
			s.signals = make(map[string]SignalReading, n)
			s.motions = make(map[string]MotionSample, n)
		}
	}
}

// NewStore creates an in-memory telemetry store.
func NewStore(opts ...Option) Store {
	s := &inMemoryStore{
		signals: make(map[string]SignalReading),
		motions: make(map[string]MotionSample),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *inMemoryStore) RecordSignal(_ context.Context, playerID string, rssi int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[playerID] = SignalReading{RSSI: rssi, At: now}
}

func (s *inMemoryStore) RecordMotion(_ context.Context, playerID string, v model.MotionVector, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motions[playerID] = MotionSample{Vector: v, At: now}
}

func (s *inMemoryStore) Signal(_ context.Context, playerID string) (SignalReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.signals[playerID]
	return r, ok
}

func (s *inMemoryStore) Motion(_ context.Context, playerID string) (MotionSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.motions[playerID]
	return m, ok
}

func (s *inMemoryStore) Forget(_ context.Context, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signals, playerID)
	delete(s.motions, playerID)
}

// Age returns how old a reading is relative to now.
func (r SignalReading) Age(now time.Time) time.Duration {
	return now.Sub(r.At)
}
