package game

import (
	"context"
	"sync"

	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/pkg/logger"
	"github.com/okian/proxtag/pkg/metrics"
)

// defaultSubscriberBuffer is the per-subscriber snapshot channel depth.
const defaultSubscriberBuffer = 16

// Subscription is one subscriber's view of a room's snapshot stream.
// C yields complete snapshots until Close is called or the room is deleted.
type Subscription struct {
	C <-chan model.RoomSnapshot

	ch     chan model.RoomSnapshot
	once   sync.Once
	detach func()
}

// Close unsubscribes and releases the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.detach()
		close(s.ch)
	})
}

// Broadcaster fans room snapshots out to subscribers. Publishing is
// fire-and-forget: a subscriber whose buffer is full misses that snapshot
// and catches up on the next one, since every emission carries full state.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	total  int
	log    logger.Logger
}

// BroadcasterOption applies a configuration option to the Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithSubscriberBuffer sets the per-subscriber channel depth.
func WithSubscriberBuffer(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithBroadcastLogger sets the broadcaster's logger.
func WithBroadcastLogger(l logger.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBroadcaster creates a snapshot broadcaster.
func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber for a room's snapshot stream.
func (b *Broadcaster) Subscribe(roomID string) *Subscription {
	sub := &Subscription{ch: make(chan model.RoomSnapshot, b.buffer)}
	sub.C = sub.ch
	sub.detach = func() { b.remove(roomID, sub) }

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[roomID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[roomID] = set
	}
	set[sub] = struct{}{}
	b.total++
	metrics.UpdateSubscriberCount(b.total)
	return sub
}

func (b *Broadcaster) remove(roomID string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[roomID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, roomID)
	}
	b.total--
	metrics.UpdateSubscriberCount(b.total)
}

// Publish delivers a snapshot to every subscriber of the room without
// blocking. A slow subscriber drops the snapshot, never the mutation.
func (b *Broadcaster) Publish(ctx context.Context, snap model.RoomSnapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[snap.RoomID] {
		select {
		case sub.ch <- snap:
			metrics.RecordSnapshotPublished()
		default:
			metrics.RecordSnapshotDropped()
			if b.log != nil {
				b.log.Debug(ctx, "subscriber buffer full, snapshot dropped",
					logger.String("roomID", snap.RoomID),
				)
			}
		}
	}
}

// CloseRoom terminates every subscription for a room, typically on deletion.
func (b *Broadcaster) CloseRoom(roomID string) {
	b.mu.Lock()
	set := b.subs[roomID]
	delete(b.subs, roomID)
	b.total -= len(set)
	metrics.UpdateSubscriberCount(b.total)
	b.mu.Unlock()

	// Close outside the lock; Subscription.Close re-enters remove, which
	// must not find the set again.
	for sub := range set {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// SubscriberCount returns the number of live subscriptions across rooms.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}
