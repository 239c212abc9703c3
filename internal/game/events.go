package game

import "github.com/okian/proxtag/internal/domain/model"

// eventLog is a bounded, append-only ring of tag events for one room.
// It serves recent-history queries only and is not authoritative state.
type eventLog struct {
	buf  []model.TagEvent
	next int
	size int
}

func newEventLog(capacity int) *eventLog {
	if capacity < 1 {
		capacity = 1
	}
	return &eventLog{buf: make([]model.TagEvent, capacity)}
}

// append records an event, evicting the oldest once the ring is full.
func (l *eventLog) append(e model.TagEvent) {
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
}

// recent returns up to limit events, newest first.
func (l *eventLog) recent(limit int) []model.TagEvent {
	if limit <= 0 || limit > l.size {
		limit = l.size
	}
	out := make([]model.TagEvent, 0, limit)
	idx := l.next - 1
	for i := 0; i < limit; i++ {
		if idx < 0 {
			idx += len(l.buf)
		}
		out = append(out, l.buf[idx])
		idx--
	}
	return out
}

// count returns the number of retained events.
func (l *eventLog) count() int {
	return l.size
}
