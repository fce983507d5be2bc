package scheduler

import (
	"sync"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
)

// EventKind enumerates the subscribable notifications of spec §6.
type EventKind int

const (
	EventChunkStateChanged EventKind = iota
	EventBoundaryConflict
	EventContradiction
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Kind     EventKind
	Chunk    coords.ChunkCoord
	State    wfc.LifecycleState
	Conflict *wfc.BoundaryConflict
	Err      error
}

// EventBus is a minimal typed pub-sub, generalising the teacher's
// DamageSummary accumulate-then-report pattern
// (chunk-server/internal/world/damage.go) into a registration API instead
// of a single fat callback.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventKind][]func(Event)

	recentMu sync.Mutex
	recent   []Event
	maxKept  int
}

// NewEventBus returns a bus that keeps the last maxKept events (spec §7:
// "the scheduler surfaces counts and the last N events to subscribers").
func NewEventBus(maxKept int) *EventBus {
	if maxKept <= 0 {
		maxKept = 100
	}
	return &EventBus{subscribers: make(map[EventKind][]func(Event)), maxKept: maxKept}
}

// Subscribe registers fn to be called for every event of kind.
func (b *EventBus) Subscribe(kind EventKind, fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], fn)
}

// Publish notifies every subscriber of kind and records the event.
func (b *EventBus) Publish(ev Event) {
	b.recentMu.Lock()
	b.recent = append(b.recent, ev)
	if len(b.recent) > b.maxKept {
		b.recent = b.recent[len(b.recent)-b.maxKept:]
	}
	b.recentMu.Unlock()

	b.mu.RLock()
	subs := make([]func(Event), len(b.subscribers[ev.Kind]))
	copy(subs, b.subscribers[ev.Kind])
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Recent returns a copy of the last N published events.
func (b *EventBus) Recent() []Event {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()
	out := make([]Event, len(b.recent))
	copy(out, b.recent)
	return out
}
