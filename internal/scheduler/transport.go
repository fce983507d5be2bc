package scheduler

import (
	"sync"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
)

// transportQueue accumulates outbound cross-boundary PropagationEvents by
// destination chunk and drains them under a tick, the same
// "accumulate, then batch-drain" shape the teacher uses for dimension
// migrations in chunk-server/internal/migration/queue.go.
type transportQueue struct {
	mu      sync.Mutex
	pending map[coords.ChunkCoord][]wfc.PropagationEvent
}

func newTransportQueue() *transportQueue {
	return &transportQueue{pending: make(map[coords.ChunkCoord][]wfc.PropagationEvent)}
}

// Enqueue appends an outbound event under its target chunk.
func (q *transportQueue) Enqueue(ev wfc.PropagationEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[ev.TargetChunk] = append(q.pending[ev.TargetChunk], ev)
}

// Drain removes and returns every pending event for chunk.
func (q *transportQueue) Drain(chunk coords.ChunkCoord) []wfc.PropagationEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	events, ok := q.pending[chunk]
	if !ok {
		return nil
	}
	delete(q.pending, chunk)
	return events
}

// PendingChunks returns every destination chunk with at least one queued
// event.
func (q *transportQueue) PendingChunks() []coords.ChunkCoord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]coords.ChunkCoord, 0, len(q.pending))
	for c, events := range q.pending {
		if len(events) > 0 {
			out = append(out, c)
		}
	}
	return out
}
