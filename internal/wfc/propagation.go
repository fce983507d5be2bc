package wfc

import (
	"container/heap"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

// PropagationEvent is a pending constraint update, intra- or inter-chunk
// (spec §3). Priority favours low-entropy targets; cross-boundary events
// get a constant boost so boundary coherence is resolved promptly.
type PropagationEvent struct {
	TargetCellIdx   int
	TargetChunk     coords.ChunkCoord
	SourceChunk     coords.ChunkCoord
	OldPossible     PossibleSet
	NewPossible     PossibleSet
	CrossesBoundary bool
	Priority        float32

	seq   uint64
	index int // heap bookkeeping
}

// crossBoundaryBoost is subtracted from an event's priority (lower sorts
// first) when it crosses a chunk boundary, per spec §4.5.
const crossBoundaryBoost float32 = 1000.0

// PropagationQueue is a min-heap keyed by (priority, sequence_number),
// following the teacher's container/heap idiom in
// chunk-server/internal/pathfinding/navigator.go's blockQueue. Events are
// deduplicated by target cell: a newer event for the same cell supersedes
// an older one, which is invalidated lazily at pop time instead of being
// removed from the middle of the heap.
type PropagationQueue struct {
	items   eventHeap
	nextSeq uint64
	latest  map[int]uint64 // target cell idx -> sequence number of the live event
}

// NewPropagationQueue returns an empty queue.
func NewPropagationQueue() *PropagationQueue {
	q := &PropagationQueue{latest: make(map[int]uint64)}
	heap.Init(&q.items)
	return q
}

// Push enqueues an event, boosting cross-boundary priority and assigning it
// a fresh sequence number that supersedes any prior event for the same
// target cell.
func (q *PropagationQueue) Push(ev PropagationEvent) {
	if ev.CrossesBoundary {
		ev.Priority -= crossBoundaryBoost
	}
	q.nextSeq++
	ev.seq = q.nextSeq
	q.latest[ev.TargetCellIdx] = ev.seq
	heap.Push(&q.items, &ev)
}

// Pop removes and returns the highest-priority live event, skipping any
// stale (superseded) events lazily. Returns false when the queue is empty
// of live events.
func (q *PropagationQueue) Pop() (PropagationEvent, bool) {
	for q.items.Len() > 0 {
		ev := heap.Pop(&q.items).(*PropagationEvent)
		if q.latest[ev.TargetCellIdx] != ev.seq {
			continue // stale: a newer event for this cell was enqueued since
		}
		delete(q.latest, ev.TargetCellIdx)
		return *ev, true
	}
	return PropagationEvent{}, false
}

// Len reports the number of entries still in the heap, including any not
// yet recognised as stale. Callers checking "queue empty" should prefer
// repeated Pop over Len for correctness.
func (q *PropagationQueue) Len() int {
	return q.items.Len()
}

type eventHeap []*PropagationEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	item := x.(*PropagationEvent)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
