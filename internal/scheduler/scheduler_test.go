package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firestar-voxel/wfcterrain/internal/chunkstore"
	"github.com/firestar-voxel/wfcterrain/internal/constraint"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
)

func uniformAdjacency3(t *testing.T, numStates int) *wfc.AdjacencyTable {
	t.Helper()
	matrix := make([][][]bool, numStates)
	for a := range matrix {
		matrix[a] = make([][]bool, numStates)
		for b := range matrix[a] {
			matrix[a][b] = make([]bool, 6)
			for d := range matrix[a][b] {
				matrix[a][b][d] = true
			}
		}
	}
	adj, err := wfc.NewAdjacencyTable(numStates, matrix)
	require.NoError(t, err)
	return adj
}

func newTestScheduler(t *testing.T) (*Scheduler, *chunkstore.Store, *EventBus) {
	t.Helper()
	store := chunkstore.New()
	adj := uniformAdjacency3(t, 2)
	model := constraint.NewModel()
	engine := wfc.NewEngine(adj, model, 7, nil)
	bus := NewEventBus(64)

	cfg := Config{
		ChunkSide:              4,
		NumStates:              2,
		LODMaxIterations:       []int{512, 64},
		LODConstraintInfluence: []float64{1.0, 0.5},
		LODDistanceThresholds:  []float64{20},
		LoadDistance:           10,
		UnloadDistance:         20,
		MaxConcurrentChunks:    4,
		Workers:                2,
		LookAhead:              time.Second,
	}
	s := New(cfg, store, engine, model, bus, nil)
	return s, store, bus
}

func TestPriorityScoreFavoursCloserChunks(t *testing.T) {
	p := coords.WorldPos{}
	v := coords.WorldPos{}
	near := priorityScore(coords.WorldPos{X: 1}, p, v, false)
	far := priorityScore(coords.WorldPos{X: 10}, p, v, false)
	require.Greater(t, near, far)
}

func TestPriorityScoreFavoursHeadingTowardChunk(t *testing.T) {
	p := coords.WorldPos{}
	ahead := priorityScore(coords.WorldPos{X: 5}, p, coords.WorldPos{X: 1}, false)
	behind := priorityScore(coords.WorldPos{X: -5}, p, coords.WorldPos{X: 1}, false)
	require.Greater(t, ahead, behind)
}

func TestPriorityScoreBoostsPartiallyCollapsedChunks(t *testing.T) {
	p := coords.WorldPos{}
	center := coords.WorldPos{X: 5}
	v := coords.WorldPos{}
	plain := priorityScore(center, p, v, false)
	boosted := priorityScore(center, p, v, true)
	require.InDelta(t, plain*partiallyCollapsedBoost, boosted, 1e-9)
}

func TestChunkLessOrdersLexicographically(t *testing.T) {
	require.True(t, chunkLess(coords.ChunkCoord{X: 0, Y: 0, Z: 0}, coords.ChunkCoord{X: 1, Y: 0, Z: 0}))
	require.True(t, chunkLess(coords.ChunkCoord{X: 0, Y: 0, Z: 0}, coords.ChunkCoord{X: 0, Y: 1, Z: 0}))
	require.False(t, chunkLess(coords.ChunkCoord{X: 1, Y: 0, Z: 0}, coords.ChunkCoord{X: 0, Y: 0, Z: 0}))
}

func TestTickLoadsChunksNearViewer(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	defer s.Close()

	s.UpdateViewer(coords.WorldPos{}, coords.WorldPos{})
	s.Tick()

	require.Greater(t, store.Len(), 0, "expected Tick to load at least one chunk near the viewer")
}

func TestTickUnloadsChunksBeyondUnloadDistance(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	defer s.Close()

	far := coords.ChunkCoord{X: 1000, Y: 0, Z: 0}
	store.Create(far, 4, 2, 0, 100, 1.0)

	s.UpdateViewer(coords.WorldPos{}, coords.WorldPos{})
	require.Eventually(t, func() bool {
		s.Tick()
		_, ok := store.Get(far)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "expected the far chunk to be unloaded")
}

func TestUnloadFarRequiresBothCurrentAndPredictedBeyondDistance(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	defer s.Close()

	// A chunk still close to the viewer's real position, but whose
	// predicted look-ahead point (driven by a large velocity) has swung
	// far away, must stay loaded (spec §4.7 step 3: "outside r_unload of
	// both p and p'").
	near := coords.ChunkCoord{X: 0, Y: 0, Z: 0}
	store.Create(near, 4, 2, 0, 100, 1.0)

	current := coords.WorldPos{X: 0}
	predicted := coords.WorldPos{X: 10 * s.cfg.UnloadDistance}

	s.unloadFar(current, predicted)
	s.drainResults()

	_, ok := store.Get(near)
	require.True(t, ok, "expected a chunk near the current position to survive even with a distant predicted position")
}

func TestTickEmitsChunkStateChangedEvents(t *testing.T) {
	s, _, bus := newTestScheduler(t)
	defer s.Close()

	events := make(chan Event, 16)
	bus.Subscribe(EventChunkStateChanged, func(ev Event) { events <- ev })

	s.UpdateViewer(coords.WorldPos{}, coords.WorldPos{})
	s.Tick()

	select {
	case ev := <-events:
		require.Equal(t, EventChunkStateChanged, ev.Kind)
	case <-time.After(time.Second):
		t.Fatalf("expected at least one chunk state change event after Tick")
	}
}

func TestResolveConflictMarksLaterTimestampDegraded(t *testing.T) {
	s, store, bus := newTestScheduler(t)
	defer s.Close()

	a := coords.ChunkCoord{X: 0, Y: 0, Z: 0}
	b := coords.ChunkCoord{X: 1, Y: 0, Z: 0}
	chunkA := store.Create(a, 4, 2, 0, 100, 1.0)
	chunkB := store.Create(b, 4, 2, 0, 100, 1.0)
	chunkA.Grid.CollapseCell(0, 0)

	s.mu.Lock()
	s.collapseStamp[a] = 5
	s.collapseStamp[b] = 2
	s.mu.Unlock()

	conflicts := make(chan Event, 4)
	bus.Subscribe(EventBoundaryConflict, func(ev Event) { conflicts <- ev })

	s.resolveConflict(chunkA, b, coords.DirPosX, 0)

	require.True(t, chunkA.IsDegraded(0), "expected the later-timestamp side to be marked degraded")
	require.False(t, chunkB.IsDegraded(0), "expected the earlier-timestamp side to be left alone")

	select {
	case ev := <-conflicts:
		require.Equal(t, a, ev.Conflict.ChunkA)
		require.Equal(t, b, ev.Conflict.ChunkB)
	case <-time.After(time.Second):
		t.Fatalf("expected a boundary conflict event to be published")
	}
}

func TestResolveConflictMarksOwnerNotDegradedWhenOwnerIsEarlier(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	defer s.Close()

	a := coords.ChunkCoord{X: 0, Y: 0, Z: 0}
	b := coords.ChunkCoord{X: 1, Y: 0, Z: 0}
	chunkA := store.Create(a, 4, 2, 0, 100, 1.0)
	chunkB := store.Create(b, 4, 2, 0, 100, 1.0)
	chunkA.Grid.CollapseCell(0, 0)

	s.mu.Lock()
	s.collapseStamp[a] = 2
	s.collapseStamp[b] = 5
	s.mu.Unlock()

	s.resolveConflict(chunkA, b, coords.DirPosX, 0)

	require.False(t, chunkA.IsDegraded(0), "expected the earlier-timestamp owner to be left alone")
	require.True(t, chunkB.IsDegraded(0), "expected the later-timestamp neighbour to be marked degraded")
}

func TestEnqueueBoundaryWorkDrainsTransportQueueAndSubmitsJob(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	defer s.Close()

	target := coords.ChunkCoord{X: 5, Y: 0, Z: 0}
	store.Create(target, 4, 2, 0, 100, 1.0)

	s.transport.Enqueue(wfc.PropagationEvent{TargetChunk: target})
	require.NotEmpty(t, s.transport.PendingChunks(), "expected the enqueued event to be pending")

	s.enqueueBoundaryWork()

	require.Empty(t, s.transport.PendingChunks(), "expected enqueueBoundaryWork to drain the transport queue")

	select {
	case <-s.pool.Results():
	case <-time.After(time.Second):
		t.Fatalf("expected a PropagateBoundary job to run for the drained target chunk")
	}
}
