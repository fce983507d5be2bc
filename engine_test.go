package wfcterrain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firestar-voxel/wfcterrain/internal/constraint"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/scheduler"
	"github.com/firestar-voxel/wfcterrain/internal/wfcconfig"
)

func TestEngineNewRejectsInvalidConfig(t *testing.T) {
	cfg := wfcconfig.Default()
	cfg.ChunkSize = 0
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestEngineTicksLoadAndCollapseChunks(t *testing.T) {
	cfg := wfcconfig.Default()
	eng, err := New(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	stateChanges := make(chan scheduler.Event, 64)
	eng.SubscribeEvents(scheduler.EventChunkStateChanged, func(ev scheduler.Event) {
		select {
		case stateChanges <- ev:
		default:
		}
	})

	eng.UpdateViewer(coords.WorldPos{}, coords.WorldPos{X: 1})

	require.Eventually(t, func() bool {
		eng.Tick()
		return eng.LoadedChunks() > 0
	}, 2*time.Second, 10*time.Millisecond, "expected at least one chunk to load near the viewer")

	select {
	case <-stateChanges:
	case <-time.After(time.Second):
		t.Fatalf("expected at least one chunk state changed event")
	}
}

func TestEngineSnapshotChunkReflectsLoadedState(t *testing.T) {
	cfg := wfcconfig.Default()
	eng, err := New(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	eng.UpdateViewer(coords.WorldPos{}, coords.WorldPos{})
	eng.Tick()

	found := false
	for x := -2; x <= 2 && !found; x++ {
		for y := -2; y <= 2 && !found; y++ {
			for z := -2; z <= 2 && !found; z++ {
				if _, ok := eng.SnapshotChunk(coords.ChunkCoord{X: x, Y: y, Z: z}); ok {
					found = true
				}
			}
		}
	}
	require.True(t, found, "expected at least one loaded chunk to be snapshot-able near the origin")
}

func TestEngineConstraintRegistrationRoundTrips(t *testing.T) {
	cfg := wfcconfig.Default()
	eng, err := New(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	g := eng.HeightCurve(1.0)
	require.NotNil(t, g)

	key := constraint.LocalKey{Chunk: coords.ChunkCoord{}, Cell: coords.LocalCoord{}}
	eng.SetLocalConstraint(key, map[coords.State]float64{0: 1})
	eng.RemoveLocalConstraint(key)
}
