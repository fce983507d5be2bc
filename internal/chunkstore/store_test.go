package chunkstore

import (
	"testing"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

func TestCreateLinksExistingNeighbours(t *testing.T) {
	s := New()
	origin := coords.ChunkCoord{X: 0, Y: 0, Z: 0}
	east := coords.ChunkCoord{X: 1, Y: 0, Z: 0}

	s.Create(origin, 4, 2, 0, 100, 1.0)
	s.Create(east, 4, 2, 0, 100, 1.0)

	a, _ := s.Get(origin)
	b, _ := s.Get(east)

	if _, ok := a.Neighbour(coords.DirPosX); !ok {
		t.Fatalf("expected origin to be linked to its +X neighbour")
	}
	if _, ok := b.Neighbour(coords.DirNegX); !ok {
		t.Fatalf("expected the neighbour to be linked back via -X")
	}
}

func TestRemoveSeversNeighbourLinks(t *testing.T) {
	s := New()
	origin := coords.ChunkCoord{X: 0, Y: 0, Z: 0}
	east := coords.ChunkCoord{X: 1, Y: 0, Z: 0}

	s.Create(origin, 4, 2, 0, 100, 1.0)
	s.Create(east, 4, 2, 0, 100, 1.0)
	s.Remove(origin)

	if _, ok := s.Get(origin); ok {
		t.Fatalf("expected origin to be gone after Remove")
	}
	b, _ := s.Get(east)
	if _, ok := b.Neighbour(coords.DirNegX); ok {
		t.Fatalf("expected the neighbour's link back to origin to be severed")
	}
}

func TestSnapshotReflectsCollapsedCells(t *testing.T) {
	s := New()
	coord := coords.ChunkCoord{}
	chunk := s.Create(coord, 2, 2, 0, 100, 1.0)
	chunk.Lock()
	chunk.Grid.CollapseCell(0, 1)
	chunk.Unlock()

	view, ok := s.Snapshot(coord)
	if !ok {
		t.Fatalf("expected a snapshot for a loaded chunk")
	}
	if view.States[0] != 1 {
		t.Fatalf("States[0] = %d, want 1", view.States[0])
	}
	for i := 1; i < len(view.States); i++ {
		if view.States[i] != -1 {
			t.Fatalf("States[%d] = %d, want -1 (uncollapsed)", i, view.States[i])
		}
	}
}

func TestCoordsAndLen(t *testing.T) {
	s := New()
	if s.Len() != 0 {
		t.Fatalf("expected an empty store to have Len() == 0")
	}
	s.Create(coords.ChunkCoord{X: 0}, 2, 2, 0, 10, 1.0)
	s.Create(coords.ChunkCoord{X: 1}, 2, 2, 0, 10, 1.0)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if len(s.Coords()) != 2 {
		t.Fatalf("Coords() length = %d, want 2", len(s.Coords()))
	}
}
