package wfc

import (
	"testing"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

func TestCellGridIndexRoundTrip(t *testing.T) {
	g := NewCellGrid(4, 2)
	for _, loc := range []coords.LocalCoord{{X: 0, Y: 0, Z: 0}, {X: 3, Y: 2, Z: 1}, {X: 1, Y: 3, Z: 3}} {
		idx := g.IndexOf(loc)
		_, got := g.GetByIndex(idx)
		if got != loc {
			t.Fatalf("IndexOf/GetByIndex round trip: got %v, want %v", got, loc)
		}
	}
}

func TestCellGridCollapseCellUpdatesEntropy(t *testing.T) {
	g := NewCellGrid(2, 3)
	idx := g.IndexOf(coords.LocalCoord{X: 0, Y: 0, Z: 0})
	g.CollapseCell(idx, 1)

	cell, _ := g.GetByIndex(idx)
	if !cell.Collapsed || cell.State != 1 || cell.Entropy != 1 {
		t.Fatalf("unexpected cell after collapse: %+v", cell)
	}
}

func TestCellGridSetPossibleDerivesCollapsedFlag(t *testing.T) {
	g := NewCellGrid(2, 3)
	ps := NewPossibleSet(3)
	ps.Add(2)
	g.SetPossible(0, ps)

	cell, _ := g.GetByIndex(0)
	if !cell.Collapsed || cell.State != 2 {
		t.Fatalf("expected singleton possible set to mark cell collapsed at state 2, got %+v", cell)
	}

	full := FullPossibleSet(3)
	g.SetPossible(0, full)
	cell, _ = g.GetByIndex(0)
	if cell.Collapsed {
		t.Fatalf("expected full possible set to leave the cell uncollapsed")
	}
}

func TestAllCollapsed(t *testing.T) {
	g := NewCellGrid(2, 2)
	if g.AllCollapsed() {
		t.Fatalf("fresh grid should not report all collapsed")
	}
	for i := 0; i < g.Len(); i++ {
		g.CollapseCell(i, 0)
	}
	if !g.AllCollapsed() {
		t.Fatalf("expected grid to report all collapsed once every cell is")
	}
}
