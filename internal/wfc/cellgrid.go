package wfc

import "github.com/firestar-voxel/wfcterrain/internal/coords"

// CellGrid is a fixed-size C×C×C array of cells in x-major, then y, then z
// order (spec §3), owning entropy bookkeeping for every cell it holds.
type CellGrid struct {
	side      int
	numStates int
	cells     []Cell
}

// NewCellGrid allocates a side×side×side grid with every cell fully
// uncollapsed over numStates states.
func NewCellGrid(side, numStates int) *CellGrid {
	g := &CellGrid{
		side:      side,
		numStates: numStates,
		cells:     make([]Cell, side*side*side),
	}
	for i := range g.cells {
		g.cells[i] = NewCell(numStates)
	}
	return g
}

// Side returns the grid's cubic side length C.
func (g *CellGrid) Side() int { return g.side }

func (g *CellGrid) index(x, y, z int) int {
	return (z*g.side+y)*g.side + x
}

// InBounds reports whether (x,y,z) addresses a cell of this grid.
func (g *CellGrid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.side && y >= 0 && y < g.side && z >= 0 && z < g.side
}

// Get returns a pointer to the cell at local coordinates (x,y,z).
func (g *CellGrid) Get(x, y, z int) *Cell {
	if !g.InBounds(x, y, z) {
		return nil
	}
	return &g.cells[g.index(x, y, z)]
}

// GetAt is the coords.LocalCoord-addressed form of Get.
func (g *CellGrid) GetAt(c coords.LocalCoord) *Cell {
	return g.Get(c.X, c.Y, c.Z)
}

// GetByIndex returns a pointer to the cell at a flat cell index, and the
// local coordinates it corresponds to.
func (g *CellGrid) GetByIndex(idx int) (*Cell, coords.LocalCoord) {
	z := idx / (g.side * g.side)
	rem := idx % (g.side * g.side)
	y := rem / g.side
	x := rem % g.side
	return &g.cells[idx], coords.LocalCoord{X: x, Y: y, Z: z}
}

// IndexOf returns the flat cell index for local coordinates.
func (g *CellGrid) IndexOf(c coords.LocalCoord) int {
	return g.index(c.X, c.Y, c.Z)
}

// Len returns the total number of cells, C^3.
func (g *CellGrid) Len() int {
	return len(g.cells)
}

// IntersectPossible narrows the possible set of the cell at idx by mask,
// reporting whether the cell's state changed (spec §4.1).
func (g *CellGrid) IntersectPossible(idx int, mask PossibleSet) bool {
	return g.cells[idx].Intersect(mask)
}

// CollapseCell sets the cell at idx to a single state.
func (g *CellGrid) CollapseCell(idx int, state coords.State) {
	g.cells[idx].Collapse(state)
}

// SetPossible overwrites the cell at idx's possible set wholesale,
// recomputing its derived Collapsed/State/Entropy fields. Used by wfcio to
// rehydrate a grid from a persisted dump rather than replaying collapses.
func (g *CellGrid) SetPossible(idx int, ps PossibleSet) {
	cell := &g.cells[idx]
	cell.Possible = ps
	cell.Entropy = ps.Count()
	if state, ok := ps.SingleState(); ok {
		cell.Collapsed = true
		cell.State = state
	} else {
		cell.Collapsed = false
	}
}

// AllCollapsed reports whether every cell in the grid has collapsed.
func (g *CellGrid) AllCollapsed() bool {
	for i := range g.cells {
		if !g.cells[i].Collapsed {
			return false
		}
	}
	return true
}

// ForEach visits every cell with its local coordinate.
func (g *CellGrid) ForEach(fn func(coords.LocalCoord, *Cell)) {
	for i := range g.cells {
		_, loc := g.GetByIndex(i)
		fn(loc, &g.cells[i])
	}
}
