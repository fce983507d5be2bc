package wfc

import "github.com/firestar-voxel/wfcterrain/internal/coords"

// Cell is the smallest addressable unit of a chunk (spec §3). Entropy is
// maintained incrementally as possible shrinks, rather than recomputed by
// counting bits on every read.
type Cell struct {
	Possible    PossibleSet
	Collapsed   bool
	State       coords.State
	Entropy     int
	IsBoundary  bool
	BoundaryDir coords.Direction
	HasBoundary bool
}

// NewCell returns a fresh, fully-uncollapsed cell over numStates states.
func NewCell(numStates int) Cell {
	full := FullPossibleSet(numStates)
	return Cell{Possible: full, Entropy: full.Count()}
}

// Collapse reduces the cell's possible set to {state} and marks it collapsed.
// It does not enqueue propagation; callers (WFCEngine) own that.
func (c *Cell) Collapse(state coords.State) {
	c.Possible.Only(state)
	c.Collapsed = true
	c.State = state
	c.Entropy = 1
}

// Intersect narrows the cell's possible set by mask, updating entropy
// incrementally, and reports whether anything changed. If the set becomes
// a singleton the cell is implicitly collapsed; if it becomes empty the
// caller must surface a Contradiction (entropy 0 is a transient state this
// type allows so the engine can detect and report it).
func (c *Cell) Intersect(mask PossibleSet) bool {
	changed := c.Possible.IntersectInPlace(mask)
	if !changed {
		return false
	}
	c.Entropy = c.Possible.Count()
	if c.Entropy == 1 {
		state, _ := c.Possible.SingleState()
		c.Collapsed = true
		c.State = state
	}
	return true
}

// InContradiction reports whether the cell's possible set is empty.
func (c *Cell) InContradiction() bool {
	return c.Entropy == 0
}
