package wfc

import (
	"sync"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

// LifecycleState is a chunk's position in the state machine of spec §4.3:
// None -> Loading -> Collapsing -> Active -> (Unloading) -> None.
type LifecycleState int

const (
	StateNone LifecycleState = iota
	StateLoading
	StateCollapsing
	StateActive
	StateUnloading
)

func (s LifecycleState) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateLoading:
		return "Loading"
	case StateCollapsing:
		return "Collapsing"
	case StateActive:
		return "Active"
	case StateUnloading:
		return "Unloading"
	default:
		return "Unknown"
	}
}

// Chunk is a fixed cubic side-C block of cells: the unit of scheduling and
// ownership (spec §3). Neighbour links are plain ChunkCoord values resolved
// through the ChunkStore at use time rather than pointers, breaking the
// cyclic chunk<->neighbour reference the source used (spec §9).
type Chunk struct {
	Coord coords.ChunkCoord
	Grid  *CellGrid

	NumStates           int
	LODLevel            int
	MaxIterations        int
	ConstraintInfluence float64

	mu             sync.RWMutex
	state          LifecycleState
	neighbours     map[coords.Direction]coords.ChunkCoord
	buffers        map[coords.Direction]*BoundaryBuffer
	degraded       map[int]bool // cell idx -> degraded (best-effort) flag
	fullyCollapsed bool

	// writeMu is the single exclusive lock a worker holds for the
	// duration of one job (spec §4.8). Kept separate from mu, which only
	// guards cheap metadata reads/writes, so a snapshot read of metadata
	// never blocks behind an in-flight job.
	writeMu sync.Mutex
}

// NewChunk allocates a chunk's cell grid and marks it Loading. Boundary
// cells are tagged with IsBoundary/BoundaryDir per spec §3.
func NewChunk(coord coords.ChunkCoord, side, numStates int, lodLevel int, maxIterations int, constraintInfluence float64) *Chunk {
	grid := NewCellGrid(side, numStates)
	c := &Chunk{
		Coord:               coord,
		Grid:                grid,
		NumStates:           numStates,
		LODLevel:            lodLevel,
		MaxIterations:       maxIterations,
		ConstraintInfluence: constraintInfluence,
		state:               StateLoading,
		neighbours:          make(map[coords.Direction]coords.ChunkCoord),
		buffers:             make(map[coords.Direction]*BoundaryBuffer),
		degraded:            make(map[int]bool),
	}
	tagBoundaryCells(grid)
	return c
}

func tagBoundaryCells(grid *CellGrid) {
	side := grid.Side()
	for _, d := range coords.AllDirections() {
		for _, loc := range FaceEnumeration(d, side) {
			cell := grid.GetAt(loc)
			cell.IsBoundary = true
			cell.HasBoundary = true
			cell.BoundaryDir = d
		}
	}
}

// State returns the chunk's current lifecycle state.
func (c *Chunk) State() LifecycleState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState transitions the chunk; only the scheduler drives this (spec §4.3).
func (c *Chunk) SetState(s LifecycleState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// FullyCollapsed reports whether every cell has collapsed, or the chunk's
// iteration budget was exhausted with the engine marking it so.
func (c *Chunk) FullyCollapsed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fullyCollapsed
}

// SetFullyCollapsed records the terminal collapse/budget status.
func (c *Chunk) SetFullyCollapsed(v bool) {
	c.mu.Lock()
	c.fullyCollapsed = v
	c.mu.Unlock()
}

// LinkNeighbour records that a neighbour chunk exists in direction d and
// ensures a BoundaryBuffer is allocated for that face.
func (c *Chunk) LinkNeighbour(d coords.Direction, neighbour coords.ChunkCoord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.neighbours[d] = neighbour
	if _, ok := c.buffers[d]; !ok {
		c.buffers[d] = NewBoundaryBuffer(d, c.Grid, c.NumStates)
	}
}

// UnlinkNeighbour severs the link in direction d (spec §4.6: severed on
// removal).
func (c *Chunk) UnlinkNeighbour(d coords.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.neighbours, d)
	delete(c.buffers, d)
}

// Neighbour returns the neighbour chunk coordinate in direction d, if linked.
func (c *Chunk) Neighbour(d coords.Direction) (coords.ChunkCoord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.neighbours[d]
	return coord, ok
}

// Neighbours returns a snapshot of every linked direction.
func (c *Chunk) Neighbours() map[coords.Direction]coords.ChunkCoord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[coords.Direction]coords.ChunkCoord, len(c.neighbours))
	for d, coord := range c.neighbours {
		out[d] = coord
	}
	return out
}

// Buffer returns the BoundaryBuffer for direction d, if a neighbour is linked.
func (c *Chunk) Buffer(d coords.Direction) (*BoundaryBuffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buffers[d]
	return b, ok
}

// PublishBoundaryFaces snapshots every linked face's own cells into its
// BoundaryBuffer for neighbours to read. Callers must already hold this
// chunk's own writer lock (spec §5: a chunk only ever touches its own
// grid and publishes the result, never reaches into a neighbour's).
func (c *Chunk) PublishBoundaryFaces() {
	c.mu.RLock()
	buffers := make(map[coords.Direction]*BoundaryBuffer, len(c.buffers))
	for d, b := range c.buffers {
		buffers[d] = b
	}
	c.mu.RUnlock()

	for _, b := range buffers {
		b.PublishOwnFace(FaceStates(c.Grid, b.OwnerFace))
	}
}

// MarkDegraded tags a cell as best-effort / invariant-broken after conflict
// resolution (spec §4.4, glossary "Degraded").
func (c *Chunk) MarkDegraded(cellIdx int) {
	c.mu.Lock()
	c.degraded[cellIdx] = true
	c.mu.Unlock()
}

// IsDegraded reports whether a cell was tagged degraded.
func (c *Chunk) IsDegraded(cellIdx int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded[cellIdx]
}

// DegradedCount reports how many cells in this chunk are degraded.
func (c *Chunk) DegradedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.degraded)
}

// Lock acquires the chunk's exclusive writer lock, the single point of
// mutual exclusion a worker holds for the duration of one job (spec §4.8,
// §5). It is a plain sync.Mutex on top of the RWMutex guarding metadata,
// so metadata readers (State, FullyCollapsed, Neighbour, IsDegraded) never
// block behind a whole job. Store.Snapshot does take this lock and so
// waits for an in-flight job to finish.
func (c *Chunk) Lock() {
	c.writeMu.Lock()
}

func (c *Chunk) Unlock() {
	c.writeMu.Unlock()
}
