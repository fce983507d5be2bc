package wfc

import (
	"sync"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

// FaceEnumeration returns the C*C local coordinates of chunk face d, in the
// fixed, direction-dependent order mandated by spec §4.4: for ±X enumerate
// (y,z) with z fastest; for ±Y enumerate (x,z) with z fastest; for ±Z
// enumerate (x,y) with y fastest. Position i on face d of chunk A always
// pairs with position i on face -d of chunk B, because both faces share
// the same per-axis enumeration function.
func FaceEnumeration(d coords.Direction, side int) []coords.LocalCoord {
	out := make([]coords.LocalCoord, 0, side*side)
	switch d {
	case coords.DirNegX, coords.DirPosX:
		x := 0
		if d == coords.DirPosX {
			x = side - 1
		}
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				out = append(out, coords.LocalCoord{X: x, Y: y, Z: z})
			}
		}
	case coords.DirNegY, coords.DirPosY:
		y := 0
		if d == coords.DirPosY {
			y = side - 1
		}
		for x := 0; x < side; x++ {
			for z := 0; z < side; z++ {
				out = append(out, coords.LocalCoord{X: x, Y: y, Z: z})
			}
		}
	default: // DirNegZ, DirPosZ
		z := 0
		if d == coords.DirPosZ {
			z = side - 1
		}
		for x := 0; x < side; x++ {
			for y := 0; y < side; y++ {
				out = append(out, coords.LocalCoord{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

// BoundaryBuffer mirrors the opposite chunk's boundary face for one
// direction d of an owning chunk (spec §3, §4.4). OwnerFace holds the cell
// indices (into the owner's CellGrid) that make up this face, ownership of
// those cells always remains with the owner; Mirror is a value-copy
// snapshot of the neighbour's opposite face, indexed in the same order.
type BoundaryBuffer struct {
	Dir       coords.Direction
	OwnerFace []int
	numStates int
	mu        sync.RWMutex
	mirror    []PossibleSet
	mirrorSet bool

	// ownFace is a snapshot of this face's own cells, published by the
	// owning chunk while it holds its own writer lock. A neighbour reads it
	// through OwnFace, guarded only by this buffer's mu — never the
	// neighbour's own Chunk.writeMu — so no worker ever holds two chunks'
	// exclusive locks at once (spec §5).
	ownFace []PossibleSet
}

// NewBoundaryBuffer builds a buffer for direction d of grid, capturing the
// flat cell indices for that face in canonical enumeration order.
func NewBoundaryBuffer(d coords.Direction, grid *CellGrid, numStates int) *BoundaryBuffer {
	face := FaceEnumeration(d, grid.Side())
	owner := make([]int, len(face))
	for i, c := range face {
		owner[i] = grid.IndexOf(c)
	}
	mirror := make([]PossibleSet, len(face))
	for i := range mirror {
		mirror[i] = FullPossibleSet(numStates)
	}
	return &BoundaryBuffer{Dir: d, OwnerFace: owner, numStates: numStates, mirror: mirror}
}

// Sync copies neighborFace's current possible sets into the buffer's
// mirror. It is idempotent: calling it twice with no intervening mutation
// of neighborFace leaves the mirror unchanged (spec R1).
func (b *BoundaryBuffer) Sync(neighborFace []PossibleSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ps := range neighborFace {
		if i >= len(b.mirror) {
			break
		}
		b.mirror[i] = ps.Clone()
	}
	b.mirrorSet = true
}

// MirrorAt returns a read-only copy of the mirrored possible set at face
// index i, used as a neighbour "cell" during arc consistency (spec §4.4).
func (b *BoundaryBuffer) MirrorAt(i int) PossibleSet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mirror[i].Clone()
}

// PublishOwnFace records a snapshot of this face's own cell states for a
// neighbour to read via OwnFace. Called by the owning chunk while it still
// holds its own writer lock, right after a job mutates the grid.
func (b *BoundaryBuffer) PublishOwnFace(states []PossibleSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ownFace = states
}

// OwnFace returns the most recently published snapshot of this face's own
// cells, or nil if never published. Safe to call without holding the
// owning chunk's writer lock.
func (b *BoundaryBuffer) OwnFace() []PossibleSet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.ownFace == nil {
		return nil
	}
	out := make([]PossibleSet, len(b.ownFace))
	copy(out, b.ownFace)
	return out
}

// Len returns the number of paired cells on this face, C*C.
func (b *BoundaryBuffer) Len() int {
	return len(b.OwnerFace)
}

// FaceStates returns own-side possible sets for every cell on OwnerFace, in
// enumeration order, for handing to a neighbour's Sync call.
func FaceStates(grid *CellGrid, ownerFace []int) []PossibleSet {
	out := make([]PossibleSet, len(ownerFace))
	for i, idx := range ownerFace {
		cell, _ := grid.GetByIndex(idx)
		out[i] = cell.Possible.Clone()
	}
	return out
}

// BoundaryConflict is a pair of incompatible collapsed cells across a face
// (spec §4.4), tagged with the monotonic timestamp used to break ties in
// conflict resolution.
type BoundaryConflict struct {
	ChunkA, ChunkB coords.ChunkCoord
	Index          int
	StateA, StateB coords.State
	TimestampA     uint64
	TimestampB     uint64
}

// DetectConflicts compares every collapsed pair on a face against adj and
// returns the indices that violate adjacency (spec I2).
func DetectConflicts(adj *AdjacencyTable, d coords.Direction, grid *CellGrid, ownerFace []int, mirror []PossibleSet) []int {
	var bad []int
	for i, idx := range ownerFace {
		cell, _ := grid.GetByIndex(idx)
		if !cell.Collapsed {
			continue
		}
		if i >= len(mirror) {
			continue
		}
		neighborState, ok := mirror[i].SingleState()
		if !ok {
			continue
		}
		if !adj.Allowed(cell.State, neighborState, d) {
			bad = append(bad, i)
		}
	}
	return bad
}
