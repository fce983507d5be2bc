// Package chunkstore owns all loaded chunks, indexed by integer chunk
// coordinates, and resolves neighbour pointers on insertion/removal
// (spec §4.6).
package chunkstore

import (
	"sync"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
)

// Store is the single owner of every loaded chunk. Workers receive a
// mutable handle to exactly one chunk for the duration of a job; the
// Store itself only ever hands out pointers, it does not serialise
// access to a chunk's contents (that is Chunk.Lock/Unlock's job).
type Store struct {
	mu     sync.RWMutex
	chunks map[coords.ChunkCoord]*wfc.Chunk
}

// New returns an empty store.
func New() *Store {
	return &Store{chunks: make(map[coords.ChunkCoord]*wfc.Chunk)}
}

// Get returns the chunk at coord, if loaded.
func (s *Store) Get(coord coords.ChunkCoord) (*wfc.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[coord]
	return c, ok
}

// Create inserts a new chunk at coord (replacing any existing one) and
// resolves neighbour links against every already-loaded chunk around it
// (spec §4.6).
func (s *Store) Create(coord coords.ChunkCoord, side, numStates, lod, maxIterations int, constraintInfluence float64) *wfc.Chunk {
	chunk := wfc.NewChunk(coord, side, numStates, lod, maxIterations, constraintInfluence)

	s.mu.Lock()
	s.chunks[coord] = chunk
	s.mu.Unlock()

	s.linkNeighbours(coord, chunk)
	return chunk
}

func (s *Store) linkNeighbours(coord coords.ChunkCoord, chunk *wfc.Chunk) {
	for _, d := range coords.AllDirections() {
		neighbourCoord := coord.Add(d)
		s.mu.RLock()
		neighbourChunk, ok := s.chunks[neighbourCoord]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		chunk.LinkNeighbour(d, neighbourCoord)
		neighbourChunk.LinkNeighbour(d.Opposite(), coord)
	}
}

// Remove evicts the chunk at coord and severs neighbour links pointing to
// it (spec §4.6).
func (s *Store) Remove(coord coords.ChunkCoord) {
	s.mu.Lock()
	delete(s.chunks, coord)
	s.mu.Unlock()

	for _, d := range coords.AllDirections() {
		neighbourCoord := coord.Add(d)
		s.mu.RLock()
		neighbourChunk, ok := s.chunks[neighbourCoord]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		neighbourChunk.UnlinkNeighbour(d.Opposite())
	}
}

// Len reports the number of loaded chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Coords returns a snapshot of every loaded chunk coordinate.
func (s *Store) Coords() []coords.ChunkCoord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]coords.ChunkCoord, 0, len(s.chunks))
	for c := range s.chunks {
		out = append(out, c)
	}
	return out
}

// ChunkView is a read-only, value-copy snapshot of a chunk's cells, safe to
// hand to a consumer (mesher, visualiser) outside the store's lock (spec
// §5: copy-on-read of the cells of interest, taken while no worker holds
// that chunk).
type ChunkView struct {
	Coord          coords.ChunkCoord
	Side           int
	LODLevel       int
	FullyCollapsed bool
	States         []int  // flattened collapsed state, -1 if uncollapsed
	Entropy        []int  // flattened raw entropy
	Degraded       []bool // flattened degraded flag
}

// Snapshot takes a read-only copy of the chunk at coord's cells. It
// acquires the chunk's exclusive lock briefly so the copy never observes a
// job mid-propagation (spec §5: a chunk is never observed mid-job by
// another consumer).
func (s *Store) Snapshot(coord coords.ChunkCoord) (*ChunkView, bool) {
	chunk, ok := s.Get(coord)
	if !ok {
		return nil, false
	}
	chunk.Lock()
	defer chunk.Unlock()

	side := chunk.Grid.Side()
	n := chunk.Grid.Len()
	view := &ChunkView{
		Coord:          coord,
		Side:           side,
		LODLevel:       chunk.LODLevel,
		FullyCollapsed: chunk.FullyCollapsed(),
		States:         make([]int, n),
		Entropy:        make([]int, n),
		Degraded:       make([]bool, n),
	}
	for i := 0; i < n; i++ {
		cell, _ := chunk.Grid.GetByIndex(i)
		if cell.Collapsed {
			view.States[i] = int(cell.State)
		} else {
			view.States[i] = -1
		}
		view.Entropy[i] = cell.Entropy
		view.Degraded[i] = chunk.IsDegraded(i)
	}
	return view, true
}
