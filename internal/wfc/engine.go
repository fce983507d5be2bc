package wfc

import (
	"context"
	"math/rand"

	"github.com/firestar-voxel/wfcterrain/internal/constraint"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/telemetry"
	"github.com/firestar-voxel/wfcterrain/internal/wfcerr"
)

// Status is the terminal outcome of a Run/Step call (spec §4.3).
type Status int

const (
	StatusProgress Status = iota
	StatusDone
	StatusBudget
	StatusContradiction
	StatusCancelled
)

// entropyInfluenceThresholds/Multipliers implement spec §4.3 step 1: when
// the strongest bias magnitude at a cell exceeds a threshold, its raw
// entropy is scaled down before comparing cells for the next observation,
// so strongly-constrained cells are preferred even at equal raw entropy.
var entropyInfluenceThresholds = [3]float64{0.7, 0.4, 0.2}
var entropyInfluenceMultipliers = [3]float64{0.5, 0.7, 0.9}

// WorldPositionFn maps a chunk coordinate and local cell coordinate to a
// world-space position for constraint evaluation. The default assumes a
// uniform chunk side in block units; hosts with different units can
// override it.
type WorldPositionFn func(chunk coords.ChunkCoord, local coords.LocalCoord, side int) coords.WorldPos

// DefaultWorldPosition places chunk (0,0,0)'s cell (0,0,0) at world origin
// and spaces cells one unit apart.
func DefaultWorldPosition(chunk coords.ChunkCoord, local coords.LocalCoord, side int) coords.WorldPos {
	return coords.WorldPos{
		X: float64(chunk.X*side + local.X),
		Y: float64(chunk.Y*side + local.Y),
		Z: float64(chunk.Z*side + local.Z),
	}
}

// Engine is the per-chunk WFC algorithm of spec §4.3: observe (lowest
// effective entropy), collapse (bias-weighted sample), propagate (AC-3
// style arc consistency), with boundary coupling deferred to the caller.
type Engine struct {
	Adjacency   *AdjacencyTable
	Constraints *constraint.Model
	WorldPos    WorldPositionFn
	Hooks       telemetry.Hooks

	rng *rand.Rand
}

// NewEngine constructs an engine with a seeded RNG (spec §5 determinism:
// given a fixed seed, fixed job ordering, and a single worker, output is
// reproducible).
func NewEngine(adj *AdjacencyTable, constraints *constraint.Model, seed uint64, hooks telemetry.Hooks) *Engine {
	if hooks == nil {
		hooks = telemetry.Noop{}
	}
	return &Engine{
		Adjacency:   adj,
		Constraints: constraints,
		WorldPos:    DefaultWorldPosition,
		Hooks:       hooks,
		rng:         rand.New(rand.NewSource(int64(seed))),
	}
}

// Seed collapses a set of cells up front, per spec §4.3, enqueueing
// propagation for each and running arc consistency to a fixpoint (or
// contradiction) before returning.
func (e *Engine) Seed(chunk *Chunk, initial map[coords.LocalCoord]coords.State) (Status, []PropagationEvent, error) {
	queue := NewPropagationQueue()
	for loc, state := range initial {
		idx := chunk.Grid.IndexOf(loc)
		cell, _ := chunk.Grid.GetByIndex(idx)
		old := cell.Possible.Clone()
		chunk.Grid.CollapseCell(idx, state)
		queue.Push(PropagationEvent{
			TargetCellIdx: idx,
			TargetChunk:   chunk.Coord,
			SourceChunk:   chunk.Coord,
			OldPossible:   old,
			NewPossible:   cell.Possible.Clone(),
			Priority:      1,
		})
	}
	status, outbound, err := e.propagate(chunk, queue)
	return status, outbound, err
}

// Run repeatedly steps the engine until it reaches a fixpoint (Done),
// exhausts maxIters (Budget), hits a Contradiction, or ctx is cancelled
// (Cancelled). It returns every cross-boundary event produced along the
// way for the caller (WorkerPool/Scheduler) to transport (spec §4.3,
// §4.7).
func (e *Engine) Run(ctx context.Context, chunk *Chunk, maxIters int) (Status, []PropagationEvent, error) {
	var allOutbound []PropagationEvent
	iterations := 0
	for iterations < maxIters {
		select {
		case <-ctx.Done():
			return StatusCancelled, allOutbound, &wfcerr.CancelledError{ChunkID: chunk.Coord.String()}
		default:
		}

		progressed, outbound, status, err := e.Step(chunk)
		allOutbound = append(allOutbound, outbound...)
		iterations++
		if err != nil {
			return status, allOutbound, err
		}
		if status == StatusDone {
			chunk.SetFullyCollapsed(true)
			return StatusDone, allOutbound, nil
		}
		if !progressed {
			// Nothing left to observe and not fully collapsed: treat as done.
			chunk.SetFullyCollapsed(chunk.Grid.AllCollapsed())
			return StatusDone, allOutbound, nil
		}
	}
	chunk.SetFullyCollapsed(true)
	return StatusBudget, allOutbound, &wfcerr.BudgetExhaustedError{ChunkID: chunk.Coord.String(), Iterations: iterations}
}

// Step performs one observe+collapse+propagate cycle (spec §4.3).
func (e *Engine) Step(chunk *Chunk) (progress bool, outbound []PropagationEvent, status Status, err error) {
	idx, found := e.observe(chunk)
	if !found {
		return false, nil, StatusDone, nil
	}

	state, chosen := e.chooseState(chunk, idx)
	if !chosen {
		return false, nil, StatusContradiction, &wfcerr.ContradictionError{ChunkID: chunk.Coord.String(), CellIdx: idx}
	}

	cell, _ := chunk.Grid.GetByIndex(idx)
	old := cell.Possible.Clone()
	chunk.Grid.CollapseCell(idx, state)

	queue := NewPropagationQueue()
	queue.Push(PropagationEvent{
		TargetCellIdx: idx,
		TargetChunk:   chunk.Coord,
		SourceChunk:   chunk.Coord,
		OldPossible:   old,
		NewPossible:   cell.Possible.Clone(),
		Priority:      0,
	})

	status, outbound, err = e.propagate(chunk, queue)
	if status == StatusContradiction {
		return true, outbound, status, err
	}
	return true, outbound, StatusProgress, nil
}

// observe finds the non-collapsed cell with minimum effective entropy
// (spec §4.3 step 1), tie-broken on raw entropy, then strongest bias
// magnitude, then cell index for reproducibility.
func (e *Engine) observe(chunk *Chunk) (int, bool) {
	side := chunk.Grid.Side()
	bestIdx := -1
	var bestEffective float64
	var bestRaw int
	var bestBiasMag float64

	for i := 0; i < chunk.Grid.Len(); i++ {
		cell, loc := chunk.Grid.GetByIndex(i)
		if cell.Collapsed {
			continue
		}
		biasMag := e.strongestBiasMagnitude(chunk, loc)
		effective := effectiveEntropy(cell.Entropy, biasMag)

		if bestIdx == -1 ||
			effective < bestEffective ||
			(effective == bestEffective && cell.Entropy < bestRaw) ||
			(effective == bestEffective && cell.Entropy == bestRaw && biasMag > bestBiasMag) ||
			(effective == bestEffective && cell.Entropy == bestRaw && biasMag == bestBiasMag && i < bestIdx) {
			bestIdx = i
			bestEffective = effective
			bestRaw = cell.Entropy
			bestBiasMag = biasMag
		}
	}
	_ = side
	if bestIdx == -1 {
		return 0, false
	}
	return bestIdx, true
}

func effectiveEntropy(raw int, biasMag float64) float64 {
	mult := 1.0
	for i, threshold := range entropyInfluenceThresholds {
		if biasMag >= threshold {
			mult = entropyInfluenceMultipliers[i]
			break
		}
	}
	return float64(raw) * mult
}

func (e *Engine) biasesForCell(chunk *Chunk, loc coords.LocalCoord) map[coords.State]float64 {
	if e.Constraints == nil {
		return nil
	}
	worldPos := e.WorldPos(chunk.Coord, loc, chunk.Grid.Side())
	return e.Constraints.BiasesAt(worldPos, chunk.Coord, loc, chunk.NumStates)
}

func (e *Engine) strongestBiasMagnitude(chunk *Chunk, loc coords.LocalCoord) float64 {
	biases := e.biasesForCell(chunk, loc)
	strongest := 0.0
	for _, b := range biases {
		if mag := absFloat(b); mag > strongest {
			strongest = mag
		}
	}
	return strongest * chunk.ConstraintInfluence
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// chooseState samples a state from the cell's possible set, weighted by
// w(s) = max(0.1, 1 + bias(s)·ConstraintInfluence), where
// ConstraintInfluence is the chunk's per-LOD scaling factor.
func (e *Engine) chooseState(chunk *Chunk, idx int) (coords.State, bool) {
	cell, loc := chunk.Grid.GetByIndex(idx)
	states := cell.Possible.States()
	if len(states) == 0 {
		return 0, false
	}
	biases := e.biasesForCell(chunk, loc)

	weights := make([]float64, len(states))
	total := 0.0
	for i, s := range states {
		w := 1.0 + biases[s]*chunk.ConstraintInfluence
		if w < 0.1 {
			w = 0.1
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return states[0], true
	}
	r := e.rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return states[i], true
		}
	}
	return states[len(states)-1], true
}

// PropagateBoundaryChanges re-runs arc consistency starting from a set of
// cells whose possible sets were just narrowed by an incoming boundary
// mask (spec §4.4 step: a chunk receiving a neighbour's face resync must
// propagate that narrowing inward, not just store it). Each changed index
// seeds the queue at elevated priority so boundary-driven narrowing is
// drained before ordinary interior propagation.
func (e *Engine) PropagateBoundaryChanges(chunk *Chunk, changed []int) (Status, []PropagationEvent, error) {
	if len(changed) == 0 {
		return StatusProgress, nil, nil
	}
	queue := NewPropagationQueue()
	for _, idx := range changed {
		cell, _ := chunk.Grid.GetByIndex(idx)
		queue.Push(PropagationEvent{
			TargetCellIdx:   idx,
			TargetChunk:     chunk.Coord,
			SourceChunk:     chunk.Coord,
			OldPossible:     cell.Possible.Clone(),
			NewPossible:     cell.Possible.Clone(),
			CrossesBoundary: true,
			Priority:        crossBoundaryBoost,
		})
	}
	return e.propagate(chunk, queue)
}

// propagate drains queue with AC-3-style arc consistency, visiting the six
// neighbours of every popped event's target cell (spec §4.3 step 4). Cells
// on a boundary face with a linked neighbour chunk produce an outbound
// cross-boundary PropagationEvent instead of touching the neighbour's grid
// directly (spec §4.3 step 5, §5 ordering guarantees).
func (e *Engine) propagate(chunk *Chunk, queue *PropagationQueue) (Status, []PropagationEvent, error) {
	var outbound []PropagationEvent
	for {
		ev, ok := queue.Pop()
		if !ok {
			break
		}
		cell, loc := chunk.Grid.GetByIndex(ev.TargetCellIdx)
		if cell.InContradiction() {
			return StatusContradiction, outbound, &wfcerr.ContradictionError{ChunkID: chunk.Coord.String(), CellIdx: ev.TargetCellIdx}
		}

		for _, d := range coords.AllDirections() {
			dx, dy, dz := d.Delta()
			nLoc := coords.LocalCoord{X: loc.X + dx, Y: loc.Y + dy, Z: loc.Z + dz}

			if chunk.Grid.InBounds(nLoc.X, nLoc.Y, nLoc.Z) {
				nIdx := chunk.Grid.IndexOf(nLoc)
				nCell, _ := chunk.Grid.GetByIndex(nIdx)
				if nCell.Collapsed {
					continue
				}
				mask := e.Adjacency.SupportMask(cell.Possible, d)
				oldPossible := nCell.Possible.Clone()
				if nCell.Intersect(mask) {
					if nCell.InContradiction() {
						return StatusContradiction, outbound, &wfcerr.ContradictionError{ChunkID: chunk.Coord.String(), CellIdx: nIdx}
					}
					queue.Push(PropagationEvent{
						TargetCellIdx: nIdx,
						TargetChunk:   chunk.Coord,
						SourceChunk:   chunk.Coord,
						OldPossible:   oldPossible,
						NewPossible:   nCell.Possible.Clone(),
						Priority:      float32(nCell.Entropy),
					})
				}
				continue
			}

			// nLoc falls outside this chunk along direction d: boundary
			// coupling (step 5). The engine never touches the neighbour's
			// grid directly; it only records the event for the scheduler.
			if neighbourCoord, linked := chunk.Neighbour(d); linked {
				outbound = append(outbound, PropagationEvent{
					TargetCellIdx:   ev.TargetCellIdx,
					TargetChunk:     neighbourCoord,
					SourceChunk:     chunk.Coord,
					OldPossible:     cell.Possible.Clone(),
					NewPossible:     cell.Possible.Clone(),
					CrossesBoundary: true,
					Priority:        float32(cell.Entropy),
				})
			}
		}
	}
	if chunk.Grid.AllCollapsed() {
		return StatusDone, outbound, nil
	}
	return StatusProgress, outbound, nil
}
