package scheduler

import (
	"context"
	"sort"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
	"github.com/firestar-voxel/wfcterrain/internal/workerpool"
)

// handleJob is the workerpool.Handler bridging a dispatched Job to the
// engine, the chunk store, and cross-boundary transport (spec §4.8). Every
// branch takes the target chunk's exclusive lock for its whole duration, so
// at most one worker ever touches a chunk's cells at a time (spec I4).
func (s *Scheduler) handleJob(ctx context.Context, job workerpool.Job) workerpool.Result {
	chunk, ok := s.store.Get(job.Chunk)
	if !ok {
		return workerpool.Result{Job: job}
	}

	switch job.Kind {
	case workerpool.JobCollapse:
		return s.handleCollapse(ctx, job, chunk)
	case workerpool.JobPropagateBoundary:
		return s.handlePropagateBoundary(job, chunk)
	case workerpool.JobUnload:
		return s.handleUnload(job, chunk)
	default:
		return workerpool.Result{Job: job}
	}
}

func (s *Scheduler) handleCollapse(ctx context.Context, job workerpool.Job, chunk *wfc.Chunk) workerpool.Result {
	chunk.Lock()
	defer chunk.Unlock()

	chunk.SetState(wfc.StateCollapsing)
	status, outbound, err := s.engine.Run(ctx, chunk, job.MaxIterations)

	result := workerpool.Result{Job: job, Outbound: outbound, Err: err}
	switch status {
	case wfc.StatusDone:
		chunk.SetState(wfc.StateActive)
	case wfc.StatusContradiction:
		result.Contradictions = 1
	case wfc.StatusCancelled:
		chunk.SetState(wfc.StateLoading)
	case wfc.StatusBudget:
		// stays Collapsing; Run has marked it FullyCollapsed, so
		// submitCollapseWork does not resubmit it.
	}
	chunk.PublishBoundaryFaces()
	for _, ev := range outbound {
		s.transport.Enqueue(ev)
	}
	return result
}

// handlePropagateBoundary resyncs every linked face of chunk against its
// neighbours' most recently published boundary state, intersects the
// narrowed masks inward, and detects/resolves conflicts (spec §4.4). It
// only ever takes chunk's own writer lock: a neighbour's face state is read
// through BoundaryBuffer.OwnFace, which the neighbour publishes under its
// own lock, so two chunks' writer locks are never held at once (spec §5).
func (s *Scheduler) handlePropagateBoundary(job workerpool.Job, chunk *wfc.Chunk) workerpool.Result {
	chunk.Lock()
	defer chunk.Unlock()

	var totalChanged int
	var conflicts int
	for _, d := range coords.AllDirections() {
		neighbourCoord, linked := chunk.Neighbour(d)
		if !linked {
			continue
		}
		neighbourChunk, ok := s.store.Get(neighbourCoord)
		if !ok {
			continue
		}
		buffer, ok := chunk.Buffer(d)
		if !ok {
			continue
		}
		neighbourBuffer, ok := neighbourChunk.Buffer(d.Opposite())
		if !ok {
			continue
		}
		neighbourStates := neighbourBuffer.OwnFace()
		if neighbourStates == nil {
			continue // neighbour hasn't published yet
		}
		buffer.Sync(neighbourStates)

		var changed []int
		for i, idx := range buffer.OwnerFace {
			mask := s.engine.Adjacency.SupportMask(buffer.MirrorAt(i), d)
			if chunk.Grid.IntersectPossible(idx, mask) {
				changed = append(changed, idx)
			}
		}
		totalChanged += len(changed)
		if len(changed) > 0 {
			s.engine.PropagateBoundaryChanges(chunk, changed)
		}

		mirror := make([]wfc.PossibleSet, buffer.Len())
		for i := range mirror {
			mirror[i] = buffer.MirrorAt(i)
		}
		bad := wfc.DetectConflicts(s.engine.Adjacency, d, chunk.Grid, buffer.OwnerFace, mirror)
		for _, i := range bad {
			conflicts++
			s.resolveConflict(chunk, neighbourCoord, d, buffer.OwnerFace[i])
		}
	}

	return workerpool.Result{Job: job, CellsCollapsed: totalChanged, Contradictions: conflicts}
}

func (s *Scheduler) handleUnload(job workerpool.Job, chunk *wfc.Chunk) workerpool.Result {
	chunk.Lock()
	chunk.SetState(wfc.StateUnloading)
	chunk.Unlock()
	s.store.Remove(job.Chunk)
	s.bus.Publish(Event{Kind: EventChunkStateChanged, Chunk: job.Chunk, State: wfc.StateNone})
	return workerpool.Result{Job: job}
}

// resolveConflict applies spec §4.4's tie-break: whichever side's most
// recent collapse is later loses and is marked degraded; the earlier side's
// value stands untouched. Equal timestamps (both sides collapsed in the
// same tick batch) are broken by chunk-coord lexicographic order, the
// higher-sorted coordinate losing to break the symmetry deterministically.
// Exactly one side ends up Degraded (spec §8 Scenario 3).
func (s *Scheduler) resolveConflict(chunk *wfc.Chunk, neighbourCoord coords.ChunkCoord, d coords.Direction, cellIdx int) {
	s.mu.Lock()
	stampOwner := s.collapseStamp[chunk.Coord]
	stampNeighbour := s.collapseStamp[neighbourCoord]
	s.mu.Unlock()

	ownerLoses := stampOwner > stampNeighbour ||
		(stampOwner == stampNeighbour && chunkLess(neighbourCoord, chunk.Coord))

	if ownerLoses {
		chunk.MarkDegraded(cellIdx)
	} else if neighbourChunk, ok := s.store.Get(neighbourCoord); ok {
		neighbourChunk.MarkDegraded(cellIdx)
	}

	s.bus.Publish(Event{
		Kind:  EventBoundaryConflict,
		Chunk: chunk.Coord,
		Conflict: &wfc.BoundaryConflict{
			ChunkA:     chunk.Coord,
			ChunkB:     neighbourCoord,
			Index:      cellIdx,
			TimestampA: stampOwner,
			TimestampB: stampNeighbour,
		},
	})
}

func chunkLess(a, b coords.ChunkCoord) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// candidateJob pairs a chunk with its tick priority for top-B selection.
type candidateJob struct {
	job      workerpool.Job
	priority float64
}

func sortByPriorityDesc(jobs []candidateJob) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].priority > jobs[j].priority })
}
