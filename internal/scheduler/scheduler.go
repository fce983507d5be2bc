// Package scheduler implements the viewer-driven ChunkScheduler of spec
// §4.7: it decides which chunks to load, collapse, or unload each tick,
// scores candidate jobs by distance and viewer heading, and drains the
// highest-priority subset into the WorkerPool within a fixed per-tick
// budget. Conflict resolution at chunk boundaries (spec §4.4) and
// cross-boundary transport (transportQueue) live alongside it in this
// package since both are driven by the same tick.
package scheduler

import (
	"math"
	"sync"

	"github.com/firestar-voxel/wfcterrain/internal/chunkstore"
	"github.com/firestar-voxel/wfcterrain/internal/constraint"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/telemetry"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
	"github.com/firestar-voxel/wfcterrain/internal/workerpool"
)

// partiallyCollapsedBoost is the 1.2x priority multiplier spec §4.7 gives a
// chunk that has started but not finished collapsing, so in-progress work
// finishes before fresh chunks are started.
const partiallyCollapsedBoost = 1.2

// Scheduler owns viewer state and drives the WorkerPool each Tick.
type Scheduler struct {
	cfg         Config
	store       *chunkstore.Store
	engine      *wfc.Engine
	constraints *constraint.Model
	bus         *EventBus
	transport   *transportQueue
	hooks       telemetry.Hooks
	pool        *workerpool.Pool

	mu            sync.Mutex
	viewerPos     coords.WorldPos
	viewerVel     coords.WorldPos
	clock         uint64
	collapseStamp map[coords.ChunkCoord]uint64
	partial       map[coords.ChunkCoord]bool
}

// New constructs a scheduler and starts its worker pool. The caller drives
// progress by calling Tick repeatedly (e.g. once per server frame/second).
func New(cfg Config, store *chunkstore.Store, engine *wfc.Engine, constraints *constraint.Model, bus *EventBus, hooks telemetry.Hooks) *Scheduler {
	if hooks == nil {
		hooks = telemetry.Noop{}
	}
	s := &Scheduler{
		cfg:           cfg,
		store:         store,
		engine:        engine,
		constraints:   constraints,
		bus:           bus,
		transport:     newTransportQueue(),
		hooks:         hooks,
		collapseStamp: make(map[coords.ChunkCoord]uint64),
		partial:       make(map[coords.ChunkCoord]bool),
	}
	s.pool = workerpool.New(cfg.Workers, s.handleJob)
	return s
}

// UpdateViewer records the viewer's current position and velocity, used by
// Tick to predict where chunks will be needed next (spec §4.7 step 1).
func (s *Scheduler) UpdateViewer(pos, vel coords.WorldPos) {
	s.mu.Lock()
	s.viewerPos = pos
	s.viewerVel = vel
	s.mu.Unlock()
}

// Close stops the worker pool, waiting for in-flight jobs to finish.
func (s *Scheduler) Close() {
	s.pool.Close()
}

// Tick runs one scheduling pass (spec §4.7):
//  1. predict the viewer position p' = p + v·Δt
//  2. load chunks newly within LoadDistance of p'
//  3. score every loaded, not-yet-fully-collapsed chunk by priority π
//  4. submit the top MaxConcurrentChunks jobs to the pool
//  5. unload chunks now beyond UnloadDistance of both p and p'
//  6. drain completed results, routing outbound boundary events and
//     publishing lifecycle/conflict events
func (s *Scheduler) Tick() {
	s.mu.Lock()
	current := s.viewerPos
	predicted := coords.WorldPos{
		X: s.viewerPos.X + s.viewerVel.X*s.cfg.LookAhead.Seconds(),
		Y: s.viewerPos.Y + s.viewerVel.Y*s.cfg.LookAhead.Seconds(),
		Z: s.viewerPos.Z + s.viewerVel.Z*s.cfg.LookAhead.Seconds(),
	}
	velocity := s.viewerVel
	s.mu.Unlock()

	s.loadNear(predicted)
	s.submitCollapseWork(predicted, velocity)
	s.unloadFar(current, predicted)
	s.drainResults()
}

// loadNear creates (but does not yet collapse) every chunk within
// LoadDistance of predicted that is not already loaded (spec §4.3 None ->
// Loading transition).
func (s *Scheduler) loadNear(predicted coords.WorldPos) {
	side := s.cfg.ChunkSide
	radiusInChunks := int(math.Ceil(s.cfg.LoadDistance/float64(side))) + 1
	centerChunk := worldToChunk(predicted, side)

	for dx := -radiusInChunks; dx <= radiusInChunks; dx++ {
		for dy := -radiusInChunks; dy <= radiusInChunks; dy++ {
			for dz := -radiusInChunks; dz <= radiusInChunks; dz++ {
				coord := coords.ChunkCoord{X: centerChunk.X + dx, Y: centerChunk.Y + dy, Z: centerChunk.Z + dz}
				center := chunkCenter(coord, side)
				if distance(center, predicted) > s.cfg.LoadDistance {
					continue
				}
				if _, ok := s.store.Get(coord); ok {
					continue
				}
				dist := distance(center, predicted)
				lod := s.cfg.lodForDistance(dist)
				s.store.Create(coord, side, s.cfg.NumStates, lod, s.cfg.maxIterationsForLOD(lod), s.cfg.constraintInfluenceForLOD(lod))
				s.bus.Publish(Event{Kind: EventChunkStateChanged, Chunk: coord, State: wfc.StateLoading})
			}
		}
	}
}

// submitCollapseWork scores every loaded, not-fully-collapsed chunk and
// submits the top cfg.MaxConcurrentChunks jobs to the pool (spec §4.7 steps
// 2-3, the per-tick budget B).
func (s *Scheduler) submitCollapseWork(predicted, velocity coords.WorldPos) {
	side := s.cfg.ChunkSide
	var candidates []candidateJob

	for _, coord := range s.store.Coords() {
		chunk, ok := s.store.Get(coord)
		if !ok || chunk.FullyCollapsed() {
			continue
		}
		if chunk.State() == wfc.StateCollapsing {
			// already in flight; the pool will re-emit a result for it.
			continue
		}
		center := chunkCenter(coord, side)
		s.mu.Lock()
		partial := s.partial[coord]
		s.mu.Unlock()
		score := priorityScore(center, predicted, velocity, partial)
		candidates = append(candidates, candidateJob{
			job: workerpool.Job{
				Kind:          workerpool.JobCollapse,
				Chunk:         coord,
				Priority:      score,
				MaxIterations: s.cfg.maxIterationsForLOD(chunk.LODLevel),
			},
			priority: score,
		})
	}

	sortByPriorityDesc(candidates)
	budget := s.cfg.MaxConcurrentChunks
	if budget <= 0 || budget > len(candidates) {
		budget = len(candidates)
	}
	for i := 0; i < budget; i++ {
		s.pool.Submit(candidates[i].job)
	}
}

// unloadFar evicts loaded chunks now beyond UnloadDistance of both the
// viewer's current position and its predicted position (spec §4.7 step 3:
// "outside r_unload of both p and p'"), cancelling any in-flight job on them
// first (spec §5 cancellation). Requiring both keeps a chunk resident while
// the viewer is still physically near it, even if a sudden velocity change
// momentarily swings the look-ahead point away.
func (s *Scheduler) unloadFar(current, predicted coords.WorldPos) {
	side := s.cfg.ChunkSide
	for _, coord := range s.store.Coords() {
		center := chunkCenter(coord, side)
		if distance(center, current) <= s.cfg.UnloadDistance || distance(center, predicted) <= s.cfg.UnloadDistance {
			continue
		}
		s.pool.CancelChunk(coord)
		s.pool.Submit(workerpool.Job{Kind: workerpool.JobUnload, Chunk: coord, Priority: math.MaxFloat64})
	}
}

// drainResults processes every currently-available result without
// blocking, stamping collapse completion times, forwarding boundary
// events to chunks whose buffers need resyncing, and publishing
// lifecycle/contradiction events (spec §4.8).
func (s *Scheduler) drainResults() {
	s.mu.Lock()
	s.clock++
	s.mu.Unlock()
	for {
		select {
		case res, ok := <-s.pool.Results():
			if !ok {
				return
			}
			s.handleResult(res)
		default:
			return
		}
	}
}

func (s *Scheduler) handleResult(res workerpool.Result) {
	switch res.Job.Kind {
	case workerpool.JobCollapse:
		chunk, ok := s.store.Get(res.Job.Chunk)
		if !ok {
			return
		}
		s.mu.Lock()
		s.collapseStamp[res.Job.Chunk] = s.clock
		s.partial[res.Job.Chunk] = !chunk.FullyCollapsed()
		s.mu.Unlock()

		if res.Contradictions > 0 {
			s.bus.Publish(Event{Kind: EventContradiction, Chunk: res.Job.Chunk, Err: res.Err})
		} else {
			s.bus.Publish(Event{Kind: EventChunkStateChanged, Chunk: res.Job.Chunk, State: chunk.State()})
		}

		if len(res.Outbound) > 0 {
			s.enqueueBoundaryWork()
		}
	case workerpool.JobUnload:
		s.mu.Lock()
		delete(s.collapseStamp, res.Job.Chunk)
		delete(s.partial, res.Job.Chunk)
		s.mu.Unlock()
	}
}

// enqueueBoundaryWork drains every chunk the transportQueue currently holds
// pending outbound events for and submits one PropagateBoundary job per
// target, so the neighbour resyncs its face on its own next turn through the
// pool (spec §4.4, §4.8, §4.13). transportQueue.PendingChunks already dedups
// by destination, so a chunk with several queued events still gets a single
// job.
func (s *Scheduler) enqueueBoundaryWork() {
	for _, target := range s.transport.PendingChunks() {
		s.transport.Drain(target)
		if _, ok := s.store.Get(target); !ok {
			continue
		}
		s.pool.Submit(workerpool.Job{
			Kind:     workerpool.JobPropagateBoundary,
			Chunk:    target,
			Priority: math.MaxFloat64 / 2,
		})
	}
}

// priorityScore implements spec §4.7's formula:
//
//	π = (1 / (1 + dist(center, p))) · max(0.5, 1 + ĉ·v̂)
//
// with a 1.2x boost for chunks that have started collapsing but not
// finished.
func priorityScore(center, p, v coords.WorldPos, partiallyCollapsed bool) float64 {
	dist := distance(center, p)
	base := 1.0 / (1.0 + dist)

	heading := 1.0
	speed := length(v)
	toChunk := sub(center, p)
	radial := length(toChunk)
	if speed > 1e-6 && radial > 1e-6 {
		heading = dot(scale(toChunk, 1/radial), scale(v, 1/speed))
	}
	score := base * math.Max(0.5, 1+heading)
	if partiallyCollapsed {
		score *= partiallyCollapsedBoost
	}
	return score
}

func worldToChunk(p coords.WorldPos, side int) coords.ChunkCoord {
	return coords.ChunkCoord{
		X: int(math.Floor(p.X / float64(side))),
		Y: int(math.Floor(p.Y / float64(side))),
		Z: int(math.Floor(p.Z / float64(side))),
	}
}

func chunkCenter(c coords.ChunkCoord, side int) coords.WorldPos {
	half := float64(side) / 2
	return coords.WorldPos{
		X: float64(c.X*side) + half,
		Y: float64(c.Y*side) + half,
		Z: float64(c.Z*side) + half,
	}
}

func distance(a, b coords.WorldPos) float64 {
	return length(sub(a, b))
}

func sub(a, b coords.WorldPos) coords.WorldPos {
	return coords.WorldPos{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func length(v coords.WorldPos) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func scale(v coords.WorldPos, k float64) coords.WorldPos {
	return coords.WorldPos{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

func dot(a, b coords.WorldPos) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}
