// Package wfcterrain is the module root, exposing the Engine facade of
// spec §6: the one type a host (renderer, server, CLI) talks to.
package wfcterrain

import (
	"github.com/firestar-voxel/wfcterrain/internal/chunkstore"
	"github.com/firestar-voxel/wfcterrain/internal/constraint"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/scheduler"
	"github.com/firestar-voxel/wfcterrain/internal/telemetry"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
	"github.com/firestar-voxel/wfcterrain/internal/wfcconfig"
)

// Engine wires the config, constraint model, WFC algorithm, chunk store,
// and scheduler into the single facade a host constructs and drives.
type Engine struct {
	cfg         *wfcconfig.Config
	store       *chunkstore.Store
	model       *constraint.Model
	wfcEngine   *wfc.Engine
	scheduler   *scheduler.Scheduler
	bus         *scheduler.EventBus
	heightField *constraint.HeightField
}

// New constructs an Engine from a fully validated config (spec §6
// Engine::new). Use wfcconfig.Load or wfcconfig.Default to build cfg.
func New(cfg *wfcconfig.Config, hooks telemetry.Hooks) (*Engine, error) {
	if hooks == nil {
		hooks = telemetry.Noop{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adj, err := wfc.NewAdjacencyTable(cfg.WorldMaxStates, cfg.AdjacencyMatrix())
	if err != nil {
		return nil, err
	}

	model := constraint.NewModel()
	heightField := constraint.NewHeightField(
		cfg.Terrain.Seed, cfg.Terrain.Frequency, cfg.Terrain.Octaves,
		cfg.Terrain.Persistence, cfg.Terrain.Lacunarity, cfg.Terrain.MaxHeight,
	)

	wfcEngine := wfc.NewEngine(adj, model, cfg.RandomSeed, hooks)
	store := chunkstore.New()
	bus := scheduler.NewEventBus(256)

	schedCfg := scheduler.Config{
		ChunkSide:              cfg.ChunkSize,
		NumStates:              cfg.WorldMaxStates,
		LODMaxIterations:       cfg.LOD.MaxIterationsPerLOD,
		LODConstraintInfluence: cfg.LOD.ConstraintInfluencePerLOD,
		LODDistanceThresholds:  cfg.LOD.DistanceThresholds,
		LoadDistance:           cfg.Scheduler.LoadDistance,
		UnloadDistance:         cfg.Scheduler.UnloadDistance,
		MaxConcurrentChunks:    cfg.Scheduler.MaxConcurrentChunks,
		Workers:                cfg.Scheduler.Workers,
		LookAhead:              cfg.Scheduler.LookAhead,
	}
	sched := scheduler.New(schedCfg, store, wfcEngine, model, bus, hooks)

	return &Engine{
		cfg:         cfg,
		store:       store,
		model:       model,
		wfcEngine:   wfcEngine,
		scheduler:   sched,
		bus:         bus,
		heightField: heightField,
	}, nil
}

// UpdateViewer records the viewer's world position and velocity, consumed
// by the next Tick to predict which chunks to load/collapse/unload.
func (e *Engine) UpdateViewer(pos, vel coords.WorldPos) {
	e.scheduler.UpdateViewer(pos, vel)
}

// Tick runs one scheduling pass: load near chunks, submit collapse/boundary
// work within budget, unload far chunks, and drain worker results.
func (e *Engine) Tick() {
	e.scheduler.Tick()
}

// Close stops the engine's worker pool, waiting for in-flight jobs.
func (e *Engine) Close() {
	e.scheduler.Close()
}

// SnapshotChunk returns a read-only copy of a loaded chunk's cells, or
// false if the chunk isn't currently loaded.
func (e *Engine) SnapshotChunk(coord coords.ChunkCoord) (*chunkstore.ChunkView, bool) {
	return e.store.Snapshot(coord)
}

// AddGlobalConstraint registers a world-spanning bias (spec §6).
func (e *Engine) AddGlobalConstraint(g constraint.GlobalConstraint) {
	e.model.AddGlobalConstraint(g)
}

// RemoveGlobalConstraint unregisters a previously added global constraint
// by name.
func (e *Engine) RemoveGlobalConstraint(name string) {
	e.model.RemoveGlobalConstraint(name)
}

// AddRegionConstraint registers a chunk-local bias (spec §6).
func (e *Engine) AddRegionConstraint(r constraint.RegionConstraint) {
	e.model.AddRegionConstraint(r)
}

// RemoveRegionConstraint unregisters a region constraint by chunk and name.
func (e *Engine) RemoveRegionConstraint(chunk coords.ChunkCoord, name string) {
	e.model.RemoveRegionConstraint(chunk, name)
}

// SetLocalConstraint sets or replaces the per-cell bias at key.
func (e *Engine) SetLocalConstraint(key constraint.LocalKey, biases map[coords.State]float64) {
	e.model.SetLocalConstraint(key, biases)
}

// RemoveLocalConstraint clears the per-cell bias at key.
func (e *Engine) RemoveLocalConstraint(key constraint.LocalKey) {
	e.model.RemoveLocalConstraint(key)
}

// HeightCurve exposes the engine's configured terrain height field as a
// constraint.HeightCurve, for hosts wiring a HeightMap global or Elevation
// region constraint without standing up their own noise field.
func (e *Engine) HeightCurve(tolerance float64) constraint.HeightCurve {
	return e.heightField.Curve(tolerance)
}

// SubscribeEvents registers fn to be called for every event of kind (spec
// §6 subscribe_events): ChunkStateChanged, BoundaryConflict, Contradiction.
func (e *Engine) SubscribeEvents(kind scheduler.EventKind, fn func(scheduler.Event)) {
	e.bus.Subscribe(kind, fn)
}

// RecentEvents returns the last N published events, per spec §7's
// "the scheduler surfaces counts and the last N events to subscribers".
func (e *Engine) RecentEvents() []scheduler.Event {
	return e.bus.Recent()
}

// LoadedChunks reports how many chunks are currently resident.
func (e *Engine) LoadedChunks() int {
	return e.store.Len()
}
