// Package wfcconfig loads and validates the tunable parameters needed to
// bootstrap an engine instance, following the same read-file/unmarshal/
// validate shape as the teacher's central/internal/config and chunk-server/
// internal/config packages, but backed by YAML (the former's library of
// choice) rather than JSON.
package wfcconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/firestar-voxel/wfcterrain/internal/wfcerr"
)

// Config is the full bootstrap configuration for one engine instance
// (spec §6).
type Config struct {
	WorldMaxStates int           `yaml:"world_max_states"`
	ChunkSize      int           `yaml:"chunk_size"`
	NumLODLevels   int           `yaml:"num_lod_levels"`
	AdjacencyTable [][][]bool    `yaml:"adjacency_table"`
	RandomSeed     uint64        `yaml:"random_seed"`
	LOD            LODConfig     `yaml:"lod"`
	Scheduler      SchedulerConfig `yaml:"scheduler"`
	Terrain        TerrainConfig `yaml:"terrain"`
}

// LODConfig tunes per-level-of-detail collapse behaviour (spec §4.3, §6).
type LODConfig struct {
	MaxIterationsPerLOD       []int     `yaml:"max_iterations_per_lod"`
	ConstraintInfluencePerLOD []float64 `yaml:"constraint_influence_per_lod"`
	DistanceThresholds        []float64 `yaml:"distance_thresholds"`
}

// SchedulerConfig tunes the ChunkScheduler (spec §4.7, §6).
type SchedulerConfig struct {
	LoadDistance        float64       `yaml:"load_distance"`
	UnloadDistance      float64       `yaml:"unload_distance"`
	MaxConcurrentChunks int           `yaml:"max_concurrent_chunks"`
	Workers             int           `yaml:"workers"`
	LookAhead           time.Duration `yaml:"look_ahead"`
}

// TerrainConfig seeds the height-curve noise field used by Elevation/
// HeightMap constraints (spec §4.12 of the expanded design).
type TerrainConfig struct {
	Seed        int64   `yaml:"seed"`
	Frequency   float64 `yaml:"frequency"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	MaxHeight   float64 `yaml:"max_height"`
}

// Load reads configuration from a YAML file. An empty path returns
// Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a small but workable engine configuration: two tile
// states (compatible with any direction), three LOD levels, modest
// scheduling radii.
func Default() *Config {
	return &Config{
		WorldMaxStates: 2,
		ChunkSize:      16,
		NumLODLevels:   3,
		AdjacencyTable: uniformAdjacency(2),
		RandomSeed:     1337,
		LOD: LODConfig{
			MaxIterationsPerLOD:       []int{4096, 1024, 128},
			ConstraintInfluencePerLOD: []float64{1.0, 0.8, 0.5},
			DistanceThresholds:        []float64{48, 96},
		},
		Scheduler: SchedulerConfig{
			LoadDistance:        96,
			UnloadDistance:      128,
			MaxConcurrentChunks: 4,
			Workers:             4,
			LookAhead:           time.Second,
		},
		Terrain: TerrainConfig{
			Seed:        1337,
			Frequency:   0.01,
			Octaves:     4,
			Persistence: 0.5,
			Lacunarity:  2.0,
			MaxHeight:   64,
		},
	}
}

func uniformAdjacency(numStates int) [][][]bool {
	table := make([][][]bool, numStates)
	for a := range table {
		table[a] = make([][]bool, numStates)
		for b := range table[a] {
			table[a][b] = make([]bool, 6)
			for d := range table[a][b] {
				table[a][b][d] = true
			}
		}
	}
	return table
}

// Validate checks structural invariants the engine relies on, returning a
// typed InvalidConfigurationError so callers can distinguish it from I/O or
// parse failures (spec §5 error taxonomy).
func (c *Config) Validate() error {
	if c.WorldMaxStates <= 0 {
		return &wfcerr.InvalidConfigurationError{Reason: "world_max_states must be positive"}
	}
	if c.ChunkSize <= 0 {
		return &wfcerr.InvalidConfigurationError{Reason: "chunk_size must be positive"}
	}
	if c.NumLODLevels <= 0 {
		return &wfcerr.InvalidConfigurationError{Reason: "num_lod_levels must be positive"}
	}
	if len(c.LOD.MaxIterationsPerLOD) != c.NumLODLevels {
		return &wfcerr.InvalidConfigurationError{Reason: "lod.max_iterations_per_lod length must equal num_lod_levels"}
	}
	if len(c.LOD.ConstraintInfluencePerLOD) != c.NumLODLevels {
		return &wfcerr.InvalidConfigurationError{Reason: "lod.constraint_influence_per_lod length must equal num_lod_levels"}
	}
	if len(c.LOD.DistanceThresholds) != c.NumLODLevels-1 {
		return &wfcerr.InvalidConfigurationError{Reason: "lod.distance_thresholds must have num_lod_levels-1 entries"}
	}
	if len(c.AdjacencyTable) != c.WorldMaxStates {
		return &wfcerr.InvalidConfigurationError{Reason: "adjacency_table row count must equal world_max_states"}
	}
	if c.Scheduler.LoadDistance <= 0 || c.Scheduler.UnloadDistance <= 0 {
		return &wfcerr.InvalidConfigurationError{Reason: "scheduler load/unload distances must be positive"}
	}
	if c.Scheduler.UnloadDistance < c.Scheduler.LoadDistance {
		return &wfcerr.InvalidConfigurationError{Reason: "scheduler.unload_distance must be >= load_distance"}
	}
	if c.Scheduler.MaxConcurrentChunks <= 0 {
		return &wfcerr.InvalidConfigurationError{Reason: "scheduler.max_concurrent_chunks must be positive"}
	}
	if c.Scheduler.Workers <= 0 {
		return &wfcerr.InvalidConfigurationError{Reason: "scheduler.workers must be positive"}
	}
	if c.Scheduler.LookAhead <= 0 {
		c.Scheduler.LookAhead = time.Second
	}
	return nil
}

// AdjacencyMatrix converts the raw YAML adjacency table into the
// [][][]bool shape wfc.NewAdjacencyTable expects.
func (c *Config) AdjacencyMatrix() [][][]bool {
	return c.AdjacencyTable
}
