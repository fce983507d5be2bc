// Package constraint implements the hierarchical bias model of spec §3/§4.2:
// global, regional, and per-cell constraints that bias state selection
// without hard-collapsing cells.
package constraint

import "github.com/firestar-voxel/wfcterrain/internal/coords"

// GlobalKind enumerates the supported GlobalConstraint kinds.
type GlobalKind int

const (
	GlobalBiomeRegion GlobalKind = iota
	GlobalHeightMap
)

// BlendCurve reshapes the [0,1] falloff fraction outside a constraint's AABB;
// nil means linear falloff.
type BlendCurve func(t float64) float64

// HeightCurve samples a height-derived modulation factor for a world
// position, used by HeightMap globals and Elevation regions. It is
// expected to return a value in [0,1].
type HeightCurve func(p coords.WorldPos) float64

// GlobalConstraint biases state selection across the whole world, with
// influence strongest inside its AABB and fading to zero over BlendRadius.
type GlobalConstraint struct {
	Name         string
	Kind         GlobalKind
	WorldCenter  coords.WorldPos
	WorldSize    coords.WorldPos // full extent on each axis
	BlendRadius  float64
	Strength     float64 // in [0,1]
	StateBiases  map[coords.State]float64
	BlendCurve   BlendCurve
	HeightCurve  HeightCurve
}

// RegionKind enumerates the supported RegionConstraint kinds.
type RegionKind int

const (
	RegionTransition RegionKind = iota
	RegionFeature
	RegionElevation
)

// RegionConstraint biases state selection within one chunk's local,
// normalised [0,1]^3 interior box, with falloff near the box edges
// controlled by Gradient.
type RegionConstraint struct {
	Name                string
	Kind                RegionKind
	ChunkCoord          coords.ChunkCoord
	ChunkExtent         int // side length C, for normalising local coordinates
	InternalOrigin      coords.WorldPos // in [0,1]
	InternalSize        coords.WorldPos // in [0,1]
	Strength            float64
	Gradient            float64 // edge falloff width, in normalised units
	SourceState         coords.State
	TargetState         coords.State
	TransitionDirection coords.Direction
	StateBiases         map[coords.State]float64
	ElevationOffset     float64
	ElevationScale      float64
	HeightCurve         HeightCurve
}

// LocalKey identifies a LocalConstraint by chunk and in-chunk cell.
type LocalKey struct {
	Chunk coords.ChunkCoord
	Cell  coords.LocalCoord
}

// combinationWeights are the default per-type weights from spec §4.2.
type combinationWeights struct {
	Global, Region, Local float64
}

var defaultWeights = combinationWeights{Global: 0.7, Region: 1.0, Local: 1.0}
