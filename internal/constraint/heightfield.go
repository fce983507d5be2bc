package constraint

import (
	"math"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

// HeightField is a deterministic multi-octave value-noise sampler, adapted
// from the teacher's fractalNoise/valueNoise pair in
// chunk-server/internal/terrain/noise.go, repurposed here as the optional
// height_curve for HeightMap GlobalConstraints and Elevation
// RegionConstraints instead of driving block placement directly.
type HeightField struct {
	seed        int64
	frequency   float64
	octaves     int
	persistence float64
	lacunarity  float64
	maxHeight   float64
}

// NewHeightField builds a height field from the same parameter shape as
// the teacher's config.TerrainConfig.
func NewHeightField(seed int64, frequency float64, octaves int, persistence, lacunarity, maxHeight float64) *HeightField {
	if octaves <= 0 {
		octaves = 1
	}
	return &HeightField{
		seed:        seed,
		frequency:   frequency,
		octaves:     octaves,
		persistence: persistence,
		lacunarity:  lacunarity,
		maxHeight:   maxHeight,
	}
}

// Sample returns a fractal-noise height in [0, maxHeight] at world (x, z).
func (h *HeightField) Sample(x, z float64) float64 {
	normalized := (h.fractalNoise(x, z) + 1) / 2 // fractalNoise returns [-1,1]
	return normalized * h.maxHeight
}

// Curve returns a HeightCurve that reports how closely p.Y matches this
// field's sampled height at (p.X, p.Z), as a factor in [0,1] that falls off
// linearly within `tolerance` world units.
func (h *HeightField) Curve(tolerance float64) HeightCurve {
	if tolerance <= 0 {
		tolerance = 1
	}
	return func(p coords.WorldPos) float64 {
		target := h.Sample(p.X, p.Z)
		dist := math.Abs(p.Y - target)
		return clamp(1-dist/tolerance, 0, 1)
	}
}

func (h *HeightField) fractalNoise(x, y float64) float64 {
	frequency := h.frequency
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < h.octaves; i++ {
		noise := h.valueNoise(x*frequency, y*frequency)
		noiseSum += noise * amplitude
		maxAmplitude += amplitude
		amplitude *= h.persistence
		frequency *= h.lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

func (h *HeightField) valueNoise(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1

	sx := smoothstep(x - float64(x0))
	sy := smoothstep(y - float64(y0))

	n0 := random2D(x0, y0, h.seed)
	n1 := random2D(x1, y0, h.seed)
	ix0 := lerp(n0, n1, sx)

	n2 := random2D(x0, y1, h.seed)
	n3 := random2D(x1, y1, h.seed)
	ix1 := lerp(n2, n3, sx)

	return lerp(ix0, ix1, sy)
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func random2D(x, y int, seed int64) float64 {
	return float64(hash3(x, y, int(seed))&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y, z int) uint32 {
	hv := uint32(x*374761393 + y*668265263 + z*2147483647)
	hv = (hv ^ (hv >> 13)) * 1274126177
	return hv ^ (hv >> 16)
}
