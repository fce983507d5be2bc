package constraint

import (
	"math"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

// accumulateGlobal evaluates every global constraint at worldPos and
// combines same-state contributions within the type via a sign-preserving
// mean (spec §4.2 step 1).
func accumulateGlobal(globals []GlobalConstraint, worldPos coords.WorldPos, numStates int) map[coords.State]float64 {
	perState := make(map[coords.State][]float64, numStates)
	for _, g := range globals {
		influence := globalInfluence(g, worldPos)
		if influence == 0 {
			continue
		}
		for state, bias := range g.StateBiases {
			contribution := influence * bias
			if g.Kind == GlobalHeightMap {
				contribution *= 0.5 // spec §4.2: halved to prevent vertical striping
			}
			perState[state] = append(perState[state], contribution)
		}
	}
	out := make(map[coords.State]float64, len(perState))
	for state, values := range perState {
		out[state] = clamp(signPreservingMean(values), -1, 1)
	}
	return out
}

// globalInfluence computes the [0, strength] influence factor for g at p:
// full strength inside the AABB (optionally modulated by a height curve),
// decaying to zero over BlendRadius outside it.
func globalInfluence(g GlobalConstraint, p coords.WorldPos) float64 {
	dist := aabbDistance(p, g.WorldCenter, g.WorldSize)
	if dist <= 0 {
		mod := 1.0
		if g.Kind == GlobalHeightMap && g.HeightCurve != nil {
			mod = clamp(g.HeightCurve(p), 0, 1)
		}
		return g.Strength * mod
	}
	if g.BlendRadius <= 0 {
		return 0
	}
	t := clamp(dist/g.BlendRadius, 0, 1)
	falloff := 1 - t
	if g.BlendCurve != nil {
		falloff = clamp(g.BlendCurve(t), 0, 1)
	}
	return g.Strength * falloff
}

// aabbDistance returns 0 when p lies inside the box centred at center with
// full extent size, and the Euclidean distance to the box surface
// otherwise.
func aabbDistance(p, center, size coords.WorldPos) float64 {
	hx, hy, hz := size.X/2, size.Y/2, size.Z/2
	dx := math.Max(math.Abs(p.X-center.X)-hx, 0)
	dy := math.Max(math.Abs(p.Y-center.Y)-hy, 0)
	dz := math.Max(math.Abs(p.Z-center.Z)-hz, 0)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
