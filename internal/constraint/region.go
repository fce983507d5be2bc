package constraint

import "github.com/firestar-voxel/wfcterrain/internal/coords"

func minOf(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// accumulateRegion evaluates every region constraint owning chunk at the
// normalised position of cell within that chunk, combining same-state
// contributions via a sign-preserving mean.
func accumulateRegion(regions []RegionConstraint, chunk coords.ChunkCoord, cell coords.LocalCoord, numStates int) map[coords.State]float64 {
	perState := make(map[coords.State][]float64, numStates)
	for _, r := range regions {
		if r.ChunkCoord != chunk {
			continue
		}
		frac := normalizedCell(r, cell)
		influence, inside := regionInfluence(r, frac)
		if !inside || influence == 0 {
			continue
		}
		switch r.Kind {
		case RegionTransition:
			t := transitionFraction(r, frac)
			perState[r.SourceState] = append(perState[r.SourceState], influence*(1-t))
			perState[r.TargetState] = append(perState[r.TargetState], influence*t)
		case RegionElevation:
			mod := 1.0
			if r.HeightCurve != nil {
				worldY := r.ElevationOffset + frac.Y*r.ElevationScale
				mod = clamp(r.HeightCurve(coords.WorldPos{X: frac.X, Y: worldY, Z: frac.Z}), 0, 1)
			}
			for state, bias := range r.StateBiases {
				perState[state] = append(perState[state], influence*bias*mod)
			}
		default: // RegionFeature
			for state, bias := range r.StateBiases {
				perState[state] = append(perState[state], influence*bias)
			}
		}
	}
	out := make(map[coords.State]float64, len(perState))
	for state, values := range perState {
		out[state] = clamp(signPreservingMean(values), -1, 1)
	}
	return out
}

// normalizedCell maps a local cell coordinate to [0,1]^3 within its chunk.
func normalizedCell(r RegionConstraint, cell coords.LocalCoord) coords.WorldPos {
	extent := float64(r.ChunkExtent)
	if extent <= 0 {
		extent = 1
	}
	return coords.WorldPos{
		X: (float64(cell.X) + 0.5) / extent,
		Y: (float64(cell.Y) + 0.5) / extent,
		Z: (float64(cell.Z) + 0.5) / extent,
	}
}

// regionInfluence reports whether frac lies within the region's internal
// box, and the influence factor (full Strength, fading to 0 within
// Gradient of any box edge).
func regionInfluence(r RegionConstraint, frac coords.WorldPos) (float64, bool) {
	minX, maxX := r.InternalOrigin.X, r.InternalOrigin.X+r.InternalSize.X
	minY, maxY := r.InternalOrigin.Y, r.InternalOrigin.Y+r.InternalSize.Y
	minZ, maxZ := r.InternalOrigin.Z, r.InternalOrigin.Z+r.InternalSize.Z
	if frac.X < minX || frac.X > maxX || frac.Y < minY || frac.Y > maxY || frac.Z < minZ || frac.Z > maxZ {
		return 0, false
	}
	if r.Gradient <= 0 {
		return r.Strength, true
	}
	edgeDist := minOf(
		frac.X-minX, maxX-frac.X,
		frac.Y-minY, maxY-frac.Y,
		frac.Z-minZ, maxZ-frac.Z,
	)
	t := clamp(edgeDist/r.Gradient, 0, 1)
	return r.Strength * t, true
}

// transitionFraction returns how far along TransitionDirection's axis frac
// sits within the region's internal box, in [0,1], 0 at the near face and
// 1 at the far face.
func transitionFraction(r RegionConstraint, frac coords.WorldPos) float64 {
	var lo, hi, v float64
	dx, dy, dz := r.TransitionDirection.Delta()
	switch {
	case dx != 0:
		lo, hi, v = r.InternalOrigin.X, r.InternalOrigin.X+r.InternalSize.X, frac.X
	case dy != 0:
		lo, hi, v = r.InternalOrigin.Y, r.InternalOrigin.Y+r.InternalSize.Y, frac.Y
	default:
		lo, hi, v = r.InternalOrigin.Z, r.InternalOrigin.Z+r.InternalSize.Z, frac.Z
	}
	if hi <= lo {
		return 0
	}
	t := (v - lo) / (hi - lo)
	if (dx < 0) || (dy < 0) || (dz < 0) {
		t = 1 - t
	}
	return clamp(t, 0, 1)
}
