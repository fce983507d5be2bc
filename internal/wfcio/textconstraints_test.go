package wfcio

import (
	"strings"
	"testing"

	"github.com/firestar-voxel/wfcterrain/internal/constraint"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

const sampleDoc = `
# a world-spanning biome bias
G:plains:biomeregion
  Center: 0,0,0
  Size: 100,40,100
  Blend: 25
  Strength: 0.8
  Biases: 0=0.6,1=-0.4

R:ridge:elevation
  Chunk: 2,0,3
  Extent: 16
  Origin: 0,0,0
  Size: 1,1,1
  Strength: 0.9
  Gradient: 0.1
  ElevationOffset: 4
  ElevationScale: 2
  Biases: 2=0.5

L:1,0,0:3,4,5
  Biases: 0=1
`

func TestParseConstraintsGlobal(t *testing.T) {
	set, err := ParseConstraints(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("ParseConstraints: %v", err)
	}
	if len(set.Globals) != 1 {
		t.Fatalf("len(Globals) = %d, want 1", len(set.Globals))
	}
	g := set.Globals[0]
	if g.Name != "plains" || g.Kind != constraint.GlobalBiomeRegion {
		t.Fatalf("unexpected global header fields: %+v", g)
	}
	if g.WorldCenter != (coords.WorldPos{}) {
		t.Fatalf("WorldCenter = %v, want zero", g.WorldCenter)
	}
	if g.WorldSize != (coords.WorldPos{X: 100, Y: 40, Z: 100}) {
		t.Fatalf("WorldSize = %v, want (100,40,100)", g.WorldSize)
	}
	if g.BlendRadius != 25 || g.Strength != 0.8 {
		t.Fatalf("BlendRadius/Strength = %v/%v, want 25/0.8", g.BlendRadius, g.Strength)
	}
	if g.StateBiases[0] != 0.6 || g.StateBiases[1] != -0.4 {
		t.Fatalf("unexpected biases: %+v", g.StateBiases)
	}
}

func TestParseConstraintsRegion(t *testing.T) {
	set, err := ParseConstraints(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("ParseConstraints: %v", err)
	}
	if len(set.Regions) != 1 {
		t.Fatalf("len(Regions) = %d, want 1", len(set.Regions))
	}
	r := set.Regions[0]
	if r.Name != "ridge" || r.Kind != constraint.RegionElevation {
		t.Fatalf("unexpected region header fields: %+v", r)
	}
	if r.ChunkCoord != (coords.ChunkCoord{X: 2, Y: 0, Z: 3}) {
		t.Fatalf("ChunkCoord = %v, want (2,0,3)", r.ChunkCoord)
	}
	if r.ChunkExtent != 16 {
		t.Fatalf("ChunkExtent = %d, want 16", r.ChunkExtent)
	}
	if r.ElevationOffset != 4 || r.ElevationScale != 2 {
		t.Fatalf("ElevationOffset/ElevationScale = %v/%v, want 4/2", r.ElevationOffset, r.ElevationScale)
	}
	if r.StateBiases[2] != 0.5 {
		t.Fatalf("unexpected biases: %+v", r.StateBiases)
	}
}

func TestParseConstraintsLocal(t *testing.T) {
	set, err := ParseConstraints(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("ParseConstraints: %v", err)
	}
	key := constraint.LocalKey{
		Chunk: coords.ChunkCoord{X: 1, Y: 0, Z: 0},
		Cell:  coords.LocalCoord{X: 3, Y: 4, Z: 5},
	}
	biases, ok := set.Locals[key]
	if !ok {
		t.Fatalf("expected a local constraint at %+v", key)
	}
	if biases[0] != 1 {
		t.Fatalf("unexpected local biases: %+v", biases)
	}
}

func TestParseConstraintsRejectsMalformedHeader(t *testing.T) {
	if _, err := ParseConstraints(strings.NewReader("G:onlyname\n  Strength: 1\n")); err == nil {
		t.Fatalf("expected an error for a global header missing its kind")
	}
}

func TestParseConstraintsRejectsFieldOutsideBlock(t *testing.T) {
	if _, err := ParseConstraints(strings.NewReader("  Strength: 1\n")); err == nil {
		t.Fatalf("expected an error for an indented field with no preceding block header")
	}
}
