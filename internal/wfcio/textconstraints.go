package wfcio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/firestar-voxel/wfcterrain/internal/constraint"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
)

// ConstraintSet is every constraint parsed out of one textual document.
type ConstraintSet struct {
	Globals []constraint.GlobalConstraint
	Regions []constraint.RegionConstraint
	Locals  map[constraint.LocalKey]map[coords.State]float64
}

// blockKind distinguishes the three header prefixes spec §6 defines.
type blockKind int

const (
	blockGlobal blockKind = iota
	blockRegion
	blockLocal
)

type block struct {
	kind   blockKind
	name   string
	kindTag string
	chunk  coords.ChunkCoord
	cell   coords.LocalCoord
	fields map[string]string
}

// ParseConstraints reads the bespoke constraint authoring format: one block
// per constraint, headers `G:name:kind`, `R:name:kind`, or
// `L:cx,cy,cz:lx,ly,lz`, followed by indented `Key: value` lines, `#`
// starting a comment to end of line. No existing library models this
// layout (see DESIGN.md), so it is hand-parsed with bufio.Scanner, the same
// tool the teacher reaches for whenever it reads line-oriented text.
func ParseConstraints(r io.Reader) (*ConstraintSet, error) {
	blocks, err := scanBlocks(r)
	if err != nil {
		return nil, err
	}

	set := &ConstraintSet{Locals: make(map[constraint.LocalKey]map[coords.State]float64)}
	for _, b := range blocks {
		switch b.kind {
		case blockGlobal:
			g, err := buildGlobal(b)
			if err != nil {
				return nil, fmt.Errorf("global block %q: %w", b.name, err)
			}
			set.Globals = append(set.Globals, g)
		case blockRegion:
			reg, err := buildRegion(b)
			if err != nil {
				return nil, fmt.Errorf("region block %q: %w", b.name, err)
			}
			set.Regions = append(set.Regions, reg)
		case blockLocal:
			biases, err := parseBiases(b.fields["biases"])
			if err != nil {
				return nil, fmt.Errorf("local block at %v/%v: %w", b.chunk, b.cell, err)
			}
			set.Locals[constraint.LocalKey{Chunk: b.chunk, Cell: b.cell}] = biases
		}
	}
	return set, nil
}

func scanBlocks(r io.Reader) ([]block, error) {
	scanner := bufio.NewScanner(r)
	var blocks []block
	var current *block

	flush := func() {
		if current != nil {
			blocks = append(blocks, *current)
			current = nil
		}
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			flush()
			b, err := parseHeader(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = b
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: indented field outside any block", lineNo)
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"Key: value\", got %q", lineNo, trimmed)
		}
		current.fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan constraints: %w", err)
	}
	return blocks, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseHeader(line string) (*block, error) {
	parts := strings.SplitN(line, ":", 3)
	switch parts[0] {
	case "G":
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed global header %q, want G:name:kind", line)
		}
		return &block{kind: blockGlobal, name: parts[1], kindTag: parts[2], fields: map[string]string{}}, nil
	case "R":
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed region header %q, want R:name:kind", line)
		}
		return &block{kind: blockRegion, name: parts[1], kindTag: parts[2], fields: map[string]string{}}, nil
	case "L":
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed local header %q, want L:cx,cy,cz:lx,ly,lz", line)
		}
		chunk, err := parseChunkCoord(parts[1])
		if err != nil {
			return nil, fmt.Errorf("local chunk coord: %w", err)
		}
		cell, err := parseLocalCoord(parts[2])
		if err != nil {
			return nil, fmt.Errorf("local cell coord: %w", err)
		}
		return &block{kind: blockLocal, chunk: chunk, cell: cell, fields: map[string]string{}}, nil
	default:
		return nil, fmt.Errorf("unrecognised block header %q", line)
	}
}

func buildGlobal(b block) (constraint.GlobalConstraint, error) {
	kind, err := parseGlobalKind(b.kindTag)
	if err != nil {
		return constraint.GlobalConstraint{}, err
	}
	center, err := parseWorldPos(b.fields["center"])
	if err != nil {
		return constraint.GlobalConstraint{}, fmt.Errorf("center: %w", err)
	}
	size, err := parseWorldPos(b.fields["size"])
	if err != nil {
		return constraint.GlobalConstraint{}, fmt.Errorf("size: %w", err)
	}
	blend, err := parseFloatField(b.fields, "blend", 0)
	if err != nil {
		return constraint.GlobalConstraint{}, err
	}
	strength, err := parseFloatField(b.fields, "strength", 1)
	if err != nil {
		return constraint.GlobalConstraint{}, err
	}
	biases, err := parseBiases(b.fields["biases"])
	if err != nil {
		return constraint.GlobalConstraint{}, fmt.Errorf("biases: %w", err)
	}
	return constraint.GlobalConstraint{
		Name:        b.name,
		Kind:        kind,
		WorldCenter: center,
		WorldSize:   size,
		BlendRadius: blend,
		Strength:    strength,
		StateBiases: biases,
	}, nil
}

func buildRegion(b block) (constraint.RegionConstraint, error) {
	kind, err := parseRegionKind(b.kindTag)
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	chunk, err := parseChunkCoord(b.fields["chunk"])
	if err != nil {
		return constraint.RegionConstraint{}, fmt.Errorf("chunk: %w", err)
	}
	extent, err := parseIntField(b.fields, "extent", 16)
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	origin, err := parseWorldPos(b.fields["origin"])
	if err != nil {
		return constraint.RegionConstraint{}, fmt.Errorf("origin: %w", err)
	}
	size, err := parseWorldPos(b.fields["size"])
	if err != nil {
		return constraint.RegionConstraint{}, fmt.Errorf("size: %w", err)
	}
	strength, err := parseFloatField(b.fields, "strength", 1)
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	gradient, err := parseFloatField(b.fields, "gradient", 0.1)
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	source, err := parseStateField(b.fields, "source")
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	target, err := parseStateField(b.fields, "target")
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	dir, err := parseDirectionField(b.fields, "direction")
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	biases, err := parseBiases(b.fields["biases"])
	if err != nil {
		return constraint.RegionConstraint{}, fmt.Errorf("biases: %w", err)
	}
	elevOffset, err := parseFloatField(b.fields, "elevationoffset", 0)
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	elevScale, err := parseFloatField(b.fields, "elevationscale", 1)
	if err != nil {
		return constraint.RegionConstraint{}, err
	}
	return constraint.RegionConstraint{
		Name:                b.name,
		Kind:                kind,
		ChunkCoord:          chunk,
		ChunkExtent:         extent,
		InternalOrigin:      origin,
		InternalSize:        size,
		Strength:            strength,
		Gradient:            gradient,
		SourceState:         source,
		TargetState:         target,
		TransitionDirection: dir,
		StateBiases:         biases,
		ElevationOffset:     elevOffset,
		ElevationScale:      elevScale,
	}, nil
}

func parseGlobalKind(tag string) (constraint.GlobalKind, error) {
	switch strings.ToLower(tag) {
	case "biomeregion", "biome_region":
		return constraint.GlobalBiomeRegion, nil
	case "heightmap", "height_map":
		return constraint.GlobalHeightMap, nil
	default:
		return 0, fmt.Errorf("unknown global kind %q", tag)
	}
}

func parseRegionKind(tag string) (constraint.RegionKind, error) {
	switch strings.ToLower(tag) {
	case "transition":
		return constraint.RegionTransition, nil
	case "feature":
		return constraint.RegionFeature, nil
	case "elevation":
		return constraint.RegionElevation, nil
	default:
		return 0, fmt.Errorf("unknown region kind %q", tag)
	}
}

func parseWorldPos(s string) (coords.WorldPos, error) {
	if s == "" {
		return coords.WorldPos{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return coords.WorldPos{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return coords.WorldPos{}, fmt.Errorf("component %d: %w", i, err)
		}
		vals[i] = v
	}
	return coords.WorldPos{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func parseChunkCoord(s string) (coords.ChunkCoord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return coords.ChunkCoord{}, fmt.Errorf("expected cx,cy,cz, got %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return coords.ChunkCoord{}, fmt.Errorf("component %d: %w", i, err)
		}
		vals[i] = v
	}
	return coords.ChunkCoord{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func parseLocalCoord(s string) (coords.LocalCoord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return coords.LocalCoord{}, fmt.Errorf("expected lx,ly,lz, got %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return coords.LocalCoord{}, fmt.Errorf("component %d: %w", i, err)
		}
		vals[i] = v
	}
	return coords.LocalCoord{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func parseBiases(s string) (map[coords.State]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := make(map[coords.State]float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed bias entry %q, want state=value", pair)
		}
		state, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("bias state %q: %w", key, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("bias value %q: %w", value, err)
		}
		out[coords.State(state)] = v
	}
	return out, nil
}

func parseFloatField(fields map[string]string, key string, fallback float64) (float64, error) {
	raw, ok := fields[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseIntField(fields map[string]string, key string, fallback int) (int, error) {
	raw, ok := fields[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseStateField(fields map[string]string, key string) (coords.State, error) {
	raw, ok := fields[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return coords.State(v), nil
}

func parseDirectionField(fields map[string]string, key string) (coords.Direction, error) {
	raw, ok := fields[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return coords.DirPosX, nil
	}
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "-X":
		return coords.DirNegX, nil
	case "+X", "X":
		return coords.DirPosX, nil
	case "-Y":
		return coords.DirNegY, nil
	case "+Y", "Y":
		return coords.DirPosY, nil
	case "-Z":
		return coords.DirNegZ, nil
	case "+Z", "Z":
		return coords.DirPosZ, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", raw)
	}
}
