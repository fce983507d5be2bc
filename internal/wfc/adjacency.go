package wfc

import (
	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfcerr"
)

// AdjacencyTable is the read-only matrix allowed[s1, s2, dir] from spec §4.1.
// It is immutable after construction; the teacher's config.Validate pattern
// (chunk-server/internal/config/config.go) is mirrored by NewAdjacencyTable
// rejecting a malformed table instead of allowing later mutation.
type AdjacencyTable struct {
	numStates int
	allowed   []bool // flattened [s1][s2][dir], row-major
}

func (t *AdjacencyTable) index(a, b coords.State, d coords.Direction) int {
	return (int(a)*t.numStates+int(b))*coords.NumDirections + int(d)
}

// NewAdjacencyTable builds a table from a dense [numStates][numStates][6]bool
// matrix and enforces the symmetry invariant allowed(a,b,d) == allowed(b,a,opposite(d)).
func NewAdjacencyTable(numStates int, matrix [][][]bool) (*AdjacencyTable, error) {
	if numStates <= 0 {
		return nil, &wfcerr.InvalidConfigurationError{Reason: "world_max_states must be positive"}
	}
	if len(matrix) != numStates {
		return nil, &wfcerr.InvalidConfigurationError{Reason: "adjacency_table row count does not match world_max_states"}
	}
	t := &AdjacencyTable{
		numStates: numStates,
		allowed:   make([]bool, numStates*numStates*coords.NumDirections),
	}
	for a, row := range matrix {
		if len(row) != numStates {
			return nil, &wfcerr.InvalidConfigurationError{Reason: "adjacency_table column count does not match world_max_states"}
		}
		for b, dirs := range row {
			if len(dirs) != coords.NumDirections {
				return nil, &wfcerr.InvalidConfigurationError{Reason: "adjacency_table direction count must be 6"}
			}
			for d, ok := range dirs {
				t.allowed[t.index(coords.State(a), coords.State(b), coords.Direction(d))] = ok
			}
		}
	}
	for a := 0; a < numStates; a++ {
		for b := 0; b < numStates; b++ {
			for _, d := range coords.AllDirections() {
				if t.Allowed(coords.State(a), coords.State(b), d) != t.Allowed(coords.State(b), coords.State(a), d.Opposite()) {
					return nil, &wfcerr.InvalidConfigurationError{
						Reason: "adjacency_table is not symmetric under opposite(direction)",
					}
				}
			}
		}
	}
	return t, nil
}

// Allowed reports whether state a may sit adjacent to state b across
// direction d (i.e. b lies at the cell reached by moving from a's cell in
// direction d).
func (t *AdjacencyTable) Allowed(a, b coords.State, d coords.Direction) bool {
	return t.allowed[t.index(a, b, d)]
}

// NumStates returns S, the number of tile kinds this table was built for.
func (t *AdjacencyTable) NumStates() int {
	return t.numStates
}

// SupportMask returns, for a set of possible source states, the set of
// states across direction d that are compatible with at least one member
// of source (standard arc-consistency support computation).
func (t *AdjacencyTable) SupportMask(source PossibleSet, d coords.Direction) PossibleSet {
	mask := NewPossibleSet(t.numStates)
	for s := 0; s < t.numStates; s++ {
		if !source.Has(coords.State(s)) {
			continue
		}
		for candidate := 0; candidate < t.numStates; candidate++ {
			if mask.Has(coords.State(candidate)) {
				continue
			}
			if t.Allowed(coords.State(s), coords.State(candidate), d) {
				mask.Add(coords.State(candidate))
			}
		}
	}
	return mask
}
