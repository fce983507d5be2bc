// Package wfcerr defines the error kinds surfaced by the engine (spec §7):
// Contradiction, BoundaryConflict, BudgetExhausted, InvalidConfiguration,
// and Cancelled. Each is a distinct type so callers can use errors.As to
// branch on recovery policy instead of string matching.
package wfcerr

import "fmt"

// ContradictionError reports a cell whose possible-state set became empty.
type ContradictionError struct {
	ChunkID string
	CellIdx int
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("contradiction in chunk %s at cell %d", e.ChunkID, e.CellIdx)
}

// BoundaryConflictError reports incompatible collapses across a chunk face.
type BoundaryConflictError struct {
	ChunkA, ChunkB string
	Index          int
	StateA, StateB int
}

func (e *BoundaryConflictError) Error() string {
	return fmt.Sprintf("boundary conflict between %s and %s at face index %d: states %d vs %d",
		e.ChunkA, e.ChunkB, e.Index, e.StateA, e.StateB)
}

// BudgetExhaustedError reports that an iteration or wall-clock budget was
// hit before the chunk fully collapsed. Not fatal.
type BudgetExhaustedError struct {
	ChunkID    string
	Iterations int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for chunk %s after %d iterations", e.ChunkID, e.Iterations)
}

// InvalidConfigurationError reports a fatal construction-time error:
// asymmetric adjacency, malformed LOD arrays, negative sizes.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// CancelledError reports a job terminated early because its chunk was
// unloaded mid-flight. Not fatal.
type CancelledError struct {
	ChunkID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("job cancelled for chunk %s", e.ChunkID)
}
