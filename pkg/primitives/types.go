package primitives

import "math"

// Generation is a per-object structural version. It is bumped on every DDL
// change to the object and never decreases within the lifetime of a database.
type Generation uint64

// RowID identifies a stored row within a table. RowIDs are never reused.
type RowID uint64

// ExecutionID identifies a single execution of a compiled statement. It keys
// runtime statistics together with the result-set node id.
type ExecutionID uint64

// NodeID identifies a result-set node inside one execution plan.
type NodeID int

// HashCode represents a hash value used for fast key comparisons.
type HashCode uint64

// Sentinel values for invalid/unset identifiers
const (
	// InvalidRowID is never handed out by storage.
	InvalidRowID RowID = 0

	// InvalidOrdinal marks an unresolved column position.
	InvalidOrdinal = math.MinInt32

	// NoParentNode is the parent of the root node of a plan tree.
	NoParentNode NodeID = -1
)
