package iterator

import "dictengine/pkg/tuple"

// DbIterator is the contract of every row source in the execution engine:
// table scans, restrictions, projections and materialized result sets.
type DbIterator interface {
	TupleIterator

	// Open prepares the iterator for reading. It must be called before any
	// other method and may be called again after Close.
	Open() error

	// Rewind positions the iterator before the first tuple again.
	Rewind() error

	// Close releases the iterator's resources. Closing twice is safe.
	Close() error

	// GetTupleDesc describes the tuples returned by Next. It can be called
	// in any state.
	GetTupleDesc() *tuple.TupleDescription
}

// TupleIterator is the minimal iteration contract shared by all row
// sources, used by the generic helpers in this package.
type TupleIterator interface {
	// HasNext reports whether another tuple is available without consuming it.
	HasNext() (bool, error)

	// Next returns the next tuple.
	Next() (*tuple.Tuple, error)
}
