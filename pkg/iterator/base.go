package iterator

import (
	"errors"

	"dictengine/pkg/tuple"
)

// ErrNotOpened is returned by iterators used before Open.
var ErrNotOpened = errors.New("iterator not opened")

// ErrNoMoreTuples is returned by Next after the source is exhausted.
var ErrNoMoreTuples = errors.New("no more tuples")

// ReadNextFunc reads the next tuple from an operator's source. It returns
// nil, nil at the end of the data.
type ReadNextFunc func() (*tuple.Tuple, error)

// BaseIterator implements the one-tuple lookahead and open/closed state
// shared by all operators. Operators supply only their ReadNextFunc.
type BaseIterator struct {
	nextTuple    *tuple.Tuple
	opened       bool
	readNextFunc ReadNextFunc
}

// NewBaseIterator creates a closed base iterator around readNextFunc.
func NewBaseIterator(readNextFunc ReadNextFunc) *BaseIterator {
	return &BaseIterator{readNextFunc: readNextFunc}
}

// HasNext reads ahead one tuple if none is cached.
func (it *BaseIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, ErrNotOpened
	}

	if it.nextTuple == nil {
		var err error
		it.nextTuple, err = it.readNextFunc()
		if err != nil {
			return false, err
		}
	}
	return it.nextTuple != nil, nil
}

// Next returns the cached tuple, or reads one when nothing is cached.
func (it *BaseIterator) Next() (*tuple.Tuple, error) {
	if !it.opened {
		return nil, ErrNotOpened
	}

	if it.nextTuple == nil {
		var err error
		it.nextTuple, err = it.readNextFunc()
		if err != nil {
			return nil, err
		}
		if it.nextTuple == nil {
			return nil, ErrNoMoreTuples
		}
	}

	result := it.nextTuple
	it.nextTuple = nil
	return result, nil
}

// Close drops the cached tuple and marks the iterator closed.
func (it *BaseIterator) Close() error {
	it.nextTuple = nil
	it.opened = false
	return nil
}

// MarkOpened marks the iterator ready for reading.
func (it *BaseIterator) MarkOpened() {
	it.opened = true
	it.nextTuple = nil
}

// ClearCache forgets the lookahead tuple, as needed after the source was
// rewound.
func (it *BaseIterator) ClearCache() {
	it.nextTuple = nil
}

// IsOpen reports whether MarkOpened was called since the last Close.
func (it *BaseIterator) IsOpen() bool {
	return it.opened
}
