package iterator

import "fmt"

// SliceIterator walks a materialized slice, such as a heap snapshot taken
// when a scan opens. Not safe for concurrent use.
type SliceIterator[T any] struct {
	data []T
	pos  int
}

// NewSliceIterator creates an iterator positioned before the first element.
func NewSliceIterator[T any](data []T) *SliceIterator[T] {
	return &SliceIterator[T]{data: data}
}

func (it *SliceIterator[T]) HasNext() bool {
	return it.pos < len(it.data)
}

// Next returns the next element and advances.
func (it *SliceIterator[T]) Next() (T, error) {
	var zero T
	if it.pos >= len(it.data) {
		return zero, fmt.Errorf("slice iterator exhausted after %d elements", len(it.data))
	}
	v := it.data[it.pos]
	it.pos++
	return v, nil
}

// Rewind moves back before the first element. The snapshot is kept.
func (it *SliceIterator[T]) Rewind() error {
	it.pos = 0
	return nil
}

// Len is the size of the snapshot.
func (it *SliceIterator[T]) Len() int { return len(it.data) }
