package iterator

import (
	"fmt"

	"dictengine/pkg/tuple"
)

// UnaryOperator is the base of operators with a single child, such as
// restrictions and projections. It owns the child's lifecycle and leaves
// only the per-tuple logic to the embedding operator.
type UnaryOperator struct {
	base  *BaseIterator
	child DbIterator
}

// NewUnaryOperator creates a unary operator over child.
func NewUnaryOperator(child DbIterator, readNextFunc ReadNextFunc) (*UnaryOperator, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	return &UnaryOperator{
		child: child,
		base:  NewBaseIterator(readNextFunc),
	}, nil
}

// FetchNext reads the next tuple from the child, or nil at its end.
func (u *UnaryOperator) FetchNext() (*tuple.Tuple, error) {
	hasNext, err := u.child.HasNext()
	if err != nil {
		return nil, fmt.Errorf("error checking if child has next: %w", err)
	}
	if !hasNext {
		return nil, nil
	}

	childTuple, err := u.child.Next()
	if err != nil {
		return nil, fmt.Errorf("error getting next tuple from child: %w", err)
	}
	return childTuple, nil
}

// Open opens the child and marks this operator ready.
func (u *UnaryOperator) Open() error {
	if err := u.child.Open(); err != nil {
		return fmt.Errorf("failed to open child operator: %w", err)
	}
	u.base.MarkOpened()
	return nil
}

// Close closes the child.
func (u *UnaryOperator) Close() error {
	if err := u.child.Close(); err != nil {
		return err
	}
	return u.base.Close()
}

// Rewind rewinds the child and drops the lookahead tuple.
func (u *UnaryOperator) Rewind() error {
	if err := u.child.Rewind(); err != nil {
		return fmt.Errorf("failed to rewind child operator: %w", err)
	}
	u.base.ClearCache()
	return nil
}

// GetTupleDesc returns the child's description. Operators that change the
// shape of their tuples override it.
func (u *UnaryOperator) GetTupleDesc() *tuple.TupleDescription {
	return u.child.GetTupleDesc()
}

func (u *UnaryOperator) HasNext() (bool, error) {
	return u.base.HasNext()
}

func (u *UnaryOperator) Next() (*tuple.Tuple, error) {
	return u.base.Next()
}

// GetChild returns the child operator.
func (u *UnaryOperator) GetChild() DbIterator {
	return u.child
}
