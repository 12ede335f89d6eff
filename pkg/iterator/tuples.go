package iterator

import (
	"dictengine/pkg/tuple"
)

// TupleSource is a DbIterator over tuples that are already in memory.
type TupleSource struct {
	base  *BaseIterator
	td    *tuple.TupleDescription
	items *SliceIterator[*tuple.Tuple]
}

// NewTupleSource creates a source returning tuples in order.
func NewTupleSource(td *tuple.TupleDescription, tuples []*tuple.Tuple) *TupleSource {
	s := &TupleSource{td: td, items: NewSliceIterator(tuples)}
	s.base = NewBaseIterator(s.readNext)
	return s
}

func (s *TupleSource) readNext() (*tuple.Tuple, error) {
	if !s.items.HasNext() {
		return nil, nil
	}
	return s.items.Next()
}

func (s *TupleSource) Open() error {
	_ = s.items.Rewind()
	s.base.MarkOpened()
	return nil
}

func (s *TupleSource) Rewind() error {
	s.base.ClearCache()
	return s.items.Rewind()
}

func (s *TupleSource) Close() error                          { return s.base.Close() }
func (s *TupleSource) HasNext() (bool, error)                { return s.base.HasNext() }
func (s *TupleSource) Next() (*tuple.Tuple, error)           { return s.base.Next() }
func (s *TupleSource) GetTupleDesc() *tuple.TupleDescription { return s.td }
