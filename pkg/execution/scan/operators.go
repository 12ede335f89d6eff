package scan

import (
	"fmt"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/iterator"
	"dictengine/pkg/statistics"
	"dictengine/pkg/storage"
	"dictengine/pkg/storage/heap"
	"dictengine/pkg/tuple"
	"dictengine/pkg/types"
)

// TableScan returns every row of a base table in storage order. The rows
// are read when the scan is opened.
type TableScan struct {
	base  *iterator.BaseIterator
	node  *node
	store *storage.Store
	tbl   *catalog.Table
	td    *tuple.TupleDescription
	rows  *iterator.SliceIterator[heap.Row]
}

// newTableScan creates a scan of tbl as described by that catalog version.
func newTableScan(store *storage.Store, tbl *catalog.Table, n *node) (*TableScan, error) {
	td, err := tuple.NewTupleDesc(tbl.ColumnTypes(), tbl.ColumnNames())
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", tbl.QualifiedName(), err)
	}
	s := &TableScan{node: n, store: store, tbl: tbl, td: td}
	s.base = iterator.NewBaseIterator(s.readNext)
	return s, nil
}

func (s *TableScan) Open() error {
	h, err := s.store.Heap(s.tbl.ID)
	if err != nil {
		return err
	}
	s.rows = iterator.NewSliceIterator(h.Scan())
	s.node.Open()
	s.base.MarkOpened()
	return nil
}

func (s *TableScan) readNext() (*tuple.Tuple, error) {
	if s.rows == nil || !s.rows.HasNext() {
		return nil, nil
	}
	row, err := s.rows.Next()
	if err != nil {
		return nil, err
	}
	s.node.Seen()
	t, err := tuple.FromFields(s.td, row.ID, row.Fields)
	if err != nil {
		return nil, fmt.Errorf("row %d of %s: %w", row.ID, s.tbl.QualifiedName(), err)
	}
	s.node.Returned()
	return t, nil
}

func (s *TableScan) Rewind() error {
	if s.rows != nil {
		_ = s.rows.Rewind()
	}
	s.base.ClearCache()
	return nil
}

func (s *TableScan) Close() error {
	if s.base.IsOpen() {
		s.node.Close(statistics.ScanHeap)
	}
	s.rows = nil
	return s.base.Close()
}

func (s *TableScan) HasNext() (bool, error)                { return s.base.HasNext() }
func (s *TableScan) Next() (*tuple.Tuple, error)           { return s.base.Next() }
func (s *TableScan) GetTupleDesc() *tuple.TupleDescription { return s.td }

// ProjectRestrict filters its child's tuples with an optional condition and
// then keeps the listed columns. Only tuples for which the condition is
// TRUE pass; UNKNOWN rejects. Row ids are carried through.
type ProjectRestrict struct {
	*iterator.UnaryOperator
	node    *node
	where   *binder.Expression
	indexes []int
	td      *tuple.TupleDescription
}

// newProjectRestrict creates the operator. indexes select child columns in
// output order.
func newProjectRestrict(child iterator.DbIterator, where *binder.Expression, indexes []int, n *node) (*ProjectRestrict, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	in := child.GetTupleDesc()
	if len(indexes) == 0 {
		return nil, fmt.Errorf("must project at least one field")
	}
	dts := make([]types.DataType, len(indexes))
	names := make([]string, len(indexes))
	for i, idx := range indexes {
		if idx < 0 || idx >= in.NumFields() {
			return nil, fmt.Errorf("field index %d out of bounds (child has %d fields)", idx, in.NumFields())
		}
		dts[i] = in.Types[idx]
		names[i] = in.FieldNames[idx]
	}
	td, err := tuple.NewTupleDesc(dts, names)
	if err != nil {
		return nil, err
	}

	p := &ProjectRestrict{node: n, where: where, indexes: indexes, td: td}
	op, err := iterator.NewUnaryOperator(child, p.readNext)
	if err != nil {
		return nil, err
	}
	p.UnaryOperator = op
	return p, nil
}

func (p *ProjectRestrict) Open() error {
	if err := p.UnaryOperator.Open(); err != nil {
		return err
	}
	p.node.Open()
	return nil
}

func (p *ProjectRestrict) Close() error {
	opened := p.node.IsOpen()
	err := p.UnaryOperator.Close()
	if opened {
		p.node.Close("")
	}
	return err
}

func (p *ProjectRestrict) GetTupleDesc() *tuple.TupleDescription { return p.td }

func (p *ProjectRestrict) readNext() (*tuple.Tuple, error) {
	for {
		t, err := p.FetchNext()
		if err != nil || t == nil {
			return nil, err
		}
		p.node.Seen()

		if p.where != nil {
			truth, err := p.where.Test(binder.Env{Columns: values(t)})
			if err != nil {
				return nil, fmt.Errorf("predicate evaluation failed: %w", err)
			}
			if truth != binder.True {
				continue
			}
		}

		fields, err := t.Project(p.indexes)
		if err != nil {
			return nil, err
		}
		out, err := tuple.FromFields(p.td, t.RowID, fields)
		if err != nil {
			return nil, err
		}
		p.node.Returned()
		return out, nil
	}
}

// values maps the tuple's column names to native values, NULL as nil.
func values(t *tuple.Tuple) map[string]any {
	names := t.TupleDesc.FieldNames
	out := make(map[string]any, len(names))
	for i, f := range t.Fields() {
		if f == nil || f.IsNull() {
			out[names[i]] = nil
			continue
		}
		out[names[i]] = f.Native()
	}
	return out
}
