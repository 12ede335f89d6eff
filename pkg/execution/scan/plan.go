package scan

import (
	"fmt"
	"strings"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/iterator"
	"dictengine/pkg/primitives"
	"dictengine/pkg/statistics"
	"dictengine/pkg/storage"
	"dictengine/pkg/types"
)

// Query is a single-relation SELECT.
type Query struct {
	Schema string
	From   string
	// Columns is the select list; empty selects every column.
	Columns []string
	Where   string
}

// Text renders the query as SQL.
func (q Query) Text() string {
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ", ")
	}
	s := "SELECT " + cols + " FROM " + q.From
	if q.Where != "" {
		s += " WHERE " + q.Where
	}
	return s
}

// OutputColumn describes one column of a plan's result.
type OutputColumn struct {
	Name string
	Type types.DataType
	// Base is the base table column the value comes from.
	Base primitives.ObjectID
}

// Dependency is a provider a compiled plan relies on.
type Dependency struct {
	Provider depend.Ref
	Usage    depend.Usage
}

// Plan is a compiled query: an operator tree plus the metadata it was
// compiled against. A plan is used for one execution.
type Plan struct {
	Root     iterator.DbIterator
	Text     string
	Columns  []OutputColumn
	Relation depend.Ref
	// Table is the base table when the query reads a table directly.
	Table *catalog.Table
	// Tables lists every base table read, including through views.
	Tables       []primitives.ObjectID
	Dependencies []Dependency
	Generation   primitives.Generation
	// Nodes lists the instrumented operators, root first.
	Nodes []NodeInfo
}

// NodeInfo is one operator of a plan as reported to a statistics sink.
type NodeInfo struct {
	ID     statistics.NodeID
	Parent statistics.NodeID
	Name   string
}

// Describe declares the plan's operators to d. Sinks that reset between
// executions use it to learn the plan shape again.
func (p *Plan) Describe(d Definer) {
	for _, n := range p.Nodes {
		d.Define(n.ID, n.Parent, n.Name)
	}
}

// Updatable reports whether rows of the plan map one to one onto rows of a
// single base table.
func (p *Plan) Updatable() bool {
	return p.Table != nil
}

// ColumnIndex resolves a result column name to its 0-based index.
func (p *Plan) ColumnIndex(name string) (int, bool) {
	name = catalog.NormalizeName(name)
	for i, c := range p.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Definer is implemented by sinks that want the plan shape before it runs.
type Definer interface {
	Define(id, parent statistics.NodeID, name string)
}

type builder struct {
	cat    *catalog.Catalog
	store  *storage.Store
	sink   statistics.Sink
	next   statistics.NodeID
	nodes  []NodeInfo
	tables []primitives.ObjectID
}

func (b *builder) node(parent statistics.NodeID, name string) *node {
	id := b.next
	b.next++
	b.nodes = append(b.nodes, NodeInfo{ID: id, Parent: parent, Name: name})
	if d, ok := b.sink.(Definer); ok {
		d.Define(id, parent, name)
	}
	return newNode(id, b.sink)
}

// Build compiles q against the current catalog. Operators report to sink,
// which may be nil.
func Build(cat *catalog.Catalog, store *storage.Store, q Query, sink statistics.Sink) (*Plan, error) {
	if sink == nil {
		sink = statistics.Discard{}
	}
	b := &builder{cat: cat, store: store, sink: sink}

	schema := q.Schema
	if schema == "" {
		schema = catalog.DefaultSchema
	}
	name := q.From
	if strings.Contains(name, ".") {
		schema, name = catalog.SplitName(name)
	}
	ref, err := cat.LookupRelation(schema, name)
	if err != nil {
		return nil, err
	}

	root := b.node(statistics.NoParent, "Project-Restrict ResultSet")
	child, cols, err := b.relation(ref, root.id)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Text: q.Text(), Relation: ref, Generation: cat.Generation()}
	relUse := depend.UseName
	var used []int

	var where *binder.Expression
	if q.Where != "" {
		if where, err = binder.Parse(q.Where); err != nil {
			return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "invalid condition: %v", err)
		}
		for _, r := range where.References() {
			if r.Qualifier != "" {
				return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "query cannot reference %s", r)
			}
			idx, err := columnIndex(cols, r.Name)
			if err != nil {
				return nil, err
			}
			used = append(used, idx)
		}
	}

	var indexes []int
	if len(q.Columns) == 0 {
		relUse |= depend.UsePosition
		for i := range cols {
			indexes = append(indexes, i)
		}
	} else {
		for _, c := range q.Columns {
			idx, err := columnIndex(cols, c)
			if err != nil {
				return nil, err
			}
			indexes = append(indexes, idx)
		}
	}
	used = append(used, indexes...)

	top, err := newProjectRestrict(child, where, indexes, root)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Build", "scan")
	}
	plan.Root = top
	for _, idx := range indexes {
		plan.Columns = append(plan.Columns, cols[idx])
	}

	plan.Dependencies = append(plan.Dependencies, Dependency{Provider: ref, Usage: relUse})
	if ref.Kind == depend.KindTable {
		plan.Table, _ = cat.TableByID(ref.ID)
		seen := make(map[primitives.ObjectID]bool)
		for _, idx := range used {
			id := cols[idx].Base
			if seen[id] {
				continue
			}
			seen[id] = true
			plan.Dependencies = append(plan.Dependencies, Dependency{
				Provider: depend.Ref{Kind: depend.KindColumn, ID: id},
				Usage:    depend.UseName | depend.UseType,
			})
		}
	}
	plan.Tables = b.tables
	plan.Nodes = b.nodes
	return plan, nil
}

// relation builds the operator producing every column of ref.
func (b *builder) relation(ref depend.Ref, parent statistics.NodeID) (iterator.DbIterator, []OutputColumn, error) {
	switch ref.Kind {
	case depend.KindTable:
		tbl, ok := b.cat.TableByID(ref.ID)
		if !ok {
			return nil, nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound, "table %s does not exist", ref.ID.Short())
		}
		n := b.node(parent, "Table Scan ResultSet for "+tbl.Name)
		s, err := newTableScan(b.store, tbl, n)
		if err != nil {
			return nil, nil, err
		}
		b.tables = append(b.tables, tbl.ID)
		cols := make([]OutputColumn, len(tbl.Columns))
		for i, c := range tbl.Columns {
			cols[i] = OutputColumn{Name: c.Name, Type: c.Type, Base: c.ID}
		}
		return s, cols, nil

	case depend.KindView:
		v, ok := b.cat.ViewByID(ref.ID)
		if !ok {
			return nil, nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound, "view %s does not exist", ref.ID.Short())
		}
		n := b.node(parent, "Project-Restrict ResultSet for view "+v.Name)
		child, in, err := b.relation(v.Source, n.id)
		if err != nil {
			return nil, nil, err
		}
		var indexes []int
		if len(v.Columns) == 0 {
			for i := range in {
				indexes = append(indexes, i)
			}
		}
		for _, c := range v.Columns {
			idx, err := columnIndex(in, c)
			if err != nil {
				return nil, nil, err
			}
			indexes = append(indexes, idx)
		}
		op, err := newProjectRestrict(child, v.Where, indexes, n)
		if err != nil {
			return nil, nil, err
		}
		out := make([]OutputColumn, len(indexes))
		for i, idx := range indexes {
			out[i] = in[idx]
		}
		return op, out, nil

	default:
		return nil, nil, fmt.Errorf("cannot select from %s", ref.Kind)
	}
}

func columnIndex(cols []OutputColumn, name string) (int, error) {
	name = catalog.NormalizeName(name)
	for i, c := range cols {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, dberr.Newf(dberr.CategoryNotFound, dberr.CodeColumnNotFound,
		"Column '%s' is either not in any table in the FROM list or appears within a join specification.", name)
}
