// Package catalog holds the authoritative schema metadata of a database:
// tables, columns, constraints, indexes, views, triggers, synonyms and
// column privileges, plus the dependency graph linking them.
//
// Catalog objects are immutable once published. A change clones the object,
// applies the change, bumps the object's generation and swaps the clone in,
// recording the swap-back on the caller's undo log. Readers that captured an
// object keep seeing the version they captured.
package catalog

import (
	"sync"

	"dictengine/pkg/catalog/depend"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
)

// UndoRecorder receives the inverse of each catalog mutation.
type UndoRecorder = depend.UndoRecorder

// RowCounter is the storage collaborator answering emptiness questions.
type RowCounter interface {
	IsEmpty(tableID primitives.ObjectID) (bool, error)
}

type namespace int

const (
	nsRelation namespace = iota // tables, views and synonyms
	nsIndex
	nsConstraint
	nsTrigger
)

type nameKey struct {
	schema string
	ns     namespace
	name   string
}

// Catalog is the per-database schema state.
type Catalog struct {
	mu    sync.RWMutex
	graph *depend.Graph
	rows  RowCounter

	tables      map[primitives.ObjectID]*Table
	columnOwner map[primitives.ObjectID]primitives.ObjectID
	constraints map[primitives.ObjectID]*Constraint
	indexes     map[primitives.ObjectID]*Index
	views       map[primitives.ObjectID]*View
	triggers    map[primitives.ObjectID]*Trigger
	synonyms    map[primitives.ObjectID]*Synonym
	names       map[nameKey]depend.Ref
	grants      map[primitives.ObjectID]map[grantKey]primitives.ColumnBitSet

	generation primitives.Generation
	listeners  []Listener
}

// New creates an empty catalog.
func New(graph *depend.Graph, rows RowCounter) *Catalog {
	if graph == nil {
		graph = depend.NewGraph()
	}
	return &Catalog{
		graph:       graph,
		rows:        rows,
		tables:      make(map[primitives.ObjectID]*Table),
		columnOwner: make(map[primitives.ObjectID]primitives.ObjectID),
		constraints: make(map[primitives.ObjectID]*Constraint),
		indexes:     make(map[primitives.ObjectID]*Index),
		views:       make(map[primitives.ObjectID]*View),
		triggers:    make(map[primitives.ObjectID]*Trigger),
		synonyms:    make(map[primitives.ObjectID]*Synonym),
		names:       make(map[nameKey]depend.Ref),
		grants:      make(map[primitives.ObjectID]map[grantKey]primitives.ColumnBitSet),
	}
}

// Graph returns the dependency graph.
func (c *Catalog) Graph() *depend.Graph {
	return c.graph
}

// Generation returns the catalog-wide generation, bumped by every change.
func (c *Catalog) Generation() primitives.Generation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// IsEmpty reports whether a table holds no rows, delegating to storage.
func (c *Catalog) IsEmpty(tableID primitives.ObjectID) (bool, error) {
	if c.rows == nil {
		return false, dberr.New(dberr.CategorySystem, dberr.CodeInternal, "catalog has no row counter")
	}
	return c.rows.IsEmpty(tableID)
}

// swap replaces (or with next == nil, removes) the entry for id and records
// the inverse. Callers hold c.mu.
func swap[T any](c *Catalog, undo UndoRecorder, m map[primitives.ObjectID]*T, id primitives.ObjectID, next *T) {
	prev, had := m[id]
	if next == nil {
		delete(m, id)
	} else {
		m[id] = next
	}
	c.generation++
	gen := c.generation - 1

	if undo != nil {
		undo.RecordUndo("catalog swap "+id.Short(), func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if had {
				m[id] = prev
			} else {
				delete(m, id)
			}
			c.generation = gen
			return nil
		})
	}
}

// setName binds or, with ref == nil, unbinds a name. Callers hold c.mu.
func (c *Catalog) setName(undo UndoRecorder, key nameKey, ref *depend.Ref) {
	prev, had := c.names[key]
	if ref == nil {
		delete(c.names, key)
	} else {
		c.names[key] = *ref
	}
	if undo != nil {
		undo.RecordUndo("catalog name "+key.name, func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if had {
				c.names[key] = prev
			} else {
				delete(c.names, key)
			}
			return nil
		})
	}
}

func (c *Catalog) setColumnOwner(undo UndoRecorder, colID, tableID primitives.ObjectID, remove bool) {
	prev, had := c.columnOwner[colID]
	if remove {
		delete(c.columnOwner, colID)
	} else {
		c.columnOwner[colID] = tableID
	}
	if undo != nil {
		undo.RecordUndo("column owner", func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if had {
				c.columnOwner[colID] = prev
			} else {
				delete(c.columnOwner, colID)
			}
			return nil
		})
	}
}

func (c *Catalog) nameTaken(key nameKey) (depend.Ref, bool) {
	ref, ok := c.names[key]
	return ref, ok
}

func alreadyExists(kind, schema, name string) error {
	return dberr.Newf(dberr.CategoryAlreadyExists, dberr.CodeObjectAlreadyExists,
		"%s '%s' already exists in schema '%s'", kind, name, schema)
}
