package catalog

import (
	"slices"

	"go.uber.org/zap"

	"dictengine/pkg/catalog/depend"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/logging"
	"dictengine/pkg/primitives"
)

// AddTable publishes a new table. Column ordinals are assigned from the
// column order.
func (c *Catalog) AddTable(undo UndoRecorder, t *Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := nameKey{schema: t.Schema, ns: nsRelation, name: t.Name}
	if _, taken := c.nameTaken(key); taken {
		return alreadyExists("Table/View", t.Schema, t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for i, col := range t.Columns {
		if seen[col.Name] {
			return dberr.Newf(dberr.CategoryAlreadyExists, dberr.CodeDuplicateColumn,
				"column name '%s' appears more than once in table '%s'", col.Name, t.Name)
		}
		seen[col.Name] = true
		col.Ordinal = i + 1
		col.TableID = t.ID
	}

	t.Generation = 1
	swap(c, undo, c.tables, t.ID, t)
	ref := t.Ref()
	c.setName(undo, key, &ref)
	for _, col := range t.Columns {
		c.setColumnOwner(undo, col.ID, t.ID, false)
	}
	logging.WithTable(t.QualifiedName()).Debug("table added", zap.Int("columns", len(t.Columns)))
	return nil
}

// RemoveTable unpublishes a table and its columns. Dependents must already
// have been dealt with by the caller.
func (c *Catalog) RemoveTable(undo UndoRecorder, id primitives.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[id]
	if !ok {
		return notFoundID("table", id)
	}
	swap[Table](c, undo, c.tables, id, nil)
	c.setName(undo, nameKey{schema: t.Schema, ns: nsRelation, name: t.Name}, nil)
	for _, col := range t.Columns {
		c.setColumnOwner(undo, col.ID, id, true)
	}
	if g, had := c.grants[id]; had {
		delete(c.grants, id)
		if undo != nil {
			undo.RecordUndo("restore grants", func() error {
				c.mu.Lock()
				defer c.mu.Unlock()
				c.grants[id] = g
				return nil
			})
		}
	}
	logging.WithTable(t.QualifiedName()).Debug("table removed")
	return nil
}

// MutateTable applies fn to a clone of the table, renumbers column ordinals,
// bumps the table generation and publishes the clone. Columns added or
// removed by fn are registered or unregistered. fn must not modify Column
// values in place; it replaces them.
func (c *Catalog) MutateTable(undo UndoRecorder, id primitives.ObjectID, fn func(t *Table) error) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.tables[id]
	if !ok {
		return nil, notFoundID("table", id)
	}
	next := old.clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	if next.Name != old.Name || next.Schema != old.Schema {
		newKey := nameKey{schema: next.Schema, ns: nsRelation, name: next.Name}
		if _, taken := c.nameTaken(newKey); taken {
			return nil, alreadyExists("Table/View", next.Schema, next.Name)
		}
	}

	seen := make(map[string]bool, len(next.Columns))
	for i, col := range next.Columns {
		if seen[col.Name] {
			return nil, dberr.Newf(dberr.CategoryAlreadyExists, dberr.CodeDuplicateColumn,
				"column '%s' already exists in table '%s'", col.Name, next.Name)
		}
		seen[col.Name] = true
		if col.Ordinal != i+1 || col.TableID != id {
			cp := *col
			cp.Ordinal = i + 1
			cp.TableID = id
			next.Columns[i] = &cp
		}
	}

	next.Generation = old.Generation + 1
	swap(c, undo, c.tables, id, next)

	if next.Name != old.Name || next.Schema != old.Schema {
		c.setName(undo, nameKey{schema: old.Schema, ns: nsRelation, name: old.Name}, nil)
		ref := next.Ref()
		c.setName(undo, nameKey{schema: next.Schema, ns: nsRelation, name: next.Name}, &ref)
	}
	for _, col := range next.Columns {
		if _, had := old.ColumnByID(col.ID); !had {
			c.setColumnOwner(undo, col.ID, id, false)
		}
	}
	for _, col := range old.Columns {
		if _, kept := next.ColumnByID(col.ID); !kept {
			c.setColumnOwner(undo, col.ID, id, true)
		}
	}
	return next, nil
}

// AddConstraint publishes a constraint.
func (c *Catalog) AddConstraint(undo UndoRecorder, con *Constraint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := nameKey{schema: con.Schema, ns: nsConstraint, name: con.Name}
	if _, taken := c.nameTaken(key); taken {
		return alreadyExists("Constraint", con.Schema, con.Name)
	}
	con.Generation = 1
	swap(c, undo, c.constraints, con.ID, con)
	ref := con.Ref()
	c.setName(undo, key, &ref)
	return nil
}

// RemoveConstraint unpublishes a constraint.
func (c *Catalog) RemoveConstraint(undo UndoRecorder, id primitives.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	con, ok := c.constraints[id]
	if !ok {
		return notFoundID("constraint", id)
	}
	swap[Constraint](c, undo, c.constraints, id, nil)
	c.setName(undo, nameKey{schema: con.Schema, ns: nsConstraint, name: con.Name}, nil)
	return nil
}

// MutateConstraint applies fn to a clone of the constraint and publishes it.
func (c *Catalog) MutateConstraint(undo UndoRecorder, id primitives.ObjectID, fn func(*Constraint) error) (*Constraint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.constraints[id]
	if !ok {
		return nil, notFoundID("constraint", id)
	}
	next := old.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Generation = old.Generation + 1
	swap(c, undo, c.constraints, id, next)
	return next, nil
}

// AddIndex publishes an index.
func (c *Catalog) AddIndex(undo UndoRecorder, ix *Index) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := nameKey{schema: ix.Schema, ns: nsIndex, name: ix.Name}
	if _, taken := c.nameTaken(key); taken {
		return alreadyExists("Index", ix.Schema, ix.Name)
	}
	ix.Generation = 1
	swap(c, undo, c.indexes, ix.ID, ix)
	ref := ix.Ref()
	c.setName(undo, key, &ref)
	return nil
}

// RemoveIndex unpublishes an index.
func (c *Catalog) RemoveIndex(undo UndoRecorder, id primitives.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ix, ok := c.indexes[id]
	if !ok {
		return notFoundID("index", id)
	}
	swap[Index](c, undo, c.indexes, id, nil)
	c.setName(undo, nameKey{schema: ix.Schema, ns: nsIndex, name: ix.Name}, nil)
	return nil
}

// MutateIndex applies fn to a clone of the index and publishes it.
func (c *Catalog) MutateIndex(undo UndoRecorder, id primitives.ObjectID, fn func(*Index) error) (*Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.indexes[id]
	if !ok {
		return nil, notFoundID("index", id)
	}
	next := old.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Generation = old.Generation + 1
	swap(c, undo, c.indexes, id, next)
	return next, nil
}

// AddView publishes a view.
func (c *Catalog) AddView(undo UndoRecorder, v *View) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := nameKey{schema: v.Schema, ns: nsRelation, name: v.Name}
	if _, taken := c.nameTaken(key); taken {
		return alreadyExists("Table/View", v.Schema, v.Name)
	}
	v.Generation = 1
	swap(c, undo, c.views, v.ID, v)
	ref := v.Ref()
	c.setName(undo, key, &ref)
	return nil
}

// RemoveView unpublishes a view.
func (c *Catalog) RemoveView(undo UndoRecorder, id primitives.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.views[id]
	if !ok {
		return notFoundID("view", id)
	}
	swap[View](c, undo, c.views, id, nil)
	c.setName(undo, nameKey{schema: v.Schema, ns: nsRelation, name: v.Name}, nil)
	return nil
}

// AddTrigger publishes a trigger.
func (c *Catalog) AddTrigger(undo UndoRecorder, t *Trigger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := nameKey{schema: t.Schema, ns: nsTrigger, name: t.Name}
	if _, taken := c.nameTaken(key); taken {
		return alreadyExists("Trigger", t.Schema, t.Name)
	}
	t.Generation = 1
	swap(c, undo, c.triggers, t.ID, t)
	ref := t.Ref()
	c.setName(undo, key, &ref)
	return nil
}

// RemoveTrigger unpublishes a trigger.
func (c *Catalog) RemoveTrigger(undo UndoRecorder, id primitives.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.triggers[id]
	if !ok {
		return notFoundID("trigger", id)
	}
	swap[Trigger](c, undo, c.triggers, id, nil)
	c.setName(undo, nameKey{schema: t.Schema, ns: nsTrigger, name: t.Name}, nil)
	return nil
}

// MutateTrigger applies fn to a clone of the trigger and publishes it.
func (c *Catalog) MutateTrigger(undo UndoRecorder, id primitives.ObjectID, fn func(*Trigger) error) (*Trigger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.triggers[id]
	if !ok {
		return nil, notFoundID("trigger", id)
	}
	next := old.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Generation = old.Generation + 1
	swap(c, undo, c.triggers, id, next)
	return next, nil
}

// AddSynonym publishes a synonym.
func (c *Catalog) AddSynonym(undo UndoRecorder, s *Synonym) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := nameKey{schema: s.Schema, ns: nsRelation, name: s.Name}
	if _, taken := c.nameTaken(key); taken {
		return alreadyExists("Table/View", s.Schema, s.Name)
	}
	swap(c, undo, c.synonyms, s.ID, s)
	ref := s.Ref()
	c.setName(undo, key, &ref)
	return nil
}

// RemoveSynonym unpublishes a synonym.
func (c *Catalog) RemoveSynonym(undo UndoRecorder, id primitives.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.synonyms[id]
	if !ok {
		return notFoundID("synonym", id)
	}
	swap[Synonym](c, undo, c.synonyms, id, nil)
	c.setName(undo, nameKey{schema: s.Schema, ns: nsRelation, name: s.Name}, nil)
	return nil
}

// RemoveObject unpublishes any droppable dependent by reference.
func (c *Catalog) RemoveObject(undo UndoRecorder, ref depend.Ref) error {
	switch ref.Kind {
	case depend.KindTable:
		return c.RemoveTable(undo, ref.ID)
	case depend.KindView:
		return c.RemoveView(undo, ref.ID)
	case depend.KindConstraint:
		return c.RemoveConstraint(undo, ref.ID)
	case depend.KindIndex:
		return c.RemoveIndex(undo, ref.ID)
	case depend.KindTrigger:
		return c.RemoveTrigger(undo, ref.ID)
	case depend.KindSynonym:
		return c.RemoveSynonym(undo, ref.ID)
	default:
		return dberr.Newf(dberr.CategorySystem, dberr.CodeInternal, "cannot remove %s", ref)
	}
}

// ReplaceColumn returns a copy of the table's column list with the column
// of the same id replaced.
func ReplaceColumn(cols []*Column, col *Column) []*Column {
	out := slices.Clone(cols)
	for i, c := range out {
		if c.ID == col.ID {
			out[i] = col
		}
	}
	return out
}
