package catalog

import (
	"slices"

	"dictengine/pkg/catalog/depend"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
)

func notFoundID(kind string, id primitives.ObjectID) error {
	return dberr.Newf(dberr.CategoryNotFound, dberr.CodeObjectNotFound, "%s %s does not exist", kind, id.Short())
}

// LookupRelation resolves a table, view or synonym name. Synonyms resolve to
// their target table.
func (c *Catalog) LookupRelation(schema, name string) (depend.Ref, error) {
	schema, name = NormalizeName(schema), NormalizeName(name)
	if schema == "" {
		schema = DefaultSchema
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ref, ok := c.names[nameKey{schema: schema, ns: nsRelation, name: name}]
	if !ok {
		return depend.Ref{}, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound,
			"Table/View '%s' does not exist", QualifiedName(schema, name))
	}
	if ref.Kind == depend.KindSynonym {
		return depend.Ref{Kind: depend.KindTable, ID: c.synonyms[ref.ID].TargetID}, nil
	}
	return ref, nil
}

// LookupTable resolves a base table by name.
func (c *Catalog) LookupTable(schema, name string) (*Table, error) {
	ref, err := c.LookupRelation(schema, name)
	if err != nil {
		return nil, err
	}
	if ref.Kind != depend.KindTable {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound,
			"'%s' is not a base table", QualifiedName(NormalizeName(schema), NormalizeName(name)))
	}
	t, ok := c.TableByID(ref.ID)
	if !ok {
		return nil, notFoundID("table", ref.ID)
	}
	return t, nil
}

// TableByID returns the current version of a table.
func (c *Catalog) TableByID(id primitives.ObjectID) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[id]
	return t, ok
}

// ResolveColumn finds a column of t by name.
func ResolveColumn(t *Table, name string) (*Column, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeColumnNotFound,
			"Column '%s' is not in table '%s'", NormalizeName(name), t.QualifiedName())
	}
	return col, nil
}

// ColumnByID returns the current version of a column and its table.
func (c *Catalog) ColumnByID(id primitives.ObjectID) (*Column, *Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tid, ok := c.columnOwner[id]
	if !ok {
		return nil, nil, false
	}
	t := c.tables[tid]
	col, ok := t.ColumnByID(id)
	return col, t, ok
}

// Tables returns every table ordered by creation.
func (c *Catalog) Tables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.tables, func(t *Table) primitives.ObjectID { return t.ID })
}

// Views returns every view ordered by creation.
func (c *Catalog) Views() []*View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.views, func(v *View) primitives.ObjectID { return v.ID })
}

// ViewByID returns the current version of a view.
func (c *Catalog) ViewByID(id primitives.ObjectID) (*View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[id]
	return v, ok
}

// LookupView resolves a view by name.
func (c *Catalog) LookupView(schema, name string) (*View, error) {
	ref, err := c.LookupRelation(schema, name)
	if err != nil {
		return nil, err
	}
	if ref.Kind != depend.KindView {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeObjectNotFound,
			"view '%s' does not exist", QualifiedName(NormalizeName(schema), NormalizeName(name)))
	}
	v, _ := c.ViewByID(ref.ID)
	return v, nil
}

// ConstraintByID returns the current version of a constraint.
func (c *Catalog) ConstraintByID(id primitives.ObjectID) (*Constraint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	con, ok := c.constraints[id]
	return con, ok
}

// LookupConstraint resolves a constraint by name.
func (c *Catalog) LookupConstraint(schema, name string) (*Constraint, error) {
	schema, name = NormalizeName(schema), NormalizeName(name)
	if schema == "" {
		schema = DefaultSchema
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.names[nameKey{schema: schema, ns: nsConstraint, name: name}]
	if !ok {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeConstraintNotFound,
			"constraint '%s' does not exist", QualifiedName(schema, name))
	}
	return c.constraints[ref.ID], nil
}

// ConstraintsOn returns the constraints of a table ordered by creation.
func (c *Catalog) ConstraintsOn(tableID primitives.ObjectID) []*Constraint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := sortedValues(c.constraints, func(con *Constraint) primitives.ObjectID { return con.ID })
	return slices.DeleteFunc(all, func(con *Constraint) bool { return con.TableID != tableID })
}

// ReferencingKeys returns the foreign keys whose parent is the given
// PRIMARY KEY or UNIQUE constraint.
func (c *Catalog) ReferencingKeys(parentID primitives.ObjectID) []*Constraint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := sortedValues(c.constraints, func(con *Constraint) primitives.ObjectID { return con.ID })
	return slices.DeleteFunc(all, func(con *Constraint) bool {
		return con.Type != ForeignKeyConstraint || con.Referenced != parentID
	})
}

// IndexByID returns the current version of an index.
func (c *Catalog) IndexByID(id primitives.ObjectID) (*Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ix, ok := c.indexes[id]
	return ix, ok
}

// LookupIndex resolves an index by name.
func (c *Catalog) LookupIndex(schema, name string) (*Index, error) {
	schema, name = NormalizeName(schema), NormalizeName(name)
	if schema == "" {
		schema = DefaultSchema
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.names[nameKey{schema: schema, ns: nsIndex, name: name}]
	if !ok {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeObjectNotFound,
			"index '%s' does not exist", QualifiedName(schema, name))
	}
	return c.indexes[ref.ID], nil
}

// IndexesOn returns the indexes of a table ordered by creation.
func (c *Catalog) IndexesOn(tableID primitives.ObjectID) []*Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := sortedValues(c.indexes, func(ix *Index) primitives.ObjectID { return ix.ID })
	return slices.DeleteFunc(all, func(ix *Index) bool { return ix.TableID != tableID })
}

// TriggerByID returns the current version of a trigger.
func (c *Catalog) TriggerByID(id primitives.ObjectID) (*Trigger, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.triggers[id]
	return t, ok
}

// LookupTrigger resolves a trigger by name.
func (c *Catalog) LookupTrigger(schema, name string) (*Trigger, error) {
	schema, name = NormalizeName(schema), NormalizeName(name)
	if schema == "" {
		schema = DefaultSchema
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.names[nameKey{schema: schema, ns: nsTrigger, name: name}]
	if !ok {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeObjectNotFound,
			"trigger '%s' does not exist", QualifiedName(schema, name))
	}
	return c.triggers[ref.ID], nil
}

// TriggersOn returns the triggers that fire on a table, ordered by creation.
func (c *Catalog) TriggersOn(tableID primitives.ObjectID) []*Trigger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := sortedValues(c.triggers, func(t *Trigger) primitives.ObjectID { return t.ID })
	return slices.DeleteFunc(all, func(t *Trigger) bool { return t.TableID != tableID })
}

// Triggers returns every trigger ordered by creation.
func (c *Catalog) Triggers() []*Trigger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.triggers, func(t *Trigger) primitives.ObjectID { return t.ID })
}

// Constraints returns every constraint ordered by creation.
func (c *Catalog) Constraints() []*Constraint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.constraints, func(con *Constraint) primitives.ObjectID { return con.ID })
}

// Indexes returns every index ordered by creation.
func (c *Catalog) Indexes() []*Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.indexes, func(ix *Index) primitives.ObjectID { return ix.ID })
}

// SynonymsFor returns the synonyms naming a table.
func (c *Catalog) SynonymsFor(tableID primitives.ObjectID) []*Synonym {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := sortedValues(c.synonyms, func(s *Synonym) primitives.ObjectID { return s.ID })
	return slices.DeleteFunc(all, func(s *Synonym) bool { return s.TargetID != tableID })
}

// Exists reports whether the referenced object is currently published.
func (c *Catalog) Exists(ref depend.Ref) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch ref.Kind {
	case depend.KindTable:
		_, ok := c.tables[ref.ID]
		return ok
	case depend.KindColumn:
		_, ok := c.columnOwner[ref.ID]
		return ok
	case depend.KindView:
		_, ok := c.views[ref.ID]
		return ok
	case depend.KindConstraint:
		_, ok := c.constraints[ref.ID]
		return ok
	case depend.KindIndex:
		_, ok := c.indexes[ref.ID]
		return ok
	case depend.KindTrigger:
		_, ok := c.triggers[ref.ID]
		return ok
	case depend.KindSynonym:
		_, ok := c.synonyms[ref.ID]
		return ok
	default:
		return false
	}
}

// NameOf describes a referenced object for messages, e.g. "VIEW APP.V1".
func (c *Catalog) NameOf(ref depend.Ref) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch ref.Kind {
	case depend.KindTable:
		if t, ok := c.tables[ref.ID]; ok {
			return "TABLE " + t.QualifiedName()
		}
	case depend.KindColumn:
		if tid, ok := c.columnOwner[ref.ID]; ok {
			t := c.tables[tid]
			if col, ok := t.ColumnByID(ref.ID); ok {
				return "COLUMN " + t.QualifiedName() + "." + col.Name
			}
		}
	case depend.KindView:
		if v, ok := c.views[ref.ID]; ok {
			return "VIEW " + v.QualifiedName()
		}
	case depend.KindConstraint:
		if con, ok := c.constraints[ref.ID]; ok {
			return "CONSTRAINT " + con.QualifiedName()
		}
	case depend.KindIndex:
		if ix, ok := c.indexes[ref.ID]; ok {
			return "INDEX " + ix.QualifiedName()
		}
	case depend.KindTrigger:
		if t, ok := c.triggers[ref.ID]; ok {
			return "TRIGGER " + t.QualifiedName()
		}
	case depend.KindSynonym:
		if s, ok := c.synonyms[ref.ID]; ok {
			return "SYNONYM " + QualifiedName(s.Schema, s.Name)
		}
	}
	return ref.String()
}

// IsValid reports whether a dependent is still valid, i.e. has not been
// invalidated since it was last compiled.
func (c *Catalog) IsValid(ref depend.Ref) bool {
	return c.graph.IsValid(ref)
}

func sortedValues[T any](m map[primitives.ObjectID]*T, id func(*T) primitives.ObjectID) []*T {
	out := make([]*T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *T) int { return id(a).Compare(id(b)) })
	return out
}
