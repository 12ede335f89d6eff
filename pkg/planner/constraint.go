package planner

import (
	"context"
	"slices"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
)

// AddConstraint adds a constraint to an existing table, validating the rows
// already stored.
func (p *Planner) AddConstraint(ctx context.Context, tx *transaction.TransactionContext, schema, table string, def ConstraintDef) (*DDLResult, error) {
	return p.run(ctx, tx, "ALTER TABLE ADD CONSTRAINT", func(d *ddl) error {
		tbl, err := d.alterTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		return d.addConstraint(tbl, def)
	})
}

func resolveColumns(tbl *catalog.Table, names []string) ([]*catalog.Column, error) {
	out := make([]*catalog.Column, 0, len(names))
	for _, name := range names {
		col, err := catalog.ResolveColumn(tbl, name)
		if err != nil {
			return nil, err
		}
		if slices.Contains(out, col) {
			return nil, dberr.Newf(dberr.CategoryAlreadyExists, dberr.CodeDuplicateColumn,
				"column '%s' appears more than once in the constraint", col.Name)
		}
		out = append(out, col)
	}
	return out, nil
}

func columnIDs(cols []*catalog.Column) []primitives.ObjectID {
	out := make([]primitives.ObjectID, len(cols))
	for i, c := range cols {
		out[i] = c.ID
	}
	return out
}

func (d *ddl) addConstraint(tbl *catalog.Table, def ConstraintDef) error {
	cat := d.p.cat
	id := primitives.NewObjectID()
	con := &catalog.Constraint{
		ID:         id,
		Schema:     tbl.Schema,
		Name:       catalog.NormalizeName(def.Name),
		Type:       def.Type,
		TableID:    tbl.ID,
		Enabled:    true,
		DeleteRule: def.DeleteRule,
	}
	if con.Name == "" {
		con.Name = systemName(id)
		con.SystemNamed = true
	}

	var cols []*catalog.Column
	var err error
	if def.Type == catalog.CheckConstraint {
		cols, err = d.bindCheck(tbl, con, def.Check)
	} else {
		if len(def.Columns) == 0 {
			return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
				"%s constraint '%s' has no columns", def.Type, con.Name)
		}
		cols, err = resolveColumns(tbl, def.Columns)
	}
	if err != nil {
		return err
	}
	con.Columns = columnIDs(cols)

	var parentKey *catalog.Constraint
	switch def.Type {
	case catalog.CheckConstraint:
		if err := d.p.exec.ValidateCheck(tbl, con); err != nil {
			return err
		}
		if err := cat.AddConstraint(d.tx, con); err != nil {
			return err
		}

	case catalog.PrimaryKeyConstraint, catalog.UniqueConstraint:
		if def.Type == catalog.PrimaryKeyConstraint {
			if tbl, err = d.primaryKeyColumns(tbl, con, cols); err != nil {
				return err
			}
		}
		if err := d.addKeyed(tbl, con); err != nil {
			return err
		}

	case catalog.ForeignKeyConstraint:
		if parentKey, err = d.referencedKey(tbl, con, def); err != nil {
			return err
		}
		con.Referenced = parentKey.ID
		if err := d.addKeyed(tbl, con); err != nil {
			return err
		}
		if err := d.p.exec.ValidateForeignKey(tbl, con); err != nil {
			return err
		}

	default:
		return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "cannot add a %s constraint", def.Type)
	}

	d.addEdge(con.Ref(), tbl.Ref(), depend.UseName)
	for _, col := range cols {
		d.addEdge(con.Ref(), col.Ref(), depend.UseName|depend.UseType)
	}
	if parentKey != nil {
		d.addEdge(con.Ref(), parentKey.Ref(), depend.UseName)
		if parentKey.TableID != tbl.ID {
			d.addEdge(con.Ref(), depend.Ref{Kind: depend.KindTable, ID: parentKey.TableID}, depend.UseName)
		}
	}
	d.invalidateStatements(tbl.Ref(), depend.ReasonStructure)
	d.event(tbl.ID, catalog.ChangeAddConstraint, con.Name)
	return nil
}

// bindCheck parses a CHECK condition and resolves the columns it reads.
func (d *ddl) bindCheck(tbl *catalog.Table, con *catalog.Constraint, text string) ([]*catalog.Column, error) {
	ex, err := binder.Parse(text)
	if err != nil {
		return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
			"invalid CHECK condition for '%s': %v", con.Name, err)
	}
	for _, ref := range ex.References() {
		if ref.Qualifier != "" {
			return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
				"CHECK constraint '%s' cannot reference %s", con.Name, ref)
		}
	}
	con.Check = ex
	return resolveColumns(tbl, ex.ColumnNames(""))
}

// primaryKeyColumns enforces one primary key per table and makes its
// columns NOT NULL, failing if a column already holds NULLs.
func (d *ddl) primaryKeyColumns(tbl *catalog.Table, con *catalog.Constraint, cols []*catalog.Column) (*catalog.Table, error) {
	for _, other := range d.p.cat.ConstraintsOn(tbl.ID) {
		if other.Type == catalog.PrimaryKeyConstraint {
			return nil, dberr.Newf(dberr.CategoryAlreadyExists, dberr.CodeDuplicatePrimaryKey,
				"Table '%s' cannot have more than one primary key constraint.", tbl.QualifiedName())
		}
	}
	var nullable []*catalog.Column
	for _, col := range cols {
		if col.Nullable() {
			if err := d.p.exec.ValidateNotNull(tbl, col.Ordinal-1); err != nil {
				return nil, err
			}
			nullable = append(nullable, col)
		}
	}
	if len(nullable) == 0 {
		return tbl, nil
	}
	return d.p.cat.MutateTable(d.tx, tbl.ID, func(t *catalog.Table) error {
		for _, col := range nullable {
			cp := *col
			cp.Type = cp.Type.NotNull()
			t.Columns = catalog.ReplaceColumn(t.Columns, &cp)
		}
		return nil
	})
}

// addKeyed publishes a constraint enforced through a backing index.
func (d *ddl) addKeyed(tbl *catalog.Table, con *catalog.Constraint) error {
	ix, fresh := d.attachIndex(con)
	if err := d.p.cat.AddConstraint(d.tx, con); err != nil {
		return err
	}
	return d.publishIndex(tbl, con, ix, fresh)
}

// referencedKey resolves the parent PRIMARY KEY or UNIQUE constraint of a
// foreign key and takes a shared lock on the parent table.
func (d *ddl) referencedKey(tbl *catalog.Table, con *catalog.Constraint, def ConstraintDef) (*catalog.Constraint, error) {
	parentSchema := tbl.Schema
	if def.RefSchema != "" {
		parentSchema = catalog.NormalizeName(def.RefSchema)
	}
	parent, err := d.p.cat.LookupTable(parentSchema, def.RefTable)
	if err != nil {
		return nil, err
	}
	if parent.ID != tbl.ID {
		if err := d.lock(parent.ID, lock.SharedLock); err != nil {
			return nil, err
		}
	}

	var want []primitives.ObjectID
	if len(def.RefColumns) > 0 {
		refCols, err := resolveColumns(parent, def.RefColumns)
		if err != nil {
			return nil, err
		}
		want = columnIDs(refCols)
	}

	var key *catalog.Constraint
	for _, c := range d.p.cat.ConstraintsOn(parent.ID) {
		if want == nil && c.Type == catalog.PrimaryKeyConstraint {
			key = c
			break
		}
		if want != nil && (c.Type == catalog.PrimaryKeyConstraint || c.Type == catalog.UniqueConstraint) &&
			slices.Equal(c.Columns, want) {
			key = c
			break
		}
	}
	if key == nil {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeFKNoRefKey,
			"Constraint '%s' is invalid: there is no unique or primary key constraint on table '%s' that matches the number and types of the columns in the foreign key.",
			con.Name, parent.QualifiedName())
	}
	if len(key.Columns) != len(con.Columns) {
		return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeFKColumnCount,
			"Constraint '%s' is invalid: the number of columns in '%s' (%d) does not match the number of columns in the referenced key (%d).",
			con.Name, con.Name, len(con.Columns), len(key.Columns))
	}
	for i, id := range con.Columns {
		child, _ := tbl.ColumnByID(id)
		ref, _ := parent.ColumnByID(key.Columns[i])
		if child.Type.Base != ref.Type.Base && !child.Type.CanWidenTo(ref.Type) && !ref.Type.CanWidenTo(child.Type) {
			return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeFKNoRefKey,
				"Constraint '%s' is invalid: column '%s' does not match the type of referenced column '%s'.",
				con.Name, child.Name, ref.Name)
		}
	}
	return key, nil
}

// DropConstraint drops a named constraint. Foreign keys referencing it
// block RESTRICT and are dropped by CASCADE.
func (p *Planner) DropConstraint(ctx context.Context, tx *transaction.TransactionContext, schema, name string, mode DropMode) (*DDLResult, error) {
	return p.run(ctx, tx, "ALTER TABLE DROP CONSTRAINT", func(d *ddl) error {
		con, err := p.cat.LookupConstraint(schemaOf(schema), name)
		if err != nil {
			return err
		}
		if err := d.lock(con.TableID, lock.ExclusiveLock); err != nil {
			return err
		}
		deps := p.cat.Graph().WouldInvalidate(notStatement, con.Ref())
		if len(deps) > 0 {
			if mode == Restrict {
				return d.conflict("DROP CONSTRAINT", con.QualifiedName(), deps)
			}
			if err := d.dropDependents(deps); err != nil {
				return err
			}
		}
		if err := d.discard(con.Ref()); err != nil {
			return err
		}
		d.res.Dropped = append(d.res.Dropped, con.Ref())
		d.invalidateStatements(depend.Ref{Kind: depend.KindTable, ID: con.TableID}, depend.ReasonStructure)
		d.event(con.TableID, catalog.ChangeDropConstraint, con.Name)
		return nil
	})
}

// SetConstraintEnabled enables or disables a CHECK or FOREIGN KEY
// constraint. Disabled constraints are not checked by DML; enabling one
// validates the stored rows.
func (p *Planner) SetConstraintEnabled(ctx context.Context, tx *transaction.TransactionContext, schema, name string, enabled bool) (*DDLResult, error) {
	op := "ALTER TABLE DISABLE CONSTRAINT"
	if enabled {
		op = "ALTER TABLE ENABLE CONSTRAINT"
	}
	return p.run(ctx, tx, op, func(d *ddl) error {
		con, err := p.cat.LookupConstraint(schemaOf(schema), name)
		if err != nil {
			return err
		}
		if con.Type != catalog.CheckConstraint && con.Type != catalog.ForeignKeyConstraint {
			return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
				"%s constraint '%s' cannot be enabled or disabled", con.Type, con.Name)
		}
		if err := d.lock(con.TableID, lock.ExclusiveLock); err != nil {
			return err
		}
		if con.Enabled == enabled {
			return nil
		}
		if enabled {
			tbl, err := d.current(con.TableID)
			if err != nil {
				return err
			}
			if con.Type == catalog.CheckConstraint {
				err = p.exec.ValidateCheck(tbl, con)
			} else {
				err = p.exec.ValidateForeignKey(tbl, con)
			}
			if err != nil {
				return err
			}
		}
		if _, err := p.cat.MutateConstraint(d.tx, con.ID, func(c *catalog.Constraint) error {
			c.Enabled = enabled
			return nil
		}); err != nil {
			return err
		}
		d.invalidateStatements(depend.Ref{Kind: depend.KindTable, ID: con.TableID}, depend.ReasonStructure)
		d.event(con.TableID, catalog.ChangeAlterConstraint, con.Name)
		return nil
	})
}
