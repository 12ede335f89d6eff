package planner

import (
	"context"
	"slices"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
)

// RenameColumn renames a column in place; its id, ordinal and identity
// counter are unchanged. It fails when a foreign key references the column
// or a CHECK constraint or view reads it by name. Triggers that use the
// column get their action text regenerated.
func (p *Planner) RenameColumn(ctx context.Context, tx *transaction.TransactionContext, schema, table, column, newName string) (*DDLResult, error) {
	return p.run(ctx, tx, "RENAME COLUMN", func(d *ddl) error {
		tbl, err := d.alterTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		col, err := catalog.ResolveColumn(tbl, column)
		if err != nil {
			return err
		}
		newName = catalog.NormalizeName(newName)
		if newName == col.Name {
			return nil
		}
		if _, taken := tbl.Column(newName); taken {
			return dberr.Newf(dberr.CategoryAlreadyExists, dberr.CodeDuplicateColumn,
				"Column '%s' already exists in Table/View '%s'.", newName, tbl.QualifiedName())
		}

		for _, con := range p.cat.ConstraintsOn(tbl.ID) {
			if !slices.Contains(con.Columns, col.ID) {
				continue
			}
			switch con.Type {
			case catalog.PrimaryKeyConstraint, catalog.UniqueConstraint:
				if fks := p.cat.ReferencingKeys(con.ID); len(fks) > 0 {
					return dberr.Newf(dberr.CategoryDependencyConflict, dberr.CodeRenameReferencedColumn,
						"Column '%s' cannot be renamed because it is referenced by foreign key constraint '%s'.",
						col.Name, fks[0].QualifiedName())
				}
			case catalog.CheckConstraint:
				return dberr.Newf(dberr.CategoryDependencyConflict, dberr.CodeRenameBreaksCheck,
					"Operation 'RENAME' cannot be performed on column '%s' because CHECK constraint '%s' references it.",
					col.Name, con.QualifiedName()).WithDetail("%s", con.Check.Text())
			}
		}

		g := p.cat.Graph()
		var triggers []*catalog.Trigger
		for _, dep := range g.DependentsOf(col.Ref()) {
			switch dep.Kind {
			case depend.KindView:
				return d.conflict("RENAME", col.Name, []depend.Ref{dep})
			case depend.KindTrigger:
				if trg, ok := p.cat.TriggerByID(dep.ID); ok {
					triggers = append(triggers, trg)
				}
			}
		}

		if _, err := p.cat.MutateTable(d.tx, tbl.ID, func(t *catalog.Table) error {
			next := *col
			next.Name = newName
			t.Columns = catalog.ReplaceColumn(t.Columns, &next)
			return nil
		}); err != nil {
			return err
		}
		for _, trg := range triggers {
			if err := d.renameInTrigger(trg, tbl, col.Name, newName); err != nil {
				return err
			}
		}
		d.invalidateStatements(tbl.Ref(), depend.ReasonRenamed)
		d.event(tbl.ID, catalog.ChangeRename, newName)
		return nil
	})
}

// renameInTrigger regenerates a trigger's action after a column of tbl was
// renamed. NEW and OLD references follow the column when tbl is the
// trigger's table; bare references and the insert column list follow it
// when tbl is the action's target.
func (d *ddl) renameInTrigger(trg *catalog.Trigger, tbl *catalog.Table, oldName, newName string) error {
	rename := func(ex *binder.Expression) (*binder.Expression, error) {
		if ex == nil {
			return nil, nil
		}
		var err error
		if trg.TableID == tbl.ID {
			for _, q := range []string{binder.QualifierNew, binder.QualifierOld} {
				if ex, _, err = ex.RenameColumn(q, oldName, newName); err != nil {
					return nil, err
				}
			}
		}
		if trg.Action.TargetID == tbl.ID {
			if ex, _, err = ex.RenameColumn("", oldName, newName); err != nil {
				return nil, err
			}
		}
		return ex, nil
	}

	_, err := d.p.cat.MutateTrigger(d.tx, trg.ID, func(next *catalog.Trigger) error {
		for i, v := range next.Action.Values {
			renamed, err := rename(v)
			if err != nil {
				return err
			}
			next.Action.Values[i] = renamed
		}
		where, err := rename(next.Action.Where)
		if err != nil {
			return err
		}
		next.Action.Where = where
		if trg.Action.TargetID == tbl.ID {
			for i, c := range next.Action.Columns {
				if catalog.NormalizeName(c) == oldName {
					next.Action.Columns[i] = newName
				}
			}
		}
		return nil
	})
	if err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "RenameColumn", "planner")
	}
	d.p.cat.Graph().MarkInvalid(d.tx, trg.Ref(), depend.ReasonRenamed)
	d.res.Invalidated = append(d.res.Invalidated, trg.Ref())
	return nil
}

// RenameTable renames a table. Views, foreign keys of other tables and
// triggers of other tables that depend on it block the rename.
func (p *Planner) RenameTable(ctx context.Context, tx *transaction.TransactionContext, schema, table, newName string) (*DDLResult, error) {
	return p.run(ctx, tx, "RENAME TABLE", func(d *ddl) error {
		tbl, err := d.alterTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		for _, dep := range p.cat.Graph().DependentsOf(tbl.Ref()) {
			blocks := false
			switch dep.Kind {
			case depend.KindView:
				blocks = true
			case depend.KindTrigger:
				trg, ok := p.cat.TriggerByID(dep.ID)
				blocks = ok && trg.TableID != tbl.ID
			case depend.KindConstraint:
				con, ok := p.cat.ConstraintByID(dep.ID)
				blocks = ok && con.TableID != tbl.ID
			}
			if blocks {
				return d.conflict("RENAME", tbl.QualifiedName(), []depend.Ref{dep})
			}
		}

		if _, err := p.cat.MutateTable(d.tx, tbl.ID, func(t *catalog.Table) error {
			t.Name = catalog.NormalizeName(newName)
			return nil
		}); err != nil {
			return err
		}
		d.invalidateStatements(tbl.Ref(), depend.ReasonRenamed)
		d.event(tbl.ID, catalog.ChangeRename, catalog.NormalizeName(newName))
		return nil
	})
}
