package planner

import (
	"context"
	"slices"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// AddColumn appends a column. A NOT NULL column without a default or
// identity can only be added to an empty table.
func (p *Planner) AddColumn(ctx context.Context, tx *transaction.TransactionContext, schema, table string, def ColumnDef) (*DDLResult, error) {
	return p.run(ctx, tx, "ALTER TABLE ADD COLUMN", func(d *ddl) error {
		tbl, err := d.alterTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		col, err := newColumn(def)
		if err != nil {
			return err
		}
		if _, dup := tbl.Column(col.Name); dup {
			return dberr.Newf(dberr.CategoryAlreadyExists, dberr.CodeDuplicateColumn,
				"Column '%s' already exists in Table/View '%s'.", col.Name, tbl.QualifiedName())
		}
		if !col.Nullable() && col.Default == nil && col.Identity == nil {
			empty, err := p.cat.IsEmpty(tbl.ID)
			if err != nil {
				return err
			}
			if !empty {
				return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeNonNullOnNonEmpty,
					"In an ALTER TABLE statement, the column '%s' has been specified as NOT NULL and either the DEFAULT clause was not specified or was specified as DEFAULT NULL.",
					col.Name)
			}
		}

		h, err := p.store.Heap(tbl.ID)
		if err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "AddColumn", "planner")
		}
		fill := make(map[primitives.RowID]types.Field)
		for _, r := range h.Scan() {
			switch {
			case col.Identity != nil:
				fill[r.ID] = &types.IntField{Value: col.Identity.NextValue(), Wide: col.Type.Base == types.BigIntType}
			case col.Default != nil:
				fill[r.ID] = col.Default.Value
			default:
				fill[r.ID] = types.NewNull(col.Type.Base)
			}
		}
		h.AddColumnSlot(d.tx, func(rid primitives.RowID) types.Field { return fill[rid] })

		if _, err := p.cat.MutateTable(d.tx, tbl.ID, func(t *catalog.Table) error {
			t.Columns = append(t.Columns, col)
			return nil
		}); err != nil {
			return err
		}
		d.invalidate(tbl.Ref(), depend.ReasonPositionShift, usesPosition)
		d.invalidateStatements(tbl.Ref(), depend.ReasonStructure)
		d.event(tbl.ID, catalog.ChangeAddColumn, col.Name)
		return nil
	})
}

// DropColumn drops a column. Under RESTRICT any view, constraint or trigger
// that depends on the column fails the operation; under CASCADE they are
// dropped leaves first. Plain indexes never block: one on the column alone
// is dropped, a wider one loses the column. Later columns move down one
// ordinal and column grants are remapped.
func (p *Planner) DropColumn(ctx context.Context, tx *transaction.TransactionContext, schema, table, column string, mode DropMode) (*DDLResult, error) {
	return p.run(ctx, tx, "ALTER TABLE DROP COLUMN", func(d *ddl) error {
		tbl, err := d.alterTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		col, err := catalog.ResolveColumn(tbl, column)
		if err != nil {
			return err
		}
		if len(tbl.Columns) == 1 {
			return dberr.Newf(dberr.CategoryDependencyConflict, dberr.CodeProviderHasDependent,
				"ALTER TABLE '%s' specified dropping column '%s', but it is the *last* column; a table must have at least one column.",
				tbl.QualifiedName(), col.Name)
		}

		g := p.cat.Graph()
		deps := g.WouldInvalidate(notStatement, col.Ref())
		if len(deps) > 0 {
			if mode == Restrict {
				return d.conflict("DROP COLUMN", col.Name, deps)
			}
			if err := d.dropDependents(deps); err != nil {
				return err
			}
		}

		var rebuild []*catalog.Index
		for _, ix := range p.cat.IndexesOn(tbl.ID) {
			if !slices.Contains(ix.Columns, col.ID) {
				continue
			}
			if len(ix.Columns) == 1 {
				if err := d.removeIndex(ix); err != nil {
					return err
				}
				d.warn(dberr.WarnIndexDropped, ix.QualifiedName(), tbl.QualifiedName(),
					"The index %s on table %s has been dropped.", ix.QualifiedName(), tbl.QualifiedName())
				continue
			}
			next, err := p.cat.MutateIndex(d.tx, ix.ID, func(next *catalog.Index) error {
				next.Columns = slices.DeleteFunc(next.Columns, func(id primitives.ObjectID) bool { return id == col.ID })
				return nil
			})
			if err != nil {
				return err
			}
			rebuild = append(rebuild, next)
		}

		h, err := p.store.Heap(tbl.ID)
		if err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "DropColumn", "planner")
		}
		if err := h.DropColumnSlot(d.tx, col.Ordinal-1); err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "DropColumn", "planner")
		}
		next, err := p.cat.MutateTable(d.tx, tbl.ID, func(t *catalog.Table) error {
			t.Columns = slices.DeleteFunc(t.Columns, func(c *catalog.Column) bool { return c.ID == col.ID })
			return nil
		})
		if err != nil {
			return err
		}
		for _, ix := range rebuild {
			if err := p.exec.RebuildIndex(d.tx, next, ix); err != nil {
				return err
			}
		}

		d.invalidate(col.Ref(), depend.ReasonDropped, isStatement)
		g.RemoveProvider(d.tx, col.Ref())
		d.invalidate(tbl.Ref(), depend.ReasonPositionShift, usesPosition)
		d.invalidateStatements(tbl.Ref(), depend.ReasonStructure)
		p.cat.RemapGrantsAfterDrop(d.tx, tbl.ID, col.Ordinal-1)
		d.event(tbl.ID, catalog.ChangeDropColumn, col.Name)
		return nil
	})
}
