package planner

import (
	"context"
	"slices"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/types"
)

// alterColumn is the common shape of ALTER TABLE ... ALTER COLUMN: lock the
// table, resolve the column and publish the replacement fn builds.
func (p *Planner) alterColumn(ctx context.Context, tx *transaction.TransactionContext, op, schema, table, column string,
	fn func(d *ddl, tbl *catalog.Table, col *catalog.Column) (*catalog.Column, catalog.ChangeKind, error)) (*DDLResult, error) {
	return p.run(ctx, tx, op, func(d *ddl) error {
		tbl, err := d.alterTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		col, err := catalog.ResolveColumn(tbl, column)
		if err != nil {
			return err
		}
		next, kind, err := fn(d, tbl, col)
		if err != nil || next == nil {
			return err
		}
		if _, err := p.cat.MutateTable(d.tx, tbl.ID, func(t *catalog.Table) error {
			t.Columns = catalog.ReplaceColumn(t.Columns, next)
			return nil
		}); err != nil {
			return err
		}
		d.invalidate(col.Ref(), depend.ReasonTypeChange, usesType)
		d.invalidateStatements(tbl.Ref(), depend.ReasonStructure)
		d.event(tbl.ID, kind, col.Name)
		return nil
	})
}

// SetNullable is ALTER COLUMN NULL / NOT NULL. Primary key columns cannot
// become nullable and a column holding NULLs cannot become NOT NULL.
func (p *Planner) SetNullable(ctx context.Context, tx *transaction.TransactionContext, schema, table, column string, nullable bool) (*DDLResult, error) {
	return p.alterColumn(ctx, tx, "ALTER TABLE ALTER COLUMN NULL", schema, table, column,
		func(d *ddl, tbl *catalog.Table, col *catalog.Column) (*catalog.Column, catalog.ChangeKind, error) {
			if col.Nullable() == nullable {
				return nil, 0, nil
			}
			if nullable {
				if col.Identity != nil {
					return nil, 0, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
						"identity column '%s' cannot be nullable", col.Name)
				}
				for _, con := range p.cat.ConstraintsOn(tbl.ID) {
					if con.Type == catalog.PrimaryKeyConstraint && slices.Contains(con.Columns, col.ID) {
						return nil, 0, dberr.Newf(dberr.CategoryDependencyConflict, dberr.CodeNullableKeyColumn,
							"'%s' cannot be a column of a primary key because it can contain null values.", col.Name)
					}
				}
			} else if err := p.exec.ValidateNotNull(tbl, col.Ordinal-1); err != nil {
				return nil, 0, err
			}
			next := *col
			next.Type = col.Type.WithNullable(nullable)
			return &next, catalog.ChangeAlterColumn, nil
		})
}

// SetDefault is ALTER COLUMN DEFAULT. A nil value drops the default.
func (p *Planner) SetDefault(ctx context.Context, tx *transaction.TransactionContext, schema, table, column string, value any) (*DDLResult, error) {
	return p.alterColumn(ctx, tx, "ALTER TABLE ALTER COLUMN DEFAULT", schema, table, column,
		func(d *ddl, tbl *catalog.Table, col *catalog.Column) (*catalog.Column, catalog.ChangeKind, error) {
			if col.Identity != nil {
				return nil, 0, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
					"identity column '%s' cannot have a default", col.Name)
			}
			next := *col
			next.Default = nil
			if value != nil {
				v, err := types.Coerce(value, col.Type)
				if err != nil {
					return nil, 0, dberr.Newf(dberr.CategorySystem, dberr.CodeTypeMismatch,
						"invalid default for column '%s': %v", col.Name, err)
				}
				next.Default = &catalog.Default{Value: v}
			}
			return &next, catalog.ChangeAlterColumn, nil
		})
}

// SetDataType is ALTER COLUMN SET DATA TYPE. Only widening changes are
// accepted; the column keeps its nullability. Result sets that are already
// open keep describing the old type.
func (p *Planner) SetDataType(ctx context.Context, tx *transaction.TransactionContext, schema, table, column string, dt types.DataType) (*DDLResult, error) {
	return p.alterColumn(ctx, tx, "ALTER TABLE ALTER COLUMN SET DATA TYPE", schema, table, column,
		func(d *ddl, tbl *catalog.Table, col *catalog.Column) (*catalog.Column, catalog.ChangeKind, error) {
			if err := dt.Validate(); err != nil {
				return nil, 0, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "column '%s': %v", col.Name, err)
			}
			if !col.Type.CanWidenTo(dt) {
				return nil, 0, dberr.Newf(dberr.CategorySystem, dberr.CodeNotWidening,
					"Invalid type specified for column '%s'. The type of a column may only be changed to a wider type of the same family: %s to %s.",
					col.Name, col.Type, dt.WithNullable(col.Nullable()))
			}
			next := *col
			next.Type = dt.WithNullable(col.Nullable())

			if col.Type.Base == types.IntType && dt.Base == types.BigIntType {
				h, err := p.store.Heap(tbl.ID)
				if err != nil {
					return nil, 0, dberr.Wrap(err, dberr.CodeInternal, "SetDataType", "planner")
				}
				h.SetColumn(d.tx, col.Ordinal-1, func(f types.Field) types.Field {
					if n, ok := f.(*types.IntField); ok {
						return types.NewBigIntField(n.Value)
					}
					if f.IsNull() {
						return types.NewNull(types.BigIntType)
					}
					return f
				})
			}
			return &next, catalog.ChangeAlterType, nil
		})
}

func identityOf(col *catalog.Column) (*catalog.Identity, error) {
	if col.Identity == nil {
		return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
			"Column '%s' is not an identity column.", col.Name)
	}
	return col.Identity, nil
}

// resetIdentity changes an identity counter and records the inverse change.
func (d *ddl) resetIdentity(id *catalog.Identity, next, increment int64) {
	prevNext, prevInc := id.Reset(next, increment)
	d.tx.RecordUndo("reset identity", func() error {
		id.Reset(prevNext, prevInc)
		return nil
	})
}

// RestartIdentity is ALTER COLUMN RESTART WITH next.
func (p *Planner) RestartIdentity(ctx context.Context, tx *transaction.TransactionContext, schema, table, column string, next int64) (*DDLResult, error) {
	return p.alterColumn(ctx, tx, "ALTER TABLE ALTER COLUMN RESTART", schema, table, column,
		func(d *ddl, tbl *catalog.Table, col *catalog.Column) (*catalog.Column, catalog.ChangeKind, error) {
			id, err := identityOf(col)
			if err != nil {
				return nil, 0, err
			}
			d.resetIdentity(id, next, 0)
			d.event(tbl.ID, catalog.ChangeAlterColumn, col.Name)
			return nil, 0, nil
		})
}

// SetIncrement is ALTER COLUMN SET INCREMENT BY increment.
func (p *Planner) SetIncrement(ctx context.Context, tx *transaction.TransactionContext, schema, table, column string, increment int64) (*DDLResult, error) {
	return p.alterColumn(ctx, tx, "ALTER TABLE ALTER COLUMN SET INCREMENT", schema, table, column,
		func(d *ddl, tbl *catalog.Table, col *catalog.Column) (*catalog.Column, catalog.ChangeKind, error) {
			if increment == 0 {
				return nil, 0, dberr.New(dberr.CategorySystem, dberr.CodeInvalidRequest, "identity increment cannot be zero")
			}
			id, err := identityOf(col)
			if err != nil {
				return nil, 0, err
			}
			d.resetIdentity(id, id.Current(), increment)
			d.event(tbl.ID, catalog.ChangeAlterColumn, col.Name)
			return nil, 0, nil
		})
}
