package dml

import (
	"context"
	"slices"

	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// InsertRow inserts one row into a table. values holds the explicitly set
// columns by id; identity columns that are not set draw their next value,
// other unset columns take their default or NULL.
func (e *Executor) InsertRow(ctx context.Context, tx *transaction.TransactionContext, tableID primitives.ObjectID, values map[primitives.ObjectID]types.Field) (primitives.RowID, error) {
	return e.insertRow(ctx, tx, tableID, values, 0)
}

// UpdateRow applies changes, keyed by column id, to an existing row.
func (e *Executor) UpdateRow(ctx context.Context, tx *transaction.TransactionContext, tableID primitives.ObjectID, rid primitives.RowID, changes map[primitives.ObjectID]types.Field) error {
	return e.updateRow(ctx, tx, tableID, rid, changes, 0)
}

// DeleteRow deletes an existing row.
func (e *Executor) DeleteRow(ctx context.Context, tx *transaction.TransactionContext, tableID primitives.ObjectID, rid primitives.RowID) error {
	return e.deleteRow(ctx, tx, tableID, rid, 0)
}

// BuildRow assembles a full row from explicitly set values, applying
// identity, default and NULL in that order for unset columns. Identity
// counters advance only for columns that were not set.
func BuildRow(tbl *catalog.Table, values map[primitives.ObjectID]types.Field) ([]types.Field, error) {
	row := make([]types.Field, len(tbl.Columns))
	for i, col := range tbl.Columns {
		v, set := values[col.ID]
		switch {
		case set:
			f, err := coerce(tbl, col, v)
			if err != nil {
				return nil, err
			}
			row[i] = f
			if col.Identity != nil && !f.IsNull() {
				if n, ok := f.Native().(int64); ok {
					col.Identity.Observe(n)
				}
			}
		case col.Identity != nil:
			f, err := coerce(tbl, col, col.Identity.NextValue())
			if err != nil {
				return nil, err
			}
			row[i] = f
		case col.Default != nil:
			f, err := coerce(tbl, col, col.Default.Value)
			if err != nil {
				return nil, err
			}
			row[i] = f
		default:
			row[i] = types.NewNull(col.Type.Base)
		}
	}
	return row, nil
}

func coerce(tbl *catalog.Table, col *catalog.Column, v any) (types.Field, error) {
	f, err := types.Coerce(v, col.Type)
	if err != nil {
		return nil, dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeTypeMismatch,
			"invalid value for column '%s' of table '%s'", col.Name, tbl.QualifiedName()).WithCause(err)
	}
	return f, nil
}

func (e *Executor) insertRow(ctx context.Context, tx *transaction.TransactionContext, tableID primitives.ObjectID, values map[primitives.ObjectID]types.Field, depth int) (primitives.RowID, error) {
	if err := e.lockTable(ctx, tx, tableID, lock.ExclusiveLock); err != nil {
		return primitives.InvalidRowID, err
	}
	tbl, h, err := e.table(tableID)
	if err != nil {
		return primitives.InvalidRowID, err
	}

	var rid primitives.RowID
	err = step(tx, func() error {
		row, err := BuildRow(tbl, values)
		if err != nil {
			return err
		}
		if err := e.checkRow(ctx, tx, tbl, row, "INSERT"); err != nil {
			return err
		}
		rid, err = h.Insert(tx, row)
		if err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "InsertRow", "dml")
		}
		if err := e.indexInsert(tx, tbl, rid, row); err != nil {
			return err
		}
		tx.RecordRowWrite()
		return e.fire(ctx, tx, tbl, catalog.TriggerInsert, nil, row, nil, depth)
	})
	if err != nil {
		return primitives.InvalidRowID, err
	}
	return rid, nil
}

func (e *Executor) updateRow(ctx context.Context, tx *transaction.TransactionContext, tableID primitives.ObjectID, rid primitives.RowID, changes map[primitives.ObjectID]types.Field, depth int) error {
	if err := e.lockTable(ctx, tx, tableID, lock.ExclusiveLock); err != nil {
		return err
	}
	tbl, h, err := e.table(tableID)
	if err != nil {
		return err
	}
	old, ok := h.Get(rid)
	if !ok {
		return dberr.Newf(dberr.CategoryState, dberr.CodeNoCurrentRow,
			"row %d of table '%s' no longer exists", rid, tbl.QualifiedName())
	}

	return step(tx, func() error {
		row := slices.Clone(old)
		var changed []primitives.ObjectID
		for _, col := range tbl.Columns {
			v, set := changes[col.ID]
			if !set {
				continue
			}
			f, err := coerce(tbl, col, v)
			if err != nil {
				return err
			}
			row[col.Ordinal-1] = f
			changed = append(changed, col.ID)
		}
		if err := e.checkRow(ctx, tx, tbl, row, "UPDATE"); err != nil {
			return err
		}
		if err := e.checkReferencedKeysKept(ctx, tx, tbl, old, row); err != nil {
			return err
		}
		e.indexDelete(tx, tbl, rid, old)
		if err := e.indexInsert(tx, tbl, rid, row); err != nil {
			return err
		}
		if err := h.Update(tx, rid, row); err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "UpdateRow", "dml")
		}
		tx.RecordRowWrite()
		return e.fire(ctx, tx, tbl, catalog.TriggerUpdate, old, row, changed, depth)
	})
}

func (e *Executor) deleteRow(ctx context.Context, tx *transaction.TransactionContext, tableID primitives.ObjectID, rid primitives.RowID, depth int) error {
	if err := e.lockTable(ctx, tx, tableID, lock.ExclusiveLock); err != nil {
		return err
	}
	tbl, h, err := e.table(tableID)
	if err != nil {
		return err
	}
	old, ok := h.Get(rid)
	if !ok {
		return dberr.Newf(dberr.CategoryState, dberr.CodeNoCurrentRow,
			"row %d of table '%s' no longer exists", rid, tbl.QualifiedName())
	}

	return step(tx, func() error {
		if err := e.deleteReferencing(ctx, tx, tbl, old, depth); err != nil {
			return err
		}
		// A cascade through a self-referencing key may already have removed it.
		if _, still := h.Get(rid); !still {
			return nil
		}
		e.indexDelete(tx, tbl, rid, old)
		if err := h.Delete(tx, rid); err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "DeleteRow", "dml")
		}
		tx.RecordRowDelete()
		return e.fire(ctx, tx, tbl, catalog.TriggerDelete, old, nil, nil, depth)
	})
}
