package dml

import (
	"context"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// Assignment is one SET clause of an UPDATE.
type Assignment struct {
	Column string
	Value  *binder.Expression
}

// Insert runs INSERT INTO table (columns) VALUES rows. An empty column list
// binds every value row to all columns by position.
func (e *Executor) Insert(ctx context.Context, tx *transaction.TransactionContext, schema, table string, columns []string, rows [][]any) (int, error) {
	tbl, err := e.cat.LookupTable(schema, table)
	if err != nil {
		return 0, err
	}
	targets := tbl.Columns
	if len(columns) > 0 {
		targets = make([]*catalog.Column, len(columns))
		for i, name := range columns {
			col, err := catalog.ResolveColumn(tbl, name)
			if err != nil {
				return 0, err
			}
			targets[i] = col
		}
	}

	n := 0
	err = step(tx, func() error {
		for _, vals := range rows {
			if len(vals) != len(targets) {
				return dberr.Newf(dberr.CategorySystem, dberr.CodeColumnCountMismatch,
					"the number of values (%d) does not match the number of columns (%d)", len(vals), len(targets))
			}
			values := make(map[primitives.ObjectID]types.Field, len(vals))
			for i, v := range vals {
				f, err := coerce(tbl, targets[i], v)
				if err != nil {
					return err
				}
				values[targets[i].ID] = f
			}
			if _, err := e.insertRow(ctx, tx, tbl.ID, values, 0); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Update runs UPDATE table SET assignments WHERE where. A nil where
// updates every row. Values are computed from the row as it was before the
// statement.
func (e *Executor) Update(ctx context.Context, tx *transaction.TransactionContext, schema, table string, set []Assignment, where *binder.Expression) (int, error) {
	tbl, err := e.cat.LookupTable(schema, table)
	if err != nil {
		return 0, err
	}
	cols := make([]*catalog.Column, len(set))
	for i, a := range set {
		col, err := catalog.ResolveColumn(tbl, a.Column)
		if err != nil {
			return 0, err
		}
		cols[i] = col
	}
	if err := e.lockTable(ctx, tx, tbl.ID, lock.ExclusiveLock); err != nil {
		return 0, err
	}
	h, err := e.store.Heap(tbl.ID)
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeInternal, "Update", "dml")
	}

	n := 0
	err = step(tx, func() error {
		for _, r := range h.Scan() {
			env := binder.Env{Columns: RowValues(tbl, r.Fields)}
			ok, err := matches(where, env)
			if err != nil {
				return err
			}
			if _, present := h.Get(r.ID); !ok || !present {
				continue
			}
			changes := make(map[primitives.ObjectID]types.Field, len(set))
			for i, a := range set {
				v, err := a.Value.Eval(env)
				if err != nil {
					return dberr.Wrap(err, dberr.CodeInternal, "Update", "dml")
				}
				f, err := coerce(tbl, cols[i], v)
				if err != nil {
					return err
				}
				changes[cols[i].ID] = f
			}
			if err := e.updateRow(ctx, tx, tbl.ID, r.ID, changes, 0); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Delete runs DELETE FROM table WHERE where. Rows already removed by a
// cascade earlier in the statement are skipped.
func (e *Executor) Delete(ctx context.Context, tx *transaction.TransactionContext, schema, table string, where *binder.Expression) (int, error) {
	tbl, err := e.cat.LookupTable(schema, table)
	if err != nil {
		return 0, err
	}
	if err := e.lockTable(ctx, tx, tbl.ID, lock.ExclusiveLock); err != nil {
		return 0, err
	}
	h, err := e.store.Heap(tbl.ID)
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeInternal, "Delete", "dml")
	}

	n := 0
	err = step(tx, func() error {
		for _, r := range h.Scan() {
			ok, err := matches(where, binder.Env{Columns: RowValues(tbl, r.Fields)})
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, present := h.Get(r.ID); !present {
				continue
			}
			if err := e.deleteRow(ctx, tx, tbl.ID, r.ID, 0); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func matches(where *binder.Expression, env binder.Env) (bool, error) {
	if where == nil {
		return true, nil
	}
	t, err := where.Test(env)
	if err != nil {
		return false, dberr.Wrap(err, dberr.CodeInternal, "Where", "dml")
	}
	return t == binder.True, nil
}
