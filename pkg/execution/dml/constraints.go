package dml

import (
	"context"
	"errors"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
	"dictengine/pkg/storage/index"
	"dictengine/pkg/types"
)

// checkRow validates NOT NULL, CHECK and child-side FOREIGN KEY constraints
// of a row about to be stored. Unique keys are enforced by the index insert.
func (e *Executor) checkRow(ctx context.Context, tx *transaction.TransactionContext, tbl *catalog.Table, row []types.Field, op string) error {
	for i, col := range tbl.Columns {
		if !col.Nullable() && row[i].IsNull() {
			return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeNullIntoNonNull,
				"Column '%s' cannot accept a NULL value.", col.Name).
				WithDetail("table %s", tbl.QualifiedName())
		}
	}

	env := binder.Env{Columns: RowValues(tbl, row)}
	for _, con := range e.cat.ConstraintsOn(tbl.ID) {
		if !con.Enabled {
			continue
		}
		switch con.Type {
		case catalog.CheckConstraint:
			ok, err := con.Check.Satisfied(env)
			if err != nil {
				return dberr.Wrap(err, dberr.CodeInternal, "CheckConstraint", "dml")
			}
			if !ok {
				return checkViolated(con, tbl, op)
			}
		case catalog.ForeignKeyConstraint:
			if err := e.checkParentExists(ctx, tx, tbl, con, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkViolated(con *catalog.Constraint, tbl *catalog.Table, op string) error {
	return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeCheckViolated,
		"The check constraint '%s' was violated while performing an %s on table '%s'.",
		con.Name, op, tbl.QualifiedName()).WithDetail("%s", con.Check.Text())
}

func (e *Executor) checkParentExists(ctx context.Context, tx *transaction.TransactionContext, tbl *catalog.Table, fk *catalog.Constraint, row []types.Field) error {
	key, err := KeyFields(tbl, fk.Columns, row)
	if err != nil {
		return err
	}
	if types.AnyNull(key) {
		return nil
	}
	parent, ok := e.cat.ConstraintByID(fk.Referenced)
	if !ok {
		return dberr.Newf(dberr.CategorySystem, dberr.CodeInternal,
			"foreign key '%s' references a missing key", fk.Name)
	}
	if parent.TableID != tbl.ID {
		if err := e.lockTable(ctx, tx, parent.TableID, lock.SharedLock); err != nil {
			return err
		}
	}
	pix, ok := e.store.Index(parent.IndexID)
	if !ok || !pix.Contains(key) {
		return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeFKViolation,
			"INSERT on table '%s' caused a violation of foreign key constraint '%s' for key %s.",
			tbl.QualifiedName(), fk.Name, keyString(key))
	}
	return nil
}

// checkReferencedKeysKept rejects an update that changes a referenced key
// while child rows still point at the old value.
func (e *Executor) checkReferencedKeysKept(ctx context.Context, tx *transaction.TransactionContext, tbl *catalog.Table, old, row []types.Field) error {
	for _, con := range e.cat.ConstraintsOn(tbl.ID) {
		if con.Type != catalog.PrimaryKeyConstraint && con.Type != catalog.UniqueConstraint {
			continue
		}
		oldKey, err := KeyFields(tbl, con.Columns, old)
		if err != nil {
			return err
		}
		newKey, err := KeyFields(tbl, con.Columns, row)
		if err != nil {
			return err
		}
		if types.KeyOf(oldKey) == types.KeyOf(newKey) {
			continue
		}
		for _, fk := range e.cat.ReferencingKeys(con.ID) {
			if !fk.Enabled {
				continue
			}
			children, err := e.childRows(ctx, tx, fk, oldKey, lock.SharedLock)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeFKViolation,
					"UPDATE on table '%s' caused a violation of foreign key constraint '%s' for key %s.",
					tbl.QualifiedName(), fk.Name, keyString(oldKey))
			}
		}
	}
	return nil
}

// deleteReferencing applies the delete rule of every foreign key that
// references a key of the row being deleted.
func (e *Executor) deleteReferencing(ctx context.Context, tx *transaction.TransactionContext, tbl *catalog.Table, old []types.Field, depth int) error {
	for _, con := range e.cat.ConstraintsOn(tbl.ID) {
		if con.Type != catalog.PrimaryKeyConstraint && con.Type != catalog.UniqueConstraint {
			continue
		}
		key, err := KeyFields(tbl, con.Columns, old)
		if err != nil {
			return err
		}
		for _, fk := range e.cat.ReferencingKeys(con.ID) {
			if !fk.Enabled {
				continue
			}
			mode := lock.SharedLock
			if fk.DeleteRule == catalog.DeleteCascade {
				mode = lock.ExclusiveLock
			}
			children, err := e.childRows(ctx, tx, fk, key, mode)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				continue
			}
			if fk.DeleteRule == catalog.DeleteRestrict {
				return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeFKViolation,
					"DELETE on table '%s' caused a violation of foreign key constraint '%s' for key %s.",
					tbl.QualifiedName(), fk.Name, keyString(key))
			}
			for _, rid := range children {
				if err := e.deleteIfPresent(ctx, tx, fk.TableID, rid, depth); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *Executor) deleteIfPresent(ctx context.Context, tx *transaction.TransactionContext, tableID primitives.ObjectID, rid primitives.RowID, depth int) error {
	h, err := e.store.Heap(tableID)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "CascadeDelete", "dml")
	}
	if _, ok := h.Get(rid); !ok {
		return nil
	}
	return e.deleteRow(ctx, tx, tableID, rid, depth)
}

func (e *Executor) childRows(ctx context.Context, tx *transaction.TransactionContext, fk *catalog.Constraint, key []types.Field, mode lock.LockType) ([]primitives.RowID, error) {
	if types.AnyNull(key) {
		return nil, nil
	}
	if err := e.lockTable(ctx, tx, fk.TableID, mode); err != nil {
		return nil, err
	}
	ix, ok := e.store.Index(fk.IndexID)
	if !ok {
		return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInternal,
			"foreign key '%s' has no backing index", fk.Name)
	}
	return ix.Lookup(key), nil
}

// indexInsert adds the row to every index of the table. A duplicate in a
// unique index is reported against the constraint that owns it.
func (e *Executor) indexInsert(tx *transaction.TransactionContext, tbl *catalog.Table, rid primitives.RowID, row []types.Field) error {
	for _, ix := range e.cat.IndexesOn(tbl.ID) {
		kix, ok := e.store.Index(ix.ID)
		if !ok {
			continue
		}
		key, err := KeyFields(tbl, ix.Columns, row)
		if err != nil {
			return err
		}
		if err := kix.Insert(tx, key, rid); err != nil {
			return e.duplicateKey(err, tbl, ix)
		}
	}
	return nil
}

func (e *Executor) duplicateKey(err error, tbl *catalog.Table, ix *catalog.Index) error {
	var dup *index.DuplicateKeyError
	if !errors.As(err, &dup) {
		return dberr.Wrap(err, dberr.CodeInternal, "IndexInsert", "dml")
	}
	name := ix.Name
	for _, owner := range ix.Owners {
		if con, ok := e.cat.ConstraintByID(owner); ok && con.Type != catalog.ForeignKeyConstraint {
			name = con.Name
			break
		}
	}
	return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeDuplicateKey,
		"The statement was aborted because it would have caused a duplicate key value in a unique or primary key constraint or unique index identified by '%s' defined on '%s'.",
		name, tbl.QualifiedName()).WithCause(err)
}

func (e *Executor) indexDelete(tx *transaction.TransactionContext, tbl *catalog.Table, rid primitives.RowID, row []types.Field) {
	for _, ix := range e.cat.IndexesOn(tbl.ID) {
		kix, ok := e.store.Index(ix.ID)
		if !ok {
			continue
		}
		key, err := KeyFields(tbl, ix.Columns, row)
		if err != nil {
			continue
		}
		kix.Delete(tx, key, rid)
	}
}

func keyString(key []types.Field) string {
	s := "("
	for i, f := range key {
		if i > 0 {
			s += ", "
		}
		s += f.String()
	}
	return s + ")"
}
