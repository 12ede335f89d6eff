package dml

import (
	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/types"
)

// The checks below validate the rows already stored in a table when a
// constraint is added to it.

// ValidateCheck fails with a check violation if any existing row makes the
// condition false.
func (e *Executor) ValidateCheck(tbl *catalog.Table, con *catalog.Constraint) error {
	h, err := e.store.Heap(tbl.ID)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "ValidateCheck", "dml")
	}
	for _, r := range h.Scan() {
		ok, err := con.Check.Satisfied(binder.Env{Columns: RowValues(tbl, r.Fields)})
		if err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "ValidateCheck", "dml")
		}
		if !ok {
			return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeCheckViolated,
				"Attempt to add or enable constraint '%s' failed: row %d of table '%s' violates it.",
				con.Name, r.ID, tbl.QualifiedName()).WithDetail("%s", con.Check.Text())
		}
	}
	return nil
}

// ValidateNotNull fails if any existing row holds NULL in the column at the
// 0-based slot.
func (e *Executor) ValidateNotNull(tbl *catalog.Table, slot int) error {
	h, err := e.store.Heap(tbl.ID)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "ValidateNotNull", "dml")
	}
	for _, r := range h.Scan() {
		if r.Fields[slot].IsNull() {
			return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeNullsInColumn,
				"Column '%s' of table '%s' contains null values.",
				tbl.Columns[slot].Name, tbl.QualifiedName())
		}
	}
	return nil
}

// PopulateIndex loads every existing row into a freshly created index.
func (e *Executor) PopulateIndex(tx *transaction.TransactionContext, tbl *catalog.Table, ix *catalog.Index) error {
	h, err := e.store.Heap(tbl.ID)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "PopulateIndex", "dml")
	}
	kix, ok := e.store.Index(ix.ID)
	if !ok {
		return dberr.Newf(dberr.CategorySystem, dberr.CodeInternal, "index %s has no storage", ix.Name)
	}
	for _, r := range h.Scan() {
		key, err := KeyFields(tbl, ix.Columns, r.Fields)
		if err != nil {
			return err
		}
		if err := kix.Insert(tx, key, r.ID); err != nil {
			return e.duplicateKey(err, tbl, ix)
		}
	}
	return nil
}

// RebuildIndex clears an index and reloads it against the current columns.
func (e *Executor) RebuildIndex(tx *transaction.TransactionContext, tbl *catalog.Table, ix *catalog.Index) error {
	kix, ok := e.store.Index(ix.ID)
	if !ok {
		return dberr.Newf(dberr.CategorySystem, dberr.CodeInternal, "index %s has no storage", ix.Name)
	}
	kix.Reset(tx)
	return e.PopulateIndex(tx, tbl, ix)
}

// ValidateForeignKey fails if an existing child row has a non-null key with
// no matching parent key.
func (e *Executor) ValidateForeignKey(tbl *catalog.Table, fk *catalog.Constraint) error {
	parent, ok := e.cat.ConstraintByID(fk.Referenced)
	if !ok {
		return dberr.Newf(dberr.CategoryNotFound, dberr.CodeConstraintNotFound,
			"referenced key of '%s' does not exist", fk.Name)
	}
	pix, ok := e.store.Index(parent.IndexID)
	if !ok {
		return dberr.Newf(dberr.CategorySystem, dberr.CodeInternal, "referenced key '%s' has no index", parent.Name)
	}
	h, err := e.store.Heap(tbl.ID)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "ValidateForeignKey", "dml")
	}
	for _, r := range h.Scan() {
		key, err := KeyFields(tbl, fk.Columns, r.Fields)
		if err != nil {
			return err
		}
		if types.AnyNull(key) || pix.Contains(key) {
			continue
		}
		return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeAddFKViolation,
			"Constraint '%s' is invalid: there is no unique or primary key constraint value matching %s.",
			fk.Name, keyString(key))
	}
	return nil
}
