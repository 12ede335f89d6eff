package cursor

import (
	"context"

	"go.uber.org/zap"

	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// Writer applies row changes made through an updatable cursor. Values are
// keyed by base column id.
type Writer interface {
	InsertRow(ctx context.Context, tableID primitives.ObjectID, values map[primitives.ObjectID]types.Field) (primitives.RowID, error)
	UpdateRow(ctx context.Context, tableID primitives.ObjectID, rid primitives.RowID, changes map[primitives.ObjectID]types.Field) error
	DeleteRow(ctx context.Context, tableID primitives.ObjectID, rid primitives.RowID) error
}

// TxWriter writes through a DML executor in the session's current
// transaction.
type TxWriter struct {
	Exec *dml.Executor
	Tx   func() *transaction.TransactionContext
}

func (w TxWriter) InsertRow(ctx context.Context, tableID primitives.ObjectID, values map[primitives.ObjectID]types.Field) (primitives.RowID, error) {
	return w.Exec.InsertRow(ctx, w.Tx(), tableID, values)
}

func (w TxWriter) UpdateRow(ctx context.Context, tableID primitives.ObjectID, rid primitives.RowID, changes map[primitives.ObjectID]types.Field) error {
	return w.Exec.UpdateRow(ctx, w.Tx(), tableID, rid, changes)
}

func (w TxWriter) DeleteRow(ctx context.Context, tableID primitives.ObjectID, rid primitives.RowID) error {
	return w.Exec.DeleteRow(ctx, w.Tx(), tableID, rid)
}

// Update stages a value for column col. On the insert row it sets the
// column of the row being built; on a row it is applied by UpdateRow.
// Storage is not touched and the cursor does not move.
func (c *Cursor) Update(col int, v any) error {
	if err := c.checkUpdatable("updateObject"); err != nil {
		return err
	}
	idx, err := c.columnIndex(col)
	if err != nil {
		return err
	}
	base, err := c.baseColumn(idx)
	if err != nil {
		return err
	}
	f, err := types.Coerce(v, base.Type)
	if err != nil {
		return dberr.Newf(dberr.CategorySystem, dberr.CodeTypeMismatch,
			"Cannot assign %v to column '%s' of type %s.", v, base.Name, base.Type).WithCause(err)
	}

	switch c.st.pos {
	case InsertRow:
		c.insert[idx] = f
	case OnRow:
		if c.holes[c.st.row] {
			return c.rowIsHole()
		}
		if c.pending == nil {
			c.pending = make(map[int]types.Field)
		}
		c.pending[idx] = f
	default:
		return c.noCurrentRow()
	}
	return nil
}

// UpdateByName is Update with the column named.
func (c *Cursor) UpdateByName(name string, v any) error {
	col, err := c.FindColumn(name)
	if err != nil {
		return err
	}
	return c.Update(col, v)
}

// UpdateRow writes the staged values of the current row to its table. A
// forward-only cursor is left between rows afterwards; a scrollable cursor
// stays on the row and reports it as updated.
func (c *Cursor) UpdateRow(ctx context.Context) error {
	if err := c.checkRowChange("updateRow"); err != nil {
		return err
	}

	if len(c.pending) > 0 {
		changes := make(map[primitives.ObjectID]types.Field, len(c.pending))
		for idx, f := range c.pending {
			changes[c.plan.Columns[idx].Base] = f
		}
		if err := c.writer.UpdateRow(ctx, c.plan.Table.ID, c.current.RowID, changes); err != nil {
			return c.writeFailed("updateRow", err)
		}
	}

	if c.opts.Scroll == ForwardOnly {
		c.st.pos = Between
		c.current = nil
		c.clearPending()
		return nil
	}
	if len(c.pending) > 0 {
		refreshed, err := c.current.WithUpdatedFields(c.pending)
		if err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "updateRow", "cursor")
		}
		c.rows[c.st.row-1] = refreshed
		c.current = refreshed
		c.updated[c.st.row] = true
	}
	c.clearPending()
	return nil
}

// DeleteRow deletes the current row from its table. A forward-only cursor
// is left between rows; a scrollable cursor stays on the hole left behind.
func (c *Cursor) DeleteRow(ctx context.Context) error {
	if err := c.checkRowChange("deleteRow"); err != nil {
		return err
	}
	if err := c.writer.DeleteRow(ctx, c.plan.Table.ID, c.current.RowID); err != nil {
		return c.writeFailed("deleteRow", err)
	}

	c.clearPending()
	if c.opts.Scroll == ForwardOnly {
		c.st.pos = Between
		c.current = nil
		return nil
	}
	c.holes[c.st.row] = true
	return nil
}

// CancelRowUpdates drops the values staged for the current row.
func (c *Cursor) CancelRowUpdates() error {
	if err := c.checkRowChange("cancelRowUpdates"); err != nil {
		return err
	}
	c.clearPending()
	return nil
}

// RowUpdated reports whether the current row was updated through this
// cursor.
func (c *Cursor) RowUpdated() (bool, error) {
	if err := c.checkOnRow(); err != nil {
		return false, err
	}
	return c.updated[c.st.row], nil
}

// RowDeleted reports whether the current row was deleted through this
// cursor.
func (c *Cursor) RowDeleted() (bool, error) {
	if err := c.checkOnRow(); err != nil {
		return false, err
	}
	return c.holes[c.st.row], nil
}

// MoveToInsertRow enters the insert row with every column unset. The
// current position is remembered for MoveToCurrentRow.
func (c *Cursor) MoveToInsertRow() error {
	if err := c.checkUpdatable("moveToInsertRow"); err != nil {
		return err
	}
	if c.st.pos != InsertRow {
		c.saved = c.st
	}
	c.st = state{pos: InsertRow}
	c.insert = make(map[int]types.Field)
	c.clearPending()
	return nil
}

// MoveToCurrentRow leaves the insert row. Outside the insert row it does
// nothing.
func (c *Cursor) MoveToCurrentRow() error {
	if err := c.checkUpdatable("moveToCurrentRow"); err != nil {
		return err
	}
	c.leaveInsertRow()
	return nil
}

// InsertRow inserts the row built on the insert row. Every column that
// cannot be NULL and has no default must have been set. The cursor stays on
// the insert row with the staged values kept.
func (c *Cursor) InsertRow(ctx context.Context) error {
	if err := c.checkUpdatable("insertRow"); err != nil {
		return err
	}
	if c.st.pos != InsertRow {
		return c.wrongSubmode("insertRow")
	}

	values := make(map[primitives.ObjectID]types.Field, len(c.insert))
	for idx, f := range c.insert {
		values[c.plan.Columns[idx].Base] = f
	}
	for _, col := range c.plan.Table.Columns {
		if _, set := values[col.ID]; set {
			continue
		}
		if !col.Nullable() && col.Default == nil && col.Identity == nil {
			return dberr.Newf(dberr.CategoryConstraintViolation, dberr.CodeNullIntoNonNull,
				"Column '%s' cannot accept a NULL value.", col.Name).WithOp("insertRow", "cursor")
		}
	}

	rid, err := c.writer.InsertRow(ctx, c.plan.Table.ID, values)
	if err != nil {
		return c.writeFailed("insertRow", err)
	}
	c.log.Debug("row inserted through cursor", zap.Uint64("row_id", uint64(rid)))
	return nil
}

// leaveInsertRow restores the remembered position when on the insert row.
func (c *Cursor) leaveInsertRow() {
	if c.st.pos != InsertRow {
		return
	}
	c.st = c.saved
	c.insert = nil
	switch c.st.pos {
	case OnRow:
		if c.opts.Scroll != ForwardOnly {
			c.current = c.rows[c.st.row-1]
		}
	default:
		c.current = nil
	}
}

func (c *Cursor) checkUpdatable(op string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.opts.Concurrency != Updatable {
		return dberr.Newf(dberr.CategoryCapability, dberr.CodeCursorNotUpdatable,
			"'%s' not allowed because the ResultSet is not an updatable ResultSet.", op).WithOp(op, "cursor")
	}
	return nil
}

// checkRowChange guards operations on the current row of an updatable
// cursor.
func (c *Cursor) checkRowChange(op string) error {
	if err := c.checkUpdatable(op); err != nil {
		return err
	}
	switch c.st.pos {
	case InsertRow:
		return c.wrongSubmode(op)
	case OnRow:
		if c.holes[c.st.row] {
			return c.rowIsHole()
		}
		return nil
	default:
		return c.noCurrentRow()
	}
}

func (c *Cursor) checkOnRow() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.st.pos != OnRow {
		return c.noCurrentRow()
	}
	return nil
}

// baseColumn returns the table column behind result column idx.
func (c *Cursor) baseColumn(idx int) (*catalog.Column, error) {
	col, ok := c.plan.Table.ColumnByID(c.plan.Columns[idx].Base)
	if !ok {
		return nil, dberr.Newf(dberr.CategoryCapability, dberr.CodeColumnNotUpdatable,
			"Column '%s' is not updatable.", c.plan.Columns[idx].Name)
	}
	return col, nil
}

// writeFailed closes the cursor when a write breaks a constraint.
func (c *Cursor) writeFailed(op string, err error) error {
	if dberr.IsCategory(err, dberr.CategoryConstraintViolation) {
		c.log.Warn("write through cursor failed, closing", zap.String("operation", op), zap.Error(err))
		_ = c.close(op + " failure")
	}
	return err
}

func (c *Cursor) wrongSubmode(op string) error {
	return dberr.Newf(dberr.CategoryState, dberr.CodeWrongSubmode,
		"This method cannot be invoked while the cursor is on the insert row or if the concurrency of this ResultSet object is CONCUR_READ_ONLY.").
		WithOp(op, "cursor")
}

func (c *Cursor) rowIsHole() error {
	return dberr.New(dberr.CategoryState, dberr.CodeRowIsHole,
		"Invalid cursor operation: the current row has been deleted.")
}
