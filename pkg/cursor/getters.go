package cursor

import (
	"strconv"

	dberr "dictengine/pkg/error"
	"dictengine/pkg/types"
)

// Get returns the value of the 1-based column col on the current row. On
// the insert row an unset column reads as NULL. Rows deleted through this
// cursor read as NULL.
func (c *Cursor) Get(col int) (types.Field, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	idx, err := c.columnIndex(col)
	if err != nil {
		return nil, err
	}

	var f types.Field
	switch c.st.pos {
	case InsertRow:
		f = c.insert[idx]
	case OnRow:
		if c.holes[c.st.row] {
			break
		}
		if v, ok := c.pending[idx]; ok {
			f = v
			break
		}
		if f, err = c.current.GetField(idx); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeInternal, "Get", "cursor")
		}
	default:
		return nil, c.noCurrentRow()
	}

	if f == nil {
		f = types.NewNull(c.plan.Columns[idx].Type.Base)
	}
	c.wasNull = f.IsNull()
	return f, nil
}

// GetByName is Get with the column named.
func (c *Cursor) GetByName(name string) (types.Field, error) {
	col, err := c.FindColumn(name)
	if err != nil {
		return nil, err
	}
	return c.Get(col)
}

// FindColumn returns the 1-based position of the named result column.
func (c *Cursor) FindColumn(name string) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	idx, ok := c.plan.ColumnIndex(name)
	if !ok {
		return 0, dberr.Newf(dberr.CategoryNotFound, dberr.CodeColumnNotFound, "Column '%s' not found.", name)
	}
	return idx + 1, nil
}

// WasNull reports whether the last value read was NULL.
func (c *Cursor) WasNull() bool { return c.wasNull }

// GetObject returns the native value of a column, nil for NULL.
func (c *Cursor) GetObject(col int) (any, error) {
	f, err := c.Get(col)
	if err != nil {
		return nil, err
	}
	return f.Native(), nil
}

// GetInt returns a numeric column as an int64. NULL reads as 0.
func (c *Cursor) GetInt(col int) (int64, error) {
	f, err := c.Get(col)
	if err != nil {
		return 0, err
	}
	switch v := f.(type) {
	case *types.NullField:
		return 0, nil
	case *types.IntField:
		return v.Value, nil
	case *types.FloatField:
		return int64(v.Value), nil
	case *types.StringField:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return 0, c.conversion(col, "INTEGER", err)
		}
		return n, nil
	default:
		return 0, c.conversion(col, "INTEGER", nil)
	}
}

// GetString returns a column as text. NULL reads as "".
func (c *Cursor) GetString(col int) (string, error) {
	f, err := c.Get(col)
	if err != nil {
		return "", err
	}
	if f.IsNull() {
		return "", nil
	}
	return f.String(), nil
}

// GetBool returns a boolean column. NULL reads as false.
func (c *Cursor) GetBool(col int) (bool, error) {
	f, err := c.Get(col)
	if err != nil {
		return false, err
	}
	switch v := f.(type) {
	case *types.NullField:
		return false, nil
	case *types.BoolField:
		return v.Value, nil
	case *types.IntField:
		return v.Value != 0, nil
	default:
		return false, c.conversion(col, "BOOLEAN", nil)
	}
}

func (c *Cursor) conversion(col int, target string, cause error) error {
	err := dberr.Newf(dberr.CategorySystem, dberr.CodeTypeMismatch,
		"An attempt was made to get a data value of type '%s' from column %d of type '%s'.",
		target, col, c.plan.Columns[col-1].Type)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}

// columnIndex validates a 1-based column position and returns its index.
func (c *Cursor) columnIndex(col int) (int, error) {
	if col < 1 || col > len(c.plan.Columns) {
		return 0, dberr.Newf(dberr.CategoryState, dberr.CodeColumnIndexInvalid,
			"The column position '%d' is out of range. The number of columns for this ResultSet is '%d'.",
			col, len(c.plan.Columns))
	}
	return col - 1, nil
}
