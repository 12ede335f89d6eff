package tuple

import (
	"fmt"
	"strings"

	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// Tuple represents a row of data. Fields are aligned to the table's column
// ordinals at the generation the row was read.
type Tuple struct {
	TupleDesc *TupleDescription
	fields    []types.Field
	RowID     primitives.RowID // InvalidRowID for rows not read from storage
}

// NewTuple creates a new tuple with every field set to a typed NULL.
func NewTuple(td *TupleDescription) *Tuple {
	fields := make([]types.Field, td.NumFields())
	for i, dt := range td.Types {
		fields[i] = types.NewNull(dt.Base)
	}
	return &Tuple{TupleDesc: td, fields: fields}
}

// FromFields wraps existing field values. The slice is copied.
func FromFields(td *TupleDescription, rid primitives.RowID, fields []types.Field) (*Tuple, error) {
	if len(fields) != td.NumFields() {
		return nil, fmt.Errorf("row has %d fields, description has %d", len(fields), td.NumFields())
	}
	t := &Tuple{TupleDesc: td, fields: make([]types.Field, len(fields)), RowID: rid}
	for i, f := range fields {
		if err := t.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SetField stores a value at index i. A nil field is stored as NULL. Integer
// widths are interchangeable; other base types must match.
func (t *Tuple) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}

	expected := t.TupleDesc.Types[i].Base
	if field == nil {
		field = types.NewNull(expected)
	}
	if !compatible(expected, field.Type()) {
		return fmt.Errorf("field type mismatch: expected %v, got %v", expected, field.Type())
	}

	t.fields[i] = field
	return nil
}

func compatible(expected, got types.Type) bool {
	if expected == got {
		return true
	}
	isInt := func(t types.Type) bool { return t == types.IntType || t == types.BigIntType }
	return isInt(expected) && isInt(got)
}

// GetField returns the value of the ith field
func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// Fields returns a copy of the field values.
func (t *Tuple) Fields() []types.Field {
	return append([]types.Field(nil), t.fields...)
}

// Project returns the values at the given 0-based indexes.
func (t *Tuple) Project(indexes []int) ([]types.Field, error) {
	out := make([]types.Field, len(indexes))
	for i, idx := range indexes {
		f, err := t.GetField(idx)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// String returns the fields separated by tabs.
func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, field := range t.fields {
		parts[i] = field.String()
	}
	return strings.Join(parts, "\t")
}

// Clone creates a copy of this tuple. Field values are immutable and shared.
func (t *Tuple) Clone() *Tuple {
	return &Tuple{
		TupleDesc: t.TupleDesc,
		fields:    append([]types.Field(nil), t.fields...),
		RowID:     t.RowID,
	}
}

// WithUpdatedFields returns a new tuple with specified fields updated.
// The original tuple remains unchanged.
func (t *Tuple) WithUpdatedFields(fieldUpdates map[int]types.Field) (*Tuple, error) {
	newTup := t.Clone()
	for fieldIdx, newValue := range fieldUpdates {
		if err := newTup.SetField(fieldIdx, newValue); err != nil {
			return nil, fmt.Errorf("failed to update field %d: %w", fieldIdx, err)
		}
	}
	return newTup, nil
}
