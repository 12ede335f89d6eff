package tuple

import (
	"fmt"
	"strings"

	"dictengine/pkg/types"
)

// TupleDescription describes the shape of a row: the declared type and the
// name of each column in ordinal order.
type TupleDescription struct {
	// Types contains the data type of each field in order
	Types []types.DataType
	// FieldNames contains the name of each field
	FieldNames []string
}

// NewTupleDesc creates a new TupleDescription given field types and names.
// fieldNames may be nil for anonymous rows.
func NewTupleDesc(fieldTypes []types.DataType, fieldNames []string) (*TupleDescription, error) {
	if len(fieldTypes) < 1 {
		return nil, fmt.Errorf("must provide at least one field type")
	}

	var namesCopy []string
	if fieldNames != nil {
		if len(fieldNames) != len(fieldTypes) {
			return nil, fmt.Errorf("field names length (%d) must match field types length (%d)",
				len(fieldNames), len(fieldTypes))
		}
		namesCopy = append([]string(nil), fieldNames...)
	}

	return &TupleDescription{
		Types:      append([]types.DataType(nil), fieldTypes...),
		FieldNames: namesCopy,
	}, nil
}

// NumFields returns the number of fields in this tuple descriptor.
func (td *TupleDescription) NumFields() int {
	return len(td.Types)
}

// GetFieldName returns the name of the ith field, or "" for anonymous rows.
func (td *TupleDescription) GetFieldName(i int) (string, error) {
	if i < 0 || i >= len(td.Types) {
		return "", fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	if td.FieldNames == nil {
		return "", nil
	}
	return td.FieldNames[i], nil
}

// TypeAtIndex returns the type of the ith field.
func (td *TupleDescription) TypeAtIndex(i int) (types.DataType, error) {
	if i < 0 || i >= len(td.Types) {
		return types.DataType{}, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	return td.Types[i], nil
}

// FindFieldIndex returns the 0-based index of the named field. Names are
// compared case-insensitively.
func (td *TupleDescription) FindFieldIndex(name string) (int, error) {
	for i, n := range td.FieldNames {
		if strings.EqualFold(n, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %s not found", name)
}

// Equals checks if two descriptions have the same field types in the same
// order. Field names are not compared.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if other == nil || len(td.Types) != len(other.Types) {
		return false
	}
	for i := range td.Types {
		if td.Types[i] != other.Types[i] {
			return false
		}
	}
	return true
}

// String renders the description as name(TYPE), name(TYPE), ...
func (td *TupleDescription) String() string {
	parts := make([]string, len(td.Types))
	for i, t := range td.Types {
		name := ""
		if td.FieldNames != nil {
			name = td.FieldNames[i]
		}
		parts[i] = fmt.Sprintf("%s(%s)", name, t)
	}
	return strings.Join(parts, ", ")
}
