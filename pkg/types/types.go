package types

import (
	"fmt"
	"strings"
)

// Type is the base SQL type of a column.
type Type int

const (
	IntType Type = iota
	BigIntType
	DoubleType
	VarcharType
	ClobType
	BooleanType
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INTEGER"
	case BigIntType:
		return "BIGINT"
	case DoubleType:
		return "DOUBLE"
	case VarcharType:
		return "VARCHAR"
	case ClobType:
		return "CLOB"
	case BooleanType:
		return "BOOLEAN"
	default:
		return "UNKNOWN_TYPE"
	}
}

// IsValidType reports whether t is one of the declared base types.
func IsValidType(t Type) bool {
	return t >= IntType && t <= BooleanType
}

// IsNumeric reports whether values of t are numbers.
func (t Type) IsNumeric() bool {
	return t == IntType || t == BigIntType || t == DoubleType
}

// IsCharacter reports whether values of t are strings with a length facet.
func (t Type) IsCharacter() bool {
	return t == VarcharType || t == ClobType
}

// ParseType maps a type name such as "varchar" to its Type.
func ParseType(name string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INT", "INTEGER":
		return IntType, nil
	case "BIGINT":
		return BigIntType, nil
	case "DOUBLE", "FLOAT":
		return DoubleType, nil
	case "VARCHAR", "STRING":
		return VarcharType, nil
	case "CLOB":
		return ClobType, nil
	case "BOOLEAN", "BOOL":
		return BooleanType, nil
	default:
		return 0, fmt.Errorf("unknown type %q", name)
	}
}

// DataType is a column's full type descriptor: base type, length facet and
// nullability. Length facets can be changed in place by a widening ALTER
// without changing the column's identity.
type DataType struct {
	Base     Type
	Length   int // maximum characters for VARCHAR/CLOB, 0 otherwise
	Nullable bool
}

// Integer returns a nullable INTEGER.
func Integer() DataType { return DataType{Base: IntType, Nullable: true} }

// BigInt returns a nullable BIGINT.
func BigInt() DataType { return DataType{Base: BigIntType, Nullable: true} }

// Double returns a nullable DOUBLE.
func Double() DataType { return DataType{Base: DoubleType, Nullable: true} }

// Boolean returns a nullable BOOLEAN.
func Boolean() DataType { return DataType{Base: BooleanType, Nullable: true} }

// Varchar returns a nullable VARCHAR(n).
func Varchar(n int) DataType { return DataType{Base: VarcharType, Length: n, Nullable: true} }

// Clob returns a nullable CLOB(n).
func Clob(n int) DataType { return DataType{Base: ClobType, Length: n, Nullable: true} }

// NotNull returns a copy of d with nullability removed.
func (d DataType) NotNull() DataType {
	d.Nullable = false
	return d
}

// WithNullable returns a copy of d with the given nullability.
func (d DataType) WithNullable(nullable bool) DataType {
	d.Nullable = nullable
	return d
}

// Validate checks the facets are consistent with the base type.
func (d DataType) Validate() error {
	if !IsValidType(d.Base) {
		return fmt.Errorf("invalid base type %d", d.Base)
	}
	if d.Base.IsCharacter() && d.Length <= 0 {
		return fmt.Errorf("%s length must be positive, got %d", d.Base, d.Length)
	}
	if !d.Base.IsCharacter() && d.Length != 0 {
		return fmt.Errorf("%s does not take a length", d.Base)
	}
	return nil
}

// CanWidenTo reports whether changing from d to target only widens the type:
// same character base type with an equal or larger length, or INTEGER to
// BIGINT. Nullability is not part of the comparison.
func (d DataType) CanWidenTo(target DataType) bool {
	switch {
	case d.Base == target.Base && d.Base.IsCharacter():
		return target.Length >= d.Length
	case d.Base == target.Base:
		return true
	case d.Base == IntType && target.Base == BigIntType:
		return true
	default:
		return false
	}
}

// String renders the type the way DDL spells it, e.g. "VARCHAR(10) NOT NULL".
func (d DataType) String() string {
	s := d.Base.String()
	if d.Base.IsCharacter() {
		s = fmt.Sprintf("%s(%d)", s, d.Length)
	}
	if !d.Nullable {
		s += " NOT NULL"
	}
	return s
}
