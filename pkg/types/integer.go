package types

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"strconv"

	"dictengine/pkg/primitives"
)

// IntField represents an INTEGER or BIGINT value. Both share int64 storage;
// the declared width is kept so metadata stays accurate.
type IntField struct {
	Value int64
	Wide  bool // true for BIGINT
}

// NewIntField creates an INTEGER value.
func NewIntField(value int64) *IntField {
	return &IntField{Value: value}
}

// NewBigIntField creates a BIGINT value.
func NewBigIntField(value int64) *IntField {
	return &IntField{Value: value, Wide: true}
}

func (f *IntField) Type() Type {
	if f.Wide {
		return BigIntType
	}
	return IntType
}

func (f *IntField) IsNull() bool { return false }

func (f *IntField) Compare(other Field) (int, error) {
	switch o := other.(type) {
	case *IntField:
		return cmp.Compare(f.Value, o.Value), nil
	case *FloatField:
		return cmp.Compare(float64(f.Value), o.Value), nil
	default:
		return 0, fmt.Errorf("cannot compare %s with %s", f.Type(), other.Type())
	}
}

func (f *IntField) String() string {
	return strconv.FormatInt(f.Value, 10)
}

func (f *IntField) Equals(other Field) bool {
	o, ok := other.(*IntField)
	return ok && o.Value == f.Value
}

func (f *IntField) Hash() primitives.HashCode {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(f.Value)) // #nosec G115
	return fnvHash(b)
}

func (f *IntField) Native() any { return f.Value }
