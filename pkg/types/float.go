package types

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"dictengine/pkg/primitives"
)

// FloatField represents a DOUBLE value.
type FloatField struct {
	Value float64
}

func NewFloatField(value float64) *FloatField {
	return &FloatField{Value: value}
}

func (f *FloatField) Type() Type { return DoubleType }

func (f *FloatField) IsNull() bool { return false }

func (f *FloatField) Compare(other Field) (int, error) {
	switch o := other.(type) {
	case *FloatField:
		return cmp.Compare(f.Value, o.Value), nil
	case *IntField:
		return cmp.Compare(f.Value, float64(o.Value)), nil
	default:
		return 0, fmt.Errorf("cannot compare %s with %s", f.Type(), other.Type())
	}
}

func (f *FloatField) String() string {
	return strconv.FormatFloat(f.Value, 'g', -1, 64)
}

func (f *FloatField) Equals(other Field) bool {
	o, ok := other.(*FloatField)
	return ok && o.Value == f.Value
}

func (f *FloatField) Hash() primitives.HashCode {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(f.Value))
	return fnvHash(b)
}

func (f *FloatField) Native() any { return f.Value }
