package types

import (
	"fmt"

	"dictengine/pkg/primitives"
)

// BoolField represents a BOOLEAN value.
type BoolField struct {
	Value bool
}

func NewBoolField(value bool) *BoolField {
	return &BoolField{Value: value}
}

func (b *BoolField) Type() Type { return BooleanType }

func (b *BoolField) IsNull() bool { return false }

// Compare orders false before true.
func (b *BoolField) Compare(other Field) (int, error) {
	o, ok := other.(*BoolField)
	if !ok {
		return 0, fmt.Errorf("cannot compare %s with %s", b.Type(), other.Type())
	}
	switch {
	case b.Value == o.Value:
		return 0, nil
	case !b.Value:
		return -1, nil
	default:
		return 1, nil
	}
}

func (b *BoolField) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

func (b *BoolField) Equals(other Field) bool {
	o, ok := other.(*BoolField)
	return ok && o.Value == b.Value
}

func (b *BoolField) Hash() primitives.HashCode {
	if b.Value {
		return fnvHash([]byte{1})
	}
	return fnvHash([]byte{0})
}

func (b *BoolField) Native() any { return b.Value }
