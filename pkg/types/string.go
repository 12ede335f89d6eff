package types

import (
	"fmt"
	"strings"

	"dictengine/pkg/primitives"
)

// StringField represents a VARCHAR or CLOB value.
type StringField struct {
	Value string
	Clob  bool
}

// NewStringField creates a VARCHAR value.
func NewStringField(value string) *StringField {
	return &StringField{Value: value}
}

// NewClobField creates a CLOB value.
func NewClobField(value string) *StringField {
	return &StringField{Value: value, Clob: true}
}

func (s *StringField) Type() Type {
	if s.Clob {
		return ClobType
	}
	return VarcharType
}

func (s *StringField) IsNull() bool { return false }

// Compare performs a lexicographic comparison with another string value.
func (s *StringField) Compare(other Field) (int, error) {
	o, ok := other.(*StringField)
	if !ok {
		return 0, fmt.Errorf("cannot compare %s with %s", s.Type(), other.Type())
	}
	return strings.Compare(s.Value, o.Value), nil
}

func (s *StringField) String() string { return s.Value }

func (s *StringField) Equals(other Field) bool {
	o, ok := other.(*StringField)
	return ok && o.Value == s.Value
}

func (s *StringField) Hash() primitives.HashCode {
	return fnvHash([]byte(s.Value))
}

func (s *StringField) Native() any { return s.Value }
