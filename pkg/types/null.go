package types

import (
	"fmt"

	"dictengine/pkg/primitives"
)

// NullField is a typed SQL NULL.
type NullField struct {
	Of Type
}

// NewNull returns a NULL of the given type.
func NewNull(t Type) *NullField {
	return &NullField{Of: t}
}

func (n *NullField) Type() Type { return n.Of }

func (n *NullField) IsNull() bool { return true }

func (n *NullField) Compare(other Field) (int, error) {
	return 0, fmt.Errorf("NULL is not comparable")
}

func (n *NullField) String() string { return "NULL" }

// Equals is false for NULL against anything, including another NULL.
func (n *NullField) Equals(other Field) bool { return false }

func (n *NullField) Hash() primitives.HashCode { return 0 }

func (n *NullField) Native() any { return nil }
