package types

import (
	"hash/fnv"
	"strings"

	"dictengine/pkg/primitives"
)

// Field is a single typed value stored in a row.
type Field interface {
	// Type returns the base type of the value.
	Type() Type

	// IsNull reports whether this is a SQL NULL.
	IsNull() bool

	// Compare orders two non-null values of compatible types. It returns an
	// error when the values cannot be compared.
	Compare(other Field) (int, error)

	String() string

	Equals(other Field) bool

	Hash() primitives.HashCode

	// Native returns the Go value: int64, float64, string, bool or nil.
	Native() any
}

// KeyOf encodes a list of fields into a comparable string. Two key lists
// encode equally exactly when all their fields are Equal. Integer types of
// different widths encode the same way.
func KeyOf(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		if f == nil || f.IsNull() {
			b.WriteString("\x00N")
			continue
		}
		switch f.Type() {
		case IntType, BigIntType:
			b.WriteString("I:")
		case DoubleType:
			b.WriteString("D:")
		case BooleanType:
			b.WriteString("B:")
		default:
			b.WriteString("S:")
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// AnyNull reports whether any field in the list is NULL or missing.
func AnyNull(fields []Field) bool {
	for _, f := range fields {
		if f == nil || f.IsNull() {
			return true
		}
	}
	return false
}

// fnvHash computes an FNV-1a hash of the given byte slice.
func fnvHash(data []byte) primitives.HashCode {
	h := fnv.New32a()
	_, _ = h.Write(data)
	return primitives.HashCode(h.Sum32())
}
