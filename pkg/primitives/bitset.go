package primitives

import (
	"slices"
	"strconv"
	"strings"
)

// ColumnBitSet is a set of 0-based column positions. It is used for
// column-level privilege grants, which record positions rather than column
// ids and therefore need remapping when a column is dropped.
type ColumnBitSet struct {
	words []uint64
}

// NewColumnBitSet returns a set containing the given positions.
func NewColumnBitSet(positions ...int) ColumnBitSet {
	var b ColumnBitSet
	for _, p := range positions {
		b.Set(p)
	}
	return b
}

// Set adds position p to the set. Negative positions are ignored.
func (b *ColumnBitSet) Set(p int) {
	if p < 0 {
		return
	}
	w := p / 64
	for len(b.words) <= w {
		b.words = append(b.words, 0)
	}
	b.words[w] |= 1 << (uint(p) % 64)
}

// Clear removes position p from the set.
func (b *ColumnBitSet) Clear(p int) {
	if p < 0 || p/64 >= len(b.words) {
		return
	}
	b.words[p/64] &^= 1 << (uint(p) % 64)
}

// IsSet reports whether position p is in the set.
func (b ColumnBitSet) IsSet(p int) bool {
	if p < 0 || p/64 >= len(b.words) {
		return false
	}
	return b.words[p/64]&(1<<(uint(p)%64)) != 0
}

// Positions returns the members in ascending order.
func (b ColumnBitSet) Positions() []int {
	var out []int
	for w, word := range b.words {
		for i := 0; i < 64; i++ {
			if word&(1<<uint(i)) != 0 {
				out = append(out, w*64+i)
			}
		}
	}
	return out
}

// Len returns the number of members.
func (b ColumnBitSet) Len() int {
	return len(b.Positions())
}

// IsEmpty reports whether the set has no members.
func (b ColumnBitSet) IsEmpty() bool {
	return b.Len() == 0
}

// RemovePosition drops bit p and shifts every higher bit down by one. This is
// the remap applied after a column at 0-based position p is dropped.
func (b ColumnBitSet) RemovePosition(p int) ColumnBitSet {
	var out ColumnBitSet
	for _, pos := range b.Positions() {
		switch {
		case pos < p:
			out.Set(pos)
		case pos > p:
			out.Set(pos - 1)
		}
	}
	return out
}

// Clone returns an independent copy.
func (b ColumnBitSet) Clone() ColumnBitSet {
	return ColumnBitSet{words: slices.Clone(b.words)}
}

// Equals reports whether both sets hold the same members.
func (b ColumnBitSet) Equals(other ColumnBitSet) bool {
	return slices.Equal(b.Positions(), other.Positions())
}

// String renders the set as {0,1,2}.
func (b ColumnBitSet) String() string {
	pos := b.Positions()
	parts := make([]string, len(pos))
	for i, p := range pos {
		parts[i] = strconv.Itoa(p)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
