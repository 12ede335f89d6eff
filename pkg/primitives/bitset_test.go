package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnBitSet_RemovePosition(t *testing.T) {
	tests := []struct {
		name     string
		initial  []int
		drop     int
		expected []int
	}{
		{"drop middle", []int{0, 1, 2}, 1, []int{0, 1}},
		{"drop first", []int{0, 1, 2}, 0, []int{0, 1}},
		{"drop last", []int{0, 1, 2}, 2, []int{0, 1}},
		{"drop unset bit", []int{0, 2}, 1, []int{0, 1}},
		{"sparse high bits", []int{3, 70}, 10, []int{3, 69}},
		{"empty", nil, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewColumnBitSet(tt.initial...)
			got := b.RemovePosition(tt.drop)
			assert.Equal(t, tt.expected, got.Positions())
			assert.Equal(t, tt.initial, b.Positions(), "original set must not change")
		})
	}
}

func TestColumnBitSet_SetClear(t *testing.T) {
	var b ColumnBitSet
	assert.True(t, b.IsEmpty())

	b.Set(5)
	b.Set(64)
	b.Set(-1)
	assert.True(t, b.IsSet(5))
	assert.True(t, b.IsSet(64))
	assert.False(t, b.IsSet(6))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, "{5,64}", b.String())

	b.Clear(5)
	assert.False(t, b.IsSet(5))
	assert.True(t, b.Equals(NewColumnBitSet(64)))
}

func TestObjectID_RoundTrip(t *testing.T) {
	a := NewObjectID()
	b := NewObjectID()

	assert.False(t, a.IsZero())
	assert.NotEqual(t, a, b)
	assert.Equal(t, -1, a.Compare(b), "ids are monotonic")

	parsed, err := ParseObjectID(a.String())
	assert.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.Len(t, a.Short(), 8)
}
