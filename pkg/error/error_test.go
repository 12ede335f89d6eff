package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBError_Format(t *testing.T) {
	err := New(CategoryDependencyConflict, CodeProviderHasDependent, "cannot drop column").
		WithDetail("VIEW %s", "V1").
		WithOp("DropColumn", "planner")

	assert.Equal(t,
		"[X0Y25] cannot drop column: VIEW V1 (operation: DropColumn, component: planner)",
		err.Error())
	assert.NotEmpty(t, err.FormatStack())
}

func TestDBError_ChainHelpers(t *testing.T) {
	base := New(CategoryState, CodeNoCurrentRow, "no current row")
	wrapped := fmt.Errorf("getInt: %w", base)

	assert.True(t, IsCategory(wrapped, CategoryState))
	assert.False(t, IsCategory(wrapped, CategoryCapability))
	assert.True(t, HasCode(wrapped, CodeNoCurrentRow))
	assert.True(t, errors.Is(wrapped, New(CategoryState, CodeNoCurrentRow, "")))
	assert.False(t, errors.Is(wrapped, New(CategoryState, CodeCursorClosed, "")))

	_, ok := CategoryOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "op", "comp"))

	plain := errors.New("disk gone")
	w := Wrap(plain, CodeInternal, "Checkpoint", "checkpoint")
	require.NotNil(t, w)
	assert.Equal(t, CategorySystem, w.Category)
	assert.ErrorIs(t, w, plain)

	existing := New(CategoryNotFound, CodeTableNotFound, "missing")
	again := Wrap(existing, CodeInternal, "Lookup", "catalog")
	assert.Same(t, existing, again)
	assert.Equal(t, "Lookup", again.Operation)
}

func TestWarningKinds(t *testing.T) {
	codes := map[string]WarningKind{}
	for k := WarnConstraintDropped; k <= WarnNoHoldability; k++ {
		code := k.SQLState()
		_, dup := codes[code]
		assert.False(t, dup, "duplicate warning code %s", code)
		codes[code] = k
		assert.Equal(t, "01", code[:2], "warnings are class 01")
	}

	w := Warning{Kind: WarnViewDropped, Message: "view V1 dropped"}
	assert.Equal(t, "[01501] view V1 dropped", w.String())
}
