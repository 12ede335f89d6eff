package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"dictengine/pkg/database"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/ui/base"
)

func TestColumnWidths(t *testing.T) {
	widths := base.ColumnWidths(
		[]string{"ID", "DESCRIPTION"},
		[][]string{{"1", strings.Repeat("x", 50)}, {"12345", "short"}},
		4, 30)
	assert.Equal(t, []int{5, 30}, widths)
}

func TestRenderResult(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	r.Result(database.QueryResult{
		Success:  true,
		Columns:  []string{"ID", "NAME"},
		Rows:     [][]string{{"1", "ann"}, {"2", "NULL"}},
		Message:  "2 row(s) returned",
		Warnings: []string{"01J02: Scroll sensitive cursors are not currently implemented."},
	})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "2 row(s) returned")
	assert.Contains(t, out, "01J02")
}

func TestRenderError(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	r.Error(dberr.New(dberr.CategoryNotFound, dberr.CodeTableNotFound, "Table/View 'APP.X' does not exist"))
	r.Error(errors.New("plain failure"))

	out := buf.String()
	assert.Contains(t, out, "42X05")
	assert.Contains(t, out, "APP.X")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "plain failure")
}

func TestHighlightKeepsWords(t *testing.T) {
	h := NewSQLHighlighter()
	out := h.Highlight("INSERT INTO LOG VALUES (NEW.B)")
	for _, w := range []string{"INSERT", "INTO", "LOG", "VALUES", "(NEW.B)"} {
		assert.Contains(t, out, w)
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, isNumeric("42"))
	assert.True(t, isNumeric("-1.5"))
	assert.False(t, isNumeric("-"))
	assert.False(t, isNumeric("A1"))
}
