package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dictengine/pkg/database"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/ui/base"
)

const (
	minColumnWidth = 4
	maxColumnWidth = 30
)

// Renderer writes statement outcomes and catalog descriptions to a
// terminal.
type Renderer struct {
	w  io.Writer
	hl *SQLHighlighter
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, hl: NewSQLHighlighter()}
}

// Title prints a banner line.
func (r *Renderer) Title(text string) {
	fmt.Fprintln(r.w, titleStyle.Render(text))
}

// Step prints the header of one scenario step.
func (r *Renderer) Step(n int, session, statement string) {
	fmt.Fprintf(r.w, "\n%s %s %s\n",
		stepStyle.Render(fmt.Sprintf("#%d", n)),
		sessionBadgeStyle.Render(session),
		r.hl.Highlight(statement))
}

// Result prints a query result as a table, or its message for statements
// that return no rows.
func (r *Renderer) Result(res database.QueryResult) {
	if len(res.Columns) > 0 {
		fmt.Fprintln(r.w, resultStyle.Render(r.Table(res.Columns, res.Rows)))
	}
	msg := res.Message
	if res.RowsAffected > 0 && len(res.Columns) == 0 {
		msg = fmt.Sprintf("%s (Rows affected: %d)", msg, res.RowsAffected)
	}
	if msg != "" {
		fmt.Fprintf(r.w, "%s %s\n", successStyle.Render(" ✓ "), msg)
	}
	r.Warnings(res.Warnings)
}

// Warnings prints one line per warning.
func (r *Renderer) Warnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(r.w, "%s %s\n", warningStyle.Render(" ! "), w)
	}
}

// Error prints err with its SQLState when it has one.
func (r *Renderer) Error(err error) {
	label := " ERROR "
	if code := dberr.CodeOf(err); code != "" {
		label = fmt.Sprintf(" %s ", code)
	}
	message := lipgloss.NewStyle().Foreground(errorColor).Render(err.Error())
	fmt.Fprintf(r.w, "%s %s\n", errorStyle.Render(label), message)
}

// Expected prints an error the scenario asked for.
func (r *Renderer) Expected(code string) {
	fmt.Fprintf(r.w, "%s %s\n", successStyle.Render(" ✓ "), mutedStyle.Render("failed as expected with "+code))
}

// Table renders headers and rows as aligned columns. Cells holding NULL
// are dimmed.
func (r *Renderer) Table(headers []string, rows [][]string) string {
	widths := base.ColumnWidths(headers, rows, minColumnWidth, maxColumnWidth)

	var b strings.Builder
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = headerCellStyle.Render(base.PadString(base.TruncateString(h, widths[i]), widths[i]))
	}
	b.WriteString(strings.Join(cells, "  "))

	sep := make([]string, len(headers))
	for i := range headers {
		sep[i] = strings.Repeat("─", widths[i])
	}
	b.WriteString("\n" + mutedStyle.Render(strings.Join(sep, "  ")))

	for _, row := range rows {
		for i := range headers {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			text := base.PadString(base.TruncateString(v, widths[i]), widths[i])
			if v == "NULL" {
				cells[i] = nullCellStyle.Render(text)
			} else {
				cells[i] = cellStyle.Render(text)
			}
		}
		b.WriteString("\n" + strings.Join(cells, "  "))
	}
	return b.String()
}

// Section prints a titled table.
func (r *Renderer) Section(title string, headers []string, rows [][]string) {
	fmt.Fprintf(r.w, "\n%s\n", stepStyle.Render(title))
	if len(rows) == 0 {
		fmt.Fprintln(r.w, mutedStyle.Render("(none)"))
		return
	}
	fmt.Fprintln(r.w, resultStyle.Render(r.Table(headers, rows)))
}

// Definition prints a highlighted object definition such as a view's
// SELECT or a trigger action.
func (r *Renderer) Definition(name, text string) {
	fmt.Fprintf(r.w, "  %s %s\n", mutedStyle.Render(name+":"), r.hl.Highlight(text))
}

// Info prints a database summary.
func (r *Renderer) Info(info database.DatabaseInfo) {
	rows := [][]string{
		{"database", info.Name},
		{"generation", fmt.Sprint(info.Generation)},
		{"tables", strings.Join(info.Tables, ", ")},
		{"views", strings.Join(info.Views, ", ")},
		{"dependency edges", fmt.Sprint(info.DependencyEdges)},
		{"sessions / open transactions", fmt.Sprintf("%d / %d", info.Sessions, info.OpenTransactions)},
		{"statements", fmt.Sprint(info.Statements)},
		{"commits / rollbacks", fmt.Sprintf("%d / %d", info.Commits, info.Rollbacks)},
		{"errors", fmt.Sprint(info.Errors)},
		{"cached statements", fmt.Sprintf("%d (hits %d, recompiles %d)", info.Cache.Size, info.Cache.Hits, info.Cache.Recompiles)},
	}
	r.Section("Summary", []string{"item", "value"}, rows)
}
