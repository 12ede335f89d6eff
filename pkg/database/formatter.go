package database

import (
	"fmt"

	"dictengine/pkg/cursor"
	"dictengine/pkg/planner"
)

// QueryResult is a rendered statement outcome.
type QueryResult struct {
	Success      bool
	Columns      []string
	Rows         [][]string
	RowsAffected int
	Message      string
	Warnings     []string
}

// ResultFormatter turns cursors and DDL results into QueryResults.
type ResultFormatter struct{}

// NewResultFormatter creates a new instance of ResultFormatter
func NewResultFormatter() *ResultFormatter {
	return &ResultFormatter{}
}

// FormatCursor reads the cursor from its current position to the end.
// NULL values render as "NULL".
func (f *ResultFormatter) FormatCursor(c *cursor.Cursor) (QueryResult, error) {
	cols := c.Plan().Columns
	columns := make([]string, len(cols))
	for i, col := range cols {
		name := col.Name
		if name == "" {
			name = fmt.Sprintf("col_%d", i+1)
		}
		columns[i] = name
	}

	rows := [][]string{}
	for {
		ok, err := c.Next()
		if err != nil {
			return QueryResult{}, err
		}
		if !ok {
			break
		}
		row := make([]string, len(cols))
		for i := range cols {
			v, err := c.Get(i + 1)
			if err != nil {
				return QueryResult{}, err
			}
			if c.WasNull() {
				row[i] = "NULL"
			} else {
				row[i] = v.String()
			}
		}
		rows = append(rows, row)
	}

	res := QueryResult{
		Success: true,
		Columns: columns,
		Rows:    rows,
		Message: fmt.Sprintf("%d row(s) returned", len(rows)),
	}
	for _, w := range c.Warnings() {
		res.Warnings = append(res.Warnings, w.String())
	}
	return res, nil
}

// FormatDML reports the number of rows a DML statement touched.
func (f *ResultFormatter) FormatDML(n int, action string) QueryResult {
	return QueryResult{
		Success:      true,
		RowsAffected: n,
		Message:      fmt.Sprintf("%d row(s) %s", n, action),
	}
}

// FormatDDL reports a schema change and its side-effect warnings.
func (f *ResultFormatter) FormatDDL(result *planner.DDLResult) QueryResult {
	res := QueryResult{Success: true, Message: result.Message}
	for _, w := range result.Warnings {
		res.Warnings = append(res.Warnings, w.String())
	}
	return res
}
