package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/database"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/types"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in      string
		want    types.DataType
		wantErr bool
	}{
		{in: "INTEGER", want: types.Integer()},
		{in: "int", want: types.Integer()},
		{in: "VARCHAR(20)", want: types.Varchar(20)},
		{in: "varchar", want: types.Varchar(255)},
		{in: "CLOB(10)", want: types.Clob(10)},
		{in: "BIGINT", want: types.BigInt()},
		{in: "VARCHAR(x)", wantErr: true},
		{in: "INTEGER(4)", wantErr: true},
		{in: "DECIMAL", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsUnknownOp(t *testing.T) {
	_, err := Parse([]byte("steps:\n  - op: create_table\n  - op: explode\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step 2: unknown op "explode"`)
}

func TestStepText(t *testing.T) {
	on := false
	tests := []struct {
		step Step
		want string
	}{
		{
			step: Step{Op: "drop_column", Table: "T3FK", Column: "USEDINCHECK", Mode: "cascade"},
			want: "ALTER TABLE T3FK DROP COLUMN USEDINCHECK CASCADE",
		},
		{
			step: Step{Op: "insert", Table: "T", Rows: [][]any{{1, "a"}, {2, nil}}},
			want: "INSERT INTO T VALUES (1, 'a'), (2, NULL)",
		},
		{
			step: Step{Op: "update", Table: "T", Set: map[string]string{"B": "B + 1", "A": "0"}, Where: "ID == 1"},
			want: "UPDATE T SET A = 0, B = B + 1 WHERE ID == 1",
		},
		{
			step: Step{Op: "create_trigger", Name: "TR", Table: "T", Event: "update", UpdateOf: []string{"B"},
				Action: ActionSpec{Kind: "insert", Target: "LOG", Values: []string{"NEW.B"}}},
			want: "CREATE TRIGGER TR AFTER UPDATE OF B ON T FOR EACH ROW INSERT INTO LOG VALUES (NEW.B)",
		},
		{
			step: Step{Op: "autocommit", On: &on},
			want: "SET AUTOCOMMIT OFF",
		},
		{
			step: Step{Op: "rename_column", Table: "ID1", Column: "A", NewName: "A2"},
			want: "RENAME COLUMN ID1.A TO A2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.step.Op, func(t *testing.T) {
			assert.Equal(t, tt.want, operations[tt.step.Op].text(tt.step))
		})
	}
}

type recorder struct {
	steps    []string
	results  []database.QueryResult
	errs     []error
	expected []string
}

func (r *recorder) Step(_ int, session, statement string) {
	r.steps = append(r.steps, session+": "+statement)
}
func (r *recorder) Result(res database.QueryResult) { r.results = append(r.results, res) }
func (r *recorder) Error(err error)                 { r.errs = append(r.errs, err) }
func (r *recorder) Expected(code string)            { r.expected = append(r.expected, code) }

func newRunner(t *testing.T) (*Runner, *recorder) {
	t.Helper()
	db, err := database.Open(nil)
	require.NoError(t, err)
	rec := &recorder{}
	r := NewRunner(db, rec)
	t.Cleanup(func() {
		_ = r.Close()
		_ = db.Close()
	})
	return r, rec
}

const basicScenario = `
name: basic
steps:
  - op: create_table
    table: T
    columns:
      - {name: A, type: INTEGER, not_null: true}
      - {name: B, type: "VARCHAR(10)"}
    constraints:
      - {name: CK_A, type: check, check: "A > 0"}
  - op: insert
    table: T
    rows: [[1, "x"], [2, null]]
    expect_count: 2
  - op: insert
    table: T
    rows: [[-1, "bad"]]
    expect_error: "23513"
  - op: create_view
    name: V
    source: T
    select: [B]
  - op: drop_column
    table: T
    column: B
    expect_error: X0Y23
  - op: query
    session: reader
    table: T
    where: "A >= 1"
    expect_rows: [["1", "x"], ["2", "NULL"]]
`

func TestRunScenario(t *testing.T) {
	r, rec := newRunner(t)
	sc, err := Parse([]byte(basicScenario))
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), sc))

	assert.Len(t, rec.steps, 6)
	assert.Equal(t, "reader: SELECT * FROM T WHERE A >= 1", rec.steps[5])
	assert.Equal(t, []string{"23513", "X0Y23"}, rec.expected)
	assert.Empty(t, rec.errs)
	assert.Len(t, r.sessions, 2)
}

func TestRunStopsAtMismatch(t *testing.T) {
	r, _ := newRunner(t)
	sc, err := Parse([]byte(`
steps:
  - op: create_table
    table: T
    columns: [{name: A, type: INTEGER}]
  - op: query
    table: T
    expect_count: 1
  - op: insert
    table: T
    rows: [[1]]
`))
	require.NoError(t, err)

	err = r.Run(context.Background(), sc)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 2, stepErr.Step)
	assert.Equal(t, "query", stepErr.Op)
	assert.Contains(t, err.Error(), "expected 1 rows, got 0")
}

func TestRunReportsUnexpectedError(t *testing.T) {
	r, rec := newRunner(t)
	sc, err := Parse([]byte(`
steps:
  - op: drop_table
    table: MISSING
`))
	require.NoError(t, err)

	err = r.Run(context.Background(), sc)
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeTableNotFound))
	require.Len(t, rec.errs, 1)
}

func TestRunWrongExpectedCode(t *testing.T) {
	r, _ := newRunner(t)
	sc, err := Parse([]byte(`
steps:
  - op: drop_table
    table: MISSING
    expect_error: X0Y25
`))
	require.NoError(t, err)

	err = r.Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected error X0Y25, got 42X05")
}
