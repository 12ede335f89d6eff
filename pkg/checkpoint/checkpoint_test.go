package checkpoint_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/checkpoint"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/planner"
	"dictengine/pkg/storage"
	"dictengine/pkg/types"
)

type fixture struct {
	ctx context.Context
	cat *catalog.Catalog
	p   *planner.Planner
	tx  *transaction.TransactionContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewStore()
	cat := catalog.New(depend.NewGraph(), store)
	exec := dml.NewExecutor(cat, store, nil, dml.DefaultMaxTriggerDepth)
	return &fixture{
		ctx: context.Background(),
		cat: cat,
		p:   planner.NewPlanner(cat, store, exec, nil),
		tx:  transaction.NewTransactionContext(transaction.NewTransactionID()),
	}
}

// populate builds T(A, B) with a CHECK on B and a view over B.
func (f *fixture) populate(t *testing.T) {
	t.Helper()
	_, err := f.p.CreateTable(f.ctx, f.tx, planner.CreateTableRequest{
		Name: "T",
		Columns: []planner.ColumnDef{
			{Name: "A", Type: types.Integer(), NotNull: true},
			{Name: "B", Type: types.Integer(), Default: 7},
		},
	})
	require.NoError(t, err)
	_, err = f.p.AddConstraint(f.ctx, f.tx, "", "T", planner.ConstraintDef{
		Name: "CK_B", Type: catalog.CheckConstraint, Check: "B > 0",
	})
	require.NoError(t, err)
	_, err = f.p.CreateView(f.ctx, f.tx, planner.ViewDef{Name: "V", Source: "T", Columns: []string{"B"}})
	require.NoError(t, err)
}

func openMemory(t *testing.T) *checkpoint.Writer {
	t.Helper()
	w, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWriteSnapshot(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	w := openMemory(t)

	_, ok, err := w.LastGeneration(f.ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.Write(f.ctx, f.cat))

	gen, ok, err := w.LastGeneration(f.ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.cat.Generation(), gen)

	counts := map[string]int{
		"SYSTABLES":      2,
		"SYSCOLUMNS":     2,
		"SYSCONSTRAINTS": 1,
		"SYSVIEWS":       1,
		"SYSTRIGGERS":    0,
	}
	for table, want := range counts {
		n, err := w.Count(f.ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	tables, err := w.Tables(f.ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "T", tables[0].Name)
	assert.Equal(t, "T", tables[0].Type)
	assert.Equal(t, 2, tables[0].Columns)
	assert.Equal(t, "V", tables[1].Name)
	assert.Equal(t, "V", tables[1].Type)

	deps, err := w.Depends(f.ctx)
	require.NoError(t, err)
	assert.Len(t, deps, len(f.cat.Graph().Edges()))
}

func TestWriteReplacesPreviousSnapshot(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	w := openMemory(t)
	require.NoError(t, w.Write(f.ctx, f.cat))

	res, err := f.p.DropColumn(f.ctx, f.tx, "", "T", "B", planner.Cascade)
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	require.NoError(t, w.Write(f.ctx, f.cat))

	for table, want := range map[string]int{"SYSTABLES": 1, "SYSCOLUMNS": 1, "SYSCONSTRAINTS": 0, "SYSVIEWS": 0} {
		n, err := w.Count(f.ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	gen, _, err := w.LastGeneration(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.cat.Generation(), gen)
}

func TestWriteToFile(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	path := filepath.Join(t.TempDir(), "ckpt", "dict.db")

	w, err := checkpoint.Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(f.ctx, f.cat))
	require.NoError(t, w.Close())

	reopened, err := checkpoint.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	n, err := reopened.Count(f.ctx, "SYSTABLES")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, path, reopened.Path())
}

func TestCountUnknownTable(t *testing.T) {
	w := openMemory(t)
	_, err := w.Count(context.Background(), "T; DROP TABLE SYSTABLES")
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeTableNotFound))
}

func TestDefinitions(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	_, err := f.p.CreateTable(f.ctx, f.tx, planner.CreateTableRequest{
		Name:    "LOG",
		Columns: []planner.ColumnDef{{Name: "X", Type: types.Integer()}},
	})
	require.NoError(t, err)
	_, err = f.p.CreateTrigger(f.ctx, f.tx, planner.TriggerDef{
		Name: "TR", Table: "T", Event: catalog.TriggerInsert,
		Action: planner.ActionDef{Kind: catalog.ActionInsert, Target: "LOG", Values: []string{"NEW.B"}},
	})
	require.NoError(t, err)
	w := openMemory(t)
	require.NoError(t, w.Write(f.ctx, f.cat))

	defs, err := w.Definitions(f.ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "VIEW", defs[0].Kind)
	assert.Equal(t, "V", defs[0].Name)
	assert.Contains(t, defs[0].Text, "FROM")
	assert.Equal(t, "TRIGGER", defs[1].Kind)
	assert.Equal(t, "TR", defs[1].Name)
	assert.Contains(t, defs[1].Text, "AFTER INSERT INSERT INTO")
}
