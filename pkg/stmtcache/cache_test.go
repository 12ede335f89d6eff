package stmtcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/cursor"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/planner"
	"dictengine/pkg/storage"
	"dictengine/pkg/types"
)

type fixture struct {
	cat   *catalog.Catalog
	store *storage.Store
	p     *planner.Planner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewStore()
	cat := catalog.New(depend.NewGraph(), store)
	exec := dml.NewExecutor(cat, store, nil, dml.DefaultMaxTriggerDepth)
	f := &fixture{cat: cat, store: store, p: planner.NewPlanner(cat, store, exec, nil)}

	tx := f.tx()
	_, err := f.p.CreateTable(context.Background(), tx, planner.CreateTableRequest{
		Name: "T",
		Columns: []planner.ColumnDef{
			{Name: "A", Type: types.Integer()},
			{Name: "B", Type: types.Integer()},
		},
	})
	require.NoError(t, err)
	tx.Commit()
	return f
}

func (f *fixture) tx() *transaction.TransactionContext {
	return transaction.NewTransactionContext(transaction.NewTransactionID())
}

var selectT = scan.Query{From: "T"}

func TestActivateCachesByTextAndScroll(t *testing.T) {
	f := newFixture(t)
	c := New(f.cat, f.store, nil, 0)

	a1, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	a1.Release()
	a2, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	a2.Release()
	assert.Same(t, a1.Statement, a2.Statement)
	assert.Same(t, a1.Plan, a2.Plan)

	a3, err := c.Activate(selectT, cursor.ScrollInsensitive)
	require.NoError(t, err)
	defer a3.Release()
	assert.NotSame(t, a1.Statement, a3.Statement)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.Equal(t, 2, st.Size)

	provs := f.cat.Graph().ProvidersOf(a1.Statement.Ref())
	tbl, err := f.cat.LookupTable("", "T")
	require.NoError(t, err)
	assert.Contains(t, provs, tbl.Ref())
}

func TestInvalidationRecompiles(t *testing.T) {
	f := newFixture(t)
	c := New(f.cat, f.store, nil, 0)

	a, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	assert.False(t, a.Recompiled)
	assert.Len(t, a.Plan.Columns, 2)
	a.Release()

	tx := f.tx()
	res, err := f.p.AddColumn(context.Background(), tx, "", "T", planner.ColumnDef{Name: "C", Type: types.Integer()})
	require.NoError(t, err)
	tx.Commit()
	assert.Contains(t, res.Invalidated, a.Statement.Ref())
	assert.False(t, f.cat.Graph().IsValid(a.Statement.Ref()))

	again, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	defer again.Release()
	assert.True(t, again.Recompiled)
	assert.Same(t, a.Statement, again.Statement)
	assert.Len(t, again.Plan.Columns, 3)
	assert.Equal(t, 1, c.Recompiles(again.Statement))
	assert.True(t, f.cat.Graph().IsValid(again.Statement.Ref()))
	assert.Equal(t, int64(1), c.Stats().Recompiles)
}

func TestRolledBackChangeKeepsStatementValid(t *testing.T) {
	f := newFixture(t)
	c := New(f.cat, f.store, nil, 0)

	a, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	a.Release()

	tx := f.tx()
	_, err = f.p.AddColumn(context.Background(), tx, "", "T", planner.ColumnDef{Name: "C", Type: types.Integer()})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.True(t, f.cat.Graph().IsValid(a.Statement.Ref()))

	again, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	defer again.Release()
	assert.False(t, again.Recompiled)
}

func TestBusyStatementGetsPrivatePlan(t *testing.T) {
	f := newFixture(t)
	c := New(f.cat, f.store, nil, 0)

	a1, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	a2, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	assert.Same(t, a1.Statement, a2.Statement)
	assert.NotSame(t, a1.Plan, a2.Plan)

	a2.Release()
	a1.Release()
	a1.Release()
	a3, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	defer a3.Release()
	assert.Same(t, a1.Plan, a3.Plan)
}

func TestDropTableDiscardsStatements(t *testing.T) {
	f := newFixture(t)
	c := New(f.cat, f.store, nil, 0)

	a, err := c.Activate(selectT, cursor.ForwardOnly)
	require.NoError(t, err)
	a.Release()
	key := a.Statement.Key

	tx := f.tx()
	_, err = f.p.DropTable(context.Background(), tx, "", "T", planner.Restrict)
	require.NoError(t, err)
	tx.Commit()

	_, ok := c.Lookup(key)
	assert.False(t, ok)
	assert.Empty(t, f.cat.Graph().ProvidersOf(a.Statement.Ref()))

	_, err = c.Activate(selectT, cursor.ForwardOnly)
	assert.True(t, dberr.HasCode(err, dberr.CodeTableNotFound))
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	f := newFixture(t)
	c := New(f.cat, f.store, nil, 2)

	queries := []scan.Query{
		{From: "T"},
		{From: "T", Columns: []string{"A"}},
		{From: "T", Columns: []string{"B"}},
	}
	var acts []*Activation
	for _, q := range queries {
		a, err := c.Activate(q, cursor.ForwardOnly)
		require.NoError(t, err)
		a.Release()
		acts = append(acts, a)
	}

	st := c.Stats()
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, int64(1), st.Evictions)
	_, ok := c.Lookup(acts[0].Statement.Key)
	assert.False(t, ok)
	assert.Empty(t, f.cat.Graph().ProvidersOf(acts[0].Statement.Ref()))

	c.Clear()
	assert.Zero(t, c.Stats().Size)
}
