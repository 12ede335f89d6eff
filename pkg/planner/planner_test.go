package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/planner"
	"dictengine/pkg/storage"
	"dictengine/pkg/types"
)

type fixture struct {
	ctx   context.Context
	cat   *catalog.Catalog
	store *storage.Store
	exec  *dml.Executor
	p     *planner.Planner
	tx    *transaction.TransactionContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewStore()
	cat := catalog.New(depend.NewGraph(), store)
	exec := dml.NewExecutor(cat, store, nil, dml.DefaultMaxTriggerDepth)
	return &fixture{
		ctx:   context.Background(),
		cat:   cat,
		store: store,
		exec:  exec,
		p:     planner.NewPlanner(cat, store, exec, nil),
		tx:    transaction.NewTransactionContext(transaction.NewTransactionID()),
	}
}

func intCols(names ...string) []planner.ColumnDef {
	out := make([]planner.ColumnDef, len(names))
	for i, n := range names {
		out[i] = planner.ColumnDef{Name: n, Type: types.Integer()}
	}
	return out
}

func (f *fixture) createTable(t *testing.T, req planner.CreateTableRequest) *catalog.Table {
	t.Helper()
	_, err := f.p.CreateTable(f.ctx, f.tx, req)
	require.NoError(t, err)
	tbl, err := f.cat.LookupTable(req.Schema, req.Name)
	require.NoError(t, err)
	return tbl
}

func (f *fixture) insert(t *testing.T, table string, columns []string, rows ...[]any) {
	t.Helper()
	_, err := f.exec.Insert(f.ctx, f.tx, "APP", table, columns, rows)
	require.NoError(t, err)
}

func (f *fixture) table(t *testing.T, name string) *catalog.Table {
	t.Helper()
	tbl, err := f.cat.LookupTable("", name)
	require.NoError(t, err)
	return tbl
}

func (f *fixture) rows(t *testing.T, name string) [][]any {
	t.Helper()
	h, err := f.store.Heap(f.table(t, name).ID)
	require.NoError(t, err)
	var out [][]any
	for _, r := range h.Scan() {
		row := make([]any, len(r.Fields))
		for i, fl := range r.Fields {
			row[i] = fl.Native()
		}
		out = append(out, row)
	}
	return out
}

func warningKinds(res *planner.DDLResult) []dberr.WarningKind {
	var out []dberr.WarningKind
	for _, w := range res.Warnings {
		out = append(out, w.Kind)
	}
	return out
}

// columnWithDependents builds T(A, B, C) where B is read by two stacked
// views, a CHECK constraint and a trigger action.
func columnWithDependents(t *testing.T, f *fixture) {
	t.Helper()
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A", "B", "C")})
	f.createTable(t, planner.CreateTableRequest{Name: "LOG", Columns: intCols("X")})

	_, err := f.p.CreateView(f.ctx, f.tx, planner.ViewDef{Name: "V1", Source: "T", Columns: []string{"B"}})
	require.NoError(t, err)
	_, err = f.p.CreateView(f.ctx, f.tx, planner.ViewDef{Name: "V2", Source: "V1"})
	require.NoError(t, err)
	_, err = f.p.AddConstraint(f.ctx, f.tx, "", "T", planner.ConstraintDef{
		Name: "CK_B", Type: catalog.CheckConstraint, Check: "B > 0",
	})
	require.NoError(t, err)
	_, err = f.p.CreateTrigger(f.ctx, f.tx, planner.TriggerDef{
		Name: "TR", Table: "T", Event: catalog.TriggerUpdate, UpdateOf: []string{"A"},
		Action: planner.ActionDef{Kind: catalog.ActionInsert, Target: "LOG", Values: []string{"NEW.B"}},
	})
	require.NoError(t, err)
}

func TestDropColumnRestrictLeavesCatalogUnchanged(t *testing.T) {
	f := newFixture(t)
	columnWithDependents(t, f)

	gen := f.cat.Generation()
	edges := f.cat.Graph().EdgeCount()

	_, err := f.p.DropColumn(f.ctx, f.tx, "", "T", "B", planner.Restrict)
	require.Error(t, err)
	assert.True(t, dberr.IsCategory(err, dberr.CategoryDependencyConflict))

	assert.Equal(t, gen, f.cat.Generation())
	assert.Equal(t, edges, f.cat.Graph().EdgeCount())
	assert.Equal(t, []string{"A", "B", "C"}, f.table(t, "T").ColumnNames())
	_, err = f.cat.LookupView("", "V2")
	assert.NoError(t, err)
}

func TestDropColumnCascadeDropsEveryDependent(t *testing.T) {
	f := newFixture(t)
	columnWithDependents(t, f)

	res, err := f.p.DropColumn(f.ctx, f.tx, "", "T", "B", planner.Cascade)
	require.NoError(t, err)

	for _, name := range []string{"V1", "V2"} {
		_, err := f.cat.LookupView("", name)
		assert.True(t, dberr.HasCode(err, dberr.CodeTableNotFound), name)
	}
	_, err = f.cat.LookupConstraint("", "CK_B")
	assert.Error(t, err)
	_, err = f.cat.LookupTrigger("", "TR")
	assert.Error(t, err)

	assert.ElementsMatch(t, []dberr.WarningKind{
		dberr.WarnViewDropped, dberr.WarnViewDropped, dberr.WarnConstraintDropped, dberr.WarnTriggerDropped,
	}, warningKinds(res))
	assert.Len(t, res.Dropped, 4)

	tbl := f.table(t, "T")
	assert.Equal(t, []string{"A", "C"}, tbl.ColumnNames())
	for i, col := range tbl.Columns {
		assert.Equal(t, i+1, col.Ordinal)
	}
}

func TestDropColumnCascadeOrdersViewsLeavesFirst(t *testing.T) {
	f := newFixture(t)
	columnWithDependents(t, f)

	res, err := f.p.DropColumn(f.ctx, f.tx, "", "T", "B", planner.Cascade)
	require.NoError(t, err)

	var views []string
	for _, w := range res.Warnings {
		if w.Kind == dberr.WarnViewDropped {
			views = append(views, w.Object)
		}
	}
	assert.Equal(t, []string{"APP.V2", "APP.V1"}, views)
}

func TestDropColumnRemapsGrants(t *testing.T) {
	f := newFixture(t)
	tbl := f.createTable(t, planner.CreateTableRequest{Name: "G", Columns: intCols("A", "B", "C")})

	_, err := f.p.Grant(f.ctx, f.tx, "", "G", "bob", catalog.PrivSelect, []string{"A", "B", "C"})
	require.NoError(t, err)
	_, err = f.p.DropColumn(f.ctx, f.tx, "", "G", "C", planner.Restrict)
	require.NoError(t, err)

	bits, ok := f.cat.ColumnGrant(tbl.ID, "BOB", catalog.PrivSelect)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, bits.Positions())

	_, err = f.p.Grant(f.ctx, f.tx, "", "G", "amy", catalog.PrivSelect, nil)
	require.NoError(t, err)
	_, err = f.p.DropColumn(f.ctx, f.tx, "", "G", "A", planner.Cascade)
	require.NoError(t, err)
	bits, _ = f.cat.ColumnGrant(tbl.ID, "AMY", catalog.PrivSelect)
	assert.Equal(t, []int{0}, bits.Positions())
}

func TestDropColumnWithCheckAndForeignKey(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{
		Name:        "T3PK",
		Columns:     []planner.ColumnDef{{Name: "ID", Type: types.Integer(), NotNull: true}},
		Constraints: []planner.ConstraintDef{{Name: "PK3", Type: catalog.PrimaryKeyConstraint, Columns: []string{"ID"}}},
	})
	f.createTable(t, planner.CreateTableRequest{
		Name:    "T3FK",
		Columns: intCols("X", "USEDINCHECK", "FK"),
		Constraints: []planner.ConstraintDef{
			{Name: "CK3", Type: catalog.CheckConstraint, Check: "USEDINCHECK > 0"},
			{Name: "FK3", Type: catalog.ForeignKeyConstraint, Columns: []string{"FK"}, RefTable: "T3PK"},
		},
	})

	_, err := f.p.DropColumn(f.ctx, f.tx, "", "T3FK", "USEDINCHECK", planner.Restrict)
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeProviderHasDependent))

	res, err := f.p.DropColumn(f.ctx, f.tx, "", "T3FK", "USEDINCHECK", planner.Cascade)
	require.NoError(t, err)
	assert.Equal(t, []dberr.WarningKind{dberr.WarnConstraintDropped}, warningKinds(res))

	var names []string
	for _, con := range f.cat.ConstraintsOn(f.table(t, "T3FK").ID) {
		names = append(names, con.Name)
	}
	assert.Equal(t, []string{"FK3"}, names)
	_, err = f.cat.LookupConstraint("", "PK3")
	assert.NoError(t, err)
}

func TestRenameColumnKeepsIdentityCounter(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{
		Name: "ID1",
		Columns: []planner.ColumnDef{
			{Name: "A", Type: types.Integer(), Identity: &planner.IdentityDef{Start: 1, Increment: 1}},
			{Name: "B", Type: types.Integer()},
		},
	})
	col, _ := f.table(t, "ID1").Column("A")
	assert.EqualValues(t, 1, col.Identity.Current())

	f.insert(t, "ID1", []string{"B"}, []any{10})
	assert.EqualValues(t, 2, col.Identity.Current())

	_, err := f.p.RenameColumn(f.ctx, f.tx, "", "ID1", "A", "A2")
	require.NoError(t, err)
	renamed, ok := f.table(t, "ID1").Column("A2")
	require.True(t, ok)
	assert.Same(t, col.Identity, renamed.Identity)
	assert.Equal(t, col.ID, renamed.ID)

	f.insert(t, "ID1", []string{"B"}, []any{20})
	assert.EqualValues(t, 3, renamed.Identity.Current())
	assert.Equal(t, [][]any{{int64(1), int64(10)}, {int64(2), int64(20)}}, f.rows(t, "ID1"))
}

func TestAddNotNullColumn(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "E", Columns: intCols("A")})
	f.createTable(t, planner.CreateTableRequest{Name: "N", Columns: intCols("A")})
	f.insert(t, "N", nil, []any{1})

	notNull := planner.ColumnDef{Name: "B", Type: types.Integer(), NotNull: true}
	_, err := f.p.AddColumn(f.ctx, f.tx, "", "E", notNull)
	assert.NoError(t, err, "empty table accepts NOT NULL without default")

	_, err = f.p.AddColumn(f.ctx, f.tx, "", "N", notNull)
	assert.True(t, dberr.HasCode(err, dberr.CodeNonNullOnNonEmpty))
	assert.Equal(t, []string{"A"}, f.table(t, "N").ColumnNames())

	notNull.Default = 7
	_, err = f.p.AddColumn(f.ctx, f.tx, "", "N", notNull)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), int64(7)}}, f.rows(t, "N"))
}

func TestDropLastColumnRefused(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "ONE", Columns: intCols("A")})

	_, err := f.p.DropColumn(f.ctx, f.tx, "", "ONE", "A", planner.Cascade)
	assert.True(t, dberr.HasCode(err, dberr.CodeProviderHasDependent))
}

func TestRenameColumnRules(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{
		Name:    "P",
		Columns: []planner.ColumnDef{{Name: "ID", Type: types.Integer(), NotNull: true}, {Name: "V", Type: types.Integer()}},
		Constraints: []planner.ConstraintDef{
			{Type: catalog.PrimaryKeyConstraint, Columns: []string{"ID"}},
			{Name: "CK_V", Type: catalog.CheckConstraint, Check: "V != 0"},
		},
	})
	f.createTable(t, planner.CreateTableRequest{
		Name:        "C",
		Columns:     intCols("PID", "W"),
		Constraints: []planner.ConstraintDef{{Type: catalog.ForeignKeyConstraint, Columns: []string{"PID"}, RefTable: "P"}},
	})

	_, err := f.p.RenameColumn(f.ctx, f.tx, "", "P", "ID", "ID2")
	assert.True(t, dberr.HasCode(err, dberr.CodeRenameReferencedColumn))

	_, err = f.p.RenameColumn(f.ctx, f.tx, "", "P", "V", "V2")
	assert.True(t, dberr.HasCode(err, dberr.CodeRenameBreaksCheck))

	_, err = f.p.RenameColumn(f.ctx, f.tx, "", "C", "PID", "PARENT")
	assert.NoError(t, err, "the referencing side may be renamed")
}

func TestRenameColumnRegeneratesTriggerText(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A", "B")})
	f.createTable(t, planner.CreateTableRequest{Name: "LOG", Columns: intCols("X")})
	_, err := f.p.CreateTrigger(f.ctx, f.tx, planner.TriggerDef{
		Name: "TR", Table: "T", Event: catalog.TriggerUpdate, UpdateOf: []string{"A"},
		Action: planner.ActionDef{Kind: catalog.ActionInsert, Target: "LOG", Columns: []string{"X"}, Values: []string{"NEW.B"}},
	})
	require.NoError(t, err)
	before, _ := f.cat.LookupTrigger("", "TR")

	// A is only in the UPDATE OF list; the action text does not change.
	res, err := f.p.RenameColumn(f.ctx, f.tx, "", "T", "A", "A2")
	require.NoError(t, err)
	after, _ := f.cat.LookupTrigger("", "TR")
	assert.Equal(t, before.Action.Values[0].Text(), after.Action.Values[0].Text())
	assert.Empty(t, res.Warnings)

	_, err = f.p.RenameColumn(f.ctx, f.tx, "", "T", "B", "B2")
	require.NoError(t, err)
	after, _ = f.cat.LookupTrigger("", "TR")
	assert.Contains(t, after.Action.Values[0].Text(), "NEW.B2")
	assert.False(t, f.cat.IsValid(after.Ref()))

	_, err = f.p.RenameColumn(f.ctx, f.tx, "", "LOG", "X", "Y")
	require.NoError(t, err)
	after, _ = f.cat.LookupTrigger("", "TR")
	assert.Equal(t, []string{"Y"}, after.Action.Columns)

	_, err = f.exec.Insert(f.ctx, f.tx, "APP", "T", nil, [][]any{{1, 5}})
	require.NoError(t, err)
	_, err = f.exec.Update(f.ctx, f.tx, "APP", "T",
		[]dml.Assignment{{Column: "A2", Value: binder.MustParse("A2 + 1")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(5)}}, f.rows(t, "LOG"))
}

func TestDropColumnIndexes(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A", "B", "C")})
	f.insert(t, "T", nil, []any{1, 2, 3}, []any{4, 5, 6})
	_, err := f.p.CreateIndex(f.ctx, f.tx, planner.IndexDef{Name: "IX_B", Table: "T", Columns: []string{"B"}})
	require.NoError(t, err)
	_, err = f.p.CreateIndex(f.ctx, f.tx, planner.IndexDef{Name: "IX_ABC", Table: "T", Columns: []string{"A", "B", "C"}})
	require.NoError(t, err)

	res, err := f.p.DropColumn(f.ctx, f.tx, "", "T", "B", planner.Restrict)
	require.NoError(t, err)
	assert.Equal(t, []dberr.WarningKind{dberr.WarnIndexDropped}, warningKinds(res))

	_, err = f.cat.LookupIndex("", "IX_B")
	assert.Error(t, err)
	ix, err := f.cat.LookupIndex("", "IX_ABC")
	require.NoError(t, err)
	tbl := f.table(t, "T")
	a, _ := tbl.Column("A")
	c, _ := tbl.Column("C")
	assert.Equal(t, []any{a.ID, c.ID}, []any{ix.Columns[0], ix.Columns[1]})

	kix, ok := f.store.Index(ix.ID)
	require.True(t, ok)
	assert.True(t, kix.Contains([]types.Field{types.NewIntField(4), types.NewIntField(6)}))
}

func TestFailedCascadeRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A", "B", "C")})
	f.insert(t, "T", nil, []any{1, 1, 0}, []any{1, 2, 0})
	_, err := f.p.CreateIndex(f.ctx, f.tx, planner.IndexDef{Name: "UX", Table: "T", Columns: []string{"A", "B"}, Unique: true})
	require.NoError(t, err)
	_, err = f.p.CreateView(f.ctx, f.tx, planner.ViewDef{Name: "VB", Source: "T", Columns: []string{"B"}})
	require.NoError(t, err)

	gen := f.cat.Generation()
	edges := f.cat.Graph().EdgeCount()

	// Without B the unique index on (A) would hold duplicates.
	_, err = f.p.DropColumn(f.ctx, f.tx, "", "T", "B", planner.Cascade)
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeDuplicateKey))

	assert.Equal(t, gen, f.cat.Generation())
	assert.Equal(t, edges, f.cat.Graph().EdgeCount())
	_, err = f.cat.LookupView("", "VB")
	assert.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, f.table(t, "T").ColumnNames())
	assert.Equal(t, [][]any{{int64(1), int64(1), int64(0)}, {int64(1), int64(2), int64(0)}}, f.rows(t, "T"))
}

func TestSetDataTypeWidensOnly(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: []planner.ColumnDef{
		{Name: "S", Type: types.Varchar(10), NotNull: true},
		{Name: "N", Type: types.Integer()},
	}})
	f.insert(t, "T", nil, []any{"abc", 3})

	_, err := f.p.SetDataType(f.ctx, f.tx, "", "T", "S", types.Varchar(20))
	require.NoError(t, err)
	s, _ := f.table(t, "T").Column("S")
	assert.Equal(t, 20, s.Type.Length)
	assert.False(t, s.Nullable(), "nullability is kept")

	_, err = f.p.SetDataType(f.ctx, f.tx, "", "T", "S", types.Varchar(5))
	assert.True(t, dberr.HasCode(err, dberr.CodeNotWidening))

	_, err = f.p.SetDataType(f.ctx, f.tx, "", "T", "N", types.BigInt())
	require.NoError(t, err)
	h, _ := f.store.Heap(f.table(t, "T").ID)
	assert.Equal(t, types.BigIntType, h.Scan()[0].Fields[1].Type())
}

func TestSetNullable(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{
		Name:        "T",
		Columns:     []planner.ColumnDef{{Name: "ID", Type: types.Integer(), NotNull: true}, {Name: "V", Type: types.Integer()}},
		Constraints: []planner.ConstraintDef{{Type: catalog.PrimaryKeyConstraint, Columns: []string{"ID"}}},
	})
	f.insert(t, "T", []string{"ID"}, []any{1})

	_, err := f.p.SetNullable(f.ctx, f.tx, "", "T", "ID", true)
	assert.True(t, dberr.HasCode(err, dberr.CodeNullableKeyColumn))

	_, err = f.p.SetNullable(f.ctx, f.tx, "", "T", "V", false)
	assert.True(t, dberr.HasCode(err, dberr.CodeNullsInColumn))

	_, err = f.exec.Update(f.ctx, f.tx, "APP", "T", []dml.Assignment{{Column: "V", Value: binder.MustParse("0")}}, nil)
	require.NoError(t, err)
	_, err = f.p.SetNullable(f.ctx, f.tx, "", "T", "V", false)
	require.NoError(t, err)
	v, _ := f.table(t, "T").Column("V")
	assert.False(t, v.Nullable())
}

func TestRenameTableBlockedByView(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A")})
	_, err := f.p.CreateView(f.ctx, f.tx, planner.ViewDef{Name: "V", Source: "T"})
	require.NoError(t, err)

	_, err = f.p.RenameTable(f.ctx, f.tx, "", "T", "T2")
	assert.True(t, dberr.HasCode(err, dberr.CodeProviderHasView))

	_, err = f.p.DropView(f.ctx, f.tx, "", "V", planner.Restrict)
	require.NoError(t, err)
	_, err = f.p.RenameTable(f.ctx, f.tx, "", "T", "T2")
	require.NoError(t, err)
	f.table(t, "T2")
}

func TestDropTableWithReferencingForeignKey(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{
		Name:        "P",
		Columns:     []planner.ColumnDef{{Name: "ID", Type: types.Integer(), NotNull: true}},
		Constraints: []planner.ConstraintDef{{Name: "PK_P", Type: catalog.PrimaryKeyConstraint, Columns: []string{"ID"}}},
	})
	child := f.createTable(t, planner.CreateTableRequest{
		Name:        "C",
		Columns:     intCols("PID"),
		Constraints: []planner.ConstraintDef{{Name: "FK_C", Type: catalog.ForeignKeyConstraint, Columns: []string{"PID"}, RefTable: "P"}},
	})

	_, err := f.p.DropTable(f.ctx, f.tx, "", "P", planner.Restrict)
	assert.True(t, dberr.IsCategory(err, dberr.CategoryDependencyConflict))

	res, err := f.p.DropTable(f.ctx, f.tx, "", "P", planner.Cascade)
	require.NoError(t, err)
	assert.Equal(t, []dberr.WarningKind{dberr.WarnConstraintDropped}, warningKinds(res))
	assert.Empty(t, f.cat.ConstraintsOn(child.ID))
	assert.Empty(t, f.cat.IndexesOn(child.ID))

	_, err = f.cat.LookupTable("", "P")
	assert.Error(t, err)
	_, err = f.store.Heap(res.Dropped[len(res.Dropped)-1].ID)
	assert.Error(t, err)
}

func TestBackingIndexSharedAndReleased(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{
		Name:        "P",
		Columns:     []planner.ColumnDef{{Name: "ID", Type: types.Integer(), NotNull: true}},
		Constraints: []planner.ConstraintDef{{Name: "PK_P", Type: catalog.PrimaryKeyConstraint, Columns: []string{"ID"}}},
	})
	tbl := f.createTable(t, planner.CreateTableRequest{
		Name:    "T",
		Columns: []planner.ColumnDef{{Name: "K", Type: types.Integer(), NotNull: true}},
		Constraints: []planner.ConstraintDef{
			{Name: "PK_T", Type: catalog.PrimaryKeyConstraint, Columns: []string{"K"}},
			{Name: "FK_T", Type: catalog.ForeignKeyConstraint, Columns: []string{"K"}, RefTable: "P"},
		},
	})

	ixs := f.cat.IndexesOn(tbl.ID)
	require.Len(t, ixs, 1)
	assert.Len(t, ixs[0].Owners, 2)
	assert.True(t, ixs[0].Unique)

	_, err := f.p.DropIndex(f.ctx, f.tx, "", ixs[0].Name)
	assert.True(t, dberr.HasCode(err, dberr.CodeBackingIndex))

	_, err = f.p.DropConstraint(f.ctx, f.tx, "", "PK_T", planner.Restrict)
	require.NoError(t, err)
	ixs = f.cat.IndexesOn(tbl.ID)
	require.Len(t, ixs, 1)
	assert.False(t, ixs[0].Unique, "only the foreign key needs the index now")

	_, err = f.p.DropConstraint(f.ctx, f.tx, "", "FK_T", planner.Restrict)
	require.NoError(t, err)
	assert.Empty(t, f.cat.IndexesOn(tbl.ID))
}

func TestAddConstraintValidatesRows(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A", "B")})
	f.insert(t, "T", nil, []any{1, -1}, []any{1, nil})

	_, err := f.p.AddConstraint(f.ctx, f.tx, "", "T", planner.ConstraintDef{Type: catalog.CheckConstraint, Check: "B > 0"})
	assert.True(t, dberr.HasCode(err, dberr.CodeCheckViolated))

	_, err = f.p.AddConstraint(f.ctx, f.tx, "", "T", planner.ConstraintDef{Type: catalog.UniqueConstraint, Columns: []string{"A"}})
	assert.True(t, dberr.HasCode(err, dberr.CodeDuplicateKey))

	_, err = f.p.AddConstraint(f.ctx, f.tx, "", "T", planner.ConstraintDef{Type: catalog.PrimaryKeyConstraint, Columns: []string{"B"}})
	assert.True(t, dberr.HasCode(err, dberr.CodeNullsInColumn))
	assert.Empty(t, f.cat.ConstraintsOn(f.table(t, "T").ID))
}

func TestSetConstraintEnabled(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{
		Name:        "T",
		Columns:     intCols("A"),
		Constraints: []planner.ConstraintDef{{Name: "POS", Type: catalog.CheckConstraint, Check: "A > 0"}},
	})

	_, err := f.p.SetConstraintEnabled(f.ctx, f.tx, "", "POS", false)
	require.NoError(t, err)
	f.insert(t, "T", nil, []any{-5})

	_, err = f.p.SetConstraintEnabled(f.ctx, f.tx, "", "POS", true)
	assert.True(t, dberr.HasCode(err, dberr.CodeCheckViolated))
	con, _ := f.cat.LookupConstraint("", "POS")
	assert.False(t, con.Enabled)
}

func TestChangeEventsEmittedOnSuccessOnly(t *testing.T) {
	f := newFixture(t)
	var got []catalog.ChangeKind
	f.cat.Subscribe(func(ev catalog.ChangeEvent) { got = append(got, ev.Kind) })

	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A", "B")})
	_, err := f.p.AddColumn(f.ctx, f.tx, "", "T", planner.ColumnDef{Name: "A", Type: types.Integer()})
	require.Error(t, err)
	_, err = f.p.DropColumn(f.ctx, f.tx, "", "T", "B", planner.Restrict)
	require.NoError(t, err)

	assert.Equal(t, []catalog.ChangeKind{catalog.ChangeCreateTable, catalog.ChangeDropColumn}, got)
}

func TestPositionalTriggerInvalidatedByColumnDrop(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, planner.CreateTableRequest{Name: "T", Columns: intCols("A")})
	f.createTable(t, planner.CreateTableRequest{Name: "LOG", Columns: intCols("X", "Y")})
	_, err := f.p.CreateTrigger(f.ctx, f.tx, planner.TriggerDef{
		Name: "TR", Table: "T", Event: catalog.TriggerInsert,
		Action: planner.ActionDef{Kind: catalog.ActionInsert, Target: "LOG", Values: []string{"NEW.A", "0"}},
	})
	require.NoError(t, err)
	trg, _ := f.cat.LookupTrigger("", "TR")

	res, err := f.p.AddColumn(f.ctx, f.tx, "", "LOG", planner.ColumnDef{Name: "Z", Type: types.Integer()})
	require.NoError(t, err)
	assert.Contains(t, res.Invalidated, trg.Ref())
	assert.False(t, f.cat.IsValid(trg.Ref()))

	// Positional insert now has too few values for LOG.
	_, err = f.exec.Insert(f.ctx, f.tx, "APP", "T", nil, [][]any{{1}})
	assert.True(t, dberr.HasCode(err, dberr.CodeColumnCountMismatch))
}
