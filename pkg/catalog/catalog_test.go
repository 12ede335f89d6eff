package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

type fakeRows map[primitives.ObjectID]int

func (f fakeRows) IsEmpty(id primitives.ObjectID) (bool, error) {
	return f[id] == 0, nil
}

func newTx() *transaction.TransactionContext {
	return transaction.NewTransactionContext(transaction.NewTransactionID())
}

func newTable(name string, cols ...string) *Table {
	t := &Table{ID: primitives.NewObjectID(), Schema: DefaultSchema, Name: name}
	for _, c := range cols {
		t.Columns = append(t.Columns, &Column{ID: primitives.NewObjectID(), Name: c, Type: types.Integer()})
	}
	return t
}

func TestAddTableAssignsOrdinals(t *testing.T) {
	c := New(nil, fakeRows{})
	tbl := newTable("T1", "A", "B", "C")
	require.NoError(t, c.AddTable(nil, tbl))

	got, err := c.LookupTable("app", "t1")
	require.NoError(t, err)
	for i, col := range got.Columns {
		assert.Equal(t, i+1, col.Ordinal)
		assert.Equal(t, tbl.ID, col.TableID)
	}
	assert.Equal(t, primitives.Generation(1), got.Generation)

	err = c.AddTable(nil, newTable("T1", "X"))
	assert.True(t, dberr.HasCode(err, dberr.CodeObjectAlreadyExists))

	err = c.AddTable(nil, newTable("T2", "X", "X"))
	assert.True(t, dberr.HasCode(err, dberr.CodeDuplicateColumn))
}

func TestLookupMissing(t *testing.T) {
	c := New(nil, fakeRows{})
	_, err := c.LookupTable("", "NOPE")
	assert.True(t, dberr.HasCode(err, dberr.CodeTableNotFound))
	assert.True(t, dberr.IsCategory(err, dberr.CategoryNotFound))

	tbl := newTable("T", "A")
	require.NoError(t, c.AddTable(nil, tbl))
	_, err = ResolveColumn(tbl, "Z")
	assert.True(t, dberr.HasCode(err, dberr.CodeColumnNotFound))
}

func TestMutateTableIsCopyOnWrite(t *testing.T) {
	c := New(nil, fakeRows{})
	tbl := newTable("T", "A", "B", "C")
	require.NoError(t, c.AddTable(nil, tbl))
	before, _ := c.TableByID(tbl.ID)
	dropped := before.Columns[1]

	tx := newTx()
	m := tx.BeginNestedUndo()
	after, err := c.MutateTable(tx, tbl.ID, func(next *Table) error {
		next.Columns = append(next.Columns[:1:1], next.Columns[2:]...)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, after.ColumnNames())
	assert.Equal(t, 2, after.Columns[1].Ordinal)
	assert.Equal(t, primitives.Generation(2), after.Generation)
	assert.Equal(t, []string{"A", "B", "C"}, before.ColumnNames(), "captured version unchanged")
	assert.Equal(t, 3, before.Columns[2].Ordinal)
	_, _, ok := c.ColumnByID(dropped.ID)
	assert.False(t, ok)

	require.NoError(t, tx.RollbackTo(m))
	restored, _ := c.TableByID(tbl.ID)
	assert.Same(t, before, restored)
	_, _, ok = c.ColumnByID(dropped.ID)
	assert.True(t, ok)
}

func TestRenameTableRollback(t *testing.T) {
	c := New(nil, fakeRows{})
	tbl := newTable("OLD", "A")
	require.NoError(t, c.AddTable(nil, tbl))
	gen := c.Generation()

	tx := newTx()
	_, err := c.MutateTable(tx, tbl.ID, func(next *Table) error {
		next.Name = "NEW"
		return nil
	})
	require.NoError(t, err)
	_, err = c.LookupTable("", "OLD")
	assert.Error(t, err)
	_, err = c.LookupTable("", "NEW")
	assert.NoError(t, err)

	require.NoError(t, tx.Rollback())
	_, err = c.LookupTable("", "OLD")
	assert.NoError(t, err)
	_, err = c.LookupTable("", "NEW")
	assert.Error(t, err)
	assert.Equal(t, gen, c.Generation())
}

func TestSynonymResolvesToTable(t *testing.T) {
	c := New(nil, fakeRows{})
	tbl := newTable("BASE", "A")
	require.NoError(t, c.AddTable(nil, tbl))
	require.NoError(t, c.AddSynonym(nil, &Synonym{ID: primitives.NewObjectID(), Schema: DefaultSchema, Name: "ALIAS", TargetID: tbl.ID}))

	got, err := c.LookupTable("", "ALIAS")
	require.NoError(t, err)
	assert.Equal(t, tbl.ID, got.ID)
	assert.Len(t, c.SynonymsFor(tbl.ID), 1)
}

func TestConstraintQueries(t *testing.T) {
	c := New(nil, fakeRows{})
	parent := newTable("P", "ID")
	child := newTable("C", "PID", "V")
	require.NoError(t, c.AddTable(nil, parent))
	require.NoError(t, c.AddTable(nil, child))

	pk := &Constraint{ID: primitives.NewObjectID(), Schema: DefaultSchema, Name: "P_PK", Type: PrimaryKeyConstraint,
		TableID: parent.ID, Columns: []primitives.ObjectID{parent.Columns[0].ID}, Enabled: true}
	fk := &Constraint{ID: primitives.NewObjectID(), Schema: DefaultSchema, Name: "C_FK", Type: ForeignKeyConstraint,
		TableID: child.ID, Columns: []primitives.ObjectID{child.Columns[0].ID}, Referenced: pk.ID, Enabled: true}
	ck := &Constraint{ID: primitives.NewObjectID(), Schema: DefaultSchema, Name: "C_CK", Type: CheckConstraint,
		TableID: child.ID, Check: binder.MustParse("V > 0"), Enabled: true}
	for _, con := range []*Constraint{pk, fk, ck} {
		require.NoError(t, c.AddConstraint(nil, con))
	}

	assert.Len(t, c.ConstraintsOn(child.ID), 2)
	refs := c.ReferencingKeys(pk.ID)
	require.Len(t, refs, 1)
	assert.Equal(t, fk.ID, refs[0].ID)

	got, err := c.LookupConstraint("", "c_ck")
	require.NoError(t, err)
	assert.Same(t, ck, got)

	err = c.AddConstraint(nil, &Constraint{ID: primitives.NewObjectID(), Schema: DefaultSchema, Name: "C_CK"})
	assert.True(t, dberr.HasCode(err, dberr.CodeObjectAlreadyExists))

	disabled, err := c.MutateConstraint(nil, ck.ID, func(next *Constraint) error {
		next.Enabled = false
		return nil
	})
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.True(t, ck.Enabled)
	assert.Equal(t, "CONSTRAINT APP.C_CK", c.NameOf(ck.Ref()))
}

func TestColumnGrantRemap(t *testing.T) {
	c := New(nil, fakeRows{})
	tbl := newTable("T", "A", "B", "C")
	require.NoError(t, c.AddTable(nil, tbl))
	require.NoError(t, c.GrantColumns(nil, tbl.ID, "bob", PrivSelect, []int{0, 1, 2}))

	tx := newTx()
	c.RemapGrantsAfterDrop(tx, tbl.ID, 1)
	bits, ok := c.ColumnGrant(tbl.ID, "BOB", PrivSelect)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, bits.Positions())

	require.NoError(t, tx.Rollback())
	bits, _ = c.ColumnGrant(tbl.ID, "BOB", PrivSelect)
	assert.Equal(t, []int{0, 1, 2}, bits.Positions())

	c.RevokeColumns(nil, tbl.ID, "bob", PrivSelect, []int{0, 1, 2})
	_, ok = c.ColumnGrant(tbl.ID, "BOB", PrivSelect)
	assert.False(t, ok)
}

func TestChangeEventsDelivered(t *testing.T) {
	c := New(nil, fakeRows{})
	var got []ChangeKind
	c.Subscribe(func(ev ChangeEvent) { got = append(got, ev.Kind) })
	c.Emit(ChangeEvent{Kind: ChangeAddColumn})
	c.Emit(ChangeEvent{Kind: ChangeRename})
	if diff := cmp.Diff([]ChangeKind{ChangeAddColumn, ChangeRename}, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestIdentitySharedAcrossVersions(t *testing.T) {
	c := New(nil, fakeRows{})
	tbl := newTable("T", "A")
	ident := NewIdentity(1, 1)
	tbl.Columns[0].Identity = ident
	require.NoError(t, c.AddTable(nil, tbl))

	assert.Equal(t, int64(1), ident.NextValue())
	renamed, err := c.MutateTable(nil, tbl.ID, func(next *Table) error {
		col := *next.Columns[0]
		col.Name = "A2"
		next.Columns = ReplaceColumn(next.Columns, &col)
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, ident, renamed.Columns[0].Identity)
	assert.Equal(t, int64(2), renamed.Columns[0].Identity.NextValue())
}

func TestExistsAndRemoveObject(t *testing.T) {
	c := New(depend.NewGraph(), fakeRows{})
	tbl := newTable("T", "A")
	require.NoError(t, c.AddTable(nil, tbl))
	v := &View{ID: primitives.NewObjectID(), Schema: DefaultSchema, Name: "V", Source: tbl.Ref()}
	require.NoError(t, c.AddView(nil, v))

	assert.True(t, c.Exists(v.Ref()))
	assert.True(t, c.Exists(tbl.Columns[0].Ref()))
	require.NoError(t, c.RemoveObject(nil, v.Ref()))
	assert.False(t, c.Exists(v.Ref()))
	_, err := c.LookupView("", "V")
	assert.Error(t, err)
}

func TestConstraintTypeCodes(t *testing.T) {
	tests := []struct {
		typ  ConstraintType
		name string
		code string
	}{
		{CheckConstraint, "CHECK", "C"},
		{UniqueConstraint, "UNIQUE", "U"},
		{PrimaryKeyConstraint, "PRIMARY KEY", "P"},
		{ForeignKeyConstraint, "FOREIGN KEY", "F"},
		{ConstraintType(99), "UNKNOWN", "?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.typ.String())
		assert.Equal(t, tt.code, tt.typ.Code())
	}
}
