package depend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/primitives"
)

func ref(k Kind) Ref {
	return Ref{Kind: k, ID: primitives.NewObjectID()}
}

func newTx() *transaction.TransactionContext {
	return transaction.NewTransactionContext(transaction.NewTransactionID())
}

func TestAddEdge_Idempotent(t *testing.T) {
	g := NewGraph()
	v, c := ref(KindView), ref(KindColumn)

	assert.True(t, g.AddEdge(nil, v, c, UseName))
	assert.False(t, g.AddEdge(nil, v, c, UseName))
	assert.Equal(t, 1, g.EdgeCount())

	assert.True(t, g.AddEdge(nil, v, c, UsePosition), "wider usage merges")
	assert.Equal(t, 1, g.EdgeCount())
	assert.True(t, g.UsageOf(v, c).Has(UseName|UsePosition))

	assert.Equal(t, []Ref{v}, g.DependentsOf(c))
	assert.Equal(t, []Ref{c}, g.ProvidersOf(v))
}

func TestRemoveDependent(t *testing.T) {
	g := NewGraph()
	trig, c1, c2 := ref(KindTrigger), ref(KindColumn), ref(KindColumn)
	g.AddEdge(nil, trig, c1, UseName)
	g.AddEdge(nil, trig, c2, UseName)

	removed := g.RemoveDependent(nil, trig)
	assert.Len(t, removed, 2)
	assert.Zero(t, g.EdgeCount())
	assert.False(t, g.HasDependents(c1))
}

func TestClosure_LeavesFirstAndTransitive(t *testing.T) {
	g := NewGraph()
	col := ref(KindColumn)
	v1, v2, v3 := ref(KindView), ref(KindView), ref(KindView)
	chk := ref(KindConstraint)

	g.AddEdge(nil, v1, col, UseName)
	g.AddEdge(nil, v2, v1, UseName)
	g.AddEdge(nil, v3, v2, UseName)
	g.AddEdge(nil, chk, col, UseName)

	order := g.Closure(All, col)
	require.Len(t, order, 4)

	pos := func(r Ref) int {
		for i, o := range order {
			if o == r {
				return i
			}
		}
		return -1
	}
	assert.Less(t, pos(v3), pos(v2))
	assert.Less(t, pos(v2), pos(v1))
	assert.GreaterOrEqual(t, pos(chk), 0)
}

func TestClosure_TerminatesOnCycles(t *testing.T) {
	g := NewGraph()
	table := ref(KindTable)
	trig := ref(KindTrigger)
	g.AddEdge(nil, trig, table, UseName)
	g.AddEdge(nil, table, trig, UseName)

	order := g.Closure(All, table)
	assert.Equal(t, []Ref{trig}, order)
}

func TestClosure_Filter(t *testing.T) {
	g := NewGraph()
	col := ref(KindColumn)
	stmt, view := ref(KindStatement), ref(KindView)
	g.AddEdge(nil, stmt, col, UseName)
	g.AddEdge(nil, view, col, UseName)

	onlyViews := func(r Ref, _ Usage) bool { return r.Kind == KindView }
	assert.Equal(t, []Ref{view}, g.WouldInvalidate(onlyViews, col))
	assert.Equal(t, 2, g.EdgeCount(), "dry run changes nothing")
}

func TestInvalidate(t *testing.T) {
	g := NewGraph()
	table := ref(KindTable)
	v1, v2 := ref(KindView), ref(KindView)
	stmt := ref(KindStatement)
	g.AddEdge(nil, v1, table, UseName)
	g.AddEdge(nil, v2, v1, UseName)
	g.AddEdge(nil, stmt, v2, UsePosition)

	direct := g.Invalidate(nil, table, OneHop, ReasonStructure, nil)
	assert.Equal(t, []Ref{v1}, direct)
	assert.False(t, g.IsValid(v1))
	assert.True(t, g.IsValid(v2))

	all := g.Invalidate(nil, table, Transitive, ReasonPositionShift, nil)
	assert.Len(t, all, 3)
	assert.False(t, g.IsValid(stmt))
	assert.Equal(t, ReasonPositionShift, g.InvalidReason(stmt))
	assert.Equal(t, ReasonStructure, g.InvalidReason(v1), "first reason wins")

	g.MarkValid(stmt)
	assert.True(t, g.IsValid(stmt))
}

func TestUndo_RestoresEdgesAndMarks(t *testing.T) {
	g := NewGraph()
	tx := newTx()
	col, trig, chk := ref(KindColumn), ref(KindTrigger), ref(KindConstraint)
	g.AddEdge(nil, trig, col, UseName)
	before := g.Edges()

	m := tx.BeginNestedUndo()
	g.AddEdge(tx, chk, col, UseName)
	g.AddEdge(tx, trig, col, UsePosition)
	g.Invalidate(tx, col, OneHop, ReasonRenamed, nil)
	g.RemoveDependent(tx, trig)
	g.RemoveProvider(tx, col)
	assert.Zero(t, g.EdgeCount())

	require.NoError(t, tx.RollbackTo(m))
	assert.Equal(t, before, g.Edges())
	assert.True(t, g.IsValid(trig))
	assert.Equal(t, UseName, g.UsageOf(trig, col))
}
