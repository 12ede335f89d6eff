package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/catalog"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/planner"
)

func TestAutoCommitCommitsEachStatement(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)

	assert.True(t, s.AutoCommit())
	createTable(t, s, "T", "A")
	assert.False(t, s.InTransaction())

	_, err := s.Insert(context.Background(), "", "T", nil, [][]any{{1}, {2}})
	require.NoError(t, err)
	assert.False(t, s.InTransaction())
	assert.Equal(t, int64(2), db.Info().Commits)
}

func TestFailedStatementInAutoCommitRollsBack(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, planner.CreateTableRequest{
		Name:        "T",
		Columns:     ints("A"),
		Constraints: []planner.ConstraintDef{{Name: "POSITIVE", Type: catalog.CheckConstraint, Check: "A > 0"}},
	})
	require.NoError(t, err)

	_, err = s.Insert(ctx, "", "T", nil, [][]any{{1}, {-1}})
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeCheckViolated))
	assert.False(t, s.InTransaction())
	assert.Equal(t, 0, rowCount(t, db, "T"))
	assert.Equal(t, int64(1), db.Info().Rollbacks)
}

func TestRollbackUndoesDDL(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	createTable(t, s, "T", "A", "B")
	edges := db.Graph().EdgeCount()

	require.NoError(t, s.SetAutoCommit(ctx, false))
	_, err := s.CreateView(ctx, planner.ViewDef{Name: "V", Source: "T", Columns: []string{"B"}})
	require.NoError(t, err)
	_, err = s.DropColumn(ctx, "", "T", "B", planner.Cascade)
	require.NoError(t, err)
	_, err = db.Catalog().LookupView("", "V")
	require.Error(t, err)

	require.NoError(t, s.Rollback())

	tbl, err := db.Catalog().LookupTable("", "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, tbl.ColumnNames())
	_, err = db.Catalog().LookupView("", "V")
	assert.Error(t, err, "the view was created in the rolled back transaction")
	assert.Equal(t, edges, db.Graph().EdgeCount())
}

func TestSavepoints(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	createTable(t, s, "T", "A")
	require.NoError(t, s.SetAutoCommit(ctx, false))

	_, err := s.Insert(ctx, "", "T", nil, [][]any{{1}})
	require.NoError(t, err)
	require.NoError(t, s.SetSavepoint("SP1"))
	_, err = s.Insert(ctx, "", "T", nil, [][]any{{2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, 3, rowCount(t, db, "T"))

	require.NoError(t, s.RollbackToSavepoint("SP1"))
	assert.Equal(t, 1, rowCount(t, db, "T"))

	err = s.RollbackToSavepoint("MISSING")
	assert.True(t, dberr.HasCode(err, dberr.CodeNoSavepoint))

	require.NoError(t, s.ReleaseSavepoint("SP1"))
	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, [][]any{{int64(1)}}, tableValues(t, db, "T"))
}

func TestSavepointRejectedInAutoCommit(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)

	err := s.SetSavepoint("SP")
	assert.True(t, dberr.HasCode(err, dberr.CodeSavepointAuto))
}

func TestSetAutoCommitCommitsPendingWork(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	require.NoError(t, s.SetAutoCommit(ctx, false))
	createTable(t, s, "T", "A")
	assert.True(t, s.InTransaction())
	assert.Equal(t, 1, db.Info().OpenTransactions)

	require.NoError(t, s.SetAutoCommit(ctx, true))
	assert.False(t, s.InTransaction())
	require.NoError(t, s.Rollback())
	_, err := db.Catalog().LookupTable("", "T")
	assert.NoError(t, err)
}

// A row update fires a trigger chain that inserts into LOG and DEPS and
// deletes from DEPS. Rolling back restores both the row counts and the
// dependency graph, including a view created in the same transaction.
func TestRollbackRestoresTriggerRowsAndDependencies(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	createTable(t, s, "T", "ID", "B")
	createTable(t, s, "LOG", "X")
	createTable(t, s, "DEPS", "X")
	triggers := []planner.TriggerDef{
		{
			Name: "TR_LOG", Table: "T", Event: catalog.TriggerUpdate, UpdateOf: []string{"B"},
			Action: planner.ActionDef{Kind: catalog.ActionInsert, Target: "LOG", Values: []string{"NEW.B"}},
		},
		{
			Name: "TR_DEPS", Table: "LOG", Event: catalog.TriggerInsert,
			Action: planner.ActionDef{Kind: catalog.ActionInsert, Target: "DEPS", Values: []string{"NEW.X"}},
		},
		{
			Name: "TR_PURGE", Table: "T", Event: catalog.TriggerUpdate, UpdateOf: []string{"B"},
			Action: planner.ActionDef{Kind: catalog.ActionDelete, Target: "DEPS", Where: "X == OLD.B"},
		},
	}
	for _, def := range triggers {
		_, err := s.CreateTrigger(ctx, def)
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, "", "T", nil, [][]any{{1, 10}})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "", "DEPS", nil, [][]any{{10}})
	require.NoError(t, err)

	logBefore := rowCount(t, db, "LOG")
	depsBefore := tableValues(t, db, "DEPS")
	edgesBefore := db.Graph().EdgeCount()

	require.NoError(t, s.SetAutoCommit(ctx, false))
	_, err = s.Insert(ctx, "", "T", nil, [][]any{{2, 20}})
	require.NoError(t, err)
	n, err := s.Update(ctx, "", "T", map[string]string{"B": "B + 1"}, "ID == 1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.CreateView(ctx, planner.ViewDef{Name: "V", Source: "T", Columns: []string{"B"}})
	require.NoError(t, err)

	assert.Equal(t, logBefore+1, rowCount(t, db, "LOG"))
	assert.Equal(t, [][]any{{int64(11)}}, tableValues(t, db, "DEPS"))
	assert.Greater(t, db.Graph().EdgeCount(), edgesBefore)

	require.NoError(t, s.Rollback())

	assert.Equal(t, logBefore, rowCount(t, db, "LOG"))
	assert.Equal(t, depsBefore, tableValues(t, db, "DEPS"))
	assert.Equal(t, edgesBefore, db.Graph().EdgeCount())
	assert.Equal(t, 1, rowCount(t, db, "T"))
}
