package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/checkpoint"
	"dictengine/pkg/config"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/planner"
	"dictengine/pkg/types"
)

func setupTestDB(t *testing.T, mutate ...func(*config.Config)) *Database {
	t.Helper()
	cfg := config.Default()
	for _, fn := range mutate {
		fn(cfg)
	}
	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestSession(t *testing.T, db *Database) *Session {
	t.Helper()
	s, err := db.NewSession()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ints(names ...string) []planner.ColumnDef {
	out := make([]planner.ColumnDef, len(names))
	for i, n := range names {
		out[i] = planner.ColumnDef{Name: n, Type: types.Integer()}
	}
	return out
}

func createRequest(name string, cols ...string) planner.CreateTableRequest {
	return planner.CreateTableRequest{Name: name, Columns: ints(cols...)}
}

func createTable(t *testing.T, s *Session, name string, cols ...string) {
	t.Helper()
	_, err := s.CreateTable(context.Background(), createRequest(name, cols...))
	require.NoError(t, err)
}

func rowCount(t *testing.T, db *Database, table string) int {
	t.Helper()
	tbl, err := db.Catalog().LookupTable("", table)
	require.NoError(t, err)
	n, err := db.Store().RowCount(tbl.ID)
	require.NoError(t, err)
	return n
}

func tableValues(t *testing.T, db *Database, table string) [][]any {
	t.Helper()
	tbl, err := db.Catalog().LookupTable("", table)
	require.NoError(t, err)
	h, err := db.Store().Heap(tbl.ID)
	require.NoError(t, err)
	var out [][]any
	for _, r := range h.Scan() {
		row := make([]any, len(r.Fields))
		for i, f := range r.Fields {
			row[i] = f.Native()
		}
		out = append(out, row)
	}
	return out
}

func TestOpen_Defaults(t *testing.T) {
	db := setupTestDB(t)

	assert.Equal(t, "dictdb", db.Name())
	assert.Nil(t, db.Statistics(), "statistics are off by default")
	assert.NotNil(t, db.Catalog())
	assert.NotNil(t, db.Graph())
	assert.NotNil(t, db.Statements())

	info := db.Info()
	assert.Equal(t, 0, info.Sessions)
	assert.Empty(t, info.Tables)
	assert.Equal(t, 0, info.DependencyEdges)
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Database.MaxTriggerDepth = 0

	_, err := Open(cfg)
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeInvalidRequest))
}

func TestSessionsAreTracked(t *testing.T) {
	db := setupTestDB(t)
	s1 := newTestSession(t, db)
	s2 := newTestSession(t, db)

	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, 2, db.Info().Sessions)

	require.NoError(t, s1.Close())
	require.NoError(t, s1.Close())
	assert.Equal(t, 1, db.Info().Sessions)

	_, err := s1.Insert(context.Background(), "", "T", nil, [][]any{{1}})
	assert.True(t, dberr.HasCode(err, dberr.CodeNoConnection))
}

func TestClose_RollsBackOpenSessions(t *testing.T) {
	db, err := Open(nil)
	require.NoError(t, err)
	s, err := db.NewSession()
	require.NoError(t, err)
	ctx := context.Background()

	createTable(t, s, "KEPT", "A")
	require.NoError(t, s.SetAutoCommit(ctx, false))
	createTable(t, s, "PENDING", "A")

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	assert.Equal(t, []string{"APP.KEPT"}, db.Info().Tables)
	_, err = db.NewSession()
	assert.Error(t, err)
}

func TestCheckpointWrittenAtCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.db")
	db := setupTestDB(t, func(c *config.Config) { c.Checkpoint.Path = path })
	s := newTestSession(t, db)
	ctx := context.Background()

	require.NoError(t, s.SetAutoCommit(ctx, false))
	createTable(t, s, "T", "A", "B")
	_, err := s.CreateView(ctx, planner.ViewDef{Name: "V", Source: "T", Columns: []string{"A"}})
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	reader, err := checkpoint.Open(path)
	require.NoError(t, err)
	defer reader.Close()

	tables, err := reader.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "T", tables[0].Name)
	assert.Equal(t, 2, tables[0].Columns)

	gen, ok, err := reader.LastGeneration(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, db.Catalog().Generation(), gen)
}
