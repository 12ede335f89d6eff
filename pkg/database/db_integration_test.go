package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/planner"
	"dictengine/pkg/types"
)

func TestDropColumnRestrictThenCascade(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, planner.CreateTableRequest{
		Name:        "T3PK",
		Columns:     []planner.ColumnDef{{Name: "ID", Type: types.Integer(), NotNull: true}},
		Constraints: []planner.ConstraintDef{{Name: "PK3", Type: catalog.PrimaryKeyConstraint, Columns: []string{"ID"}}},
	})
	require.NoError(t, err)
	_, err = s.CreateTable(ctx, planner.CreateTableRequest{
		Name:    "T3FK",
		Columns: ints("X", "USEDINCHECK", "FK"),
		Constraints: []planner.ConstraintDef{
			{Name: "CK3", Type: catalog.CheckConstraint, Check: "USEDINCHECK > 0"},
			{Name: "FK3", Type: catalog.ForeignKeyConstraint, Columns: []string{"FK"}, RefTable: "T3PK"},
		},
	})
	require.NoError(t, err)
	gen := db.Catalog().Generation()

	_, err = s.DropColumn(ctx, "", "T3FK", "USEDINCHECK", planner.Restrict)
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeProviderHasDependent))
	assert.Equal(t, gen, db.Catalog().Generation())
	assert.False(t, s.InTransaction())

	res, err := s.DropColumn(ctx, "", "T3FK", "USEDINCHECK", planner.Cascade)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, dberr.WarnConstraintDropped, res.Warnings[0].Kind)

	_, err = db.Catalog().LookupConstraint("", "CK3")
	assert.Error(t, err)
	_, err = db.Catalog().LookupConstraint("", "FK3")
	assert.NoError(t, err)

	qr, err := s.Query(ctx, scan.Query{From: "T3FK"})
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "FK"}, qr.Columns)
}

func TestRenamedIdentityColumnKeepsCounter(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, planner.CreateTableRequest{
		Name: "ID1",
		Columns: []planner.ColumnDef{
			{Name: "A", Type: types.Integer(), Identity: &planner.IdentityDef{Start: 1, Increment: 1}},
			{Name: "B", Type: types.Integer()},
		},
	})
	require.NoError(t, err)

	_, err = s.Insert(ctx, "", "ID1", []string{"B"}, [][]any{{10}})
	require.NoError(t, err)
	_, err = s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.RenameColumn(ctx, tx, "", "ID1", "A", "A2")
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "", "ID1", []string{"B"}, [][]any{{20}})
	require.NoError(t, err)

	res, err := s.Query(ctx, scan.Query{From: "ID1", Columns: []string{"A2"}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}, {"2"}}, res.Rows)

	tbl, err := db.Catalog().LookupTable("", "ID1")
	require.NoError(t, err)
	col, ok := tbl.Column("A2")
	require.True(t, ok)
	assert.EqualValues(t, 3, col.Identity.Current())
}

func TestViewOverDroppedColumnGoesWithCascade(t *testing.T) {
	db := setupTestDB(t)
	s := newTestSession(t, db)
	ctx := context.Background()

	createTable(t, s, "T", "A", "B")
	_, err := s.CreateView(ctx, planner.ViewDef{Name: "V", Source: "T", Columns: []string{"B"}})
	require.NoError(t, err)

	_, err = s.DropColumn(ctx, "", "T", "B", planner.Restrict)
	assert.True(t, dberr.HasCode(err, dberr.CodeProviderHasView))

	res, err := s.DropColumn(ctx, "", "T", "B", planner.Cascade)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)

	_, err = s.Query(ctx, scan.Query{From: "V"})
	assert.True(t, dberr.HasCode(err, dberr.CodeTableNotFound))
	assert.Equal(t, []string{"APP.T"}, db.Info().Tables)
	assert.Empty(t, db.Info().Views)
}
