package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/checkpoint"
	"dictengine/pkg/execution/scan"
)

// TestScenarioFiles runs every scenario under testdata against a fresh
// database.
func TestScenarioFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			td := SetupTestDB(t)
			defer td.Cleanup()

			td.RunScenario(t, LoadScenario(t, filepath.Base(file)))
		})
	}
}

func TestScenario_RestrictThenCascade(t *testing.T) {
	td := SetupTestDB(t)
	defer td.Cleanup()

	td.RunScenario(t, LoadScenario(t, "restrict_cascade.yaml"))

	td.VerifyTableExists(t, "APP.T3FK")
	_, err := td.DB.Catalog().LookupConstraint("", "CK3")
	assert.Error(t, err, "check constraint goes with its column")
	_, err = td.DB.Catalog().LookupConstraint("", "FK3")
	assert.NoError(t, err)
	_, err = td.DB.Catalog().LookupConstraint("", "PK3")
	assert.NoError(t, err)

	res := td.MustQuery(t, scan.Query{From: "T3FK"})
	assert.Equal(t, []string{"X", "FK"}, res.Columns)
}

func TestScenario_IdentityRename(t *testing.T) {
	td := SetupTestDB(t)
	defer td.Cleanup()

	td.RunScenario(t, LoadScenario(t, "identity_rename.yaml"))

	tbl, err := td.DB.Catalog().LookupTable("", "ID1")
	require.NoError(t, err)
	col, ok := tbl.Column("A2")
	require.True(t, ok)
	assert.EqualValues(t, 3, col.Identity.Current())
	_, ok = tbl.Column("A")
	assert.False(t, ok)
}

func TestScenario_RollbackRestoresDependencies(t *testing.T) {
	td := SetupTestDB(t)
	defer td.Cleanup()

	sc := LoadScenario(t, "rollback_trigger_chain.yaml")
	begin := firstStep(t, sc, "autocommit")

	td.RunSteps(t, sc, 0, begin)
	before := td.DB.Info()
	edges := dictionaryEdges(td)
	require.NotEmpty(t, edges)

	td.RunSteps(t, sc, begin, len(sc.Steps))
	after := td.DB.Info()

	assert.Equal(t, edges, dictionaryEdges(td))
	assert.Equal(t, before.Tables, after.Tables)
	assert.Empty(t, after.Views)
	assert.Equal(t, before.Generation, after.Generation)
}

// dictionaryEdges leaves out the edges of cached statements, which live
// outside any transaction.
func dictionaryEdges(td *TestDatabase) []depend.Edge {
	var out []depend.Edge
	for _, e := range td.DB.Graph().Edges() {
		if e.Dependent.Kind != depend.KindStatement {
			out = append(out, e)
		}
	}
	return out
}

func TestScenario_CheckpointAfterCascade(t *testing.T) {
	td := SetupTestDB(t)
	defer td.Cleanup()
	ctx := context.Background()

	td.RunScenario(t, LoadScenario(t, "restrict_cascade.yaml"))

	reader, err := checkpoint.Open(td.CheckpointPath)
	require.NoError(t, err)
	defer reader.Close()

	tables, err := reader.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "T3FK", tables[0].Name)
	assert.Equal(t, 2, tables[0].Columns)
	assert.Equal(t, "T3PK", tables[1].Name)

	gen, ok, err := reader.LastGeneration(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, td.DB.Catalog().Generation(), gen)
}
