package integration

import (
	"context"
	"path/filepath"
	"testing"

	"dictengine/pkg/config"
	"dictengine/pkg/database"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/scenario"
)

// TestDatabase wraps a database and a scenario runner with cleanup
type TestDatabase struct {
	DB             *database.Database
	Runner         *scenario.Runner
	CheckpointPath string
	cleanup        func()
}

// SetupTestDB creates a database that checkpoints into a temp directory
func SetupTestDB(t *testing.T) *TestDatabase {
	t.Helper()

	cfg := config.Default()
	cfg.Checkpoint.Path = filepath.Join(t.TempDir(), "dict.db")

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	runner := scenario.NewRunner(db, nil)

	cleanup := func() {
		if err := runner.Close(); err != nil {
			t.Logf("warning: failed to close sessions: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
	}

	return &TestDatabase{
		DB:             db,
		Runner:         runner,
		CheckpointPath: cfg.Checkpoint.Path,
		cleanup:        cleanup,
	}
}

// Cleanup closes every session and the database
func (td *TestDatabase) Cleanup() {
	if td.cleanup != nil {
		td.cleanup()
	}
}

// LoadScenario reads a scenario from testdata
func LoadScenario(t *testing.T, name string) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Load(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to load scenario %s: %v", name, err)
	}
	return sc
}

// RunSteps runs steps[from:to] of sc and fails the test on the first failing step
func (td *TestDatabase) RunSteps(t *testing.T, sc *scenario.Scenario, from, to int) {
	t.Helper()
	part := &scenario.Scenario{Name: sc.Name, Steps: sc.Steps[from:to]}
	if err := td.Runner.Run(context.Background(), part); err != nil {
		t.Fatalf("scenario %s failed: %v", sc.Name, err)
	}
}

// RunScenario runs every step of sc
func (td *TestDatabase) RunScenario(t *testing.T, sc *scenario.Scenario) {
	t.Helper()
	td.RunSteps(t, sc, 0, len(sc.Steps))
}

// MustQuery runs q on the default session
func (td *TestDatabase) MustQuery(t *testing.T, q scan.Query) database.QueryResult {
	t.Helper()
	s, err := td.Runner.Session("")
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	res, err := s.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("query failed: %s\nError: %v", q.Text(), err)
	}
	return res
}

// VerifyTableExists checks if a table exists
func (td *TestDatabase) VerifyTableExists(t *testing.T, qualified string) {
	t.Helper()
	tables := td.DB.Info().Tables
	for _, table := range tables {
		if table == qualified {
			return
		}
	}
	t.Fatalf("table %s does not exist. Available tables: %v", qualified, tables)
}

// VerifyRowCount verifies the number of rows a query returns
func (td *TestDatabase) VerifyRowCount(t *testing.T, q scan.Query, expectedCount int) {
	t.Helper()
	result := td.MustQuery(t, q)
	if len(result.Rows) != expectedCount {
		t.Fatalf("expected %d rows, got %d for query: %s", expectedCount, len(result.Rows), q.Text())
	}
}

// firstStep returns the index of the first step with the given op
func firstStep(t *testing.T, sc *scenario.Scenario, op string) int {
	t.Helper()
	for i, st := range sc.Steps {
		if st.Op == op {
			return i
		}
	}
	t.Fatalf("scenario %s has no %s step", sc.Name, op)
	return -1
}
