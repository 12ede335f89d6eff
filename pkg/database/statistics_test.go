package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/config"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/statistics"
)

func withStatistics(c *config.Config) { c.Statistics.Enabled = true }

func TestStatisticsOfLastExecution(t *testing.T) {
	db := setupTestDB(t, withStatistics)
	s := newTestSession(t, db)
	seedPeople(t, s)

	_, err := s.Query(context.Background(), scan.Query{From: "PEOPLE", Where: "ID >= 2"})
	require.NoError(t, err)

	stats := db.Statistics()
	require.NotNil(t, stats)
	assert.Equal(t, uint64(1), stats.ExecutionID)
	assert.Contains(t, stats.Statement, "WHERE ID >= 2")

	require.Len(t, stats.Roots, 1)
	root := stats.Roots[0]
	assert.Equal(t, "Project-Restrict ResultSet", root.Name)
	assert.Equal(t, int64(3), root.SeenRows)
	assert.Equal(t, int64(2), root.ReturnedRows)

	require.Len(t, root.Children, 1)
	leaf := root.Children[0]
	assert.Equal(t, statistics.ScanHeap, leaf.ScanType)
	assert.Equal(t, int64(1), leaf.Opens)
	assert.NotNil(t, leaf.Timing)
}

func TestStatisticsResetPerExecution(t *testing.T) {
	db := setupTestDB(t, withStatistics)
	s := newTestSession(t, db)
	seedPeople(t, s)
	ctx := context.Background()

	_, err := s.Query(ctx, scan.Query{From: "PEOPLE"})
	require.NoError(t, err)
	_, err = s.Query(ctx, scan.Query{From: "PEOPLE", Where: "ID == 1"})
	require.NoError(t, err)

	stats := db.Statistics()
	assert.Equal(t, uint64(2), stats.ExecutionID)
	require.Len(t, stats.Roots, 1)
	assert.Equal(t, int64(3), stats.Roots[0].SeenRows)
	assert.Equal(t, int64(1), stats.Roots[0].ReturnedRows)
	assert.Equal(t, int64(1), stats.Roots[0].Children[0].Opens)
}
