package database

import (
	"context"
	"fmt"
	"testing"

	"dictengine/pkg/cursor"
	"dictengine/pkg/execution/scan"
)

func benchSession(b *testing.B, rows int) *Session {
	b.Helper()
	db, err := Open(nil)
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })
	s, err := db.NewSession()
	if err != nil {
		b.Fatalf("failed to open session: %v", err)
	}
	b.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if _, err := s.CreateTable(ctx, createRequest("BENCH", "ID", "V")); err != nil {
		b.Fatalf("create table: %v", err)
	}
	data := make([][]any, rows)
	for i := range data {
		data[i] = []any{i, i % 10}
	}
	if _, err := s.Insert(ctx, "", "BENCH", nil, data); err != nil {
		b.Fatalf("insert: %v", err)
	}
	return s
}

// BenchmarkQuery measures a filtered query whose plan stays cached.
func BenchmarkQuery(b *testing.B) {
	for _, rows := range []int{100, 1000} {
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			s := benchSession(b, rows)
			ctx := context.Background()
			q := scan.Query{From: "BENCH", Where: "V == 3"}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Query(ctx, q); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkScrollCursor measures random positioning on a materialized cursor.
func BenchmarkScrollCursor(b *testing.B) {
	s := benchSession(b, 1000)
	ctx := context.Background()
	c, err := s.OpenCursor(ctx, scan.Query{From: "BENCH"}, s.CursorOptions(cursor.ScrollInsensitive, cursor.ReadOnly))
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Absolute(i%1000 + 1); err != nil {
			b.Fatal(err)
		}
		if _, err := c.GetInt(1); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAddColumn measures DDL that invalidates a cached statement.
func BenchmarkAddColumn(b *testing.B) {
	s := benchSession(b, 100)
	ctx := context.Background()
	q := scan.Query{From: "BENCH", Columns: []string{"ID"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Query(ctx, q); err != nil {
			b.Fatal(err)
		}
		if _, err := s.AddColumn(ctx, "", "BENCH", ints(fmt.Sprintf("C%d", i))[0]); err != nil {
			b.Fatal(err)
		}
	}
}
