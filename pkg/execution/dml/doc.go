// Package dml executes row-level INSERT, UPDATE and DELETE against the
// in-memory store. Every row operation validates NOT NULL, CHECK, UNIQUE,
// PRIMARY KEY and FOREIGN KEY constraints, maintains indexes and fires the
// AFTER ROW triggers of the table.
//
// Each statement and each row runs inside a nested undo step of the
// caller's transaction, so a failing row leaves nothing behind and a
// rolled back transaction restores every row, index entry and trigger
// side effect.
//
// Trigger actions are compiled lazily. A compiled action caches the column
// ordinals it resolved together with the generations they were resolved
// against; a generation bump or an invalidation mark in the dependency graph
// forces a recompile on the next fire.
package dml
