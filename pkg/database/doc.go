// Package database is the per-database context: it owns the catalog,
// dependency graph, storage, locks, statement cache, statistics recorder
// and checkpoint writer of one database, and hands out sessions.
//
// A Session runs DDL, DML and cursors in its own transaction. Commit closes
// cursors that do not hold over commit and writes a checkpoint; rollback
// undoes catalog changes and dependency bookkeeping along with row changes
// and closes every cursor. Dropping a relation invalidates the open cursors
// of every session that read it.
package database
