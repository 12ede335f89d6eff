// Package stmtcache keeps compiled statements of a database for reuse.
//
// Statements are keyed by schema, text and scroll type. Each cached
// statement is a node in the dependency graph with edges to the tables,
// views and columns its plan reads, so DDL that changes those objects marks
// it invalid and the next Activate compiles it again. Dropping a table
// discards the statements reading it.
package stmtcache
