// Package binder parses the expressions stored in the catalog: CHECK
// constraint conditions, view restrictions and trigger action values. It
// extracts the columns an expression references so dependency edges can be
// recorded, regenerates expression text after a column rename, and evaluates
// expressions against a row with SQL NULL semantics.
//
// Expressions use expr-lang syntax. Bare identifiers name columns of the
// table the expression is bound to; NEW.col and OLD.col name columns of the
// row that fired a trigger. Identifiers are case-insensitive and are stored
// in upper case.
package binder
