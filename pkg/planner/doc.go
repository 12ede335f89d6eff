// Package planner is the DDL change planner. Each operation resolves the
// objects it touches, asks the dependency graph which dependents would be
// affected, decides the RESTRICT or CASCADE outcome and then applies the
// change to the catalog, the dependency graph and storage as a sequence of
// undoable steps inside one nested step of the caller's transaction.
//
// A failing operation rolls back to the start of its step, so partial
// cascades are never visible. Successful operations return a DDLResult
// carrying the warnings for side effects (constraints, views, triggers or
// indexes dropped as a consequence) and the dependents that were marked for
// recompilation.
package planner
