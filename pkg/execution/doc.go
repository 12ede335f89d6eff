// Package execution is the root of dictengine's row execution layer.
//
// Row sources follow the iterator (volcano) model of package iterator:
// every operator has Open / HasNext / Next / Close, and operators compose
// into a tree that is pulled one row at a time from the root.
//
// # Sub-packages
//
//   - [dictengine/pkg/execution/scan] – table scans and project-restrict
//     operators compiled from single-relation queries, reporting runtime
//     statistics as they run.
//   - [dictengine/pkg/execution/dml]  – row-level INSERT, UPDATE and DELETE
//     with constraint checking and trigger firing.
package execution
