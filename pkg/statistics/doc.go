// Package statistics records runtime statistics of result-set execution.
//
// Operators report to a Sink as they run: OnOpen when a node is opened,
// OnRow for every row it returns and OnClose with its final counters. The
// Recorder sink assembles the reports of one execution into a tree shaped
// like the operator plan. Statistics have no influence on query results.
package statistics
