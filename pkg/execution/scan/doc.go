// Package scan compiles single-relation queries into operator trees.
//
// A query over a table becomes a table scan under a project-restrict node.
// A query over a view inlines the view's own project-restrict over its
// source, recursively. The compiled Plan records the catalog generation and
// the providers it depends on, so a statement cache can tell when it must
// be rebuilt. Every operator reports to a statistics.Sink.
package scan
