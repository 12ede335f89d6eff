// Package scenario runs YAML scripts of DDL, DML, query and transaction
// steps against a database. Each step runs in a named session, so a script
// can interleave work from several sessions:
//
//	name: restrict then cascade
//	steps:
//	  - op: create_table
//	    table: T
//	    columns: [{name: A, type: INTEGER}, {name: B, type: INTEGER}]
//	  - op: create_view
//	    name: V
//	    source: T
//	    select: [B]
//	  - op: drop_column
//	    table: T
//	    column: B
//	    expect_error: X0Y25
//	  - op: drop_column
//	    table: T
//	    column: B
//	    mode: cascade
//	  - op: query
//	    session: other
//	    table: T
//	    expect_count: 0
//
// A step with expect_error passes only when it fails with that SQLState.
// expect_rows compares rendered query rows; expect_count compares rows
// affected, or rows returned for a query.
package scenario
