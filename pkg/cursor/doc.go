// Package cursor implements result set cursors over compiled plans.
//
// A cursor is forward-only or scroll-insensitive, read-only or updatable,
// and closes or holds over commit. Open negotiates the requested options
// against what the plan can support and reports every downgrade as a
// warning. A scroll-insensitive cursor materializes its rows when opened;
// a forward-only cursor reads its plan as it advances.
//
// Positions are a single state: before the first row, on row n, after the
// last row, the insert row, between rows (forward-only, after the current
// row was updated or deleted) and closed. Errors distinguish a closed
// cursor (XCL16), no current row (XCL08) and the wrong submode (XJ086),
// and capability errors (XJ061, XJ083) leave the cursor where it was.
//
// Updatable cursors stage column values with Update and write them with
// UpdateRow, DeleteRow and InsertRow through a Writer. A write that breaks
// a constraint closes the cursor.
package cursor
