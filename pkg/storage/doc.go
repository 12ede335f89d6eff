// Package storage is the row store behind the catalog: in-memory heap
// tables and key indexes, addressed by the stable object id of the table or
// index they back.
//
// # Sub-packages
//
//   - [dictengine/pkg/storage/heap]  – Heap table: an insertion-ordered set of
//     rows keyed by RowID, with an O(1) row count for "is this table empty".
//   - [dictengine/pkg/storage/index] – Key index: maps an encoded key to the
//     rows holding it, used to probe uniqueness and foreign keys.
//
// Every mutation takes an undo recorder (normally the transaction context)
// and registers its inverse, so row changes roll back together with the
// catalog and dependency changes of the same transaction.
package storage
