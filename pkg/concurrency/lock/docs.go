// Package lock implements object-level Two-Phase Locking for the catalog and
// table data.
//
// A transaction acquires a [SharedLock] on a table it merely scans and an
// [ExclusiveLock] on a table it alters structurally or writes to. Locks are
// released all at once at commit or abort, never mid-transaction. A shared
// lock may be upgraded to exclusive when no other transaction holds a lock on
// the object; downgrading never happens.
//
// When a lock cannot be granted, wait-for edges are added to the
// [WaitForGraph] and cycle detection runs before the caller sleeps, so a
// deadlock is reported immediately as a concurrency error. Otherwise the
// request retries with exponential backoff until the configured timeout or
// the caller's context expires.
package lock
