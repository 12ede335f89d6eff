package transaction

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"dictengine/pkg/primitives"
)

// TransactionStatus represents the current state of a transaction
type TransactionStatus int

const (
	TxActive TransactionStatus = iota
	TxCommitting
	TxAborting
	TxCommitted
	TxAborted
)

// LockMode is the kind of object lock a transaction holds.
type LockMode int

const (
	SharedLock LockMode = iota
	ExclusiveLock
)

func (m LockMode) String() string {
	if m == ExclusiveLock {
		return "X"
	}
	return "S"
}

func (ts TransactionStatus) String() string {
	switch ts {
	case TxActive:
		return "ACTIVE"
	case TxCommitting:
		return "COMMITTING"
	case TxAborting:
		return "ABORTING"
	case TxCommitted:
		return "COMMITTED"
	case TxAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

type TransactionStats struct {
	RowsRead      int
	RowsWritten   int
	RowsDeleted   int
	LockedObjects int
	UndoEntries   int
}

// TransactionContext encapsulates all state for a single transaction: the
// objects it has locked, what it is waiting for, and the undo log that lets
// catalog, dependency and row mutations be rolled back together.
type TransactionContext struct {
	ID *TransactionID

	status    TransactionStatus
	startTime time.Time
	endTime   time.Time
	mutex     sync.RWMutex

	lockedObjects map[primitives.ObjectID]LockMode
	waitingFor    []primitives.ObjectID

	undo       []undoEntry
	openSteps  []Marker
	savepoints map[string]Marker

	rowsRead    int
	rowsWritten int
	rowsDeleted int
}

func NewTransactionContext(tid *TransactionID) *TransactionContext {
	return &TransactionContext{
		ID:            tid,
		status:        TxActive,
		startTime:     time.Now(),
		lockedObjects: make(map[primitives.ObjectID]LockMode),
		waitingFor:    make([]primitives.ObjectID, 0),
		savepoints:    make(map[string]Marker),
	}
}

// IsActive returns true if the transaction is still active
func (tc *TransactionContext) IsActive() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.status == TxActive
}

func (tc *TransactionContext) GetStatus() TransactionStatus {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.status
}

// SetStatus updates the transaction status
func (tc *TransactionContext) SetStatus(status TransactionStatus) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.status = status
	if status == TxCommitted || status == TxAborted {
		tc.endTime = time.Now()
	}
}

// RecordLock records that this transaction holds a lock on an object. A
// shared lock never downgrades an exclusive one.
func (tc *TransactionContext) RecordLock(oid primitives.ObjectID, mode LockMode) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if existing, ok := tc.lockedObjects[oid]; ok && existing == ExclusiveLock {
		return
	}
	tc.lockedObjects[oid] = mode
}

// LockModeOn returns the mode held on oid, if any.
func (tc *TransactionContext) LockModeOn(oid primitives.ObjectID) (LockMode, bool) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	mode, ok := tc.lockedObjects[oid]
	return mode, ok
}

// GetLockedObjects returns a copy of all locked object ids
func (tc *TransactionContext) GetLockedObjects() []primitives.ObjectID {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return slices.Collect(maps.Keys(tc.lockedObjects))
}

// ClearLocks forgets every recorded lock. Called after the lock manager
// released them.
func (tc *TransactionContext) ClearLocks() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	clear(tc.lockedObjects)
}

// AddWaitingFor records that this transaction is waiting for an object
func (tc *TransactionContext) AddWaitingFor(oid primitives.ObjectID) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.waitingFor = append(tc.waitingFor, oid)
}

// RemoveWaitingFor removes an object from the waiting list
func (tc *TransactionContext) RemoveWaitingFor(oid primitives.ObjectID) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.waitingFor = slices.DeleteFunc(tc.waitingFor, func(o primitives.ObjectID) bool {
		return o == oid
	})
}

func (tc *TransactionContext) GetWaitingFor() []primitives.ObjectID {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return slices.Clone(tc.waitingFor)
}

// SetSavepoint records a named marker at the current end of the undo log.
// Reusing a name moves the savepoint.
func (tc *TransactionContext) SetSavepoint(name string) Marker {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	m := Marker(len(tc.undo))
	tc.savepoints[name] = m
	return m
}

// RollbackToSavepoint undoes everything recorded after the named savepoint.
// The savepoint itself stays valid, and later savepoints are released.
func (tc *TransactionContext) RollbackToSavepoint(name string) error {
	tc.mutex.Lock()
	m, ok := tc.savepoints[name]
	if ok {
		for n, other := range tc.savepoints {
			if other > m {
				delete(tc.savepoints, n)
			}
		}
	}
	tc.mutex.Unlock()

	if !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	return tc.RollbackTo(m)
}

// ReleaseSavepoint forgets a savepoint without undoing anything.
func (tc *TransactionContext) ReleaseSavepoint(name string) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	if _, ok := tc.savepoints[name]; !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	delete(tc.savepoints, name)
	return nil
}

// Rollback undoes the whole transaction and marks it aborted.
func (tc *TransactionContext) Rollback() error {
	tc.SetStatus(TxAborting)
	err := tc.RollbackTo(0)
	tc.mutex.Lock()
	clear(tc.savepoints)
	tc.mutex.Unlock()
	tc.SetStatus(TxAborted)
	return err
}

// Commit discards the undo log and marks the transaction committed.
func (tc *TransactionContext) Commit() {
	tc.mutex.Lock()
	tc.status = TxCommitting
	tc.undo = nil
	tc.openSteps = nil
	clear(tc.savepoints)
	tc.mutex.Unlock()
	tc.SetStatus(TxCommitted)
}

// RecordRowRead increments the rows read counter
func (tc *TransactionContext) RecordRowRead() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.rowsRead++
}

// RecordRowWrite increments the rows written counter
func (tc *TransactionContext) RecordRowWrite() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.rowsWritten++
}

// RecordRowDelete increments the rows deleted counter
func (tc *TransactionContext) RecordRowDelete() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.rowsDeleted++
}

// GetStatistics returns a snapshot of transaction statistics
func (tc *TransactionContext) GetStatistics() TransactionStats {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	return TransactionStats{
		RowsRead:      tc.rowsRead,
		RowsWritten:   tc.rowsWritten,
		RowsDeleted:   tc.rowsDeleted,
		LockedObjects: len(tc.lockedObjects),
		UndoEntries:   len(tc.undo),
	}
}

// Duration returns how long the transaction has been running
func (tc *TransactionContext) Duration() time.Duration {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	endTime := tc.endTime
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(tc.startTime)
}

// String returns a string representation of the transaction context
func (tc *TransactionContext) String() string {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	endTime := tc.endTime
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return fmt.Sprintf("Transaction %s [Status=%s, Duration=%v, Undo=%d, Locked=%d]",
		tc.ID.String(), tc.status.String(), endTime.Sub(tc.startTime),
		len(tc.undo), len(tc.lockedObjects))
}
