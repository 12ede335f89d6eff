package lock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/logging"
	"dictengine/pkg/primitives"
)

const (
	baseRetryDelay = time.Millisecond
	maxRetryDelay  = 50 * time.Millisecond
)

// LockManager grants object-level shared and exclusive locks to
// transactions under strict two-phase locking.
type LockManager struct {
	mutex    sync.Mutex
	table    *LockTable
	depGraph *WaitForGraph
	timeout  time.Duration
}

// NewLockManager creates a lock manager. A non-positive timeout means waits
// are bounded only by the caller's context.
func NewLockManager(timeout time.Duration) *LockManager {
	return &LockManager{
		table:    NewLockTable(),
		depGraph: NewWaitForGraph(),
		timeout:  timeout,
	}
}

// Lock acquires a lock of the given kind on oid for tx, blocking until it is
// granted, a deadlock is detected, or the timeout expires. Deadlock and
// timeout failures are returned as concurrency errors and leave no trace of
// the request behind.
func (lm *LockManager) Lock(ctx context.Context, tx *transaction.TransactionContext, oid primitives.ObjectID, lockType LockType) error {
	if tx == nil {
		return dberr.New(dberr.CategorySystem, dberr.CodeInvalidRequest, "transaction cannot be nil")
	}
	txID := tx.ID.ID()

	if lm.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lm.timeout)
		defer cancel()
	}

	for attempt := 0; ; attempt++ {
		lm.mutex.Lock()
		if lm.table.HasSufficientLock(txID, oid, lockType) {
			lm.mutex.Unlock()
			return nil
		}

		if lm.table.CanGrant(txID, oid, lockType) {
			lm.table.Grant(txID, oid, lockType)
			lm.depGraph.RemoveWaiter(txID)
			lm.mutex.Unlock()
			tx.RemoveWaitingFor(oid)
			tx.RecordLock(oid, lockType)
			return nil
		}

		for _, holder := range lm.table.Holders(txID, oid, lockType) {
			lm.depGraph.AddEdge(txID, holder)
		}
		if lm.depGraph.HasCycleFrom(txID) {
			lm.depGraph.RemoveWaiter(txID)
			lm.mutex.Unlock()
			tx.RemoveWaitingFor(oid)
			logging.WithLock(txID, oid.Short()).Warn("deadlock detected")
			return dberr.Newf(dberr.CategoryConcurrency, dberr.CodeDeadlock,
				"deadlock detected for transaction %d on object %s", txID, oid.Short())
		}
		lm.mutex.Unlock()

		if attempt == 0 {
			tx.AddWaitingFor(oid)
		}

		select {
		case <-ctx.Done():
			lm.mutex.Lock()
			lm.depGraph.RemoveWaiter(txID)
			lm.mutex.Unlock()
			tx.RemoveWaitingFor(oid)
			logging.WithLock(txID, oid.Short()).Warn("lock wait timed out", zap.Error(ctx.Err()))
			return dberr.Newf(dberr.CategoryConcurrency, dberr.CodeLockTimeout,
				"a lock could not be obtained within the time requested on object %s", oid.Short()).
				WithCause(ctx.Err())
		case <-time.After(retryDelay(attempt)):
		}
	}
}

func retryDelay(attempt int) time.Duration {
	factor := min(attempt/10, 6)
	return min(baseRetryDelay*time.Duration(1<<uint(factor)), maxRetryDelay)
}

// ReleaseAll releases every lock held by tx. Called at commit and abort.
func (lm *LockManager) ReleaseAll(tx *transaction.TransactionContext) {
	lm.mutex.Lock()
	freed := lm.table.ReleaseAll(tx.ID.ID())
	lm.depGraph.RemoveTransaction(tx.ID.ID())
	lm.mutex.Unlock()

	tx.ClearLocks()
	if len(freed) > 0 {
		logging.WithTx(tx.ID.ID()).Debug("released locks", zap.Int("count", len(freed)))
	}
}

// IsLocked reports whether any transaction holds a lock on oid.
func (lm *LockManager) IsLocked(oid primitives.ObjectID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return len(lm.table.LocksOn(oid)) > 0
}

// HeldMode returns the lock mode tx holds on oid.
func (lm *LockManager) HeldMode(tx *transaction.TransactionContext, oid primitives.ObjectID) (LockType, bool) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	mode, ok := lm.table.txLocks[tx.ID.ID()][oid]
	return mode, ok
}
