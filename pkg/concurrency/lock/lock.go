package lock

import (
	"time"

	"dictengine/pkg/concurrency/transaction"
)

// LockType is the mode of an object lock.
type LockType = transaction.LockMode

const (
	SharedLock    = transaction.SharedLock
	ExclusiveLock = transaction.ExclusiveLock
)

type Lock struct {
	TxID      int64
	LockType  LockType
	GrantTime time.Time
}

type LockRequest struct {
	TxID     int64
	LockType LockType
}

func NewLock(txID int64, lockType LockType) *Lock {
	return &Lock{
		TxID:      txID,
		LockType:  lockType,
		GrantTime: time.Now(),
	}
}
