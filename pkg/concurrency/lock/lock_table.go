package lock

import (
	"slices"

	"dictengine/pkg/primitives"
)

// LockTable manages the mapping of objects to locks and transactions to the
// objects they hold locks on.
type LockTable struct {
	objectLocks map[primitives.ObjectID][]*Lock
	txLocks     map[int64]map[primitives.ObjectID]LockType
}

func NewLockTable() *LockTable {
	return &LockTable{
		objectLocks: make(map[primitives.ObjectID][]*Lock),
		txLocks:     make(map[int64]map[primitives.ObjectID]LockType),
	}
}

// HasSufficientLock checks if the transaction already holds a lock at least
// as strong as the requested one.
func (lt *LockTable) HasSufficientLock(txID int64, oid primitives.ObjectID, req LockType) bool {
	held, ok := lt.txLocks[txID][oid]
	if !ok {
		return false
	}
	return held == ExclusiveLock || req == SharedLock
}

// CanGrant determines if a lock can be granted without waiting. For exclusive
// locks, no other transaction can hold any lock on the object. For shared
// locks, no other transaction can hold an exclusive lock on it.
func (lt *LockTable) CanGrant(txID int64, oid primitives.ObjectID, req LockType) bool {
	for _, l := range lt.objectLocks[oid] {
		if l.TxID == txID {
			continue
		}
		if req == ExclusiveLock || l.LockType == ExclusiveLock {
			return false
		}
	}
	return true
}

// Holders returns the transactions other than txID whose locks conflict with req.
func (lt *LockTable) Holders(txID int64, oid primitives.ObjectID, req LockType) []int64 {
	var out []int64
	for _, l := range lt.objectLocks[oid] {
		if l.TxID != txID && (req == ExclusiveLock || l.LockType == ExclusiveLock) {
			out = append(out, l.TxID)
		}
	}
	return out
}

// Grant records the lock, upgrading an existing shared lock in place.
func (lt *LockTable) Grant(txID int64, oid primitives.ObjectID, lockType LockType) {
	if lt.txLocks[txID] == nil {
		lt.txLocks[txID] = make(map[primitives.ObjectID]LockType)
	}
	if _, held := lt.txLocks[txID][oid]; held {
		for _, l := range lt.objectLocks[oid] {
			if l.TxID == txID {
				l.LockType = lockType
			}
		}
	} else {
		lt.objectLocks[oid] = append(lt.objectLocks[oid], NewLock(txID, lockType))
	}
	lt.txLocks[txID][oid] = lockType
}

// ReleaseAll drops every lock held by txID and returns the freed objects.
func (lt *LockTable) ReleaseAll(txID int64) []primitives.ObjectID {
	held := lt.txLocks[txID]
	freed := make([]primitives.ObjectID, 0, len(held))
	for oid := range held {
		remaining := slices.DeleteFunc(lt.objectLocks[oid], func(l *Lock) bool {
			return l.TxID == txID
		})
		updateOrDelete(lt.objectLocks, oid, remaining)
		freed = append(freed, oid)
	}
	delete(lt.txLocks, txID)
	return freed
}

// LocksOn returns the locks currently granted on an object.
func (lt *LockTable) LocksOn(oid primitives.ObjectID) []*Lock {
	return lt.objectLocks[oid]
}

// updateOrDelete updates the map with the new slice, or deletes the key if the slice is empty.
func updateOrDelete[K comparable, V any](m map[K][]V, key K, newSlice []V) {
	if len(newSlice) > 0 {
		m[key] = newSlice
	} else {
		delete(m, key)
	}
}
