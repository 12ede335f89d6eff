package transaction

import (
	"fmt"
	"slices"
	"sync"
)

// TransactionRegistry tracks the transactions sessions currently hold open.
// A session registers at its first statement and removes the entry at
// commit or rollback.
type TransactionRegistry struct {
	mu   sync.RWMutex
	open map[int64]*TransactionContext
}

func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{open: make(map[int64]*TransactionContext)}
}

// Begin starts and registers a new transaction.
func (r *TransactionRegistry) Begin() *TransactionContext {
	tc := NewTransactionContext(NewTransactionID())
	r.mu.Lock()
	r.open[tc.ID.ID()] = tc
	r.mu.Unlock()
	return tc
}

func (r *TransactionRegistry) Get(tid *TransactionID) (*TransactionContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.open[tid.ID()]
	if !ok {
		return nil, fmt.Errorf("transaction %s is not registered", tid)
	}
	return tc, nil
}

func (r *TransactionRegistry) Remove(tid *TransactionID) {
	r.mu.Lock()
	delete(r.open, tid.ID())
	r.mu.Unlock()
}

// Active returns the registered transactions still active, oldest first.
func (r *TransactionRegistry) Active() []*TransactionContext {
	r.mu.RLock()
	out := make([]*TransactionContext, 0, len(r.open))
	for _, tc := range r.open {
		if tc.IsActive() {
			out = append(out, tc)
		}
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *TransactionContext) int {
		return int(a.ID.ID() - b.ID.ID())
	})
	return out
}

// Count returns the number of registered transactions.
func (r *TransactionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.open)
}
