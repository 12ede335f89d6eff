package transaction

import (
	"fmt"
	"sync/atomic"
)

var lastTransactionID atomic.Int64

// TransactionID identifies one transaction for the life of the process.
// IDs are never reused.
type TransactionID struct {
	id int64
}

// NewTransactionID allocates the next ID.
func NewTransactionID() *TransactionID {
	return &TransactionID{id: lastTransactionID.Add(1)}
}

// NewTransactionIDFromValue wraps an existing ID value.
func NewTransactionIDFromValue(id int64) *TransactionID {
	return &TransactionID{id: id}
}

func (tid *TransactionID) ID() int64 { return tid.id }

func (tid *TransactionID) String() string {
	return fmt.Sprintf("TID-%d", tid.id)
}

// Equals compares by value. Two nil IDs are equal.
func (tid *TransactionID) Equals(other *TransactionID) bool {
	if tid == nil || other == nil {
		return tid == other
	}
	return tid.id == other.id
}
