package transaction

import (
	"fmt"

	"go.uber.org/multierr"
)

// Marker is a position in a transaction's undo log. Rolling back to a marker
// undoes every step recorded after it and nothing before it.
type Marker int

// UndoFunc reverses one tentative mutation.
type UndoFunc func() error

type undoEntry struct {
	desc string
	fn   UndoFunc
}

// RecordUndo appends a step to the undo log. desc is used for logging only.
func (tc *TransactionContext) RecordUndo(desc string, fn UndoFunc) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.undo = append(tc.undo, undoEntry{desc: desc, fn: fn})
}

// BeginNestedUndo opens a nested step and returns the marker to roll back to
// should the step fail.
func (tc *TransactionContext) BeginNestedUndo() Marker {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	m := Marker(len(tc.undo))
	tc.openSteps = append(tc.openSteps, m)
	return m
}

// CommitStep closes the nested step opened at m. Its undo entries are kept so
// that a later rollback of the enclosing transaction still reverses them.
func (tc *TransactionContext) CommitStep(m Marker) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.closeStepsFrom(m)
}

// RollbackTo undoes, newest first, every step recorded after m. All undo
// functions run even if some fail; their errors are combined.
func (tc *TransactionContext) RollbackTo(m Marker) error {
	tc.mutex.Lock()
	if int(m) > len(tc.undo) || m < 0 {
		tc.mutex.Unlock()
		return fmt.Errorf("undo marker %d beyond log length %d", m, len(tc.undo))
	}
	pending := tc.undo[m:]
	tc.undo = tc.undo[:m]
	tc.closeStepsFrom(m)
	tc.mutex.Unlock()

	var errs error
	for i := len(pending) - 1; i >= 0; i-- {
		if err := pending[i].fn(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("undo %s: %w", pending[i].desc, err))
		}
	}
	return errs
}

// UndoDepth returns the number of recorded undo entries.
func (tc *TransactionContext) UndoDepth() int {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return len(tc.undo)
}

func (tc *TransactionContext) closeStepsFrom(m Marker) {
	for i, open := range tc.openSteps {
		if open >= m {
			tc.openSteps = tc.openSteps[:i]
			return
		}
	}
}
