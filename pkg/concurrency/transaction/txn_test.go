package transaction

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/primitives"
)

func TestTransactionID_Unique(t *testing.T) {
	ids := make(map[int64]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tid := NewTransactionID()
			mu.Lock()
			ids[tid.ID()] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 100)

	a := NewTransactionIDFromValue(7)
	assert.True(t, a.Equals(NewTransactionIDFromValue(7)))
	assert.False(t, a.Equals(nil))
	assert.Equal(t, "TID-7", a.String())
}

func TestRollbackTo_UndoesNewestFirst(t *testing.T) {
	tc := NewTransactionContext(NewTransactionID())
	var log []string

	tc.RecordUndo("a", func() error { log = append(log, "a"); return nil })
	m := tc.BeginNestedUndo()
	tc.RecordUndo("b", func() error { log = append(log, "b"); return nil })
	tc.RecordUndo("c", func() error { log = append(log, "c"); return nil })

	require.NoError(t, tc.RollbackTo(m))
	assert.Equal(t, []string{"c", "b"}, log)
	assert.Equal(t, 1, tc.UndoDepth())

	require.NoError(t, tc.Rollback())
	assert.Equal(t, []string{"c", "b", "a"}, log)
	assert.Equal(t, TxAborted, tc.GetStatus())
}

func TestCommitStep_KeepsEntriesForOuterRollback(t *testing.T) {
	tc := NewTransactionContext(NewTransactionID())
	undone := 0

	m := tc.BeginNestedUndo()
	tc.RecordUndo("step", func() error { undone++; return nil })
	tc.CommitStep(m)
	assert.Equal(t, 1, tc.UndoDepth())

	require.NoError(t, tc.RollbackTo(0))
	assert.Equal(t, 1, undone)
}

func TestRollbackTo_CombinesErrors(t *testing.T) {
	tc := NewTransactionContext(NewTransactionID())
	ran := 0
	tc.RecordUndo("first", func() error { ran++; return errors.New("boom1") })
	tc.RecordUndo("second", func() error { ran++; return errors.New("boom2") })

	err := tc.RollbackTo(0)
	require.Error(t, err)
	assert.Equal(t, 2, ran, "every undo step runs even after a failure")
	assert.Contains(t, err.Error(), "boom1")
	assert.Contains(t, err.Error(), "boom2")

	assert.Error(t, tc.RollbackTo(5))
}

func TestSavepoints(t *testing.T) {
	tc := NewTransactionContext(NewTransactionID())
	value := 0
	set := func(v int) {
		old := value
		value = v
		tc.RecordUndo("set", func() error { value = old; return nil })
	}

	set(1)
	tc.SetSavepoint("sp1")
	set(2)
	tc.SetSavepoint("sp2")
	set(3)

	require.NoError(t, tc.RollbackToSavepoint("sp1"))
	assert.Equal(t, 1, value)
	assert.Error(t, tc.RollbackToSavepoint("sp2"), "later savepoints are released")

	set(4)
	require.NoError(t, tc.RollbackToSavepoint("sp1"))
	assert.Equal(t, 1, value)

	require.NoError(t, tc.ReleaseSavepoint("sp1"))
	assert.Error(t, tc.ReleaseSavepoint("sp1"))
}

func TestCommit_DiscardsUndo(t *testing.T) {
	tc := NewTransactionContext(NewTransactionID())
	called := false
	tc.RecordUndo("x", func() error { called = true; return nil })
	tc.Commit()

	assert.Equal(t, TxCommitted, tc.GetStatus())
	assert.False(t, tc.IsActive())
	assert.Zero(t, tc.UndoDepth())
	assert.False(t, called)
}

func TestLocksAndWaiting(t *testing.T) {
	tc := NewTransactionContext(NewTransactionID())
	oid := primitives.NewObjectID()

	tc.RecordLock(oid, ExclusiveLock)
	tc.RecordLock(oid, SharedLock)
	mode, ok := tc.LockModeOn(oid)
	require.True(t, ok)
	assert.Equal(t, ExclusiveLock, mode, "shared never downgrades exclusive")

	tc.AddWaitingFor(oid)
	assert.Len(t, tc.GetWaitingFor(), 1)
	tc.RemoveWaitingFor(oid)
	assert.Empty(t, tc.GetWaitingFor())

	tc.ClearLocks()
	assert.Empty(t, tc.GetLockedObjects())
}

func TestRegistry(t *testing.T) {
	reg := NewTransactionRegistry()
	a := reg.Begin()
	b := reg.Begin()
	assert.Equal(t, 2, reg.Count())

	got, err := reg.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	b.Commit()
	require.Len(t, reg.Active(), 1)
	assert.Same(t, a, reg.Active()[0])

	reg.Remove(b.ID)
	_, err = reg.Get(b.ID)
	assert.Error(t, err)
}
