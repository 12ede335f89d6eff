package dml

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
	"dictengine/pkg/storage"
	"dictengine/pkg/storage/heap"
	"dictengine/pkg/types"
)

// DefaultMaxTriggerDepth bounds trigger nesting when none is configured.
const DefaultMaxTriggerDepth = 16

// Executor runs DML for one database.
type Executor struct {
	cat      *catalog.Catalog
	store    *storage.Store
	locks    *lock.LockManager
	maxDepth int

	mu         sync.Mutex
	compiled   map[primitives.ObjectID]*compiledTrigger
	recompiles int
}

// NewExecutor creates an executor. locks may be nil in single-session use.
func NewExecutor(cat *catalog.Catalog, store *storage.Store, locks *lock.LockManager, maxTriggerDepth int) *Executor {
	if maxTriggerDepth <= 0 {
		maxTriggerDepth = DefaultMaxTriggerDepth
	}
	return &Executor{
		cat:      cat,
		store:    store,
		locks:    locks,
		maxDepth: maxTriggerDepth,
		compiled: make(map[primitives.ObjectID]*compiledTrigger),
	}
}

func (e *Executor) lockTable(ctx context.Context, tx *transaction.TransactionContext, id primitives.ObjectID, mode lock.LockType) error {
	if e.locks == nil {
		return nil
	}
	return e.locks.Lock(ctx, tx, id, mode)
}

// table returns the current version of a table and its heap.
func (e *Executor) table(id primitives.ObjectID) (*catalog.Table, *heap.HeapTable, error) {
	tbl, ok := e.cat.TableByID(id)
	if !ok {
		return nil, nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound,
			"table %s does not exist", id.Short())
	}
	h, err := e.store.Heap(id)
	if err != nil {
		return nil, nil, dberr.Wrap(err, dberr.CodeInternal, "DML", "dml")
	}
	return tbl, h, nil
}

// step runs fn inside a nested undo step of tx.
func step(tx *transaction.TransactionContext, fn func() error) error {
	m := tx.BeginNestedUndo()
	if err := fn(); err != nil {
		return multierr.Append(err, tx.RollbackTo(m))
	}
	tx.CommitStep(m)
	return nil
}

// RowValues maps column names of tbl to the native values of fields. NULL
// becomes nil.
func RowValues(tbl *catalog.Table, fields []types.Field) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(tbl.Columns))
	for i, col := range tbl.Columns {
		if i >= len(fields) || fields[i] == nil || fields[i].IsNull() {
			out[col.Name] = nil
			continue
		}
		out[col.Name] = fields[i].Native()
	}
	return out
}

// KeyFields extracts the fields of the given columns, by id, from a row.
func KeyFields(tbl *catalog.Table, cols []primitives.ObjectID, fields []types.Field) ([]types.Field, error) {
	ords, ok := tbl.Ordinals(cols)
	if !ok {
		return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInternal,
			"key column no longer exists in table '%s'", tbl.QualifiedName())
	}
	key := make([]types.Field, len(ords))
	for i, o := range ords {
		key[i] = fields[o]
	}
	return key, nil
}

// Recompiles returns how many trigger actions were compiled since the
// executor was created, first compiles included.
func (e *Executor) Recompiles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recompiles
}
