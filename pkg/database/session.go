package database

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/cursor"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/logging"
	"dictengine/pkg/planner"
	"dictengine/pkg/primitives"
	"dictengine/pkg/stmtcache"
)

// Session is one connection to a database. A session is used by a single
// goroutine; sessions run concurrently with each other.
//
// In autocommit mode every statement commits when it succeeds and rolls
// back when it fails, and work done through cursors commits when the last
// open cursor closes.
type Session struct {
	db  *Database
	id  int64
	log *zap.Logger

	mu         sync.Mutex
	autocommit bool
	tx         *transaction.TransactionContext
	cursors    map[*cursor.Cursor]*scan.Plan
	cursorSeq  int
	closed     bool
}

func newSession(db *Database, id int64) *Session {
	return &Session{
		db:         db,
		id:         id,
		log:        db.log.With(zap.Int64("session", id)),
		autocommit: true,
		cursors:    make(map[*cursor.Cursor]*scan.Plan),
	}
}

// ID returns the session number, unique within the database.
func (s *Session) ID() int64 { return s.id }

// AutoCommit reports whether the session is in autocommit mode.
func (s *Session) AutoCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autocommit
}

// SetAutoCommit switches autocommit mode. Turning it on commits any
// pending work.
func (s *Session) SetAutoCommit(ctx context.Context, on bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	changed := s.autocommit != on
	s.autocommit = on
	s.mu.Unlock()
	if changed && on {
		return s.commit(ctx)
	}
	return nil
}

// Transaction returns the session's current transaction, starting one if
// none is active.
func (s *Session) Transaction() *transaction.TransactionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		s.tx = s.db.txs.Begin()
		s.log.Debug("transaction started", zap.Int64("tx", s.tx.ID.ID()))
	}
	return s.tx
}

// InTransaction reports whether work is pending.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Commit commits the current transaction. Cursors that do not hold over
// commit are closed, and the catalog is checkpointed when configured.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.commit(ctx)
}

func (s *Session) commit(ctx context.Context) error {
	s.mu.Lock()
	tx := s.tx
	s.tx = nil
	open := s.openCursors()
	s.mu.Unlock()

	if tx != nil {
		tx.Commit()
		s.db.locks.ReleaseAll(tx)
		s.db.txs.Remove(tx.ID)
		s.db.stats.Commits.Add(1)
		s.log.Debug("transaction committed", zap.Int64("tx", tx.ID.ID()))
	}

	var err error
	for _, c := range open {
		err = multierr.Append(err, c.OnCommit())
	}
	if tx != nil {
		err = multierr.Append(err, s.db.Checkpoint(ctx))
	}
	return err
}

// Rollback undoes the current transaction, catalog changes and dependency
// bookkeeping included, and closes every open cursor.
func (s *Session) Rollback() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.rollback()
}

func (s *Session) rollback() error {
	s.mu.Lock()
	tx := s.tx
	s.tx = nil
	open := s.openCursors()
	s.mu.Unlock()

	var err error
	for _, c := range open {
		err = multierr.Append(err, c.OnRollback())
	}
	if tx != nil {
		err = multierr.Append(err, tx.Rollback())
		s.db.locks.ReleaseAll(tx)
		s.db.txs.Remove(tx.ID)
		s.db.stats.Rollbacks.Add(1)
		logging.WithTx(tx.ID.ID()).Warn("transaction rolled back", zap.Int64("session", s.id))
	}
	return err
}

// SetSavepoint marks the current point of the transaction. Reusing a name
// moves the savepoint.
func (s *Session) SetSavepoint(name string) error {
	if err := s.checkSavepoint(); err != nil {
		return err
	}
	s.Transaction().SetSavepoint(name)
	return nil
}

// RollbackToSavepoint undoes everything done after the savepoint. Open
// cursors stay open.
func (s *Session) RollbackToSavepoint(name string) error {
	if err := s.checkSavepoint(); err != nil {
		return err
	}
	if err := s.Transaction().RollbackToSavepoint(name); err != nil {
		return dberr.Newf(dberr.CategoryNotFound, dberr.CodeNoSavepoint,
			"SAVEPOINT, %s does not exist or is not active in the current transaction.", name).WithCause(err)
	}
	s.log.Info("rolled back to savepoint", zap.String("savepoint", name))
	return nil
}

// ReleaseSavepoint forgets a savepoint.
func (s *Session) ReleaseSavepoint(name string) error {
	if err := s.checkSavepoint(); err != nil {
		return err
	}
	if err := s.Transaction().ReleaseSavepoint(name); err != nil {
		return dberr.Newf(dberr.CategoryNotFound, dberr.CodeNoSavepoint,
			"SAVEPOINT, %s does not exist or is not active in the current transaction.", name).WithCause(err)
	}
	return nil
}

func (s *Session) checkSavepoint() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.AutoCommit() {
		return dberr.New(dberr.CategoryState, dberr.CodeSavepointAuto, "Cannot issue savepoint when autoCommit is on.")
	}
	return nil
}

// statement runs fn in the current transaction with autocommit applied.
func (s *Session) statement(ctx context.Context, fn func(tx *transaction.TransactionContext) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx := s.Transaction()
	s.db.stats.Statements.Add(1)

	if err := fn(tx); err != nil {
		s.db.stats.Errors.Add(1)
		if s.AutoCommit() {
			return multierr.Append(err, s.rollback())
		}
		return err
	}
	if s.AutoCommit() {
		return s.commit(ctx)
	}
	return nil
}

// DDL runs one schema change. Warnings about side effects are in the
// result.
func (s *Session) DDL(ctx context.Context, fn func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error)) (*planner.DDLResult, error) {
	var res *planner.DDLResult
	err := s.statement(ctx, func(tx *transaction.TransactionContext) error {
		var err error
		res, err = fn(s.db.planner, tx)
		return err
	})
	if err != nil && res == nil {
		return nil, err
	}
	if res != nil && len(res.Warnings) > 0 {
		s.log.Info("ddl warnings", zap.Int("count", len(res.Warnings)), zap.String("message", res.Message))
	}
	return res, err
}

// CreateTable creates a table.
func (s *Session) CreateTable(ctx context.Context, req planner.CreateTableRequest) (*planner.DDLResult, error) {
	return s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.CreateTable(ctx, tx, req)
	})
}

// DropTable drops a table.
func (s *Session) DropTable(ctx context.Context, schema, name string, mode planner.DropMode) (*planner.DDLResult, error) {
	return s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.DropTable(ctx, tx, schema, name, mode)
	})
}

// AddColumn adds a column to a table.
func (s *Session) AddColumn(ctx context.Context, schema, table string, def planner.ColumnDef) (*planner.DDLResult, error) {
	return s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.AddColumn(ctx, tx, schema, table, def)
	})
}

// DropColumn drops a column.
func (s *Session) DropColumn(ctx context.Context, schema, table, column string, mode planner.DropMode) (*planner.DDLResult, error) {
	return s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.DropColumn(ctx, tx, schema, table, column, mode)
	})
}

// CreateView creates a view.
func (s *Session) CreateView(ctx context.Context, def planner.ViewDef) (*planner.DDLResult, error) {
	return s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.CreateView(ctx, tx, def)
	})
}

// CreateTrigger creates a trigger.
func (s *Session) CreateTrigger(ctx context.Context, def planner.TriggerDef) (*planner.DDLResult, error) {
	return s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.CreateTrigger(ctx, tx, def)
	})
}

// AddConstraint adds a constraint to a table.
func (s *Session) AddConstraint(ctx context.Context, schema, table string, def planner.ConstraintDef) (*planner.DDLResult, error) {
	return s.DDL(ctx, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.AddConstraint(ctx, tx, schema, table, def)
	})
}

// Insert inserts rows and returns how many were inserted.
func (s *Session) Insert(ctx context.Context, schema, table string, columns []string, rows [][]any) (int, error) {
	var n int
	err := s.statement(ctx, func(tx *transaction.TransactionContext) error {
		var err error
		n, err = s.db.exec.Insert(ctx, tx, schema, table, columns, rows)
		return err
	})
	return n, err
}

// Update applies assignments to the rows matching where, or to every row
// when where is empty.
func (s *Session) Update(ctx context.Context, schema, table string, set map[string]string, where string) (int, error) {
	assignments, err := parseAssignments(set)
	if err != nil {
		return 0, err
	}
	cond, err := parseWhere(where)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.statement(ctx, func(tx *transaction.TransactionContext) error {
		var err error
		n, err = s.db.exec.Update(ctx, tx, schema, table, assignments, cond)
		return err
	})
	return n, err
}

// Delete deletes the rows matching where, or every row when where is empty.
func (s *Session) Delete(ctx context.Context, schema, table, where string) (int, error) {
	cond, err := parseWhere(where)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.statement(ctx, func(tx *transaction.TransactionContext) error {
		var err error
		n, err = s.db.exec.Delete(ctx, tx, schema, table, cond)
		return err
	})
	return n, err
}

func parseWhere(where string) (*binder.Expression, error) {
	if where == "" {
		return nil, nil
	}
	return binder.Parse(where)
}

func parseAssignments(set map[string]string) ([]dml.Assignment, error) {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]dml.Assignment, 0, len(set))
	for _, name := range names {
		expr, err := binder.Parse(set[name])
		if err != nil {
			return nil, err
		}
		out = append(out, dml.Assignment{Column: name, Value: expr})
	}
	return out, nil
}

// CursorOptions returns options with the configured default holdability.
func (s *Session) CursorOptions(scroll cursor.ScrollType, concurrency cursor.Concurrency) cursor.Options {
	hold := cursor.CloseAtCommit
	if s.db.cfg.HoldCursors() {
		hold = cursor.HoldOverCommit
	}
	return cursor.Options{Scroll: scroll, Concurrency: concurrency, Holdability: hold}
}

// OpenCursor compiles q through the statement cache and opens a cursor on
// it. Tables read by the query are share-locked in the current transaction.
// The granted options and any downgrade warnings are on the cursor.
func (s *Session) OpenCursor(ctx context.Context, q scan.Query, opts cursor.Options) (*cursor.Cursor, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	act, err := s.db.stmts.Activate(q, opts.Scroll)
	if err != nil {
		s.db.stats.Errors.Add(1)
		return nil, err
	}
	if act.Recompiled {
		s.log.Debug("statement recompiled for cursor", zap.String("statement", act.Plan.Text))
	}

	tx := s.Transaction()
	for _, id := range act.Plan.Tables {
		if err := s.db.locks.Lock(ctx, tx, id, lock.SharedLock); err != nil {
			act.Release()
			s.db.stats.Errors.Add(1)
			return nil, err
		}
	}

	if s.db.recorder != nil {
		s.db.recorder.Begin(act.Plan.Text)
		act.Plan.Describe(s.db.recorder)
	}

	s.mu.Lock()
	s.cursorSeq++
	name := fmt.Sprintf("SQL_CUR%d_%d", s.id, s.cursorSeq)
	s.mu.Unlock()

	writer := cursor.TxWriter{Exec: s.db.exec, Tx: s.Transaction}
	c, err := cursor.Open(name, act.Plan, opts, true, writer)
	if err != nil {
		act.Release()
		s.db.stats.Errors.Add(1)
		return nil, err
	}
	s.db.stats.Statements.Add(1)

	s.mu.Lock()
	s.cursors[c] = act.Plan
	s.mu.Unlock()
	c.AfterClose(func() { s.cursorClosed(c, act) })
	return c, nil
}

// Query reads every row of q through a read-only forward-only cursor.
func (s *Session) Query(ctx context.Context, q scan.Query) (QueryResult, error) {
	c, err := s.OpenCursor(ctx, q, cursor.Options{})
	if err != nil {
		return QueryResult{}, err
	}
	res, err := NewResultFormatter().FormatCursor(c)
	return res, multierr.Append(err, c.Close())
}

func (s *Session) cursorClosed(c *cursor.Cursor, act *stmtcache.Activation) {
	act.Release()

	s.mu.Lock()
	delete(s.cursors, c)
	commitNow := s.autocommit && !s.closed && len(s.cursors) == 0 && s.tx != nil
	s.mu.Unlock()

	if commitNow {
		if err := s.commit(context.Background()); err != nil {
			s.log.Warn("autocommit after cursor close failed", zap.Error(err))
		}
	}
}

// OpenCursors returns the number of open cursors.
func (s *Session) OpenCursors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cursors)
}

func (s *Session) openCursors() []*cursor.Cursor {
	out := make([]*cursor.Cursor, 0, len(s.cursors))
	for c := range s.cursors {
		out = append(out, c)
	}
	return out
}

// invalidateCursors marks cursors whose relations no longer exist.
func (s *Session) invalidateCursors(cat *catalog.Catalog, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, plan := range s.cursors {
		gone := !cat.Exists(plan.Relation) || slices.ContainsFunc(plan.Tables, func(id primitives.ObjectID) bool {
			return !cat.Exists(depend.Ref{Kind: depend.KindTable, ID: id})
		})
		if gone {
			c.Invalidate(reason)
		}
	}
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dberr.New(dberr.CategoryState, dberr.CodeNoConnection, "No current connection.")
	}
	return nil
}

// Close rolls back pending work, closes every cursor and detaches the
// session from the database.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.rollback()
	s.db.forgetSession(s.id)
	return err
}
