package database

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/checkpoint"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/config"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/logging"
	"dictengine/pkg/planner"
	"dictengine/pkg/primitives"
	"dictengine/pkg/statistics"
	"dictengine/pkg/stmtcache"
	"dictengine/pkg/storage"
)

// Database owns the catalog, dependency graph and storage of one database
// together with everything that operates on them. Sessions share it.
type Database struct {
	cfg  *config.Config
	name string

	graph    *depend.Graph
	cat      *catalog.Catalog
	store    *storage.Store
	locks    *lock.LockManager
	txs      *transaction.TransactionRegistry
	exec     *dml.Executor
	planner  *planner.Planner
	stmts    *stmtcache.Cache
	recorder *statistics.Recorder
	ckpt     *checkpoint.Writer

	mu          sync.Mutex
	sessions    map[int64]*Session
	nextSession int64
	closed      bool

	stats *DatabaseStats
	log   *zap.Logger
}

// DatabaseStats counts session activity.
type DatabaseStats struct {
	Statements atomic.Int64
	Commits    atomic.Int64
	Rollbacks  atomic.Int64
	Errors     atomic.Int64
}

// DatabaseInfo is a point-in-time description of a database.
type DatabaseInfo struct {
	Name             string
	Tables           []string
	Views            []string
	Generation       primitives.Generation
	DependencyEdges  int
	Sessions         int
	OpenTransactions int
	Statements       int64
	Commits          int64
	Rollbacks        int64
	Errors           int64
	Cache            stmtcache.Stats
}

// Open creates the per-database context described by cfg. A nil cfg uses
// config.Default.
func Open(cfg *config.Config) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInvalidRequest, "Open", "database")
	}

	graph := depend.NewGraph()
	store := storage.NewStore()
	cat := catalog.New(graph, store)
	locks := lock.NewLockManager(cfg.Database.LockTimeout)
	exec := dml.NewExecutor(cat, store, locks, cfg.Database.MaxTriggerDepth)

	db := &Database{
		cfg:      cfg,
		name:     cfg.Database.Name,
		graph:    graph,
		cat:      cat,
		store:    store,
		locks:    locks,
		txs:      transaction.NewTransactionRegistry(),
		exec:     exec,
		planner:  planner.NewPlanner(cat, store, exec, locks),
		sessions: make(map[int64]*Session),
		stats:    &DatabaseStats{},
		log:      logging.WithComponent("database").With(zap.String("database", cfg.Database.Name)),
	}

	var sink statistics.Sink = statistics.Discard{}
	if cfg.Statistics.Enabled {
		db.recorder = statistics.NewRecorder()
		sink = db.recorder
	}
	db.stmts = stmtcache.New(cat, store, sink, cfg.Cursor.StatementCacheSize)

	if cfg.Checkpoint.Path != "" {
		w, err := checkpoint.Open(cfg.Checkpoint.Path)
		if err != nil {
			return nil, err
		}
		db.ckpt = w
	}

	cat.Subscribe(db.onCatalogChange)
	db.log.Info("database opened",
		zap.Bool("statistics", cfg.Statistics.Enabled),
		zap.String("checkpoint", cfg.Checkpoint.Path))
	return db, nil
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// Catalog returns the schema catalog.
func (db *Database) Catalog() *catalog.Catalog { return db.cat }

// Graph returns the dependency graph.
func (db *Database) Graph() *depend.Graph { return db.graph }

// Store returns the row storage.
func (db *Database) Store() *storage.Store { return db.store }

// Statements returns the compiled statement cache.
func (db *Database) Statements() *stmtcache.Cache { return db.stmts }

// Statistics returns the runtime statistics of the latest cursor execution.
// It is nil when statistics capture is disabled.
func (db *Database) Statistics() *statistics.RuntimeStatistics {
	if db.recorder == nil {
		return nil
	}
	return db.recorder.Statistics()
}

// NewSession opens a session in autocommit mode.
func (db *Database) NewSession() (*Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, dberr.New(dberr.CategoryState, dberr.CodeInvalidRequest, "Database is closed.")
	}
	db.nextSession++
	s := newSession(db, db.nextSession)
	db.sessions[s.id] = s
	return s, nil
}

func (db *Database) forgetSession(id int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.sessions, id)
}

func (db *Database) activeSessions() []*Session {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*Session, 0, len(db.sessions))
	for _, s := range db.sessions {
		out = append(out, s)
	}
	return out
}

// onCatalogChange invalidates open cursors reading a relation that was
// dropped.
func (db *Database) onCatalogChange(ev catalog.ChangeEvent) {
	if ev.Kind != catalog.ChangeDropTable && ev.Kind != catalog.ChangeDropView {
		return
	}
	for _, s := range db.activeSessions() {
		s.invalidateCursors(db.cat, "DROP of "+ev.Object)
	}
}

// Checkpoint writes the catalog to the checkpoint file. It does nothing
// when checkpointing is disabled.
func (db *Database) Checkpoint(ctx context.Context) error {
	if db.ckpt == nil {
		return nil
	}
	return db.ckpt.Write(ctx, db.cat)
}

// Info describes the database.
func (db *Database) Info() DatabaseInfo {
	info := DatabaseInfo{
		Name:            db.name,
		Generation:      db.cat.Generation(),
		DependencyEdges: db.graph.EdgeCount(),
		Statements:      db.stats.Statements.Load(),
		Commits:         db.stats.Commits.Load(),
		Rollbacks:       db.stats.Rollbacks.Load(),
		Errors:          db.stats.Errors.Load(),
		Cache:           db.stmts.Stats(),
	}
	for _, t := range db.cat.Tables() {
		info.Tables = append(info.Tables, t.QualifiedName())
	}
	for _, v := range db.cat.Views() {
		info.Views = append(info.Views, v.QualifiedName())
	}
	slices.Sort(info.Tables)
	slices.Sort(info.Views)

	db.mu.Lock()
	info.Sessions = len(db.sessions)
	db.mu.Unlock()
	info.OpenTransactions = len(db.txs.Active())
	return info
}

// Close rolls back and closes every session, writes a final checkpoint and
// releases the checkpoint file.
func (db *Database) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	var err error
	for _, s := range db.activeSessions() {
		err = multierr.Append(err, s.Close())
	}
	if db.ckpt != nil {
		err = multierr.Append(err, db.ckpt.Write(context.Background(), db.cat))
		err = multierr.Append(err, db.ckpt.Close())
	}
	db.stmts.Clear()

	if err != nil {
		db.log.Warn("database closed with errors", zap.Error(err))
	} else {
		db.log.Info("database closed")
	}
	return err
}
