package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/logging"
	"dictengine/pkg/primitives"
	"dictengine/pkg/storage"
)

// DDLResult is the outcome of a successful DDL operation.
type DDLResult struct {
	Message string
	// Warnings lists side effects, e.g. a view dropped by a cascade.
	Warnings []dberr.Warning
	// Dropped lists every object removed as a consequence of the operation.
	Dropped []depend.Ref
	// Invalidated lists dependents marked for recompilation.
	Invalidated []depend.Ref
	// Generation is the catalog generation after the change.
	Generation primitives.Generation
}

func (r *DDLResult) String() string {
	return fmt.Sprintf("DDL Result - %s (%d warning(s))", r.Message, len(r.Warnings))
}

// Planner applies DDL to one database.
type Planner struct {
	cat   *catalog.Catalog
	store *storage.Store
	exec  *dml.Executor
	locks *lock.LockManager
}

// NewPlanner wires a planner to its collaborators. locks may be nil in
// single-session use.
func NewPlanner(cat *catalog.Catalog, store *storage.Store, exec *dml.Executor, locks *lock.LockManager) *Planner {
	return &Planner{cat: cat, store: store, exec: exec, locks: locks}
}

// ddl is the state of one running operation.
type ddl struct {
	ctx    context.Context
	p      *Planner
	tx     *transaction.TransactionContext
	res    *DDLResult
	events []catalog.ChangeEvent
}

// run executes fn as one nested undo step. Events are emitted only when fn
// succeeds.
func (p *Planner) run(ctx context.Context, tx *transaction.TransactionContext, op string, fn func(d *ddl) error) (*DDLResult, error) {
	d := &ddl{ctx: ctx, p: p, tx: tx, res: &DDLResult{Message: op}}
	log := logging.WithTx(tx.ID.ID()).With(zap.String("op", op))

	m := tx.BeginNestedUndo()
	if err := fn(d); err != nil {
		err = dberr.Wrap(err, dberr.CodeInternal, op, "planner")
		if rerr := tx.RollbackTo(m); rerr != nil {
			log.Error("ddl rollback failed", zap.Error(rerr))
			return nil, multierr.Append(err, rerr)
		}
		log.Warn("ddl rolled back", zap.Error(err))
		return nil, err
	}
	tx.CommitStep(m)

	d.res.Generation = p.cat.Generation()
	for _, ev := range d.events {
		ev.Generation = d.res.Generation
		p.cat.Emit(ev)
	}
	log.Info("ddl complete",
		zap.Int("warnings", len(d.res.Warnings)),
		zap.Int("dropped", len(d.res.Dropped)),
		zap.Int("invalidated", len(d.res.Invalidated)))
	return d.res, nil
}

func (d *ddl) lock(id primitives.ObjectID, mode lock.LockType) error {
	if d.p.locks == nil {
		return nil
	}
	return d.p.locks.Lock(d.ctx, d.tx, id, mode)
}

// alterTable resolves a table and takes the exclusive lock structural
// changes require. It re-reads the table after locking so the caller sees
// the latest version.
func (d *ddl) alterTable(schema, name string) (*catalog.Table, error) {
	tbl, err := d.p.cat.LookupTable(schema, name)
	if err != nil {
		return nil, err
	}
	if err := d.lock(tbl.ID, lock.ExclusiveLock); err != nil {
		return nil, err
	}
	return d.current(tbl.ID)
}

func (d *ddl) current(id primitives.ObjectID) (*catalog.Table, error) {
	tbl, ok := d.p.cat.TableByID(id)
	if !ok {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound, "table %s does not exist", id.Short())
	}
	return tbl, nil
}

func (d *ddl) event(tableID primitives.ObjectID, kind catalog.ChangeKind, object string) {
	d.events = append(d.events, catalog.ChangeEvent{TableID: tableID, Kind: kind, Object: object})
}

func (d *ddl) warn(kind dberr.WarningKind, object, table, format string, args ...any) {
	d.res.Warnings = append(d.res.Warnings, dberr.Warning{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Object:  object,
		Table:   table,
	})
}

func (d *ddl) addEdge(dep, prov depend.Ref, usage depend.Usage) {
	d.p.cat.Graph().AddEdge(d.tx, dep, prov, usage)
}

func isStatement(dep depend.Ref, _ depend.Usage) bool { return dep.Kind == depend.KindStatement }

func isView(dep depend.Ref, _ depend.Usage) bool { return dep.Kind == depend.KindView }

func notStatement(dep depend.Ref, _ depend.Usage) bool { return dep.Kind != depend.KindStatement }

func usesPosition(_ depend.Ref, usage depend.Usage) bool { return usage.Has(depend.UsePosition) }

func usesType(_ depend.Ref, usage depend.Usage) bool { return usage.Has(depend.UseType) }

// invalidateStatements marks the cached statements built on prov, directly
// or through views, for recompilation.
func (d *ddl) invalidateStatements(prov depend.Ref, reason depend.Reason) {
	g := d.p.cat.Graph()
	provs := append([]depend.Ref{prov}, g.Closure(isView, prov)...)
	for _, pr := range provs {
		d.res.Invalidated = append(d.res.Invalidated, g.Invalidate(d.tx, pr, depend.OneHop, reason, isStatement)...)
	}
}

// invalidate marks direct dependents of prov accepted by filter.
func (d *ddl) invalidate(prov depend.Ref, reason depend.Reason, filter depend.Filter) {
	g := d.p.cat.Graph()
	d.res.Invalidated = append(d.res.Invalidated, g.Invalidate(d.tx, prov, depend.OneHop, reason, filter)...)
}

// conflict builds the RESTRICT failure for an operation blocked by deps. The
// blocker named in the message is the direct dependent closest to target.
func (d *ddl) conflict(op, target string, deps []depend.Ref) error {
	blocker := deps[len(deps)-1]
	code := dberr.CodeProviderHasDependent
	if blocker.Kind == depend.KindView {
		code = dberr.CodeProviderHasView
	}
	names := make([]string, len(deps))
	for i, dep := range deps {
		names[i] = d.p.cat.NameOf(dep)
	}
	return dberr.Newf(dberr.CategoryDependencyConflict, code,
		"Operation '%s' cannot be performed on object '%s' because %s is dependent on that object.",
		op, target, d.p.cat.NameOf(blocker)).
		WithDetail("dependents: %s", strings.Join(names, ", ")).
		WithHint("use CASCADE to drop the dependents")
}

// systemName generates the name of an unnamed constraint or backing index.
func systemName(id primitives.ObjectID) string {
	return "SQL" + id.String()
}
