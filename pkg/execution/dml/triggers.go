package dml

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/logging"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// compiledTrigger is a trigger action bound to the column ordinals of the
// generations it was compiled against.
type compiledTrigger struct {
	trigger    *catalog.Trigger
	subjectGen primitives.Generation
	target     *catalog.Table
	// slots holds, for an INSERT action, the target column each value
	// binds to.
	slots []*catalog.Column
}

func (ct *compiledTrigger) current(cat *catalog.Catalog) bool {
	trg, ok := cat.TriggerByID(ct.trigger.ID)
	if !ok || trg != ct.trigger {
		return false
	}
	subject, ok := cat.TableByID(trg.TableID)
	if !ok || subject.Generation != ct.subjectGen {
		return false
	}
	target, ok := cat.TableByID(trg.Action.TargetID)
	return ok && target == ct.target && cat.IsValid(trg.Ref())
}

// compiledFor returns the compiled action of a trigger, recompiling it when
// the trigger was invalidated or a table it binds to changed.
func (e *Executor) compiledFor(trg *catalog.Trigger) (*compiledTrigger, error) {
	e.mu.Lock()
	ct, ok := e.compiled[trg.ID]
	e.mu.Unlock()
	if ok && ct.current(e.cat) {
		return ct, nil
	}

	ct, err := compileTrigger(e.cat, trg)
	if err != nil {
		return nil, err
	}
	e.cat.Graph().MarkValid(trg.Ref())

	e.mu.Lock()
	e.compiled[trg.ID] = ct
	e.recompiles++
	e.mu.Unlock()
	logging.WithComponent("dml").Debug("trigger compiled",
		zap.String("trigger", trg.QualifiedName()),
		zap.Uint64("subject_generation", uint64(ct.subjectGen)))
	return ct, nil
}

// ValidateTrigger reports whether a trigger's action binds against the
// current catalog.
func ValidateTrigger(cat *catalog.Catalog, trg *catalog.Trigger) error {
	_, err := compileTrigger(cat, trg)
	return err
}

// compileTrigger binds a trigger's action to the current catalog. NEW and
// OLD references must name columns of the subject table, the target must
// exist, and INSERT values must line up with target columns.
func compileTrigger(cat *catalog.Catalog, trg *catalog.Trigger) (*compiledTrigger, error) {
	subject, ok := cat.TableByID(trg.TableID)
	if !ok {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound,
			"table of trigger '%s' does not exist", trg.QualifiedName())
	}
	target, ok := cat.TableByID(trg.Action.TargetID)
	if !ok {
		return nil, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound,
			"target table of trigger '%s' does not exist", trg.QualifiedName())
	}

	for _, ex := range trg.Action.Expressions() {
		for _, ref := range ex.References() {
			switch ref.Qualifier {
			case binder.QualifierNew, binder.QualifierOld:
				if err := checkTransition(trg, ref.Qualifier); err != nil {
					return nil, err
				}
				if _, err := catalog.ResolveColumn(subject, ref.Name); err != nil {
					return nil, err
				}
			default:
				if _, err := catalog.ResolveColumn(target, ref.Name); err != nil {
					return nil, err
				}
			}
		}
	}

	ct := &compiledTrigger{trigger: trg, subjectGen: subject.Generation, target: target}
	if trg.Action.Kind != catalog.ActionInsert {
		return ct, nil
	}

	if len(trg.Action.Columns) == 0 {
		if len(trg.Action.Values) != len(target.Columns) {
			return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeColumnCountMismatch,
				"trigger '%s' inserts %d values into '%s', which has %d columns",
				trg.QualifiedName(), len(trg.Action.Values), target.QualifiedName(), len(target.Columns))
		}
		ct.slots = slices.Clone(target.Columns)
		return ct, nil
	}
	if len(trg.Action.Columns) != len(trg.Action.Values) {
		return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeColumnCountMismatch,
			"trigger '%s' names %d columns but supplies %d values",
			trg.QualifiedName(), len(trg.Action.Columns), len(trg.Action.Values))
	}
	for _, name := range trg.Action.Columns {
		col, err := catalog.ResolveColumn(target, name)
		if err != nil {
			return nil, err
		}
		ct.slots = append(ct.slots, col)
	}
	return ct, nil
}

func checkTransition(trg *catalog.Trigger, qualifier string) error {
	allowed := (qualifier == binder.QualifierNew && trg.Event != catalog.TriggerDelete) ||
		(qualifier == binder.QualifierOld && trg.Event != catalog.TriggerInsert)
	if allowed {
		return nil
	}
	return dberr.Newf(dberr.CategorySystem, dberr.CodeTransitionRow,
		"%s row is not available in a %s trigger", qualifier, trg.Event)
}

// fire runs the AFTER ROW triggers of tbl for one affected row.
func (e *Executor) fire(ctx context.Context, tx *transaction.TransactionContext, tbl *catalog.Table, event catalog.TriggerEvent, old, row []types.Field, changed []primitives.ObjectID, depth int) error {
	for _, trg := range e.cat.TriggersOn(tbl.ID) {
		if trg.Event != event {
			continue
		}
		if event == catalog.TriggerUpdate && len(trg.UpdateOf) > 0 &&
			!slices.ContainsFunc(trg.UpdateOf, func(id primitives.ObjectID) bool { return slices.Contains(changed, id) }) {
			continue
		}
		if depth+1 > e.maxDepth {
			return dberr.Newf(dberr.CategorySystem, dberr.CodeTriggerRecursion,
				"Maximum depth of nested triggers was exceeded (%d) firing '%s'.", e.maxDepth, trg.QualifiedName())
		}

		ct, err := e.compiledFor(trg)
		if err != nil {
			return err
		}
		env := binder.Env{New: RowValues(tbl, row), Old: RowValues(tbl, old)}
		if err := e.runAction(ctx, tx, ct, env, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runAction(ctx context.Context, tx *transaction.TransactionContext, ct *compiledTrigger, env binder.Env, depth int) error {
	action := ct.trigger.Action
	switch action.Kind {
	case catalog.ActionInsert:
		values := make(map[primitives.ObjectID]types.Field, len(ct.slots))
		for i, col := range ct.slots {
			v, err := action.Values[i].Eval(env)
			if err != nil {
				return dberr.Wrap(err, dberr.CodeInternal, "FireTrigger", "dml")
			}
			f, err := coerce(ct.target, col, v)
			if err != nil {
				return err
			}
			values[col.ID] = f
		}
		_, err := e.insertRow(ctx, tx, ct.target.ID, values, depth)
		return err

	default:
		h, err := e.store.Heap(ct.target.ID)
		if err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "FireTrigger", "dml")
		}
		for _, r := range h.Scan() {
			if action.Where != nil {
				env.Columns = RowValues(ct.target, r.Fields)
				t, err := action.Where.Test(env)
				if err != nil {
					return dberr.Wrap(err, dberr.CodeInternal, "FireTrigger", "dml")
				}
				if t != binder.True {
					continue
				}
			}
			if err := e.deleteIfPresent(ctx, tx, ct.target.ID, r.ID, depth); err != nil {
				return err
			}
		}
		return nil
	}
}
