package planner

import (
	"context"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

func schemaOf(s string) string {
	if s == "" {
		return catalog.DefaultSchema
	}
	return catalog.NormalizeName(s)
}

// newColumn builds an unpublished column from its declaration.
func newColumn(def ColumnDef) (*catalog.Column, error) {
	name := catalog.NormalizeName(def.Name)
	if name == "" {
		return nil, dberr.New(dberr.CategorySystem, dberr.CodeInvalidRequest, "column name is empty")
	}
	dt := def.Type
	if err := dt.Validate(); err != nil {
		return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "column '%s': %v", name, err)
	}
	dt.Nullable = !def.NotNull
	col := &catalog.Column{ID: primitives.NewObjectID(), Name: name, Type: dt}

	if def.Identity != nil {
		if dt.Base != types.IntType && dt.Base != types.BigIntType {
			return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
				"identity column '%s' must be INTEGER or BIGINT", name)
		}
		col.Type.Nullable = false
		col.Identity = catalog.NewIdentity(def.Identity.Start, def.Identity.Increment)
		return col, nil
	}
	if def.Default != nil {
		v, err := types.Coerce(def.Default, dt)
		if err != nil {
			return nil, dberr.Newf(dberr.CategorySystem, dberr.CodeTypeMismatch,
				"invalid default for column '%s': %v", name, err)
		}
		col.Default = &catalog.Default{Value: v}
	}
	return col, nil
}

// CreateTable creates a table with its inline constraints.
func (p *Planner) CreateTable(ctx context.Context, tx *transaction.TransactionContext, req CreateTableRequest) (*DDLResult, error) {
	return p.run(ctx, tx, "CREATE TABLE", func(d *ddl) error {
		if len(req.Columns) == 0 {
			return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
				"table '%s' must have at least one column", req.Name)
		}
		tbl := &catalog.Table{
			ID:     primitives.NewObjectID(),
			Schema: schemaOf(req.Schema),
			Name:   catalog.NormalizeName(req.Name),
		}
		for _, def := range req.Columns {
			col, err := newColumn(def)
			if err != nil {
				return err
			}
			tbl.Columns = append(tbl.Columns, col)
		}
		if err := p.cat.AddTable(d.tx, tbl); err != nil {
			return err
		}
		if _, err := p.store.CreateHeap(d.tx, tbl.ID, len(tbl.Columns)); err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "CreateTable", "planner")
		}
		if err := d.lock(tbl.ID, lock.ExclusiveLock); err != nil {
			return err
		}
		for _, def := range req.Constraints {
			cur, err := d.current(tbl.ID)
			if err != nil {
				return err
			}
			if err := d.addConstraint(cur, def); err != nil {
				return err
			}
		}
		d.event(tbl.ID, catalog.ChangeCreateTable, tbl.Name)
		return nil
	})
}

// DropTable drops a table with its columns, constraints, indexes and own
// triggers. Objects of other tables that depend on it block RESTRICT and
// are dropped by CASCADE.
func (p *Planner) DropTable(ctx context.Context, tx *transaction.TransactionContext, schema, name string, mode DropMode) (*DDLResult, error) {
	return p.run(ctx, tx, "DROP TABLE", func(d *ddl) error {
		tbl, err := d.alterTable(schemaOf(schema), name)
		if err != nil {
			return err
		}
		g := p.cat.Graph()

		own := map[depend.Ref]bool{tbl.Ref(): true}
		roots := []depend.Ref{tbl.Ref()}
		for _, col := range tbl.Columns {
			own[col.Ref()] = true
			roots = append(roots, col.Ref())
		}
		constraints := p.cat.ConstraintsOn(tbl.ID)
		for _, con := range constraints {
			own[con.Ref()] = true
			roots = append(roots, con.Ref())
		}
		triggers := p.cat.TriggersOn(tbl.ID)
		for _, trg := range triggers {
			own[trg.Ref()] = true
			roots = append(roots, trg.Ref())
		}

		deps := g.WouldInvalidate(func(dep depend.Ref, u depend.Usage) bool {
			return notStatement(dep, u) && !own[dep]
		}, roots...)
		if len(deps) > 0 {
			if mode == Restrict {
				return d.conflict("DROP TABLE", tbl.QualifiedName(), deps)
			}
			if err := d.dropDependents(deps); err != nil {
				return err
			}
		}

		d.invalidateStatements(tbl.Ref(), depend.ReasonDropped)
		for _, trg := range triggers {
			if err := d.discard(trg.Ref()); err != nil {
				return err
			}
		}
		// Foreign keys go before the keys they may reference.
		for _, pass := range []bool{true, false} {
			for _, con := range constraints {
				if (con.Type == catalog.ForeignKeyConstraint) == pass {
					if err := d.discard(con.Ref()); err != nil {
						return err
					}
				}
			}
		}
		for _, ix := range p.cat.IndexesOn(tbl.ID) {
			if err := d.removeIndex(ix); err != nil {
				return err
			}
		}

		for _, col := range tbl.Columns {
			g.RemoveProvider(d.tx, col.Ref())
		}
		g.RemoveProvider(d.tx, tbl.Ref())
		g.RemoveDependent(d.tx, tbl.Ref())
		p.store.DropHeap(d.tx, tbl.ID)
		if err := p.cat.RemoveTable(d.tx, tbl.ID); err != nil {
			return err
		}
		d.res.Dropped = append(d.res.Dropped, tbl.Ref())
		d.event(tbl.ID, catalog.ChangeDropTable, tbl.Name)
		return nil
	})
}

// discard removes an object owned by a table being dropped. No warning is
// reported for it.
func (d *ddl) discard(ref depend.Ref) error {
	cat := d.p.cat
	switch ref.Kind {
	case depend.KindConstraint:
		con, ok := cat.ConstraintByID(ref.ID)
		if !ok {
			return nil
		}
		if err := cat.RemoveConstraint(d.tx, ref.ID); err != nil {
			return err
		}
		if con.Type.NeedsIndex() {
			if err := d.releaseIndex(con); err != nil {
				return err
			}
		}
	case depend.KindTrigger:
		if !cat.Exists(ref) {
			return nil
		}
		if err := cat.RemoveTrigger(d.tx, ref.ID); err != nil {
			return err
		}
	}
	g := cat.Graph()
	g.RemoveDependent(d.tx, ref)
	g.RemoveProvider(d.tx, ref)
	return nil
}
