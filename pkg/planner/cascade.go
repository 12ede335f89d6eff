package planner

import (
	"slices"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/lock"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/primitives"
)

// dropDependents removes deps in the order given, which for a closure is
// leaves first.
func (d *ddl) dropDependents(deps []depend.Ref) error {
	for _, dep := range deps {
		if err := d.dropDependent(dep); err != nil {
			return err
		}
	}
	return nil
}

// dropDependent removes one dependent reached by a cascade, together with
// its graph edges, and records the side-effect warning.
func (d *ddl) dropDependent(ref depend.Ref) error {
	cat := d.p.cat
	if !cat.Exists(ref) {
		return nil
	}

	switch ref.Kind {
	case depend.KindView:
		v, _ := cat.ViewByID(ref.ID)
		d.invalidateStatements(ref, depend.ReasonDropped)
		if err := cat.RemoveView(d.tx, ref.ID); err != nil {
			return err
		}
		d.warn(dberr.WarnViewDropped, v.QualifiedName(), "",
			"The view %s has been dropped.", v.QualifiedName())
		d.event(v.Source.ID, catalog.ChangeDropView, v.QualifiedName())

	case depend.KindConstraint:
		con, _ := cat.ConstraintByID(ref.ID)
		if err := d.lock(con.TableID, lock.ExclusiveLock); err != nil {
			return err
		}
		if err := cat.RemoveConstraint(d.tx, ref.ID); err != nil {
			return err
		}
		if con.Type.NeedsIndex() {
			if err := d.releaseIndex(con); err != nil {
				return err
			}
		}
		d.warn(dberr.WarnConstraintDropped, con.QualifiedName(), d.tableName(con.TableID),
			"The constraint %s on table %s has been dropped.", con.QualifiedName(), d.tableName(con.TableID))
		d.event(con.TableID, catalog.ChangeDropConstraint, con.Name)

	case depend.KindTrigger:
		trg, _ := cat.TriggerByID(ref.ID)
		if err := cat.RemoveTrigger(d.tx, ref.ID); err != nil {
			return err
		}
		d.warn(dberr.WarnTriggerDropped, trg.QualifiedName(), d.tableName(trg.TableID),
			"The trigger %s on table %s has been dropped.", trg.QualifiedName(), d.tableName(trg.TableID))
		d.event(trg.TableID, catalog.ChangeDropTrigger, trg.Name)

	default:
		return dberr.Newf(dberr.CategorySystem, dberr.CodeInternal, "cannot cascade to %s", ref)
	}

	g := cat.Graph()
	g.RemoveDependent(d.tx, ref)
	g.RemoveProvider(d.tx, ref)
	d.res.Dropped = append(d.res.Dropped, ref)
	return nil
}

func (d *ddl) tableName(id primitives.ObjectID) string {
	if t, ok := d.p.cat.TableByID(id); ok {
		return t.QualifiedName()
	}
	return id.Short()
}

// attachIndex gives a UNIQUE, PRIMARY KEY or FOREIGN KEY constraint its
// backing index before the constraint is published. An existing backing
// index over the same columns is shared when it is at least as strict as
// the constraint needs. It reports whether a new index must be built.
func (d *ddl) attachIndex(con *catalog.Constraint) (*catalog.Index, bool) {
	unique := con.Type != catalog.ForeignKeyConstraint
	for _, ix := range d.p.cat.IndexesOn(con.TableID) {
		if !ix.IsBacking() || !slices.Equal(ix.Columns, con.Columns) {
			continue
		}
		if unique && !ix.Unique {
			continue
		}
		con.IndexID = ix.ID
		return ix, false
	}

	id := primitives.NewObjectID()
	con.IndexID = id
	return &catalog.Index{
		ID:      id,
		Schema:  con.Schema,
		Name:    systemName(id),
		TableID: con.TableID,
		Columns: slices.Clone(con.Columns),
		Unique:  unique,
		Owners:  []primitives.ObjectID{con.ID},
	}, true
}

// publishIndex stores the index chosen by attachIndex once the owning
// constraint is in the catalog, loading existing rows into a new one.
func (d *ddl) publishIndex(tbl *catalog.Table, con *catalog.Constraint, ix *catalog.Index, fresh bool) error {
	if !fresh {
		_, err := d.p.cat.MutateIndex(d.tx, ix.ID, func(next *catalog.Index) error {
			next.Owners = append(next.Owners, con.ID)
			return nil
		})
		return err
	}
	if err := d.p.cat.AddIndex(d.tx, ix); err != nil {
		return err
	}
	d.p.store.CreateIndex(d.tx, ix.ID, ix.Unique)
	return d.p.exec.PopulateIndex(d.tx, tbl, ix)
}

// releaseIndex detaches a dropped constraint from its backing index. The
// index goes away with its last owner. A unique index left serving only
// foreign keys is rebuilt as non-unique.
func (d *ddl) releaseIndex(con *catalog.Constraint) error {
	cat := d.p.cat
	ix, ok := cat.IndexByID(con.IndexID)
	if !ok {
		return nil
	}
	owners := slices.DeleteFunc(slices.Clone(ix.Owners), func(id primitives.ObjectID) bool { return id == con.ID })
	if len(owners) == 0 {
		return d.removeIndex(ix)
	}

	unique := false
	for _, id := range owners {
		if o, ok := cat.ConstraintByID(id); ok && o.Type != catalog.ForeignKeyConstraint {
			unique = true
		}
	}
	next, err := cat.MutateIndex(d.tx, ix.ID, func(next *catalog.Index) error {
		next.Owners = owners
		next.Unique = ix.Unique && unique
		return nil
	})
	if err != nil {
		return err
	}
	if next.Unique == ix.Unique {
		return nil
	}
	tbl, err := d.current(ix.TableID)
	if err != nil {
		return err
	}
	d.p.store.CreateIndex(d.tx, ix.ID, false)
	return d.p.exec.PopulateIndex(d.tx, tbl, next)
}

func (d *ddl) removeIndex(ix *catalog.Index) error {
	if err := d.p.cat.RemoveIndex(d.tx, ix.ID); err != nil {
		return err
	}
	d.p.store.DropIndex(d.tx, ix.ID)
	g := d.p.cat.Graph()
	g.RemoveDependent(d.tx, ix.Ref())
	g.RemoveProvider(d.tx, ix.Ref())
	d.event(ix.TableID, catalog.ChangeDropIndex, ix.Name)
	return nil
}
