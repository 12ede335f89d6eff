package planner

import (
	"context"
	"slices"
	"strings"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/concurrency/lock"
	"dictengine/pkg/concurrency/transaction"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/dml"
	"dictengine/pkg/primitives"
)

// qualify resolves a possibly schema-qualified name against a default
// schema.
func qualify(schema, name string) (string, string) {
	if strings.Contains(name, ".") {
		return catalog.SplitName(name)
	}
	return schema, catalog.NormalizeName(name)
}

// CreateIndex creates a user index and loads the existing rows into it.
func (p *Planner) CreateIndex(ctx context.Context, tx *transaction.TransactionContext, def IndexDef) (*DDLResult, error) {
	return p.run(ctx, tx, "CREATE INDEX", func(d *ddl) error {
		schema := schemaOf(def.Schema)
		tblSchema, tblName := qualify(schema, def.Table)
		tbl, err := d.alterTable(tblSchema, tblName)
		if err != nil {
			return err
		}
		cols, err := resolveColumns(tbl, def.Columns)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "index '%s' has no columns", def.Name)
		}
		ix := &catalog.Index{
			ID:      primitives.NewObjectID(),
			Schema:  schema,
			Name:    catalog.NormalizeName(def.Name),
			TableID: tbl.ID,
			Columns: columnIDs(cols),
			Unique:  def.Unique,
		}
		if err := p.cat.AddIndex(d.tx, ix); err != nil {
			return err
		}
		p.store.CreateIndex(d.tx, ix.ID, ix.Unique)
		if err := p.exec.PopulateIndex(d.tx, tbl, ix); err != nil {
			return err
		}
		d.event(tbl.ID, catalog.ChangeCreateIndex, ix.Name)
		return nil
	})
}

// DropIndex drops a user index. Constraint backing indexes go away only
// with their constraints.
func (p *Planner) DropIndex(ctx context.Context, tx *transaction.TransactionContext, schema, name string) (*DDLResult, error) {
	return p.run(ctx, tx, "DROP INDEX", func(d *ddl) error {
		ix, err := p.cat.LookupIndex(schemaOf(schema), name)
		if err != nil {
			return err
		}
		if ix.IsBacking() {
			return dberr.Newf(dberr.CategoryDependencyConflict, dberr.CodeBackingIndex,
				"Cannot drop index '%s' because it is used to enforce a constraint.", ix.QualifiedName())
		}
		if err := d.lock(ix.TableID, lock.ExclusiveLock); err != nil {
			return err
		}
		if err := d.removeIndex(ix); err != nil {
			return err
		}
		d.res.Dropped = append(d.res.Dropped, ix.Ref())
		return nil
	})
}

// relationColumns returns the column names a table or view exposes.
func (p *Planner) relationColumns(ref depend.Ref) ([]string, *catalog.Table) {
	if ref.Kind == depend.KindTable {
		t, ok := p.cat.TableByID(ref.ID)
		if !ok {
			return nil, nil
		}
		return t.ColumnNames(), t
	}
	v, ok := p.cat.ViewByID(ref.ID)
	if !ok {
		return nil, nil
	}
	return v.Columns, nil
}

// CreateView creates a single-source view. SELECT * is expanded to the
// source's current columns and recorded as a positional dependency.
func (p *Planner) CreateView(ctx context.Context, tx *transaction.TransactionContext, def ViewDef) (*DDLResult, error) {
	return p.run(ctx, tx, "CREATE VIEW", func(d *ddl) error {
		schema := schemaOf(def.Schema)
		srcSchema, srcName := qualify(schema, def.Source)
		src, err := p.cat.LookupRelation(srcSchema, srcName)
		if err != nil {
			return err
		}
		available, tbl := p.relationColumns(src)
		if tbl != nil {
			if err := d.lock(tbl.ID, lock.SharedLock); err != nil {
				return err
			}
		}

		usage := depend.UseName
		cols := make([]string, 0, len(def.Columns))
		for _, c := range def.Columns {
			cols = append(cols, catalog.NormalizeName(c))
		}
		if len(cols) == 0 {
			cols = slices.Clone(available)
			usage |= depend.UsePosition
		}
		used := slices.Clone(cols)

		var where *binder.Expression
		if def.Where != "" {
			if where, err = binder.Parse(def.Where); err != nil {
				return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "invalid view condition: %v", err)
			}
			for _, ref := range where.References() {
				if ref.Qualifier != "" {
					return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
						"view '%s' cannot reference %s", def.Name, ref)
				}
				used = append(used, ref.Name)
			}
		}
		for _, name := range used {
			if !slices.Contains(available, name) {
				return dberr.Newf(dberr.CategoryNotFound, dberr.CodeColumnNotFound,
					"Column '%s' is either not in any table in the FROM list or appears within a join specification.", name)
			}
		}

		v := &catalog.View{
			ID:      primitives.NewObjectID(),
			Schema:  schema,
			Name:    catalog.NormalizeName(def.Name),
			Source:  src,
			Columns: cols,
			Where:   where,
		}
		if err := p.cat.AddView(d.tx, v); err != nil {
			return err
		}
		d.addEdge(v.Ref(), src, usage)
		if tbl != nil {
			for _, name := range used {
				col, _ := tbl.Column(name)
				d.addEdge(v.Ref(), col.Ref(), depend.UseName|depend.UseType)
			}
		}
		d.event(src.ID, catalog.ChangeCreateView, v.Name)
		return nil
	})
}

// DropView drops a view. Views built on it block RESTRICT and are dropped
// by CASCADE.
func (p *Planner) DropView(ctx context.Context, tx *transaction.TransactionContext, schema, name string, mode DropMode) (*DDLResult, error) {
	return p.run(ctx, tx, "DROP VIEW", func(d *ddl) error {
		v, err := p.cat.LookupView(schemaOf(schema), name)
		if err != nil {
			return err
		}
		deps := p.cat.Graph().WouldInvalidate(notStatement, v.Ref())
		if len(deps) > 0 {
			if mode == Restrict {
				return d.conflict("DROP VIEW", v.QualifiedName(), deps)
			}
			if err := d.dropDependents(deps); err != nil {
				return err
			}
		}
		d.invalidateStatements(v.Ref(), depend.ReasonDropped)
		if err := p.cat.RemoveView(d.tx, v.ID); err != nil {
			return err
		}
		g := p.cat.Graph()
		g.RemoveDependent(d.tx, v.Ref())
		g.RemoveProvider(d.tx, v.Ref())
		d.res.Dropped = append(d.res.Dropped, v.Ref())
		d.event(v.Source.ID, catalog.ChangeDropView, v.Name)
		return nil
	})
}

// CreateTrigger creates an AFTER ... FOR EACH ROW trigger. Every column
// the action reads or writes becomes a provider of the trigger, not only
// the UPDATE OF list.
func (p *Planner) CreateTrigger(ctx context.Context, tx *transaction.TransactionContext, def TriggerDef) (*DDLResult, error) {
	return p.run(ctx, tx, "CREATE TRIGGER", func(d *ddl) error {
		schema := schemaOf(def.Schema)
		tblSchema, tblName := qualify(schema, def.Table)
		tbl, err := d.alterTable(tblSchema, tblName)
		if err != nil {
			return err
		}
		tgtSchema, tgtName := qualify(schema, def.Action.Target)
		target, err := p.cat.LookupTable(tgtSchema, tgtName)
		if err != nil {
			return err
		}

		trg := &catalog.Trigger{
			ID:      primitives.NewObjectID(),
			Schema:  schema,
			Name:    catalog.NormalizeName(def.Name),
			TableID: tbl.ID,
			Event:   def.Event,
			Action: catalog.TriggerAction{
				Kind:     def.Action.Kind,
				TargetID: target.ID,
			},
		}
		if len(def.UpdateOf) > 0 {
			if def.Event != catalog.TriggerUpdate {
				return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest,
					"trigger '%s': a column list is only allowed for UPDATE triggers", trg.Name)
			}
			cols, err := resolveColumns(tbl, def.UpdateOf)
			if err != nil {
				return err
			}
			trg.UpdateOf = columnIDs(cols)
		}
		for _, c := range def.Action.Columns {
			trg.Action.Columns = append(trg.Action.Columns, catalog.NormalizeName(c))
		}
		for _, text := range def.Action.Values {
			ex, err := binder.Parse(text)
			if err != nil {
				return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "trigger '%s': %v", trg.Name, err)
			}
			trg.Action.Values = append(trg.Action.Values, ex)
		}
		if def.Action.Where != "" {
			if trg.Action.Where, err = binder.Parse(def.Action.Where); err != nil {
				return dberr.Newf(dberr.CategorySystem, dberr.CodeInvalidRequest, "trigger '%s': %v", trg.Name, err)
			}
		}
		if err := dml.ValidateTrigger(p.cat, trg); err != nil {
			return err
		}
		if err := p.cat.AddTrigger(d.tx, trg); err != nil {
			return err
		}
		d.triggerEdges(trg, tbl, target)
		d.event(tbl.ID, catalog.ChangeCreateTrigger, trg.Name)
		return nil
	})
}

func (d *ddl) triggerEdges(trg *catalog.Trigger, tbl, target *catalog.Table) {
	self := trg.Ref()
	d.addEdge(self, tbl.Ref(), depend.UseName)
	for _, id := range trg.UpdateOf {
		d.addEdge(self, depend.Ref{Kind: depend.KindColumn, ID: id}, depend.UseName)
	}

	targetUse := depend.UseName
	if trg.Action.Kind == catalog.ActionInsert && len(trg.Action.Columns) == 0 {
		targetUse |= depend.UsePosition
	}
	d.addEdge(self, target.Ref(), targetUse)

	for _, ex := range trg.Action.Expressions() {
		for _, ref := range ex.References() {
			from := target
			if ref.Qualifier != "" {
				from = tbl
			}
			if col, ok := from.Column(ref.Name); ok {
				d.addEdge(self, col.Ref(), depend.UseName|depend.UseType)
			}
		}
	}
	for _, name := range trg.Action.Columns {
		if col, ok := target.Column(name); ok {
			d.addEdge(self, col.Ref(), depend.UseName|depend.UseType)
		}
	}
}

// DropTrigger drops a trigger.
func (p *Planner) DropTrigger(ctx context.Context, tx *transaction.TransactionContext, schema, name string) (*DDLResult, error) {
	return p.run(ctx, tx, "DROP TRIGGER", func(d *ddl) error {
		trg, err := p.cat.LookupTrigger(schemaOf(schema), name)
		if err != nil {
			return err
		}
		if err := d.lock(trg.TableID, lock.ExclusiveLock); err != nil {
			return err
		}
		if err := d.discard(trg.Ref()); err != nil {
			return err
		}
		d.res.Dropped = append(d.res.Dropped, trg.Ref())
		d.event(trg.TableID, catalog.ChangeDropTrigger, trg.Name)
		return nil
	})
}

// CreateSynonym creates an alternate name for a table. Synonyms are
// resolved at lookup time and take no part in dependency tracking.
func (p *Planner) CreateSynonym(ctx context.Context, tx *transaction.TransactionContext, schema, name, target string) (*DDLResult, error) {
	return p.run(ctx, tx, "CREATE SYNONYM", func(d *ddl) error {
		schema := schemaOf(schema)
		tgtSchema, tgtName := qualify(schema, target)
		tbl, err := p.cat.LookupTable(tgtSchema, tgtName)
		if err != nil {
			return err
		}
		return p.cat.AddSynonym(d.tx, &catalog.Synonym{
			ID:       primitives.NewObjectID(),
			Schema:   schema,
			Name:     catalog.NormalizeName(name),
			TargetID: tbl.ID,
		})
	})
}

// DropSynonym drops a synonym.
func (p *Planner) DropSynonym(ctx context.Context, tx *transaction.TransactionContext, schema, name string) (*DDLResult, error) {
	return p.run(ctx, tx, "DROP SYNONYM", func(d *ddl) error {
		schema := schemaOf(schema)
		for _, tbl := range p.cat.Tables() {
			for _, s := range p.cat.SynonymsFor(tbl.ID) {
				if s.Schema == schema && s.Name == catalog.NormalizeName(name) {
					return p.cat.RemoveSynonym(d.tx, s.ID)
				}
			}
		}
		return dberr.Newf(dberr.CategoryNotFound, dberr.CodeObjectNotFound,
			"Synonym '%s' does not exist.", catalog.QualifiedName(schema, catalog.NormalizeName(name)))
	})
}
