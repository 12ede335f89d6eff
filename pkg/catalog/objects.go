package catalog

import (
	"slices"
	"strings"
	"sync"

	"dictengine/pkg/binder"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// DefaultSchema is used when a name carries no schema.
const DefaultSchema = "APP"

// NormalizeName upper-cases an SQL identifier.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// QualifiedName joins schema and name as SCHEMA.NAME.
func QualifiedName(schema, name string) string {
	return schema + "." + name
}

// SplitName splits "schema.name" into its parts, defaulting the schema.
func SplitName(qualified string) (schema, name string) {
	qualified = NormalizeName(qualified)
	if i := strings.IndexByte(qualified, '.'); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return DefaultSchema, qualified
}

// Default is a column's default value.
type Default struct {
	Value types.Field
}

// Text renders the default the way it appears in DDL.
func (d *Default) Text() string {
	if d == nil {
		return ""
	}
	if d.Value.Type().IsCharacter() && !d.Value.IsNull() {
		return "'" + d.Value.String() + "'"
	}
	return d.Value.String()
}

// Identity is the counter state of an identity column. It is shared by every
// version of the column, so renames and other catalog rewrites never reset or
// duplicate it.
type Identity struct {
	mu        sync.Mutex
	next      int64
	start     int64
	increment int64
}

// NewIdentity starts a counter at start.
func NewIdentity(start, increment int64) *Identity {
	if increment == 0 {
		increment = 1
	}
	return &Identity{next: start, start: start, increment: increment}
}

// NextValue hands out the current value and advances the counter. Values
// handed out are not returned on rollback.
func (i *Identity) NextValue() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	v := i.next
	i.next += i.increment
	return v
}

// Current returns the value the next insert will receive.
func (i *Identity) Current() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.next
}

// Start returns the configured start value.
func (i *Identity) Start() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.start
}

// Increment returns the configured step.
func (i *Identity) Increment() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.increment
}

// Observe moves the counter past an explicitly supplied value.
func (i *Identity) Observe(v int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.increment > 0 && v >= i.next {
		i.next = v + i.increment
	}
	if i.increment < 0 && v <= i.next {
		i.next = v + i.increment
	}
}

// Reset changes the counter. It returns the previous next value and step.
func (i *Identity) Reset(next, increment int64) (int64, int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	prevNext, prevInc := i.next, i.increment
	i.next = next
	if increment != 0 {
		i.increment = increment
	}
	return prevNext, prevInc
}

// Column describes one column of a table. Column values are never mutated
// after they are published; changes produce a new Column with the same ID.
type Column struct {
	ID       primitives.ObjectID
	TableID  primitives.ObjectID
	Name     string
	Ordinal  int // 1-based, dense
	Type     types.DataType
	Default  *Default
	Identity *Identity
}

// Ref returns the dependency graph reference of the column.
func (c *Column) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindColumn, ID: c.ID}
}

// Nullable reports whether the column accepts NULL.
func (c *Column) Nullable() bool {
	return c.Type.Nullable
}

// Table is a base table.
type Table struct {
	ID         primitives.ObjectID
	Schema     string
	Name       string
	Columns    []*Column
	Generation primitives.Generation
}

// Ref returns the dependency graph reference of the table.
func (t *Table) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindTable, ID: t.ID}
}

// QualifiedName returns SCHEMA.NAME.
func (t *Table) QualifiedName() string {
	return QualifiedName(t.Schema, t.Name)
}

// Column finds a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	name = NormalizeName(name)
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnByID finds a column by id.
func (t *Table) ColumnByID(id primitives.ObjectID) (*Column, bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// ColumnAt returns the column at a 1-based ordinal.
func (t *Table) ColumnAt(ordinal int) (*Column, bool) {
	if ordinal < 1 || ordinal > len(t.Columns) {
		return nil, false
	}
	return t.Columns[ordinal-1], true
}

// Ordinals resolves column ids to 0-based slot indexes in the current
// generation.
func (t *Table) Ordinals(ids []primitives.ObjectID) ([]int, bool) {
	out := make([]int, len(ids))
	for i, id := range ids {
		c, ok := t.ColumnByID(id)
		if !ok {
			return nil, false
		}
		out[i] = c.Ordinal - 1
	}
	return out, true
}

// ColumnNames returns the column names in ordinal order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// ColumnTypes returns the column types in ordinal order.
func (t *Table) ColumnTypes() []types.DataType {
	out := make([]types.DataType, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Type
	}
	return out
}

func (t *Table) clone() *Table {
	cp := *t
	cp.Columns = slices.Clone(t.Columns)
	return &cp
}

// ConstraintType is the kind of a constraint.
type ConstraintType int

const (
	CheckConstraint ConstraintType = iota
	UniqueConstraint
	PrimaryKeyConstraint
	ForeignKeyConstraint
)

func (t ConstraintType) String() string {
	switch t {
	case CheckConstraint:
		return "CHECK"
	case UniqueConstraint:
		return "UNIQUE"
	case PrimaryKeyConstraint:
		return "PRIMARY KEY"
	case ForeignKeyConstraint:
		return "FOREIGN KEY"
	default:
		return "UNKNOWN"
	}
}

// Code is the one letter type code used in SYSCONSTRAINTS.
func (t ConstraintType) Code() string {
	switch t {
	case CheckConstraint:
		return "C"
	case UniqueConstraint:
		return "U"
	case PrimaryKeyConstraint:
		return "P"
	case ForeignKeyConstraint:
		return "F"
	default:
		return "?"
	}
}

// NeedsIndex reports whether the constraint is enforced through a backing index.
func (t ConstraintType) NeedsIndex() bool {
	return t == UniqueConstraint || t == PrimaryKeyConstraint || t == ForeignKeyConstraint
}

// DeleteRule is the referential action of a foreign key on parent delete.
type DeleteRule int

const (
	DeleteRestrict DeleteRule = iota
	DeleteCascade
)

func (r DeleteRule) String() string {
	if r == DeleteCascade {
		return "CASCADE"
	}
	return "RESTRICT"
}

// Constraint is a CHECK, UNIQUE, PRIMARY KEY or FOREIGN KEY constraint.
type Constraint struct {
	ID          primitives.ObjectID
	Schema      string
	Name        string
	SystemNamed bool
	Type        ConstraintType
	TableID     primitives.ObjectID
	Columns     []primitives.ObjectID
	Check       *binder.Expression
	Enabled     bool
	// Referenced is the parent PRIMARY KEY or UNIQUE constraint of a foreign key.
	Referenced primitives.ObjectID
	DeleteRule DeleteRule
	IndexID    primitives.ObjectID
	Generation primitives.Generation
}

// Ref returns the dependency graph reference of the constraint.
func (c *Constraint) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindConstraint, ID: c.ID}
}

// QualifiedName returns SCHEMA.NAME.
func (c *Constraint) QualifiedName() string {
	return QualifiedName(c.Schema, c.Name)
}

func (c *Constraint) clone() *Constraint {
	cp := *c
	cp.Columns = slices.Clone(c.Columns)
	return &cp
}

// Index is a physical access path. Constraint backing indexes list the
// constraints sharing them in Owners; a user index has no owners.
type Index struct {
	ID         primitives.ObjectID
	Schema     string
	Name       string
	TableID    primitives.ObjectID
	Columns    []primitives.ObjectID
	Unique     bool
	Owners     []primitives.ObjectID
	Generation primitives.Generation
}

// Ref returns the dependency graph reference of the index.
func (ix *Index) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindIndex, ID: ix.ID}
}

// QualifiedName returns SCHEMA.NAME.
func (ix *Index) QualifiedName() string {
	return QualifiedName(ix.Schema, ix.Name)
}

// IsBacking reports whether a constraint owns the index.
func (ix *Index) IsBacking() bool {
	return len(ix.Owners) > 0
}

func (ix *Index) clone() *Index {
	cp := *ix
	cp.Columns = slices.Clone(ix.Columns)
	cp.Owners = slices.Clone(ix.Owners)
	return &cp
}

// View is a named projection and restriction over one table or view.
type View struct {
	ID     primitives.ObjectID
	Schema string
	Name   string
	// Source is the relation the view selects from.
	Source depend.Ref
	// Columns is the select list; empty means every column of the source.
	Columns    []string
	Where      *binder.Expression
	Generation primitives.Generation
}

// Ref returns the dependency graph reference of the view.
func (v *View) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindView, ID: v.ID}
}

// QualifiedName returns SCHEMA.NAME.
func (v *View) QualifiedName() string {
	return QualifiedName(v.Schema, v.Name)
}

// Text renders the view definition.
func (v *View) Text(sourceName string) string {
	cols := "*"
	if len(v.Columns) > 0 {
		cols = strings.Join(v.Columns, ", ")
	}
	s := "SELECT " + cols + " FROM " + sourceName
	if v.Where != nil {
		s += " WHERE " + v.Where.Text()
	}
	return s
}

// TriggerEvent is the statement kind a trigger fires on.
type TriggerEvent int

const (
	TriggerInsert TriggerEvent = iota
	TriggerUpdate
	TriggerDelete
)

func (e TriggerEvent) String() string {
	switch e {
	case TriggerInsert:
		return "INSERT"
	case TriggerUpdate:
		return "UPDATE"
	default:
		return "DELETE"
	}
}

// ActionKind is the statement a trigger runs.
type ActionKind int

const (
	ActionInsert ActionKind = iota
	ActionDelete
)

// TriggerAction is the row-level statement a trigger executes after it fires.
type TriggerAction struct {
	Kind     ActionKind
	TargetID primitives.ObjectID
	// Columns is the INSERT column list. Empty means the values bind to the
	// target's columns by position.
	Columns []string
	Values  []*binder.Expression
	Where   *binder.Expression
}

// Text renders the action as SQL-like text, used for display and after
// renames to show the regenerated form.
func (a TriggerAction) Text(targetName string) string {
	switch a.Kind {
	case ActionInsert:
		vals := make([]string, len(a.Values))
		for i, v := range a.Values {
			vals[i] = v.Text()
		}
		s := "INSERT INTO " + targetName
		if len(a.Columns) > 0 {
			s += " (" + strings.Join(a.Columns, ", ") + ")"
		}
		return s + " VALUES (" + strings.Join(vals, ", ") + ")"
	default:
		s := "DELETE FROM " + targetName
		if a.Where != nil {
			s += " WHERE " + a.Where.Text()
		}
		return s
	}
}

// Expressions returns every expression in the action.
func (a TriggerAction) Expressions() []*binder.Expression {
	out := slices.Clone(a.Values)
	if a.Where != nil {
		out = append(out, a.Where)
	}
	return out
}

// Trigger is an AFTER ... FOR EACH ROW trigger.
type Trigger struct {
	ID         primitives.ObjectID
	Schema     string
	Name       string
	TableID    primitives.ObjectID
	Event      TriggerEvent
	UpdateOf   []primitives.ObjectID
	Action     TriggerAction
	Generation primitives.Generation
}

// Ref returns the dependency graph reference of the trigger.
func (t *Trigger) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindTrigger, ID: t.ID}
}

// QualifiedName returns SCHEMA.NAME.
func (t *Trigger) QualifiedName() string {
	return QualifiedName(t.Schema, t.Name)
}

func (t *Trigger) clone() *Trigger {
	cp := *t
	cp.UpdateOf = slices.Clone(t.UpdateOf)
	cp.Action.Columns = slices.Clone(t.Action.Columns)
	cp.Action.Values = slices.Clone(t.Action.Values)
	return &cp
}

// Synonym is an alternate name for a table.
type Synonym struct {
	ID       primitives.ObjectID
	Schema   string
	Name     string
	TargetID primitives.ObjectID
}

// Ref returns the dependency graph reference of the synonym.
func (s *Synonym) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindSynonym, ID: s.ID}
}
