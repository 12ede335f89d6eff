package planner

import (
	"dictengine/pkg/catalog"
	"dictengine/pkg/types"
)

// DropMode is the failure policy of a drop.
type DropMode int

const (
	Restrict DropMode = iota
	Cascade
)

func (m DropMode) String() string {
	if m == Cascade {
		return "CASCADE"
	}
	return "RESTRICT"
}

// IdentityDef declares an identity column.
type IdentityDef struct {
	Start     int64
	Increment int64
}

// ColumnDef declares a column.
type ColumnDef struct {
	Name    string
	Type    types.DataType
	NotNull bool
	// Default is a literal; nil means no default.
	Default  any
	Identity *IdentityDef
}

// ConstraintDef declares a table constraint. An empty Name gets a system
// generated one.
type ConstraintDef struct {
	Name    string
	Type    catalog.ConstraintType
	Columns []string
	// Check is the condition text of a CHECK constraint.
	Check string
	// RefSchema, RefTable and RefColumns name the parent key of a FOREIGN
	// KEY. Empty RefColumns selects the parent's primary key.
	RefSchema  string
	RefTable   string
	RefColumns []string
	DeleteRule catalog.DeleteRule
}

// CreateTableRequest is CREATE TABLE.
type CreateTableRequest struct {
	Schema      string
	Name        string
	Columns     []ColumnDef
	Constraints []ConstraintDef
}

// ViewDef is CREATE VIEW name AS SELECT columns FROM source WHERE where.
// Empty Columns selects every column of the source.
type ViewDef struct {
	Schema  string
	Name    string
	Source  string
	Columns []string
	Where   string
}

// ActionDef is the statement a trigger runs.
type ActionDef struct {
	Kind    catalog.ActionKind
	Target  string
	Columns []string
	Values  []string
	Where   string
}

// TriggerDef is CREATE TRIGGER name AFTER event [OF columns] ON table
// FOR EACH ROW action.
type TriggerDef struct {
	Schema   string
	Name     string
	Table    string
	Event    catalog.TriggerEvent
	UpdateOf []string
	Action   ActionDef
}

// IndexDef is CREATE [UNIQUE] INDEX name ON table (columns).
type IndexDef struct {
	Schema  string
	Name    string
	Table   string
	Columns []string
	Unique  bool
}
