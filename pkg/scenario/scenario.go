package scenario

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dictengine/pkg/catalog"
	"dictengine/pkg/planner"
	"dictengine/pkg/types"
)

// Scenario is a named list of steps read from YAML.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// ColumnSpec declares a column.
type ColumnSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	NotNull  bool   `yaml:"not_null"`
	Default  any    `yaml:"default"`
	Identity *struct {
		Start     int64 `yaml:"start"`
		Increment int64 `yaml:"increment"`
	} `yaml:"identity"`
}

// ConstraintSpec declares a table constraint.
type ConstraintSpec struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Columns    []string `yaml:"columns"`
	Check      string   `yaml:"check"`
	References string   `yaml:"references"`
	RefColumns []string `yaml:"ref_columns"`
	OnDelete   string   `yaml:"on_delete"`
}

// ActionSpec is the statement a trigger runs.
type ActionSpec struct {
	Kind    string   `yaml:"kind"`
	Target  string   `yaml:"target"`
	Columns []string `yaml:"columns"`
	Values  []string `yaml:"values"`
	Where   string   `yaml:"where"`
}

// Step is one operation. Op selects which of the other fields apply.
type Step struct {
	Op      string `yaml:"op"`
	Session string `yaml:"session"`

	Schema  string `yaml:"schema"`
	Table   string `yaml:"table"`
	Name    string `yaml:"name"`
	Column  string `yaml:"column"`
	NewName string `yaml:"new_name"`
	Mode    string `yaml:"mode"`

	Columns     []ColumnSpec     `yaml:"columns"`
	Constraints []ConstraintSpec `yaml:"constraints"`
	Definition  *ColumnSpec      `yaml:"definition"`
	Constraint  *ConstraintSpec  `yaml:"constraint"`

	// View and query fields.
	Source string   `yaml:"source"`
	Select []string `yaml:"select"`
	Where  string   `yaml:"where"`

	// Trigger fields.
	Event    string     `yaml:"event"`
	UpdateOf []string   `yaml:"update_of"`
	Action   ActionSpec `yaml:"action"`

	// DML fields.
	Into []string          `yaml:"into"`
	Rows [][]any           `yaml:"rows"`
	Set  map[string]string `yaml:"set"`

	On        *bool  `yaml:"on"`
	Savepoint string `yaml:"savepoint"`

	ExpectError string     `yaml:"expect_error"`
	ExpectRows  [][]string `yaml:"expect_rows"`
	ExpectCount *int       `yaml:"expect_count"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a scenario and checks every step names a known operation.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	for i, st := range sc.Steps {
		if _, ok := operations[st.Op]; !ok {
			return nil, fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
	}
	return &sc, nil
}

// ParseDataType reads a type such as "INTEGER" or "VARCHAR(20)". Character
// types without a length get 255.
func ParseDataType(s string) (types.DataType, error) {
	name, rest, hasLen := strings.Cut(strings.TrimSpace(s), "(")
	base, err := types.ParseType(name)
	if err != nil {
		return types.DataType{}, err
	}
	dt := types.DataType{Base: base, Nullable: true}
	if hasLen {
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(rest, ")")))
		if err != nil {
			return types.DataType{}, fmt.Errorf("bad length in type %q", s)
		}
		dt.Length = n
	} else if base.IsCharacter() {
		dt.Length = 255
	}
	return dt, dt.Validate()
}

func (c ColumnSpec) def() (planner.ColumnDef, error) {
	dt, err := ParseDataType(c.Type)
	if err != nil {
		return planner.ColumnDef{}, fmt.Errorf("column %s: %w", c.Name, err)
	}
	def := planner.ColumnDef{Name: c.Name, Type: dt, NotNull: c.NotNull, Default: c.Default}
	if c.Identity != nil {
		def.Identity = &planner.IdentityDef{Start: c.Identity.Start, Increment: c.Identity.Increment}
	}
	return def, nil
}

func (c ConstraintSpec) def() (planner.ConstraintDef, error) {
	var ct catalog.ConstraintType
	switch strings.ToLower(c.Type) {
	case "check":
		ct = catalog.CheckConstraint
	case "unique":
		ct = catalog.UniqueConstraint
	case "primary key", "primary_key":
		ct = catalog.PrimaryKeyConstraint
	case "foreign key", "foreign_key":
		ct = catalog.ForeignKeyConstraint
	default:
		return planner.ConstraintDef{}, fmt.Errorf("constraint %s: unknown type %q", c.Name, c.Type)
	}
	def := planner.ConstraintDef{
		Name:       c.Name,
		Type:       ct,
		Columns:    c.Columns,
		Check:      c.Check,
		RefColumns: c.RefColumns,
	}
	if c.References != "" {
		def.RefSchema, def.RefTable = splitName(c.References)
	}
	if strings.EqualFold(c.OnDelete, "cascade") {
		def.DeleteRule = catalog.DeleteCascade
	}
	return def, nil
}

func (s Step) columnDefs() ([]planner.ColumnDef, error) {
	out := make([]planner.ColumnDef, len(s.Columns))
	for i, c := range s.Columns {
		def, err := c.def()
		if err != nil {
			return nil, err
		}
		out[i] = def
	}
	return out, nil
}

func (s Step) constraintDefs() ([]planner.ConstraintDef, error) {
	out := make([]planner.ConstraintDef, len(s.Constraints))
	for i, c := range s.Constraints {
		def, err := c.def()
		if err != nil {
			return nil, err
		}
		out[i] = def
	}
	return out, nil
}

func (s Step) triggerDef() (planner.TriggerDef, error) {
	def := planner.TriggerDef{
		Schema:   s.Schema,
		Name:     s.Name,
		Table:    s.Table,
		UpdateOf: s.UpdateOf,
		Action: planner.ActionDef{
			Target:  s.Action.Target,
			Columns: s.Action.Columns,
			Values:  s.Action.Values,
			Where:   s.Action.Where,
		},
	}
	switch strings.ToLower(s.Event) {
	case "insert":
		def.Event = catalog.TriggerInsert
	case "update":
		def.Event = catalog.TriggerUpdate
	case "delete":
		def.Event = catalog.TriggerDelete
	default:
		return def, fmt.Errorf("trigger %s: unknown event %q", s.Name, s.Event)
	}
	switch strings.ToLower(s.Action.Kind) {
	case "insert":
		def.Action.Kind = catalog.ActionInsert
	case "delete":
		def.Action.Kind = catalog.ActionDelete
	default:
		return def, fmt.Errorf("trigger %s: unknown action %q", s.Name, s.Action.Kind)
	}
	return def, nil
}

func (s Step) dropMode() planner.DropMode {
	if strings.EqualFold(s.Mode, "cascade") {
		return planner.Cascade
	}
	return planner.Restrict
}

func splitName(qualified string) (schema, name string) {
	if schema, name, ok := strings.Cut(qualified, "."); ok {
		return schema, name
	}
	return "", qualified
}
