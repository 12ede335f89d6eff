package scenario

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/database"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/planner"
)

type operation struct {
	text func(Step) string
	run  func(ctx context.Context, r *Runner, s *database.Session, st Step) (database.QueryResult, error)
}

var formatter = database.NewResultFormatter()

var operations = map[string]operation{
	"create_table":          {text: createTableText, run: runCreateTable},
	"drop_table":            {text: dropText("TABLE"), run: runDropTable},
	"add_column":            {text: addColumnText, run: runAddColumn},
	"drop_column":           {text: dropColumnText, run: runDropColumn},
	"rename_column":         {text: renameColumnText, run: runRenameColumn},
	"rename_table":          {text: renameTableText, run: runRenameTable},
	"create_view":           {text: createViewText, run: runCreateView},
	"drop_view":             {text: dropText("VIEW"), run: runDropView},
	"create_trigger":        {text: createTriggerText, run: runCreateTrigger},
	"add_constraint":        {text: addConstraintText, run: runAddConstraint},
	"drop_constraint":       {text: dropConstraintText, run: runDropConstraint},
	"insert":                {text: insertText, run: runInsert},
	"update":                {text: updateText, run: runUpdate},
	"delete":                {text: deleteText, run: runDelete},
	"query":                 {text: func(st Step) string { return st.query().Text() }, run: runQuery},
	"commit":                {text: fixed("COMMIT"), run: runCommit},
	"rollback":              {text: fixed("ROLLBACK"), run: runRollback},
	"autocommit":            {text: autoCommitText, run: runAutoCommit},
	"savepoint":             {text: savepointText("SAVEPOINT"), run: runSavepoint},
	"rollback_to_savepoint": {text: savepointText("ROLLBACK TO SAVEPOINT"), run: runRollbackToSavepoint},
	"release_savepoint":     {text: savepointText("RELEASE SAVEPOINT"), run: runReleaseSavepoint},
	"checkpoint":            {text: fixed("CHECKPOINT"), run: runCheckpoint},
}

func fixed(text string) func(Step) string {
	return func(Step) string { return text }
}

func (st Step) query() scan.Query {
	return scan.Query{Schema: st.Schema, From: st.Table, Columns: st.Select, Where: st.Where}
}

func runDDL(ctx context.Context, s *database.Session, fn func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error)) (database.QueryResult, error) {
	res, err := s.DDL(ctx, fn)
	if err != nil {
		return database.QueryResult{}, err
	}
	return formatter.FormatDDL(res), nil
}

func runCreateTable(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	cols, err := st.columnDefs()
	if err != nil {
		return database.QueryResult{}, err
	}
	cons, err := st.constraintDefs()
	if err != nil {
		return database.QueryResult{}, err
	}
	req := planner.CreateTableRequest{Schema: st.Schema, Name: st.Table, Columns: cols, Constraints: cons}
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.CreateTable(ctx, tx, req)
	})
}

func runDropTable(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.DropTable(ctx, tx, st.Schema, st.Table, st.dropMode())
	})
}

func runAddColumn(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	if st.Definition == nil {
		return database.QueryResult{}, fmt.Errorf("add_column needs a definition")
	}
	def, err := st.Definition.def()
	if err != nil {
		return database.QueryResult{}, err
	}
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.AddColumn(ctx, tx, st.Schema, st.Table, def)
	})
}

func runDropColumn(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.DropColumn(ctx, tx, st.Schema, st.Table, st.Column, st.dropMode())
	})
}

func runRenameColumn(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.RenameColumn(ctx, tx, st.Schema, st.Table, st.Column, st.NewName)
	})
}

func runRenameTable(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.RenameTable(ctx, tx, st.Schema, st.Table, st.NewName)
	})
}

func runCreateView(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	def := planner.ViewDef{Schema: st.Schema, Name: st.Name, Source: st.Source, Columns: st.Select, Where: st.Where}
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.CreateView(ctx, tx, def)
	})
}

func runDropView(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.DropView(ctx, tx, st.Schema, st.Name, st.dropMode())
	})
}

func runCreateTrigger(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	def, err := st.triggerDef()
	if err != nil {
		return database.QueryResult{}, err
	}
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.CreateTrigger(ctx, tx, def)
	})
}

func runAddConstraint(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	if st.Constraint == nil {
		return database.QueryResult{}, fmt.Errorf("add_constraint needs a constraint")
	}
	def, err := st.Constraint.def()
	if err != nil {
		return database.QueryResult{}, err
	}
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.AddConstraint(ctx, tx, st.Schema, st.Table, def)
	})
}

func runDropConstraint(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return runDDL(ctx, s, func(p *planner.Planner, tx *transaction.TransactionContext) (*planner.DDLResult, error) {
		return p.DropConstraint(ctx, tx, st.Schema, st.Name, st.dropMode())
	})
}

func runInsert(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	n, err := s.Insert(ctx, st.Schema, st.Table, st.Into, st.Rows)
	if err != nil {
		return database.QueryResult{}, err
	}
	return formatter.FormatDML(n, "inserted"), nil
}

func runUpdate(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	n, err := s.Update(ctx, st.Schema, st.Table, st.Set, st.Where)
	if err != nil {
		return database.QueryResult{}, err
	}
	return formatter.FormatDML(n, "updated"), nil
}

func runDelete(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	n, err := s.Delete(ctx, st.Schema, st.Table, st.Where)
	if err != nil {
		return database.QueryResult{}, err
	}
	return formatter.FormatDML(n, "deleted"), nil
}

func runQuery(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return s.Query(ctx, st.query())
}

func message(msg string) database.QueryResult {
	return database.QueryResult{Success: true, Message: msg}
}

func runCommit(ctx context.Context, _ *Runner, s *database.Session, _ Step) (database.QueryResult, error) {
	return message("committed"), s.Commit(ctx)
}

func runRollback(_ context.Context, _ *Runner, s *database.Session, _ Step) (database.QueryResult, error) {
	return message("rolled back"), s.Rollback()
}

func runAutoCommit(ctx context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	on := st.On == nil || *st.On
	return message(autoCommitText(st)), s.SetAutoCommit(ctx, on)
}

func runSavepoint(_ context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return message("savepoint " + st.Savepoint + " set"), s.SetSavepoint(st.Savepoint)
}

func runRollbackToSavepoint(_ context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return message("rolled back to " + st.Savepoint), s.RollbackToSavepoint(st.Savepoint)
}

func runReleaseSavepoint(_ context.Context, _ *Runner, s *database.Session, st Step) (database.QueryResult, error) {
	return message("released " + st.Savepoint), s.ReleaseSavepoint(st.Savepoint)
}

func runCheckpoint(ctx context.Context, r *Runner, _ *database.Session, _ Step) (database.QueryResult, error) {
	return message("checkpoint written"), r.db.Checkpoint(ctx)
}

func qualify(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

func columnText(c ColumnSpec) string {
	s := c.Name + " " + strings.ToUpper(c.Type)
	if c.Identity != nil {
		s += fmt.Sprintf(" GENERATED ALWAYS AS IDENTITY (START WITH %d, INCREMENT BY %d)", c.Identity.Start, c.Identity.Increment)
	}
	if c.Default != nil {
		s += fmt.Sprintf(" DEFAULT %v", c.Default)
	}
	if c.NotNull {
		s += " NOT NULL"
	}
	return s
}

func constraintText(c ConstraintSpec) string {
	s := "CONSTRAINT " + c.Name + " " + strings.ToUpper(strings.ReplaceAll(c.Type, "_", " "))
	if c.Check != "" {
		return s + " (" + c.Check + ")"
	}
	s += " (" + strings.Join(c.Columns, ", ") + ")"
	if c.References != "" {
		s += " REFERENCES " + c.References
		if len(c.RefColumns) > 0 {
			s += " (" + strings.Join(c.RefColumns, ", ") + ")"
		}
		if c.OnDelete != "" {
			s += " ON DELETE " + strings.ToUpper(c.OnDelete)
		}
	}
	return s
}

func createTableText(st Step) string {
	parts := make([]string, 0, len(st.Columns)+len(st.Constraints))
	for _, c := range st.Columns {
		parts = append(parts, columnText(c))
	}
	for _, c := range st.Constraints {
		parts = append(parts, constraintText(c))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", qualify(st.Schema, st.Table), strings.Join(parts, ", "))
}

func dropText(kind string) func(Step) string {
	return func(st Step) string {
		name := st.Table
		if kind == "VIEW" {
			name = st.Name
		}
		return fmt.Sprintf("DROP %s %s %s", kind, qualify(st.Schema, name), st.dropMode())
	}
}

func addColumnText(st Step) string {
	def := ""
	if st.Definition != nil {
		def = columnText(*st.Definition)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", qualify(st.Schema, st.Table), def)
}

func dropColumnText(st Step) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s %s", qualify(st.Schema, st.Table), st.Column, st.dropMode())
}

func renameColumnText(st Step) string {
	return fmt.Sprintf("RENAME COLUMN %s.%s TO %s", qualify(st.Schema, st.Table), st.Column, st.NewName)
}

func renameTableText(st Step) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", qualify(st.Schema, st.Table), st.NewName)
}

func createViewText(st Step) string {
	q := scan.Query{From: st.Source, Columns: st.Select, Where: st.Where}
	return fmt.Sprintf("CREATE VIEW %s AS %s", qualify(st.Schema, st.Name), q.Text())
}

func createTriggerText(st Step) string {
	event := strings.ToUpper(st.Event)
	if len(st.UpdateOf) > 0 {
		event += " OF " + strings.Join(st.UpdateOf, ", ")
	}
	var action string
	if strings.EqualFold(st.Action.Kind, "delete") {
		action = "DELETE FROM " + st.Action.Target
		if st.Action.Where != "" {
			action += " WHERE " + st.Action.Where
		}
	} else {
		action = "INSERT INTO " + st.Action.Target
		if len(st.Action.Columns) > 0 {
			action += " (" + strings.Join(st.Action.Columns, ", ") + ")"
		}
		action += " VALUES (" + strings.Join(st.Action.Values, ", ") + ")"
	}
	return fmt.Sprintf("CREATE TRIGGER %s AFTER %s ON %s FOR EACH ROW %s",
		qualify(st.Schema, st.Name), event, st.Table, action)
}

func addConstraintText(st Step) string {
	con := ""
	if st.Constraint != nil {
		con = constraintText(*st.Constraint)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s", qualify(st.Schema, st.Table), con)
}

func dropConstraintText(st Step) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s %s", qualify(st.Schema, st.Table), st.Name, st.dropMode())
}

func valueText(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + v + "'"
	default:
		return fmt.Sprint(v)
	}
}

func insertText(st Step) string {
	rows := make([]string, len(st.Rows))
	for i, row := range st.Rows {
		vals := make([]string, len(row))
		for j, v := range row {
			vals[j] = valueText(v)
		}
		rows[i] = "(" + strings.Join(vals, ", ") + ")"
	}
	cols := ""
	if len(st.Into) > 0 {
		cols = " (" + strings.Join(st.Into, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s%s VALUES %s", qualify(st.Schema, st.Table), cols, strings.Join(rows, ", "))
}

func updateText(st Step) string {
	names := make([]string, 0, len(st.Set))
	for name := range st.Set {
		names = append(names, name)
	}
	slices.Sort(names)
	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = name + " = " + st.Set[name]
	}
	s := fmt.Sprintf("UPDATE %s SET %s", qualify(st.Schema, st.Table), strings.Join(sets, ", "))
	if st.Where != "" {
		s += " WHERE " + st.Where
	}
	return s
}

func deleteText(st Step) string {
	s := "DELETE FROM " + qualify(st.Schema, st.Table)
	if st.Where != "" {
		s += " WHERE " + st.Where
	}
	return s
}

func autoCommitText(st Step) string {
	if st.On == nil || *st.On {
		return "SET AUTOCOMMIT ON"
	}
	return "SET AUTOCOMMIT OFF"
}

func savepointText(verb string) func(Step) string {
	return func(st Step) string { return verb + " " + st.Savepoint }
}
