package checkpoint

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dictengine/pkg/catalog"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/logging"
	"dictengine/pkg/primitives"
)

const checkpointDDL = `CREATE TABLE IF NOT EXISTS SYSCHECKPOINT (
	GENERATION INTEGER NOT NULL,
	WRITTEN_AT TEXT NOT NULL
)`

// Writer persists catalog snapshots to a SQLite file.
type Writer struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// Open opens or creates the checkpoint file at path and makes sure every
// system table exists. ":memory:" keeps the checkpoint in process.
func Open(path string) (*Writer, error) {
	file := primitives.Filepath(path)
	if !file.IsMemory() {
		if err := file.MkdirAll(0o750); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeInternal, "Open", "checkpoint")
		}
	}

	db, err := sql.Open("sqlite3", file.DSN())
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Open", "checkpoint")
	}
	// One connection keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, multierr.Append(dberr.Wrap(err, dberr.CodeInternal, "Open", "checkpoint"), db.Close())
	}

	w := &Writer{db: db, path: path, log: logging.WithComponent("checkpoint")}
	if err := w.createTables(); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return w, nil
}

func (w *Writer) createTables() error {
	stmts := []string{checkpointDDL}
	for _, st := range allSystemTables {
		stmts = append(stmts, st.ddl)
	}
	for _, ddl := range stmts {
		if _, err := w.db.Exec(ddl); err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "createTables", "checkpoint")
		}
	}
	return nil
}

// Path returns the file the writer persists to.
func (w *Writer) Path() string {
	return w.path
}

// Write replaces the persisted snapshot with the current state of cat in a
// single SQLite transaction.
func (w *Writer) Write(ctx context.Context, cat *catalog.Catalog) (err error) {
	start := time.Now()
	gen := cat.Generation()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "Write", "checkpoint")
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	total := 0
	for _, st := range allSystemTables {
		n, err := writeTable(ctx, tx, st, cat)
		if err != nil {
			return dberr.Wrap(err, dberr.CodeInternal, "Write", "checkpoint").
				WithDetail("table %s", st.name)
		}
		total += n
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM SYSCHECKPOINT"); err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "Write", "checkpoint")
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO SYSCHECKPOINT (GENERATION, WRITTEN_AT) VALUES (?, ?)",
		int64(gen), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "Write", "checkpoint")
	}
	if err := tx.Commit(); err != nil {
		return dberr.Wrap(err, dberr.CodeInternal, "Write", "checkpoint")
	}

	w.log.Debug("checkpoint written",
		zap.Uint64("generation", uint64(gen)),
		zap.Int("rows", total),
		zap.Duration("took", time.Since(start)))
	return nil
}

func writeTable(ctx context.Context, tx *sql.Tx, st systemTable, cat *catalog.Catalog) (int, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+st.name); err != nil {
		return 0, err
	}
	rows := st.rowsFn(cat)
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, st.insertSQL())
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// LastGeneration returns the catalog generation of the last checkpoint.
// ok is false when nothing was written yet.
func (w *Writer) LastGeneration(ctx context.Context) (gen primitives.Generation, ok bool, err error) {
	var g int64
	err = w.db.QueryRowContext(ctx, "SELECT GENERATION FROM SYSCHECKPOINT").Scan(&g)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, dberr.Wrap(err, dberr.CodeInternal, "LastGeneration", "checkpoint")
	}
	return primitives.Generation(g), true, nil
}

// Count returns the number of rows in one system table.
func (w *Writer) Count(ctx context.Context, table string) (int, error) {
	if !isSystemTable(table) {
		return 0, dberr.Newf(dberr.CategoryNotFound, dberr.CodeTableNotFound,
			"Table '%s' does not exist.", table)
	}
	var n int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, dberr.Wrap(err, dberr.CodeInternal, "Count", "checkpoint")
	}
	return n, nil
}

// TableRow is one SYSTABLES entry.
type TableRow struct {
	ID         string
	Schema     string
	Name       string
	Type       string
	Generation int64
	Columns    int
}

// Tables lists the persisted tables and views ordered by schema and name,
// with their column counts.
func (w *Writer) Tables(ctx context.Context) ([]TableRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT t.TABLEID, t.SCHEMANAME, t.TABLENAME, t.TABLETYPE, t.GENERATION,
			(SELECT COUNT(*) FROM SYSCOLUMNS c WHERE c.REFERENCEID = t.TABLEID)
		FROM SYSTABLES t
		ORDER BY t.SCHEMANAME, t.TABLENAME`)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Tables", "checkpoint")
	}
	defer rows.Close()

	var out []TableRow
	for rows.Next() {
		var r TableRow
		if err := rows.Scan(&r.ID, &r.Schema, &r.Name, &r.Type, &r.Generation, &r.Columns); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeInternal, "Tables", "checkpoint")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Tables", "checkpoint")
	}
	return out, nil
}

// DependRow is one SYSDEPENDS entry.
type DependRow struct {
	DependentID   string
	DependentType string
	ProviderID    string
	ProviderType  string
	Usage         int
}

// Depends lists the persisted dependency edges.
func (w *Writer) Depends(ctx context.Context) ([]DependRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT DEPENDENTID, DEPENDENTTYPE, PROVIDERID, PROVIDERTYPE, USAGE
		FROM SYSDEPENDS
		ORDER BY DEPENDENTTYPE, DEPENDENTID, PROVIDERID`)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Depends", "checkpoint")
	}
	defer rows.Close()

	var out []DependRow
	for rows.Next() {
		var r DependRow
		if err := rows.Scan(&r.DependentID, &r.DependentType, &r.ProviderID, &r.ProviderType, &r.Usage); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeInternal, "Depends", "checkpoint")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Depends", "checkpoint")
	}
	return out, nil
}

// DefinitionRow is the stored text of a view or trigger.
type DefinitionRow struct {
	Kind   string
	Schema string
	Name   string
	Text   string
}

// Definitions lists view definitions followed by trigger actions.
func (w *Writer) Definitions(ctx context.Context) ([]DefinitionRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT 'VIEW', t.SCHEMANAME, t.TABLENAME, v.VIEWDEFINITION
		FROM SYSVIEWS v JOIN SYSTABLES t ON t.TABLEID = v.TABLEID
		UNION ALL
		SELECT 'TRIGGER', g.SCHEMANAME, g.TRIGGERNAME, 'AFTER ' || g.EVENT || ' ' || g.ACTIONTEXT
		FROM SYSTRIGGERS g
		ORDER BY 1 DESC, 2, 3`)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Definitions", "checkpoint")
	}
	defer rows.Close()

	var out []DefinitionRow
	for rows.Next() {
		var r DefinitionRow
		if err := rows.Scan(&r.Kind, &r.Schema, &r.Name, &r.Text); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeInternal, "Definitions", "checkpoint")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Definitions", "checkpoint")
	}
	return out, nil
}

// Close closes the checkpoint file.
func (w *Writer) Close() error {
	return w.db.Close()
}

func isSystemTable(name string) bool {
	if name == "SYSCHECKPOINT" {
		return true
	}
	for _, st := range allSystemTables {
		if st.name == name {
			return true
		}
	}
	return false
}
