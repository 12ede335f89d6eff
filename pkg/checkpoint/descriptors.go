package checkpoint

import (
	"strings"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
)

// systemTable holds the static description of one checkpoint table: its
// DDL and how catalog state turns into its rows.
type systemTable struct {
	name    string
	columns []string
	ddl     string
	rowsFn  func(cat *catalog.Catalog) [][]any
}

func (st systemTable) insertSQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(st.columns)), ", ")
	return "INSERT INTO " + st.name + " (" + strings.Join(st.columns, ", ") + ") VALUES (" + marks + ")"
}

var sysTables = systemTable{
	name:    "SYSTABLES",
	columns: []string{"TABLEID", "TABLENAME", "TABLETYPE", "SCHEMANAME", "GENERATION"},
	ddl: `CREATE TABLE IF NOT EXISTS SYSTABLES (
		TABLEID TEXT PRIMARY KEY,
		TABLENAME TEXT NOT NULL,
		TABLETYPE TEXT NOT NULL,
		SCHEMANAME TEXT NOT NULL,
		GENERATION INTEGER NOT NULL
	)`,
	rowsFn: func(cat *catalog.Catalog) [][]any {
		var rows [][]any
		for _, t := range cat.Tables() {
			rows = append(rows, []any{t.ID.String(), t.Name, "T", t.Schema, int64(t.Generation)})
		}
		for _, v := range cat.Views() {
			rows = append(rows, []any{v.ID.String(), v.Name, "V", v.Schema, int64(v.Generation)})
		}
		return rows
	},
}

var sysColumns = systemTable{
	name: "SYSCOLUMNS",
	columns: []string{"REFERENCEID", "COLUMNNAME", "COLUMNNUMBER", "COLUMNDATATYPE",
		"COLUMNDEFAULT", "AUTOINCREMENTVALUE", "AUTOINCREMENTINC"},
	ddl: `CREATE TABLE IF NOT EXISTS SYSCOLUMNS (
		REFERENCEID TEXT NOT NULL,
		COLUMNNAME TEXT NOT NULL,
		COLUMNNUMBER INTEGER NOT NULL,
		COLUMNDATATYPE TEXT NOT NULL,
		COLUMNDEFAULT TEXT,
		AUTOINCREMENTVALUE INTEGER,
		AUTOINCREMENTINC INTEGER,
		PRIMARY KEY (REFERENCEID, COLUMNNUMBER)
	)`,
	rowsFn: func(cat *catalog.Catalog) [][]any {
		var rows [][]any
		for _, t := range cat.Tables() {
			for _, col := range t.Columns {
				var def, autoValue, autoInc any
				if col.Default != nil {
					def = col.Default.Text()
				}
				if col.Identity != nil {
					autoValue = col.Identity.Current()
					autoInc = col.Identity.Increment()
				}
				rows = append(rows, []any{t.ID.String(), col.Name, col.Ordinal, col.Type.String(), def, autoValue, autoInc})
			}
		}
		return rows
	},
}

var sysConstraints = systemTable{
	name:    "SYSCONSTRAINTS",
	columns: []string{"CONSTRAINTID", "TABLEID", "CONSTRAINTNAME", "TYPE", "SCHEMANAME", "STATE", "COLUMNS", "CHECKDEFINITION"},
	ddl: `CREATE TABLE IF NOT EXISTS SYSCONSTRAINTS (
		CONSTRAINTID TEXT PRIMARY KEY,
		TABLEID TEXT NOT NULL,
		CONSTRAINTNAME TEXT NOT NULL,
		TYPE TEXT NOT NULL,
		SCHEMANAME TEXT NOT NULL,
		STATE TEXT NOT NULL,
		COLUMNS TEXT NOT NULL,
		CHECKDEFINITION TEXT
	)`,
	rowsFn: func(cat *catalog.Catalog) [][]any {
		var rows [][]any
		for _, con := range cat.Constraints() {
			state := "E"
			if !con.Enabled {
				state = "D"
			}
			var names []string
			if tbl, ok := cat.TableByID(con.TableID); ok {
				for _, id := range con.Columns {
					if col, ok := tbl.ColumnByID(id); ok {
						names = append(names, col.Name)
					}
				}
			}
			var check any
			if con.Check != nil {
				check = con.Check.Text()
			}
			rows = append(rows, []any{con.ID.String(), con.TableID.String(), con.Name, con.Type.Code(),
				con.Schema, state, strings.Join(names, ","), check})
		}
		return rows
	},
}

var sysViews = systemTable{
	name:    "SYSVIEWS",
	columns: []string{"TABLEID", "VIEWDEFINITION"},
	ddl: `CREATE TABLE IF NOT EXISTS SYSVIEWS (
		TABLEID TEXT PRIMARY KEY,
		VIEWDEFINITION TEXT NOT NULL
	)`,
	rowsFn: func(cat *catalog.Catalog) [][]any {
		var rows [][]any
		for _, v := range cat.Views() {
			rows = append(rows, []any{v.ID.String(), v.Text(relationName(cat, v.Source))})
		}
		return rows
	},
}

var sysTriggers = systemTable{
	name:    "SYSTRIGGERS",
	columns: []string{"TRIGGERID", "TRIGGERNAME", "SCHEMANAME", "TABLEID", "EVENT", "ACTIONTEXT"},
	ddl: `CREATE TABLE IF NOT EXISTS SYSTRIGGERS (
		TRIGGERID TEXT PRIMARY KEY,
		TRIGGERNAME TEXT NOT NULL,
		SCHEMANAME TEXT NOT NULL,
		TABLEID TEXT NOT NULL,
		EVENT TEXT NOT NULL,
		ACTIONTEXT TEXT NOT NULL
	)`,
	rowsFn: func(cat *catalog.Catalog) [][]any {
		var rows [][]any
		for _, trg := range cat.Triggers() {
			target := relationName(cat, depend.Ref{Kind: depend.KindTable, ID: trg.Action.TargetID})
			rows = append(rows, []any{trg.ID.String(), trg.Name, trg.Schema, trg.TableID.String(),
				trg.Event.String(), trg.Action.Text(target)})
		}
		return rows
	},
}

var sysDepends = systemTable{
	name:    "SYSDEPENDS",
	columns: []string{"DEPENDENTID", "DEPENDENTTYPE", "PROVIDERID", "PROVIDERTYPE", "USAGE"},
	ddl: `CREATE TABLE IF NOT EXISTS SYSDEPENDS (
		DEPENDENTID TEXT NOT NULL,
		DEPENDENTTYPE TEXT NOT NULL,
		PROVIDERID TEXT NOT NULL,
		PROVIDERTYPE TEXT NOT NULL,
		USAGE INTEGER NOT NULL,
		PRIMARY KEY (DEPENDENTID, PROVIDERID)
	)`,
	rowsFn: func(cat *catalog.Catalog) [][]any {
		var rows [][]any
		for _, e := range cat.Graph().Edges() {
			// Compiled statements are not persistent objects.
			if e.Dependent.Kind == depend.KindStatement {
				continue
			}
			rows = append(rows, []any{e.Dependent.ID.String(), e.Dependent.Kind.String(),
				e.Provider.ID.String(), e.Provider.Kind.String(), int64(e.Usage)})
		}
		return rows
	},
}

// allSystemTables is written in this order on every checkpoint.
var allSystemTables = []systemTable{sysTables, sysColumns, sysConstraints, sysViews, sysTriggers, sysDepends}

// relationName returns SCHEMA.NAME of a table or view.
func relationName(cat *catalog.Catalog, ref depend.Ref) string {
	switch ref.Kind {
	case depend.KindTable:
		if t, ok := cat.TableByID(ref.ID); ok {
			return t.QualifiedName()
		}
	case depend.KindView:
		if v, ok := cat.ViewByID(ref.ID); ok {
			return v.QualifiedName()
		}
	}
	return ref.String()
}
