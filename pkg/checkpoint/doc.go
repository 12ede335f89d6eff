// Package checkpoint persists the data dictionary to a SQLite file.
//
// Every checkpoint rewrites the following tables inside one SQLite
// transaction, so a reader never sees a half-written snapshot.
//
// SYSTABLES
//
//	| Column     | Type    | Description                   |
//	|------------|---------|-------------------------------|
//	| TABLEID    | TEXT    | object id (ULID)              |
//	| TABLENAME  | TEXT    | unqualified name              |
//	| TABLETYPE  | TEXT    | T for tables, V for views     |
//	| SCHEMANAME | TEXT    | owning schema                 |
//	| GENERATION | INTEGER | catalog generation at change  |
//
// SYSCOLUMNS
//
//	| Column             | Type    | Description                  |
//	|--------------------|---------|------------------------------|
//	| REFERENCEID        | TEXT    | owning table id              |
//	| COLUMNNAME         | TEXT    | column name                  |
//	| COLUMNNUMBER       | INTEGER | 1-based ordinal              |
//	| COLUMNDATATYPE     | TEXT    | e.g. INTEGER NOT NULL        |
//	| COLUMNDEFAULT      | TEXT    | default text, NULL if none   |
//	| AUTOINCREMENTVALUE | INTEGER | next identity value          |
//	| AUTOINCREMENTINC   | INTEGER | identity increment           |
//
// SYSCONSTRAINTS holds id, table, name, type code (C, U, P, F), state
// (E enabled, D disabled), the constrained column names and the CHECK
// text. SYSVIEWS and SYSTRIGGERS hold regenerated definition text, so a
// rename shows up in the next checkpoint. SYSDEPENDS holds every
// dependency edge between persistent objects; compiled statements are
// left out. SYSCHECKPOINT holds the generation and time of the snapshot.
package checkpoint
