package planner

import (
	"context"

	"dictengine/pkg/catalog"
	"dictengine/pkg/concurrency/transaction"
)

func grantPositions(tbl *catalog.Table, columns []string) ([]int, error) {
	if len(columns) == 0 {
		out := make([]int, len(tbl.Columns))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	cols, err := resolveColumns(tbl, columns)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i] = c.Ordinal - 1
	}
	return out, nil
}

// Grant gives a grantee a column-level privilege. An empty column list
// covers every current column.
func (p *Planner) Grant(ctx context.Context, tx *transaction.TransactionContext, schema, table, grantee string, priv catalog.Privilege, columns []string) (*DDLResult, error) {
	return p.run(ctx, tx, "GRANT", func(d *ddl) error {
		tbl, err := p.cat.LookupTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		pos, err := grantPositions(tbl, columns)
		if err != nil {
			return err
		}
		return p.cat.GrantColumns(d.tx, tbl.ID, grantee, priv, pos)
	})
}

// Revoke removes columns from a grantee's column-level privilege.
func (p *Planner) Revoke(ctx context.Context, tx *transaction.TransactionContext, schema, table, grantee string, priv catalog.Privilege, columns []string) (*DDLResult, error) {
	return p.run(ctx, tx, "REVOKE", func(d *ddl) error {
		tbl, err := p.cat.LookupTable(schemaOf(schema), table)
		if err != nil {
			return err
		}
		pos, err := grantPositions(tbl, columns)
		if err != nil {
			return err
		}
		p.cat.RevokeColumns(d.tx, tbl.ID, grantee, priv, pos)
		return nil
	})
}
