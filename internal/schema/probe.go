// Package schema probes the live database catalog and resolves the query
// strategy the dashboard loader uses for the schema version it finds.
package schema

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/carbon-dashboard/internal/db"
)

// ProbedTables lists the tables whose columns decide the query strategy.
var ProbedTables = []string{
	"company",
	"company_i18n",
	"industry_i18n",
	"emission",
	"denominator",
	"emission_target",
	"report",
	"report_framework",
	"scoring_config_alpha",
}

const columnsSQL = `SELECT table_name, column_name
	FROM information_schema.columns
	WHERE table_schema = current_schema()
	  AND table_name = ANY($1)`

// Catalog is the set of columns found per table.
type Catalog map[string]map[string]bool

// HasTable reports whether any column of table was found.
func (c Catalog) HasTable(table string) bool {
	return len(c[table]) > 0
}

// HasColumn reports whether table.column exists. Unknown tables report false.
func (c Catalog) HasColumn(table, column string) bool {
	return c[table][column]
}

func (c Catalog) add(table, column string) {
	cols, ok := c[table]
	if !ok {
		cols = make(map[string]bool)
		c[table] = cols
	}
	cols[column] = true
}

// Probe reads the column catalog for ProbedTables.
func Probe(ctx context.Context, pool db.Pool) (Catalog, error) {
	rows, err := pool.Query(ctx, columnsSQL, ProbedTables)
	if err != nil {
		return nil, eris.Wrap(err, "schema: query information_schema")
	}
	defer rows.Close()

	catalog := make(Catalog)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, eris.Wrap(err, "schema: scan column")
		}
		catalog.add(table, column)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "schema: iterate columns")
	}
	return catalog, nil
}
