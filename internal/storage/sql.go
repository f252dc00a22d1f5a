package storage

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"moviesetl/internal/ddl"
	"moviesetl/internal/schema"
)

// Bind-parameter ceilings per statement.
const (
	PostgresMaxParams = 65535
	SQLiteMaxParams   = 32766
)

// preserved columns are never overwritten by PolicyUpdate.
var preserved = map[string]struct{}{
	schema.KeyColumn: {},
	"created":        {},
}

// Statement is one fully bound SQL statement.
type Statement struct {
	SQL  string
	Args []any
	Rows int
}

// BuildInserts renders recs as multi-row INSERT statements into
// namespace.table with the policy's ON CONFLICT clause. A chunk whose values
// exceed maxParams is split into several statements; callers run them in one
// transaction.
func BuildInserts(
	flavor sqlbuilder.Flavor,
	namespace string,
	t schema.Table,
	recs []schema.Record,
	policy Policy,
	maxParams int,
) ([]Statement, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	cols := quotedColumns(t)
	perStmt := len(recs)
	if maxParams > 0 {
		perStmt = max(1, maxParams/len(cols))
	}
	conflict := ConflictClause(t, policy)
	fqn := ddl.QuoteFQN(t.TargetName(namespace))

	stmts := make([]Statement, 0, (len(recs)+perStmt-1)/perStmt)
	for start := 0; start < len(recs); start += perStmt {
		end := min(start+perStmt, len(recs))

		ib := flavor.NewInsertBuilder()
		ib.InsertInto(fqn)
		ib.Cols(cols...)
		for i, rec := range recs[start:end] {
			if rec.Table() != t.Name {
				return nil, fmt.Errorf("storage: record %d belongs to %s, not %s", start+i, rec.Table(), t.Name)
			}
			vals := rec.Values()
			if len(vals) != len(cols) {
				return nil, fmt.Errorf("storage: record %d of %s has %d values, want %d", start+i, t.Name, len(vals), len(cols))
			}
			ib.Values(vals...)
		}
		query, args := ib.Build()
		stmts = append(stmts, Statement{SQL: query + conflict, Args: args, Rows: end - start})
	}
	return stmts, nil
}

// ConflictClause renders the ON CONFLICT suffix for t under policy.
func ConflictClause(t schema.Table, policy Policy) string {
	key := ddl.QuoteIdent(schema.KeyColumn)
	if policy != PolicyUpdate {
		return " ON CONFLICT (" + key + ") DO NOTHING"
	}
	var sets []string
	for _, c := range t.Columns {
		if _, skip := preserved[c.Name]; skip {
			continue
		}
		q := ddl.QuoteIdent(c.Name)
		sets = append(sets, q+" = EXCLUDED."+q)
	}
	if len(sets) == 0 {
		return " ON CONFLICT (" + key + ") DO NOTHING"
	}
	return " ON CONFLICT (" + key + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// SelectAll renders a query returning every declared column of t ordered by
// id.
func SelectAll(flavor sqlbuilder.Flavor, namespace string, t schema.Table) string {
	sb := flavor.NewSelectBuilder()
	sb.Select(quotedColumns(t)...).
		From(ddl.QuoteFQN(t.TargetName(namespace))).
		OrderBy(ddl.QuoteIdent(schema.KeyColumn))
	query, _ := sb.Build()
	return query
}

// CountAll renders SELECT COUNT(*) for t.
func CountAll(flavor sqlbuilder.Flavor, namespace string, t schema.Table) string {
	sb := flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(ddl.QuoteFQN(t.TargetName(namespace)))
	query, _ := sb.Build()
	return query
}

func quotedColumns(t schema.Table) []string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ddl.QuoteIdent(c.Name)
	}
	return cols
}
