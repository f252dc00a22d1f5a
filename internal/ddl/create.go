// Package ddl renders CREATE TABLE statements for the declared tables.
//
// The migration never creates or alters tables; target tables are assumed to
// exist. These statements seed local fixtures and test databases, in both the
// source layout (source column names, only columns read from the source) and
// the target layout (declared column order, namespace-qualified).
package ddl

import (
	"fmt"
	"strings"

	"moviesetl/internal/schema"
)

// Layout picks which side of the migration a table definition describes.
type Layout uint8

const (
	SourceLayout Layout = iota
	TargetLayout
)

// FromTable converts a declared table into a TableDef for dialect d.
// Target layouts are qualified with namespace; source layouts never are.
func FromTable(d Dialect, t schema.Table, layout Layout, namespace string) TableDef {
	def := TableDef{FQN: t.SourceName()}
	if layout == TargetLayout {
		def.FQN = t.TargetName(namespace)
	}

	refs := make(map[string]string, len(t.Parents))
	for _, p := range t.Parents {
		refs[schema.Snake(p)+"_id"] = schema.Snake(p)
	}

	for _, c := range t.Columns {
		name := c.Name
		if layout == SourceLayout {
			if !c.FromSource() {
				continue
			}
			name = c.Source
		}
		def.Columns = append(def.Columns, ColumnDef{
			Name:       name,
			SQLType:    sqlType(d, c.Kind),
			Nullable:   nullable(c, layout),
			PrimaryKey: c.Name == schema.KeyColumn,
			References: refs[c.Name],
		})
	}
	return def
}

// Source tables in the wild are loosely constrained: only the key is
// mandatory there.
func nullable(c schema.Column, layout Layout) bool {
	if c.Name == schema.KeyColumn {
		return false
	}
	if layout == SourceLayout {
		return true
	}
	return c.Nullable
}

func sqlType(d Dialect, k schema.Kind) string {
	if d == SQLite {
		switch k {
		case schema.KindFloat:
			return "REAL"
		case schema.KindDate:
			return "DATE"
		case schema.KindTimestamp:
			return "TIMESTAMP"
		default:
			return "TEXT"
		}
	}
	switch k {
	case schema.KindUUID:
		return "UUID"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement:
//
//	CREATE TABLE IF NOT EXISTS "ns"."table" (
//	  "id" UUID NOT NULL,
//	  "film_work_id" UUID NOT NULL REFERENCES "ns"."film_work" ("id") ON DELETE CASCADE,
//	  PRIMARY KEY ("id")
//	);
//
// References resolve inside the table's own namespace. SQLite does not allow
// a qualified name in REFERENCES, so only the bare table is emitted there.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	ns, _ := splitFQN(fqn)

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if c.References != "" {
			ref := c.References
			if d == Postgres && ns != "" {
				ref = ns + "." + ref
			}
			fmt.Fprintf(&sb, " REFERENCES %s (%s) ON DELETE CASCADE", QuoteFQN(ref), QuoteIdent(schema.KeyColumn))
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, QuoteIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		QuoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// Statements renders one CREATE TABLE per registered table in dependency
// order. Target layouts on Postgres are preceded by CREATE SCHEMA.
func Statements(d Dialect, reg *schema.Registry, layout Layout, namespace string) ([]string, error) {
	var out []string
	if d == Postgres && layout == TargetLayout && namespace != "" {
		out = append(out, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", QuoteIdent(namespace)))
	}
	for _, t := range reg.Tables() {
		stmt, err := BuildCreateTableSQL(d, FromTable(d, t, layout, namespace))
		if err != nil {
			return nil, fmt.Errorf("ddl: %s: %w", t.Name, err)
		}
		out = append(out, stmt)
	}
	return out, nil
}

// QuoteIdent double-quotes an identifier, escaping embedded quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each dot-separated segment of a qualified name.
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func splitFQN(fqn string) (ns, table string) {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}
