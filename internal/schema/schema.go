// Package schema holds the static description of the migrated tables.
//
// Each table is declared once as an ordered list of columns. The order is the
// persisted column order of the target table; the row mapper fills columns by
// position and the writers use the same order for their column lists, so no
// component reflects over Go struct fields at runtime.
package schema

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Kind is the logical value type of a column.
type Kind uint8

const (
	KindText Kind = iota
	KindUUID
	KindFloat
	KindDate
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindUUID:
		return "uuid"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Column declares one persisted field.
type Column struct {
	// Name is the target column name.
	Name string
	// Source is the source column the value is read from. Empty means the
	// column only exists in the target and is always filled at mapping time.
	Source string
	Kind   Kind
	// Nullable columns keep a NULL source value as nil.
	Nullable bool
	// Optional source columns may be missing from the source table.
	Optional bool
	// Default replaces a NULL source value. Ignored when nil.
	Default any
	// Audit columns (created/modified) are stamped when absent and are not
	// compared by the consistency checker.
	Audit bool
}

// FromSource reports whether the column is read from the source table.
func (c Column) FromSource() bool { return c.Source != "" }

// Record is one typed, immutable row of a table.
type Record interface {
	// Table returns the registry name of the record's table, e.g. "FilmWork".
	Table() string
	// Key returns the record's primary key.
	Key() uuid.UUID
	// Values returns the field values in declared column order.
	Values() []any
}

// BuildFunc constructs a typed record from values already coerced to the
// column kinds, in declared column order.
type BuildFunc func(values []any) Record

// Table describes one migrated entity.
type Table struct {
	// Name is the entity identifier in compound-capitalized form.
	Name    string
	Columns []Column
	// Parents lists tables referenced by foreign keys.
	Parents []string
	Build   BuildFunc
}

// SourceName is the table name in the source store.
func (t Table) SourceName() string { return Snake(t.Name) }

// TargetName is the namespace-qualified table name in the target store.
func (t Table) TargetName(namespace string) string {
	if namespace == "" {
		return t.SourceName()
	}
	return namespace + "." + t.SourceName()
}

// ColumnNames returns target column names in declared order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// KeyColumn is the conflict key shared by every table.
const KeyColumn = "id"

// Index returns the position of the named column, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the declaration for the invariants the pipeline relies on.
func (t Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("schema: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("schema: %s: at least one column is required", t.Name)
	}
	if t.Columns[0].Name != KeyColumn || t.Columns[0].Kind != KindUUID {
		return fmt.Errorf("schema: %s: first column must be %q of kind uuid", t.Name, KeyColumn)
	}
	if t.Build == nil {
		return fmt.Errorf("schema: %s: Build must not be nil", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema: %s: column with empty name", t.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("schema: %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// Snake converts a compound-capitalized identifier to lower snake case:
// "FilmWork" -> "film_work", "PersonFilmWork" -> "person_film_work".
func Snake(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
