// Package sqlite implements a SQLite-backed storage.Writer.
package sqlite

import (
	"path/filepath"
	"strings"

	"moviesetl/internal/storage"
)

// Config holds SQLite writer configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite file path or connection string, e.g.:
	//   "target.db"
	//   "file:target.db?cache=shared"
	DSN string

	// Namespace is attached as a separate database so that qualified names
	// such as content.genre resolve.
	Namespace string

	// NamespaceFile is the database file attached as Namespace. Empty means
	// "<namespace>.db" next to the main file, or an in-memory database when
	// the main database is in memory.
	NamespaceFile string

	Policy storage.Policy
}

func (c Config) attachFile() string {
	if c.NamespaceFile != "" {
		return c.NamespaceFile
	}
	path := strings.TrimPrefix(c.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return ":memory:"
		}
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return filepath.Join(filepath.Dir(path), c.Namespace+".db")
}
