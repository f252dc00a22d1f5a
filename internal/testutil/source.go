package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"

	"moviesetl/internal/ddl"
	"moviesetl/internal/schema"
)

// SourceDB is a writable SQLite file laid out like the legacy source.
type SourceDB struct {
	Path string
	DB   *sql.DB
}

// NewSourceDB creates a temp SQLite file containing the source layout of
// every table in reg.
func NewSourceDB(tb testing.TB, reg *schema.Registry) *SourceDB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "db.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		tb.Fatalf("open source fixture: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	stmts, err := ddl.Statements(ddl.SQLite, reg, ddl.SourceLayout, "")
	if err != nil {
		tb.Fatalf("source DDL: %v", err)
	}
	s := &SourceDB{Path: path, DB: db}
	for _, stmt := range stmts {
		s.Exec(tb, stmt)
	}
	return s
}

// Exec runs a statement or fails the test.
func (s *SourceDB) Exec(tb testing.TB, query string, args ...any) {
	tb.Helper()
	if _, err := s.DB.ExecContext(context.Background(), query, args...); err != nil {
		tb.Fatalf("exec %q: %v", query, err)
	}
}

// Insert adds one row; keys are source column names.
func (s *SourceDB) Insert(tb testing.TB, table string, row map[string]any) {
	tb.Helper()

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = row[c]
		cols[i] = ddl.QuoteIdent(c)
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto(ddl.QuoteIdent(table)).Cols(cols...).Values(vals...)
	query, args := ib.Build()
	s.Exec(tb, query, args...)
}

// SourceStamp is a timestamp in the text layout the legacy source uses.
const SourceStamp = "2021-06-16 20:14:09.221855+00"

// Catalog lists the ids seeded by SeedCatalog.
type Catalog struct {
	Genres      []uuid.UUID
	People      []uuid.UUID
	Films       []uuid.UUID
	PersonLinks []uuid.UUID
	GenreLinks  []uuid.UUID
}

// SeedCatalog inserts n genres, n people and n films, linking film i to genre
// i and person i. Every third film leaves rating, description and type NULL.
func SeedCatalog(tb testing.TB, s *SourceDB, n int) Catalog {
	tb.Helper()

	var c Catalog
	for i := 0; i < n; i++ {
		g, p, f := uuid.New(), uuid.New(), uuid.New()
		c.Genres = append(c.Genres, g)
		c.People = append(c.People, p)
		c.Films = append(c.Films, f)

		s.Insert(tb, "genre", map[string]any{
			"id": g.String(), "name": fmt.Sprintf("Genre %d", i), "description": nil,
			"created_at": SourceStamp, "updated_at": SourceStamp,
		})
		s.Insert(tb, "person", map[string]any{
			"id": p.String(), "full_name": fmt.Sprintf("Person %d", i),
			"created_at": SourceStamp, "updated_at": SourceStamp,
		})

		film := map[string]any{
			"id": f.String(), "title": fmt.Sprintf("Film %d", i),
			"creation_date": "1977-05-25", "file_path": nil,
			"description": "d", "rating": 7.5, "type": "movie",
			"created_at": SourceStamp, "updated_at": SourceStamp,
		}
		if i%3 == 0 {
			film["description"], film["rating"], film["type"] = nil, nil, nil
		}
		s.Insert(tb, "film_work", film)

		pl, gl := uuid.New(), uuid.New()
		c.PersonLinks = append(c.PersonLinks, pl)
		c.GenreLinks = append(c.GenreLinks, gl)
		s.Insert(tb, "person_film_work", map[string]any{
			"id": pl.String(), "film_work_id": f.String(), "person_id": p.String(),
			"role": nil, "created_at": SourceStamp,
		})
		s.Insert(tb, "genre_film_work", map[string]any{
			"id": gl.String(), "film_work_id": f.String(), "genre_id": g.String(),
			"created_at": SourceStamp,
		})
	}
	return c
}
