// Package source reads the movies catalogue out of a SQLite file.
//
// A Reader streams one table at a time as a lazy sequence of fixed-size
// chunks. Each stream owns a dedicated connection and a single table-scan
// cursor; both are released when the sequence ends, fails, or the consumer
// stops iterating. Rows are projected by column name onto the table's declared
// column order, so a reordered source table cannot shift values between
// fields.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"

	"moviesetl/internal/errs"
	"moviesetl/internal/mapper"
	"moviesetl/internal/schema"
)

// DefaultChunkSize is the number of rows fetched per chunk.
const DefaultChunkSize = 100

// Chunk is one bounded batch of raw rows in read order.
type Chunk struct {
	Index int
	Rows  []mapper.RawRow
}

// Reader streams tables from a SQLite database.
type Reader struct {
	db        *sql.DB
	chunkSize int
}

// Option configures a Reader.
type Option func(*Reader)

// WithChunkSize sets the rows per chunk. Non-positive values keep the default.
func WithChunkSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// Open opens the SQLite file at path read-only and verifies it is reachable.
func Open(ctx context.Context, path string, opts ...Option) (*Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errs.Connectivity("", fmt.Errorf("source: sqlite path must not be empty"))
	}
	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, errs.Connectivity("", fmt.Errorf("source: open %s: %w", path, err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errs.Connectivity("", fmt.Errorf("source: ping %s: %w", path, err))
	}
	return NewReader(db, opts...), nil
}

// NewReader wraps an already opened database.
func NewReader(db *sql.DB, opts ...Option) *Reader {
	r := &Reader{db: db, chunkSize: DefaultChunkSize}
	for _, o := range opts {
		o(r)
	}
	return r
}

// readOnlyDSN turns a plain path into a read-only URI. DSNs that already use
// the file: scheme or :memory: are passed through.
func readOnlyDSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	return "file:" + path + "?mode=ro"
}

// Close releases the underlying database handle.
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// ChunkSize reports the configured rows per chunk.
func (r *Reader) ChunkSize() int { return r.chunkSize }

// Chunks streams t in chunks of ChunkSize rows. Iteration stops at the first
// error, which is yielded with a zero Chunk. Cancellation is checked between
// chunks only.
func (r *Reader) Chunks(ctx context.Context, t schema.Table) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		table := t.SourceName()
		if err := ctx.Err(); err != nil {
			yield(Chunk{}, errs.New(errs.KindCanceled, t.Name, 0, err))
			return
		}

		// Fetches are not interrupted mid-chunk; ctx is consulted between
		// chunks instead.
		qctx := context.WithoutCancel(ctx)

		conn, err := r.db.Conn(qctx)
		if err != nil {
			yield(Chunk{}, errs.Connectivity(t.Name, fmt.Errorf("source: acquire connection: %w", err)))
			return
		}
		defer conn.Close()

		query, _ := sqlbuilder.SQLite.NewSelectBuilder().
			Select("*").
			From(quoteIdent(table)).
			Build()
		rows, err := conn.QueryContext(qctx, query)
		if err != nil {
			yield(Chunk{}, classifyQueryErr(t.Name, table, err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(Chunk{}, errs.Schema(t.Name, fmt.Errorf("source: %s: read columns: %w", table, err)))
			return
		}
		proj, err := projection(t, cols)
		if err != nil {
			yield(Chunk{}, errs.Schema(t.Name, err))
			return
		}

		scan := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scan {
			ptrs[i] = &scan[i]
		}

		index := 0
		batch := make([]mapper.RawRow, 0, r.chunkSize)
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				yield(Chunk{}, errs.Mapping(t.Name, index, fmt.Errorf("source: %s: scan: %w", table, err)))
				return
			}
			batch = append(batch, project(scan, proj))
			if len(batch) < r.chunkSize {
				continue
			}
			if !yield(Chunk{Index: index, Rows: batch}, nil) {
				return
			}
			index++
			batch = make([]mapper.RawRow, 0, r.chunkSize)
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, errs.New(errs.KindCanceled, t.Name, index, err))
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Chunk{}, errs.Connectivity(t.Name, fmt.Errorf("source: %s: iterate: %w", table, err)))
			return
		}
		if len(batch) > 0 {
			yield(Chunk{Index: index, Rows: batch}, nil)
		}
	}
}

// Count returns the number of rows in t.
func (r *Reader) Count(ctx context.Context, t schema.Table) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)").From(quoteIdent(t.SourceName()))
	query, args := sb.Build()

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, classifyQueryErr(t.Name, t.SourceName(), err)
	}
	return n, nil
}

// projection maps each declared column to its position in the result set, or
// -1 when the column is not read from the source.
func projection(t schema.Table, resultCols []string) ([]int, error) {
	pos := make(map[string]int, len(resultCols))
	for i, c := range resultCols {
		pos[strings.ToLower(c)] = i
	}
	proj := make([]int, len(t.Columns))
	var missing []string
	for i, c := range t.Columns {
		proj[i] = -1
		if !c.FromSource() {
			continue
		}
		if p, ok := pos[strings.ToLower(c.Source)]; ok {
			proj[i] = p
			continue
		}
		if !c.Optional {
			missing = append(missing, c.Source)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("source: %s: missing columns %s (have %s)",
			t.SourceName(), strings.Join(missing, ", "), strings.Join(resultCols, ", "))
	}
	return proj, nil
}

func project(scan []any, proj []int) mapper.RawRow {
	row := make(mapper.RawRow, len(proj))
	for i, p := range proj {
		if p < 0 {
			continue
		}
		row[i] = copyValue(scan[p])
	}
	return row
}

// copyValue detaches driver-owned byte slices from the scan buffer.
func copyValue(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}

func classifyQueryErr(name, table string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"):
		return errs.Schema(name, fmt.Errorf("source: table %s does not exist: %w", table, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.New(errs.KindCanceled, name, errs.NoChunk, err)
	default:
		return errs.Connectivity(name, fmt.Errorf("source: query %s: %w", table, err))
	}
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
