package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"

	"moviesetl/internal/ddl"
	"moviesetl/internal/errs"
	"moviesetl/internal/schema"
	"moviesetl/internal/storage"
)

// Repository writes records into a SQLite database with the namespace
// attached. Attachments are per connection, so the pool is pinned to a single
// connection; SQLite serializes writers anyway.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens the database, attaches the namespace and returns a
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, errs.Connectivity("", fmt.Errorf("sqlite: DSN must not be empty"))
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, errs.Connectivity("", fmt.Errorf("sqlite: open: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, errs.Connectivity("", fmt.Errorf("sqlite: ping: %w", err))
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, nil, errs.Connectivity("", fmt.Errorf("sqlite: enable foreign keys: %w", err))
	}
	if cfg.Namespace != "" {
		attach := fmt.Sprintf("ATTACH DATABASE ? AS %s", ddl.QuoteIdent(cfg.Namespace))
		if _, err := db.ExecContext(ctx, attach, cfg.attachFile()); err != nil {
			db.Close()
			return nil, nil, errs.Connectivity("", fmt.Errorf("sqlite: attach %s: %w", cfg.Namespace, err))
		}
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// WriteChunk inserts recs inside one transaction.
func (r *Repository) WriteChunk(ctx context.Context, t schema.Table, recs []schema.Record) (int64, error) {
	stmts, err := storage.BuildInserts(sqlbuilder.SQLite, r.cfg.Namespace, t, recs, r.cfg.Policy, storage.SQLiteMaxParams)
	if err != nil {
		return 0, errs.Write(t.Name, errs.NoChunk, err)
	}
	if len(stmts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Connectivity(t.Name, fmt.Errorf("sqlite: begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var affected int64
	for _, s := range stmts {
		res, err := tx.ExecContext(ctx, s.SQL, s.Args...)
		if err != nil {
			return 0, classify(t, "insert", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errs.Write(t.Name, errs.NoChunk, fmt.Errorf("sqlite: rows affected: %w", err))
		}
		affected += n
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(t, "commit", err)
	}
	return affected, nil
}

// Count returns the number of rows in the target table.
func (r *Repository) Count(ctx context.Context, t schema.Table) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, storage.CountAll(sqlbuilder.SQLite, r.cfg.Namespace, t)).Scan(&n); err != nil {
		return 0, classify(t, "count", err)
	}
	return n, nil
}

// Scan streams the target table ordered by id.
func (r *Repository) Scan(ctx context.Context, t schema.Table, fn func([]any) error) error {
	rows, err := r.db.QueryContext(ctx, storage.SelectAll(sqlbuilder.SQLite, r.cfg.Namespace, t))
	if err != nil {
		return classify(t, "scan", err)
	}
	defer rows.Close()

	vals := make([]any, len(t.Columns))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return errs.Connectivity(t.Name, fmt.Errorf("sqlite: scan %s: %w", t.Name, err))
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return classify(t, "scan", err)
	}
	return nil
}

// Exec executes an arbitrary statement, typically DDL for fixtures.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func classify(t schema.Table, op string, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.New(errs.KindCanceled, t.Name, errs.NoChunk, err)
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "has no column"):
		return errs.Schema(t.Name, fmt.Errorf("sqlite: %s %s: %w", op, t.Name, err))
	default:
		return errs.Write(t.Name, errs.NoChunk, fmt.Errorf("sqlite: %s %s: %w", op, t.Name, err))
	}
}
