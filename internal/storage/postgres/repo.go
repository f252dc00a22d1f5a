// Package postgres implements the Postgres storage.Writer using pgx v5. Every
// chunk is written as one or more multi-row INSERT ... ON CONFLICT statements
// inside a single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"moviesetl/internal/errs"
	"moviesetl/internal/schema"
	"moviesetl/internal/storage"
)

// Config holds Postgres writer configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	Namespace string // target schema, e.g. "content"
	Policy    storage.Policy
	// MaxParams caps bind parameters per statement. Zero means the protocol
	// limit.
	MaxParams int
}

// pgxPool is the subset of *pgxpool.Pool the repository uses.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Repository is a Postgres-backed implementation of storage.Writer.
type Repository struct {
	pool pgxPool
	cfg  Config
}

// NewRepository connects a pool, verifies the server is reachable and
// returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, errs.Connectivity("", fmt.Errorf("pgxpool: parse config: %w", err))
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, errs.Connectivity("", fmt.Errorf("pgxpool: %w", err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, errs.Connectivity("", fmt.Errorf("pgxpool: ping %s: %w", pcfg.ConnConfig.Host, err))
	}

	r := newWithPool(pool, cfg)
	return r, func() { pool.Close() }, nil
}

func newWithPool(pool pgxPool, cfg Config) *Repository {
	if cfg.MaxParams <= 0 {
		cfg.MaxParams = storage.PostgresMaxParams
	}
	return &Repository{pool: pool, cfg: cfg}
}

// WriteChunk inserts recs inside one transaction. Rows whose id already
// exists are skipped or updated according to the configured policy.
func (r *Repository) WriteChunk(ctx context.Context, t schema.Table, recs []schema.Record) (int64, error) {
	stmts, err := storage.BuildInserts(sqlbuilder.PostgreSQL, r.cfg.Namespace, t, recs, r.cfg.Policy, r.cfg.MaxParams)
	if err != nil {
		return 0, errs.Write(t.Name, errs.NoChunk, err)
	}
	if len(stmts) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, classify(t, "begin", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	var affected int64
	for _, s := range stmts {
		tag, err := tx.Exec(ctx, s.SQL, s.Args...)
		if err != nil {
			return 0, classify(t, "insert", err)
		}
		affected += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, classify(t, "commit", err)
	}
	return affected, nil
}

// Count returns the number of rows in the target table.
func (r *Repository) Count(ctx context.Context, t schema.Table) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, storage.CountAll(sqlbuilder.PostgreSQL, r.cfg.Namespace, t)).Scan(&n); err != nil {
		return 0, classify(t, "count", err)
	}
	return n, nil
}

// Scan streams the target table ordered by id. UUID columns arrive as
// [16]byte, timestamps as time.Time.
func (r *Repository) Scan(ctx context.Context, t schema.Table, fn func([]any) error) error {
	rows, err := r.pool.Query(ctx, storage.SelectAll(sqlbuilder.PostgreSQL, r.cfg.Namespace, t))
	if err != nil {
		return classify(t, "scan", err)
	}
	defer rows.Close()

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return classify(t, "scan", err)
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

// Exec runs an arbitrary statement, typically fixture DDL.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", describe(err))
	}
	return nil
}

// classify maps a pgx error onto the error taxonomy. SQLSTATE class 08 is a
// connection failure, class 42 a missing or mismatched table.
func classify(t schema.Table, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.KindCanceled, t.Name, errs.NoChunk, err)
	}
	wrapped := fmt.Errorf("postgres: %s %s: %w", op, t.Name, describe(err))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"):
			return errs.Connectivity(t.Name, wrapped)
		case strings.HasPrefix(pgErr.Code, "42"):
			return errs.Schema(t.Name, wrapped)
		default:
			return errs.Write(t.Name, errs.NoChunk, wrapped)
		}
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || op == "begin" {
		return errs.Connectivity(t.Name, wrapped)
	}
	return errs.Write(t.Name, errs.NoChunk, wrapped)
}

// describe surfaces the server's detail line and SQLSTATE when present.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w: %s (%s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}
