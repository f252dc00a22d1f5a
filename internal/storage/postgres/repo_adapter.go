// This adapter wires the Postgres backend into the storage-agnostic factory
// by registering a constructor at init time. The CLI and other callers obtain
// a Writer via storage.New(...) without importing this package directly.
package postgres

import (
	"context"
	"fmt"

	"moviesetl/internal/ddl"
	"moviesetl/internal/schema"
	"moviesetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Writer by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var (
	_ storage.Writer = (*wrappedRepo)(nil)
	_ storage.Execer = (*wrappedRepo)(nil)
)

// Close implements storage.Writer.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:       cfg.DSN,
			Namespace: cfg.Namespace,
			Policy:    cfg.Policy,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres",
		func(ctx context.Context, w storage.Writer, reg *schema.Registry, namespace string) error {
			stmts, err := ddl.Statements(ddl.Postgres, reg, ddl.TargetLayout, namespace)
			if err != nil {
				return err
			}
			if err := storage.ExecAll(ctx, w, stmts); err != nil {
				return fmt.Errorf("apply DDL: %w", err)
			}
			return nil
		})
}
