package sqlite

import (
	"context"

	"moviesetl/internal/ddl"
	"moviesetl/internal/schema"
	"moviesetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adapts *sqlite.Repository to the storage.Writer interface,
// adding a Close method that calls the cleanup function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Writer.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var (
	_ storage.Writer = (*wrappedRepo)(nil)
	_ storage.Execer = (*wrappedRepo)(nil)
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
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

	storage.RegisterDDL("sqlite",
		func(ctx context.Context, w storage.Writer, reg *schema.Registry, namespace string) error {
			stmts, err := ddl.Statements(ddl.SQLite, reg, ddl.TargetLayout, namespace)
			if err != nil {
				return err
			}
			return storage.ExecAll(ctx, w, stmts)
		})
}
