package storage

import (
	"context"
	"fmt"
	"sync"

	"moviesetl/internal/schema"
)

// DDLBootstrapper creates the target tables of reg inside namespace using the
// backend's dialect. Backends register one at init time.
//
// The migration assumes its target tables exist; bootstrappers seed test and
// local databases only.
type DDLBootstrapper func(ctx context.Context, w Writer, reg *schema.Registry, namespace string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for the given storage
// kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTables locates the bootstrapper for kind and creates every table of
// reg that does not exist yet.
func EnsureTables(ctx context.Context, kind string, w Writer, reg *schema.Registry, namespace string) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, w, reg, namespace)
}

// ExecAll runs stmts in order through w, which must implement Execer.
func ExecAll(ctx context.Context, w Writer, stmts []string) error {
	ex, ok := w.(Execer)
	if !ok {
		return fmt.Errorf("storage: %T cannot execute statements", w)
	}
	for _, s := range stmts {
		if err := ex.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
