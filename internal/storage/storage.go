// Package storage holds the backend-agnostic writer contract and the factory
// that concrete backends register with.
//
// Backends (postgres, sqlite) call Register from init(); callers obtain a
// Writer through New without importing the backend package directly. Import
// moviesetl/internal/storage/all to enable every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"moviesetl/internal/schema"
)

// Policy decides what happens when a written row's id already exists.
type Policy string

const (
	// PolicyIgnore keeps the stored row untouched (ON CONFLICT DO NOTHING).
	PolicyIgnore Policy = "ignore"
	// PolicyUpdate overwrites every non-key column except created.
	PolicyUpdate Policy = "update"
)

// ParsePolicy accepts "ignore" or "update"; empty means ignore.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyIgnore:
		return PolicyIgnore, nil
	case PolicyUpdate:
		return PolicyUpdate, nil
	default:
		return "", fmt.Errorf("storage: unknown conflict policy %q (want ignore|update)", s)
	}
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "postgres".
	Kind string
	// DSN is passed to the backend driver.
	DSN string
	// Namespace qualifies every target table ("content" -> content.genre).
	Namespace string
	// Policy applies to every table written through the Writer.
	Policy Policy
}

// Writer persists chunks of records into namespace-qualified target tables.
type Writer interface {
	// WriteChunk inserts recs in one transaction and returns the number of
	// rows inserted or updated. On error nothing of the chunk is kept.
	WriteChunk(ctx context.Context, t schema.Table, recs []schema.Record) (int64, error)
	// Count returns the number of rows in t.
	Count(ctx context.Context, t schema.Table) (int64, error)
	// Scan calls fn for every row of t ordered by id, with values in declared
	// column order. fn must not retain the slice.
	Scan(ctx context.Context, t schema.Table, fn func(values []any) error) error
	Close()
}

// Execer is implemented by writers that can run raw statements. Used to seed
// fixtures; the migration itself never executes DDL.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// Factory constructs a Writer for cfg.
type Factory func(ctx context.Context, cfg Config) (Writer, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds or replaces the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New constructs the Writer registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Writer, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyIgnore
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
