package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviesetl/internal/records"
	"moviesetl/internal/schema"
	"moviesetl/internal/storage"
	"moviesetl/internal/testutil"
)

// TestRepository_Integration exercises both policies against a real server.
// It runs only when TEST_PG_DSN or TEST_PG_CONTAINER=1 is set.
func TestRepository_Integration(t *testing.T) {
	dsn := testutil.PostgresDSN(t)
	ctx := context.Background()
	ns := "it_" + uuid.NewString()[:8]

	w, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn, Namespace: ns})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, storage.EnsureTables(ctx, "postgres", w, records.Registry(), ns))
	defer func() { _ = storage.ExecAll(ctx, w, []string{`DROP SCHEMA "` + ns + `" CASCADE`}) }()

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	n, err := w.WriteChunk(ctx, records.GenreTable, []schema.Record{
		records.Genre{ID: id, Name: "Drama", Created: now, Modified: now},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = w.WriteChunk(ctx, records.GenreTable, []schema.Record{
		records.Genre{ID: id, Name: "Tragedy", Created: now, Modified: now},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "ignore policy must skip existing ids")

	upd, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn, Namespace: ns, Policy: storage.PolicyUpdate})
	require.NoError(t, err)
	defer upd.Close()

	later := now.Add(time.Hour)
	n, err = upd.WriteChunk(ctx, records.GenreTable, []schema.Record{
		records.Genre{ID: id, Name: "Tragedy", Created: later, Modified: later},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var rows [][]any
	require.NoError(t, w.Scan(ctx, records.GenreTable, func(v []any) error {
		rows = append(rows, append([]any(nil), v...))
		return nil
	}))
	require.Len(t, rows, 1)
	assert.Equal(t, [16]byte(id), rows[0][0])
	assert.Equal(t, "Tragedy", rows[0][1])
	assert.True(t, now.Equal(rows[0][3].(time.Time)), "created must be preserved")
	assert.True(t, later.Equal(rows[0][4].(time.Time)))

	count, err := w.Count(ctx, records.GenreTable)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
