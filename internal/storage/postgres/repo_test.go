package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviesetl/internal/errs"
	"moviesetl/internal/records"
	"moviesetl/internal/schema"
	"moviesetl/internal/storage"
)

// fakeTx records statements; the embedded interface panics on anything the
// repository is not expected to call.
type fakeTx struct {
	pgx.Tx
	execs      []string
	failAt     int
	execErr    error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.execErr != nil && len(f.execs) == f.failAt {
		return pgconn.CommandTag{}, f.execErr
	}
	rows := strings.Count(sql, "), (") + 1
	return pgconn.NewCommandTag("INSERT 0 " + strconv.Itoa(rows)), nil
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakePool struct {
	pgxPool
	tx       *fakeTx
	beginErr error
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return p.tx, nil
}

func people(n int) []schema.Record {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]schema.Record, n)
	for i := range out {
		out[i] = records.Person{ID: uuid.New(), FullName: "p", Created: now, Modified: now}
	}
	return out
}

func TestWriteChunk_SplitsInsideOneTransaction(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	// Person has 4 columns: 8 params allow 2 rows per statement.
	r := newWithPool(&fakePool{tx: tx}, Config{Namespace: "content", Policy: storage.PolicyIgnore, MaxParams: 8})

	n, err := r.WriteChunk(context.Background(), records.PersonTable, people(5))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	require.Len(t, tx.execs, 3)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	for _, s := range tx.execs {
		assert.Contains(t, s, `INSERT INTO "content"."person"`)
		assert.Contains(t, s, `ON CONFLICT ("id") DO NOTHING`)
	}
}

func TestWriteChunk_FailureRollsBack(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{
		Code:    "23503",
		Message: "insert or update violates foreign key constraint",
		Detail:  `Key (genre_id)=(x) is not present in table "genre".`,
	}
	tx := &fakeTx{failAt: 2, execErr: pgErr}
	r := newWithPool(&fakePool{tx: tx}, Config{Namespace: "content", MaxParams: 8})

	_, err := r.WriteChunk(context.Background(), records.PersonTable, people(5))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindWrite), "kind = %v", errs.KindOf(err))
	assert.Contains(t, err.Error(), "is not present in table")
	assert.Contains(t, err.Error(), "23503")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)

	var got *pgconn.PgError
	assert.True(t, errors.As(err, &got))
}

func TestWriteChunk_BeginFailureIsConnectivity(t *testing.T) {
	t.Parallel()

	r := newWithPool(&fakePool{beginErr: errors.New("dial tcp: connection refused")}, Config{Namespace: "content"})
	_, err := r.WriteChunk(context.Background(), records.PersonTable, people(1))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnectivity), "kind = %v", errs.KindOf(err))
}

func TestWriteChunk_EmptyChunkSkipsTransaction(t *testing.T) {
	t.Parallel()

	r := newWithPool(&fakePool{beginErr: errors.New("must not begin")}, Config{Namespace: "content"})
	n, err := r.WriteChunk(context.Background(), records.PersonTable, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"undefined_table", &pgconn.PgError{Code: "42P01"}, errs.KindSchema},
		{"connection_failure", &pgconn.PgError{Code: "08006"}, errs.KindConnectivity},
		{"unique_violation", &pgconn.PgError{Code: "23505"}, errs.KindWrite},
		{"canceled", context.Canceled, errs.KindCanceled},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := classify(records.GenreTable, "insert", c.err)
			assert.Equal(t, c.want, errs.KindOf(got))
		})
	}
}
