package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviesetl/internal/errs"
	"moviesetl/internal/records"
	"moviesetl/internal/storage"
	"moviesetl/internal/testutil"
)

type cli struct {
	source *testutil.SourceDB
	target string
	env    string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{
		source: testutil.NewSourceDB(t, records.Registry()),
		target: filepath.Join(dir, "target.db"),
		env:    filepath.Join(dir, "absent.env"),
	}

	ctx := context.Background()
	w, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: c.target, Namespace: "content"})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureTables(ctx, "sqlite", w, records.Registry(), "content"))
	w.Close()
	return c
}

func (c *cli) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{
		args[0],
		"--env-file", c.env,
		"--sqlite", c.source.Path,
		"--target", "sqlite",
		"--dsn", c.target,
		"--schema", "content",
		"--log-level", "error",
	}
	code := run(context.Background(), append(base, args[1:]...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestMigrateThenVerify(t *testing.T) {
	c := newCLI(t)
	testutil.SeedCatalog(t, c.source, 4)

	code, out, stderr := c.run(t, "migrate", "--chunk-size", "3")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, out, "genre_film_work")
	assert.Contains(t, out, "total")

	code, out, stderr = c.run(t, "migrate")
	require.Equal(t, exitOK, code, stderr)

	code, out, stderr = c.run(t, "verify")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, out, "film_work")
	assert.NotContains(t, out, "differ")
}

func TestVerifyMismatchExitsNonZero(t *testing.T) {
	c := newCLI(t)
	testutil.SeedCatalog(t, c.source, 2)

	code, _, stderr := c.run(t, "migrate", "--tables", "genre", "--allow-partial")
	require.Equal(t, exitOK, code, stderr)

	code, out, stderr := c.run(t, "verify")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, out, "missing in target")
	assert.Contains(t, stderr, "source and target differ")

	code, _, stderr = c.run(t, "verify", "--tables", "genre")
	assert.Equal(t, exitOK, code, stderr)
}

func TestMigrateFailureNamesTable(t *testing.T) {
	c := newCLI(t)
	testutil.SeedCatalog(t, c.source, 1)
	c.source.Exec(t, `DROP TABLE "genre_film_work"`)

	code, out, stderr := c.run(t, "migrate")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "schema failure in table GenreFilmWork")
	assert.Contains(t, out, "person_film_work")
}

func TestConfigCommand(t *testing.T) {
	c := newCLI(t)

	code, out, stderr := c.run(t, "config")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, out, `"schema": "content"`)

	code, out, _ = c.run(t, "config", "--validate")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "configuration is valid")

	t.Setenv("CONFLICT_POLICY", "replace")
	code, _, stderr = c.run(t, "config", "--validate")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "target.policy")
}

func TestDiagnostic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{errors.New("plain"), "moviesetl: plain"},
		{errs.Write("PersonFilmWork", 2, errors.New("fk")), "moviesetl: write failure in table PersonFilmWork at chunk 2: "},
		{errs.Schema("Genre", errors.New("gone")), "moviesetl: schema failure in table Genre: "},
		{errs.Connectivity("", errors.New("refused")), "moviesetl: connectivity failure: "},
	}
	for _, c := range cases {
		assert.Contains(t, diagnostic(c.err), c.want)
	}
}
