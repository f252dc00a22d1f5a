package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Parallel()

	c, err := FromEnv(mapLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, "db.sqlite", c.SQLitePath)
	assert.Equal(t, "content", c.Target.Schema)
	assert.Equal(t, 100, c.Runtime.ChunkSize)
	assert.Equal(t, "ignore", c.Target.Policy)
	assert.Empty(t, Validate(c))
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Parallel()

	c, err := FromEnv(mapLookup(map[string]string{
		"SQLITE_PATH":       "/data/db.sqlite",
		"DB_HOST":           "pg",
		"DB_PORT":           "6543",
		"DB_USER":           "etl",
		"DB_PASSWORD":       "s3cr3t",
		"DB_NAME":           "movies",
		"DB_SCHEMA":         "catalog",
		"CHUNK_SIZE":        "500",
		"CONFLICT_POLICY":   "UPDATE",
		"CONCURRENT_LEVELS": "true",
		"TABLES":            "genre, film_work,,",
		"LOG_LEVEL":         "debug",
		"METRICS_BACKEND":   "datadog",
		"JOB_NAME":          "nightly",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/data/db.sqlite", c.SQLitePath)
	assert.Equal(t, 6543, c.Target.Port)
	assert.Equal(t, "catalog", c.Target.Schema)
	assert.Equal(t, "update", c.Target.Policy)
	assert.Equal(t, 500, c.Runtime.ChunkSize)
	assert.True(t, c.Runtime.ConcurrentLevels)
	assert.Equal(t, []string{"genre", "film_work"}, c.Runtime.Tables)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, "nightly", c.Job)
	assert.Equal(t, "postgres://etl:s3cr3t@pg:6543/movies?sslmode=disable", c.Target.ConnString())
}

func TestFromEnv_RejectsMalformedNumbers(t *testing.T) {
	t.Parallel()

	_, err := FromEnv(mapLookup(map[string]string{"CHUNK_SIZE": "lots", "LOG_PRETTY": "maybe"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_SIZE")
	assert.Contains(t, err.Error(), "LOG_PRETTY")
}

func TestConnString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   Target
		want string
	}{
		{"explicit_dsn", Target{Kind: "postgres", DSN: "postgres://x@y/z", Host: "ignored"}, "postgres://x@y/z"},
		{"escapes_password", Target{Kind: "postgres", Host: "h", Port: 5432, User: "u", Password: "p@ss/w", Name: "db"},
			"postgres://u:p%40ss%2Fw@h:5432/db"},
		{"no_password", Target{Kind: "postgres", Host: "h", Port: 5432, User: "u", Name: "db", SSLMode: "require"},
			"postgres://u@h:5432/db?sslmode=require"},
		{"sqlite_uses_dsn", Target{Kind: "sqlite", DSN: "/tmp/t.db", Host: "h"}, "/tmp/t.db"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.in.ConnString())
		})
	}
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Target.Password = "hunter2"
	c.Target.DSN = "postgres://app:hunter2@db:5432/movies"

	r := c.Redacted()
	assert.Equal(t, "***", r.Target.Password)
	assert.NotContains(t, r.Target.DSN, "hunter2")
	assert.Equal(t, "hunter2", c.Target.Password)
}

func TestLoad_ReadsEnvFileWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("DB_SCHEMA=from_file\nJOB_NAME=from_file\n"), 0o600))

	t.Setenv("JOB_NAME", "from_env")
	t.Setenv("DB_SCHEMA", "")
	require.NoError(t, os.Unsetenv("DB_SCHEMA"))

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "from_file", c.Target.Schema)
	assert.Equal(t, "from_env", c.Job)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "7")
	c, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, 7, c.Runtime.ChunkSize)
}
