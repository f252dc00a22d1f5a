package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Target.Kind = "sqlite"
	c.Target.DSN = "/tmp/target.db"
	if issues := Validate(c); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidate_StructRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		path   string
		msg    string
	}{
		{"empty_sqlite_path", func(c *Config) { c.SQLitePath = "" }, "sqlite_path", "must not be empty"},
		{"empty_job", func(c *Config) { c.Job = "" }, "job", "must not be empty"},
		{"empty_schema", func(c *Config) { c.Target.Schema = "" }, "target.schema", "must not be empty"},
		{"bad_policy", func(c *Config) { c.Target.Policy = "replace" }, "target.policy", "ignore, update"},
		{"zero_chunk", func(c *Config) { c.Runtime.ChunkSize = 0 }, "runtime.chunk_size", "gt=0"},
		{"bad_level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level", "must be one of"},
		{"bad_backend", func(c *Config) { c.Metrics.Backend = "graphite" }, "metrics.backend", "must be one of"},
		{"bad_sslmode", func(c *Config) { c.Target.SSLMode = "maybe" }, "target.sslmode", "must be one of"},
		{"bad_port", func(c *Config) { c.Target.Port = 70000 }, "target.port", "lte=65535"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			issues := Validate(c)
			if !hasIssue(t, issues, SeverityError, tc.path, tc.msg) {
				t.Fatalf("expected error at %s containing %q; got %+v", tc.path, tc.msg, issues)
			}
			if !HasErrors(issues) || Err(issues) == nil {
				t.Fatalf("HasErrors/Err disagree with issues %+v", issues)
			}
		})
	}
}

func TestValidate_Target(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Target.Kind = "mysql"
	if !hasIssue(t, Validate(c), SeverityError, "target.kind", "unknown target kind") {
		t.Fatalf("expected unknown kind error")
	}

	c = Default()
	c.Target.Host = ""
	c.Target.Name = ""
	issues := Validate(c)
	if !hasIssue(t, issues, SeverityError, "target.host", "requires a host") ||
		!hasIssue(t, issues, SeverityError, "target.name", "requires a database name") {
		t.Fatalf("expected host and name errors; got %+v", issues)
	}

	c.Target.DSN = "postgres://app@db/movies"
	if issues := Validate(c); HasErrors(issues) {
		t.Fatalf("dsn should satisfy postgres target; got %+v", issues)
	}

	c = Default()
	c.Target.Kind = "sqlite"
	if !hasIssue(t, Validate(c), SeverityError, "target.dsn", "requires a dsn") {
		t.Fatalf("expected sqlite dsn error")
	}
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Runtime.ChunkSize = 50000
	c.Runtime.AllowPartial = true
	issues := Validate(c)
	if HasErrors(issues) {
		t.Fatalf("warnings only expected; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "runtime.chunk_size", "chunk_size=50000") {
		t.Fatalf("expected chunk size warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "runtime.allow_partial", "no effect") {
		t.Fatalf("expected allow_partial warning; got %+v", issues)
	}

	c = Default()
	c.Runtime.Tables = []string{"genre", "Genre"}
	if !hasIssue(t, Validate(c), SeverityWarning, "runtime.tables[1]", "listed twice") {
		t.Fatalf("expected duplicate table warning")
	}
}

func TestValidate_Metrics(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Metrics.Backend = "pushgateway"
	if !hasIssue(t, Validate(c), SeverityError, "metrics.pushgateway_url", "requires PUSHGATEWAY_URL") {
		t.Fatalf("expected pushgateway url error")
	}

	c.Metrics.PushgatewayURL = "not a url"
	if !hasIssue(t, Validate(c), SeverityError, "metrics.pushgateway_url", "not a valid url") {
		t.Fatalf("expected url format error")
	}
}
