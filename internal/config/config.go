// Package config defines the runtime configuration of the movies migration.
//
// Values come from the process environment, optionally seeded from a .env
// file; variables already set in the environment win over the file. The CLI
// overrides individual fields with flags after loading. Validate reports
// problems as a list of issues rather than failing on the first one.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the complete runtime configuration.
type Config struct {
	// SQLitePath is the legacy SQLite file to read from.
	SQLitePath string `json:"sqlite_path" validate:"required"`

	Target  Target  `json:"target"`
	Runtime Runtime `json:"runtime"`
	Logging Logging `json:"logging"`
	Metrics Metrics `json:"metrics"`

	// Job labels metrics and log lines of one run.
	Job string `json:"job" validate:"required"`
}

// Target describes the store the records are written to.
type Target struct {
	// Kind selects the storage backend ("postgres" or "sqlite").
	Kind string `json:"kind" validate:"required"`

	// DSN overrides the connection string assembled from the DB_* fields.
	DSN string `json:"dsn,omitempty"`

	Host     string `json:"host"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name"`
	SSLMode  string `json:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// Schema is the target namespace holding the five tables.
	Schema string `json:"schema" validate:"required"`

	// Policy decides what happens to rows whose id already exists.
	Policy string `json:"policy" validate:"oneof=ignore update"`
}

// Runtime controls chunking and scheduling.
type Runtime struct {
	ChunkSize        int      `json:"chunk_size" validate:"gt=0"`
	ConcurrentLevels bool     `json:"concurrent_levels"`
	Tables           []string `json:"tables,omitempty"`
	AllowPartial     bool     `json:"allow_partial"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `json:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `json:"pretty"`
}

// Metrics selects where run metrics are sent.
type Metrics struct {
	Backend        string `json:"backend" validate:"oneof=none pushgateway datadog"`
	PushgatewayURL string `json:"pushgateway_url,omitempty" validate:"omitempty,url"`
	DatadogAddr    string `json:"datadog_addr,omitempty" validate:"omitempty,hostname_port"`
}

// Defaults used when a variable is unset.
const (
	DefaultSQLitePath = "db.sqlite"
	DefaultSchema     = "content"
	DefaultChunkSize  = 100
	DefaultJob        = "moviesetl"
)

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		SQLitePath: DefaultSQLitePath,
		Target: Target{
			Kind:    "postgres",
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "app",
			Name:    "movies_database",
			SSLMode: "disable",
			Schema:  DefaultSchema,
			Policy:  "ignore",
		},
		Runtime: Runtime{ChunkSize: DefaultChunkSize},
		Logging: Logging{Level: "info"},
		Metrics: Metrics{Backend: "none", DatadogAddr: "127.0.0.1:8125"},
		Job:     DefaultJob,
	}
}

// Load reads envFile when it exists and then builds the configuration from
// the environment. An empty envFile means ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	e := env{lookup: lookup}

	c.SQLitePath = e.str("SQLITE_PATH", c.SQLitePath)

	c.Target.Kind = e.str("TARGET_KIND", c.Target.Kind)
	c.Target.DSN = e.str("TARGET_DSN", c.Target.DSN)
	c.Target.Host = e.str("DB_HOST", c.Target.Host)
	c.Target.Port = e.integer("DB_PORT", c.Target.Port)
	c.Target.User = e.str("DB_USER", c.Target.User)
	c.Target.Password = e.str("DB_PASSWORD", c.Target.Password)
	c.Target.Name = e.str("DB_NAME", c.Target.Name)
	c.Target.SSLMode = e.str("DB_SSLMODE", c.Target.SSLMode)
	c.Target.Schema = e.str("DB_SCHEMA", c.Target.Schema)
	c.Target.Policy = strings.ToLower(e.str("CONFLICT_POLICY", c.Target.Policy))

	c.Runtime.ChunkSize = e.integer("CHUNK_SIZE", c.Runtime.ChunkSize)
	c.Runtime.ConcurrentLevels = e.boolean("CONCURRENT_LEVELS", c.Runtime.ConcurrentLevels)
	if v := e.str("TABLES", ""); v != "" {
		c.Runtime.Tables = SplitList(v)
	}

	c.Logging.Level = strings.ToLower(e.str("LOG_LEVEL", c.Logging.Level))
	c.Logging.Pretty = e.boolean("LOG_PRETTY", c.Logging.Pretty)

	c.Metrics.Backend = strings.ToLower(e.str("METRICS_BACKEND", c.Metrics.Backend))
	c.Metrics.PushgatewayURL = e.str("PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
	c.Metrics.DatadogAddr = e.str("DD_AGENT_ADDR", c.Metrics.DatadogAddr)

	c.Job = e.str("JOB_NAME", c.Job)

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ConnString returns the DSN handed to the storage backend. An explicit DSN
// wins; otherwise a postgres URL is assembled from the individual fields.
func (t Target) ConnString() string {
	if t.DSN != "" || t.Kind != "postgres" {
		return t.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:   "/" + t.Name,
	}
	if t.Password != "" {
		u.User = url.UserPassword(t.User, t.Password)
	} else if t.User != "" {
		u.User = url.User(t.User)
	}
	if t.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {t.SSLMode}}.Encode()
	}
	return u.String()
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Target.Password != "" {
		c.Target.Password = "***"
	}
	if c.Target.DSN != "" {
		if u, err := url.Parse(c.Target.DSN); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "***")
				c.Target.DSN = u.String()
			}
		}
	}
	return c
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
		return def
	}
	return b
}
