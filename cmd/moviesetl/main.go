// Command moviesetl copies the movies catalogue from the legacy SQLite file
// into Postgres and checks the result.
//
//	moviesetl migrate [--chunk-size 100] [--policy ignore|update] [--tables genre,person]
//	moviesetl verify
//	moviesetl config [--validate]
//
// Settings come from the environment (and .env); flags override them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"moviesetl/internal/config"
	"moviesetl/internal/errs"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

// errMismatch is returned by verify when source and target differ.
var errMismatch = errors.New("source and target differ")

// errInvalidConfig is returned when validation reports errors.
var errInvalidConfig = errors.New("configuration is invalid")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and maps the outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, diagnostic(err))
	if errors.Is(err, errInvalidConfig) {
		return exitConfig
	}
	return exitFailure
}

// diagnostic renders err as one line naming kind, table and chunk when known.
func diagnostic(err error) string {
	var e *errs.Error
	if !errors.As(err, &e) {
		return "moviesetl: " + err.Error()
	}
	msg := "moviesetl: " + string(e.Kind) + " failure"
	if e.Table != "" {
		msg += " in table " + e.Table
	}
	if e.Chunk != errs.NoChunk {
		msg += fmt.Sprintf(" at chunk %d", e.Chunk)
	}
	return msg + ": " + err.Error()
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile    string
	sqlitePath string
	targetKind string
	targetDSN  string
	schema     string
	logLevel   string
	logPretty  bool
	metrics    string
	job        string
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "moviesetl",
		Short:         "Migrate the movies catalogue from SQLite to Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&g.sqlitePath, "sqlite", "", "source SQLite file (overrides SQLITE_PATH)")
	pf.StringVar(&g.targetKind, "target", "", "target kind: postgres or sqlite (overrides TARGET_KIND)")
	pf.StringVar(&g.targetDSN, "dsn", "", "target DSN (overrides TARGET_DSN and DB_*)")
	pf.StringVar(&g.schema, "schema", "", "target schema (overrides DB_SCHEMA)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	pf.BoolVar(&g.logPretty, "log-pretty", false, "human readable console logs")
	pf.StringVar(&g.metrics, "metrics-backend", "", "none, pushgateway or datadog (overrides METRICS_BACKEND)")
	pf.StringVar(&g.job, "job", "", "job name for metrics (overrides JOB_NAME)")

	root.AddCommand(newMigrateCmd(&g), newVerifyCmd(&g), newConfigCmd(&g))
	return root
}

// load reads the configuration and applies the flags that were set.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.envFile)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("sqlite", &cfg.SQLitePath, g.sqlitePath)
	set("target", &cfg.Target.Kind, g.targetKind)
	set("dsn", &cfg.Target.DSN, g.targetDSN)
	set("schema", &cfg.Target.Schema, g.schema)
	set("log-level", &cfg.Logging.Level, g.logLevel)
	set("metrics-backend", &cfg.Metrics.Backend, g.metrics)
	set("job", &cfg.Job, g.job)
	if flags.Changed("log-pretty") {
		cfg.Logging.Pretty = g.logPretty
	}
	return cfg, nil
}

// checked loads the configuration and validates it.
func (g *globalFlags) checked(cmd *cobra.Command) (config.Config, error) {
	cfg, err := g.load(cmd)
	if err != nil {
		return cfg, err
	}
	return cfg, g.validate(cmd, cfg)
}

// validate prints every issue to stderr and fails on errors.
func (g *globalFlags) validate(cmd *cobra.Command, cfg config.Config) error {
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("%w: %v", errInvalidConfig, config.Err(issues))
	}
	return nil
}
