package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the operator but does not block a run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config using JSON names (e.g.
// "target.policy", "runtime.chunk_size").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err folds the error issues into one error, or nil.
func Err(issues []Issue) error {
	var out []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			out = append(out, iss)
		}
	}
	return errors.Join(out...)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// knownTargets lists the storage kinds this binary ships.
var knownTargets = map[string]struct{}{
	"postgres": {},
	"sqlite":   {},
}

// Validate checks c and returns every issue found. It does not mutate c.
func Validate(c Config) []Issue {
	issues := structIssues(c)
	issues = append(issues, validateTarget(c.Target)...)
	issues = append(issues, validateRuntime(c.Runtime)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

// structIssues turns tag violations into issues.
func structIssues(c Config) []Issue {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path,
			Message:  ruleMessage(fe),
		})
	}
	return issues
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s=%v; must be one of: %s", fe.Field(), fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s=%v violates %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s=%v is not a valid %s", fe.Field(), fe.Value(), fe.Tag())
	}
}

func validateTarget(t Target) []Issue {
	var issues []Issue
	if t.Kind == "" {
		return issues
	}
	if _, ok := knownTargets[t.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "target.kind",
			Message:  fmt.Sprintf("unknown target kind %q; expected postgres or sqlite", t.Kind),
		})
		return issues
	}

	switch t.Kind {
	case "postgres":
		if t.DSN != "" {
			if t.Host != "" && t.Password != "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     "target.dsn",
					Message:  "dsn is set; host, port, user, password and name are ignored",
				})
			}
			break
		}
		if strings.TrimSpace(t.Host) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "target.host",
				Message:  "postgres target requires a host or an explicit dsn",
			})
		}
		if strings.TrimSpace(t.Name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "target.name",
				Message:  "postgres target requires a database name or an explicit dsn",
			})
		}
		if t.Port == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "target.port",
				Message:  "postgres target requires a port",
			})
		}
	case "sqlite":
		if strings.TrimSpace(t.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "target.dsn",
				Message:  "sqlite target requires a dsn (database file path)",
			})
		}
	}
	return issues
}

// validateRuntime flags settings that work but are likely mistakes.
func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.ChunkSize > 10000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.chunk_size",
			Message:  fmt.Sprintf("chunk_size=%d; large chunks hold one transaction open for long and are split into several statements", r.ChunkSize),
		})
	}
	if r.AllowPartial && len(r.Tables) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.allow_partial",
			Message:  "allow_partial has no effect without a table selection",
		})
	}
	seen := map[string]struct{}{}
	for i, name := range r.Tables {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("runtime.tables[%d]", i),
				Message:  fmt.Sprintf("table %q listed twice", name),
			})
		}
		seen[key] = struct{}{}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	if m.Backend == "pushgateway" && strings.TrimSpace(m.PushgatewayURL) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.pushgateway_url",
			Message:  "pushgateway backend requires PUSHGATEWAY_URL",
		}}
	}
	return nil
}
