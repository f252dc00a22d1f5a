// Package mapper converts raw source rows into typed records.
//
// A Mapper compiles a per-column coercion plan once per table, then applies it
// positionally: the n-th raw value fills the n-th declared column. NULL values
// receive the column's documented default, a fresh id (id columns) or the
// mapping time (timestamp columns). Mapping never consults a store.
package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"moviesetl/internal/schema"
)

// RawRow is one source row projected to the table's declared column order.
type RawRow []any

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// Mapper maps raw rows of one table.
type Mapper struct {
	table schema.Table
	plan  []coercer
	clock Clock
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithClock overrides the time source used to stamp missing timestamps.
func WithClock(c Clock) Option {
	return func(m *Mapper) {
		if c != nil {
			m.clock = c
		}
	}
}

// New compiles the coercion plan for t.
func New(t schema.Table, opts ...Option) *Mapper {
	m := &Mapper{
		table: t,
		plan:  compilePlan(t.Columns),
		clock: time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Table returns the table this mapper was compiled for.
func (m *Mapper) Table() schema.Table { return m.table }

// Map converts one raw row into a record.
func (m *Mapper) Map(raw RawRow) (schema.Record, error) {
	return m.mapAt(raw, m.clock().UTC())
}

// MapChunk converts a whole chunk. Missing timestamps of one chunk share a
// single mapping time.
func (m *Mapper) MapChunk(rows []RawRow) ([]schema.Record, error) {
	now := m.clock().UTC()
	out := make([]schema.Record, 0, len(rows))
	for i, raw := range rows {
		rec, err := m.mapAt(raw, now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Mapper) mapAt(raw RawRow, now time.Time) (schema.Record, error) {
	if len(raw) != len(m.plan) {
		return nil, &Error{
			Table:  m.table.Name,
			Reason: fmt.Sprintf("row has %d values, table declares %d columns", len(raw), len(m.plan)),
		}
	}
	vals := make([]any, len(raw))
	for i, v := range raw {
		out, err := m.plan[i].coerce(v, now)
		if err != nil {
			return nil, &Error{Table: m.table.Name, Column: m.table.Columns[i].Name, Reason: err.Error()}
		}
		vals[i] = out
	}
	return m.table.Build(vals), nil
}

// Error describes a row that cannot be mapped.
type Error struct {
	Table  string
	Column string
	Reason string
}

func (e *Error) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("mapper: %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("mapper: %s.%s: %s", e.Table, e.Column, e.Reason)
}

// --- plan compilation ---------------------------------------------------------

type coercer struct {
	coerce func(v any, now time.Time) (any, error)
}

func compilePlan(cols []schema.Column) []coercer {
	plan := make([]coercer, len(cols))
	for i, c := range cols {
		c := c
		conv := converterFor(c.Kind)
		plan[i].coerce = func(v any, now time.Time) (any, error) {
			if v == nil {
				return nullValue(c, now)
			}
			out, err := conv(v)
			if err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	return plan
}

// nullValue resolves a NULL source value for column c.
func nullValue(c schema.Column, now time.Time) (any, error) {
	switch {
	case c.Default != nil:
		return c.Default, nil
	case c.Nullable:
		return nil, nil
	case c.Name == schema.KeyColumn && c.Kind == schema.KindUUID:
		return uuid.New(), nil
	case c.Kind == schema.KindTimestamp:
		return now, nil
	default:
		return nil, fmt.Errorf("NULL value for non-nullable %s column", c.Kind)
	}
}

func converterFor(k schema.Kind) func(any) (any, error) {
	switch k {
	case schema.KindUUID:
		return toUUID
	case schema.KindFloat:
		return toFloat
	case schema.KindDate:
		return toDate
	case schema.KindTimestamp:
		return toTimestamp
	default:
		return toText
	}
}

func toUUID(v any) (any, error) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	case string:
		return parseUUID(t)
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return parseUUID(string(t))
	default:
		return nil, fmt.Errorf("cannot use %T as uuid", v)
	}
}

func parseUUID(s string) (any, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return id, nil
}

func toText(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return nil, fmt.Errorf("cannot use %T as text", v)
	}
}

func toFloat(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		return parseFloat(t)
	case []byte:
		return parseFloat(string(t))
	default:
		return nil, fmt.Errorf("cannot use %T as float", v)
	}
}

func parseFloat(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty string is not a number")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func toDate(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case string:
		return parseDate(t)
	case []byte:
		return parseDate(string(t))
	default:
		return nil, fmt.Errorf("cannot use %T as date", v)
	}
}

// parseDate accepts ISO dates, optionally followed by a time part which is
// dropped.
func parseDate(s string) (any, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if d, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return d, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}

// timestampLayouts are tried in order; SQLite stores timestamps as text in
// whatever shape the writer used.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.DateOnly,
}

func toTimestamp(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimestamp(t)
	case []byte:
		return parseTimestamp(string(t))
	default:
		return nil, fmt.Errorf("cannot use %T as timestamp", v)
	}
}

func parseTimestamp(s string) (any, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}
