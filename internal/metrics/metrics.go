// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the migration.
//
// A global, pluggable backend defaults to a no-op implementation, so metrics
// are always safe to call even when no real backend is configured. Concrete
// metric systems live in subpackages (prompush, datadog) and mirror the
// storage factory pattern: the rest of the code depends on Backend only.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	TableTotal      = "moviesetl_table_total"
	TableDuration   = "moviesetl_table_duration_seconds"
	RowsTotal       = "moviesetl_rows_total"
	ChunksTotal     = "moviesetl_chunks_total"
	VerifyMismatch  = "moviesetl_verify_mismatch_total"
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	RowsRead        = "read"
	RowsWritten     = "written"
	RowsSkipped     = "skipped"
	defaultJobLabel = "moviesetl"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. Call it before the run starts; it is not synchronized with
// concurrent recording.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func jobLabel(job string) string {
	if job == "" {
		return defaultJobLabel
	}
	return job
}

// RecordTable counts one finished table migration and its duration.
func RecordTable(job, table string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	lbls := Labels{
		"job":    jobLabel(job),
		"table":  table,
		"status": status,
	}
	backend.IncCounter(TableTotal, 1, lbls)
	backend.ObserveHistogram(TableDuration, d.Seconds(), lbls)
}

// RecordRows increments the row counter of table for kind (read, written,
// skipped). Non-positive deltas are ignored.
func RecordRows(job, table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":   jobLabel(job),
		"table": table,
		"kind":  kind,
	})
}

// RecordChunks increments the committed chunk counter of table.
func RecordChunks(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(ChunksTotal, float64(delta), Labels{
		"job":   jobLabel(job),
		"table": table,
	})
}

// RecordMismatch counts a table whose source and target disagree.
func RecordMismatch(job, table string) {
	backend.IncCounter(VerifyMismatch, 1, Labels{
		"job":   jobLabel(job),
		"table": table,
	})
}
