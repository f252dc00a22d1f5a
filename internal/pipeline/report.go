package pipeline

import "time"

// TableReport summarizes the migration of one table.
type TableReport struct {
	// Table is the source/target table name, e.g. "film_work".
	Table    string
	Read     int64
	Written  int64
	Chunks   int
	Duration time.Duration
}

// Skipped counts rows that were read but not written, i.e. ids already
// present in the target under the ignore policy.
func (r TableReport) Skipped() int64 { return r.Read - r.Written }

// Report summarizes a run.
type Report struct {
	Tables   []TableReport
	Duration time.Duration
}

// Totals sums read and written rows over all tables.
func (r Report) Totals() (read, written int64) {
	for _, t := range r.Tables {
		read += t.Read
		written += t.Written
	}
	return read, written
}

// Table returns the report of the named table.
func (r Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableReport{}, false
}
