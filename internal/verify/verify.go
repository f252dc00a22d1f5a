// Package verify compares a migrated target against its source.
//
// For every table it compares row counts and a per-row xxh3 fingerprint over
// the columns carried from the source. Audit timestamps are excluded since the
// migration may stamp them. Both sides are normalized through the row mapper
// so source NULLs compare equal to the defaults written in their place.
package verify

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"moviesetl/internal/errs"
	"moviesetl/internal/mapper"
	"moviesetl/internal/metrics"
	"moviesetl/internal/schema"
	"moviesetl/internal/source"
)

// Source is the side the migration read from.
type Source interface {
	Chunks(ctx context.Context, t schema.Table) iter.Seq2[source.Chunk, error]
	Count(ctx context.Context, t schema.Table) (int64, error)
}

// Target is the side the migration wrote to.
type Target interface {
	Count(ctx context.Context, t schema.Table) (int64, error)
	Scan(ctx context.Context, t schema.Table, fn func([]any) error) error
}

// Mismatch reasons.
const (
	ReasonMissing = "missing in target"
	ReasonExtra   = "not in source"
	ReasonDiffers = "values differ"
)

// TableResult is the comparison of one table.
type TableResult struct {
	Table        string
	SourceRows   int64
	TargetRows   int64
	SourceDigest uint64
	TargetDigest uint64
	// FirstID is the lowest id that differs, with the reason. Empty when the
	// table matches.
	FirstID string
	Reason  string
}

// Match reports whether both sides hold the same rows.
func (r TableResult) Match() bool {
	return r.SourceRows == r.TargetRows && r.SourceDigest == r.TargetDigest && r.FirstID == ""
}

// Result is the outcome of a verification run.
type Result struct {
	Tables []TableResult
}

// OK reports whether every table matched.
func (r Result) OK() bool {
	for _, t := range r.Tables {
		if !t.Match() {
			return false
		}
	}
	return true
}

// Mismatches returns the tables that differ.
func (r Result) Mismatches() []TableResult {
	var out []TableResult
	for _, t := range r.Tables {
		if !t.Match() {
			out = append(out, t)
		}
	}
	return out
}

type options struct {
	logger *zap.Logger
	job    string
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithJobName sets the job label reported to metrics.
func WithJobName(job string) Option { return func(o *options) { o.job = job } }

// Run verifies every table of reg. A mismatch is not an error; inspect
// Result.OK. Errors are returned only when a side cannot be read.
func Run(ctx context.Context, src Source, dst Target, reg *schema.Registry, opts ...Option) (Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.Named("verify")

	var res Result
	for _, t := range reg.Tables() {
		tr, err := verifyTable(ctx, src, dst, t)
		if err != nil {
			return res, err
		}
		res.Tables = append(res.Tables, tr)
		if tr.Match() {
			log.Info("table matches", zap.String("table", tr.Table), zap.Int64("rows", tr.SourceRows))
			continue
		}
		metrics.RecordMismatch(o.job, tr.Table)
		log.Warn("table differs",
			zap.String("table", tr.Table),
			zap.Int64("source_rows", tr.SourceRows),
			zap.Int64("target_rows", tr.TargetRows),
			zap.String("first_id", tr.FirstID),
			zap.String("reason", tr.Reason),
		)
	}
	return res, nil
}

func verifyTable(ctx context.Context, src Source, dst Target, t schema.Table) (TableResult, error) {
	tr := TableResult{Table: t.SourceName()}

	var err error
	if tr.SourceRows, err = src.Count(ctx, t); err != nil {
		return tr, errs.WithContext(err, errs.KindConnectivity, t.Name, errs.NoChunk)
	}
	if tr.TargetRows, err = dst.Count(ctx, t); err != nil {
		return tr, errs.WithContext(err, errs.KindConnectivity, t.Name, errs.NoChunk)
	}

	// Audit columns are excluded, so the clock never affects a digest.
	m := mapper.New(t)
	fp := newFingerprinter(t)

	want := make(map[uuid.UUID]uint64, tr.SourceRows)
	for chunk, err := range src.Chunks(ctx, t) {
		if err != nil {
			return tr, errs.WithContext(err, errs.KindConnectivity, t.Name, errs.NoChunk)
		}
		recs, err := m.MapChunk(chunk.Rows)
		if err != nil {
			return tr, errs.Mapping(t.Name, chunk.Index, err)
		}
		for _, rec := range recs {
			h := fp.hash(rec.Values())
			want[rec.Key()] = h
			tr.SourceDigest += h
		}
	}

	var first *uuid.UUID
	note := func(id uuid.UUID, reason string) {
		if first == nil || id.String() < first.String() {
			first = &id
			tr.Reason = reason
		}
	}

	err = dst.Scan(ctx, t, func(vals []any) error {
		rec, err := m.Map(mapper.RawRow(vals))
		if err != nil {
			return errs.Mapping(t.Name, errs.NoChunk, err)
		}
		h := fp.hash(rec.Values())
		tr.TargetDigest += h

		id := rec.Key()
		sh, ok := want[id]
		switch {
		case !ok:
			note(id, ReasonExtra)
		case sh != h:
			note(id, ReasonDiffers)
		}
		delete(want, id)
		return nil
	})
	if err != nil {
		return tr, errs.WithContext(err, errs.KindConnectivity, t.Name, errs.NoChunk)
	}
	for id := range want {
		note(id, ReasonMissing)
	}
	if first != nil {
		tr.FirstID = first.String()
	}
	return tr, nil
}

// fingerprinter hashes the non-audit values of a record.
type fingerprinter struct {
	cols  []int
	kinds []schema.Kind
	buf   []byte
}

func newFingerprinter(t schema.Table) *fingerprinter {
	f := &fingerprinter{}
	for i, c := range t.Columns {
		if c.Audit {
			continue
		}
		f.cols = append(f.cols, i)
		f.kinds = append(f.kinds, c.Kind)
	}
	return f
}

const (
	tagNull  = 0x00
	tagValue = 0x01
	sep      = 0x1f
)

func (f *fingerprinter) hash(vals []any) uint64 {
	f.buf = f.buf[:0]
	for i, idx := range f.cols {
		f.buf = appendValue(f.buf, f.kinds[i], vals[idx])
		f.buf = append(f.buf, sep)
	}
	return xxh3.Hash(f.buf)
}

func appendValue(b []byte, k schema.Kind, v any) []byte {
	if v == nil {
		return append(b, tagNull)
	}
	b = append(b, tagValue)
	switch t := v.(type) {
	case uuid.UUID:
		return append(b, t.String()...)
	case string:
		return append(b, t...)
	case float64:
		return strconv.AppendFloat(b, t, 'g', -1, 64)
	case time.Time:
		if k == schema.KindDate {
			return t.UTC().AppendFormat(b, time.DateOnly)
		}
		return t.UTC().AppendFormat(b, time.RFC3339Nano)
	default:
		return fmt.Append(b, t)
	}
}
