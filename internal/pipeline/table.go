package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"moviesetl/internal/errs"
	"moviesetl/internal/mapper"
	"moviesetl/internal/metrics"
	"moviesetl/internal/schema"
)

// runTable streams, maps and writes one table chunk by chunk. Progress is
// logged after every committed chunk with running totals and rows/sec since
// the previous chunk.
func (o *Orchestrator) runTable(ctx context.Context, t schema.Table) (tr TableReport, err error) {
	tr = TableReport{Table: t.SourceName()}
	start := time.Now()
	log := o.logger.With(zap.String("table", tr.Table))

	defer func() {
		tr.Duration = time.Since(start)
		metrics.RecordTable(o.job, tr.Table, err, tr.Duration)
	}()

	if err := ctx.Err(); err != nil {
		return tr, errs.New(errs.KindCanceled, t.Name, 0, err)
	}

	log.Info("table started", zap.Strings("parents", t.Parents))

	m := mapper.New(t, mapper.WithClock(o.clock))
	lastFlush := start
	var lastTotal int64

	for chunk, err := range o.src.Chunks(ctx, t) {
		if err != nil {
			return tr, errs.WithContext(err, errs.KindConnectivity, t.Name, tr.Chunks)
		}

		recs, err := m.MapChunk(chunk.Rows)
		if err != nil {
			return tr, errs.Mapping(t.Name, chunk.Index, err)
		}
		tr.Read += int64(len(chunk.Rows))
		metrics.RecordRows(o.job, tr.Table, metrics.RowsRead, int64(len(chunk.Rows)))

		// The chunk is committed or rolled back as a whole even when ctx is
		// canceled meanwhile; the source stops at the next boundary.
		n, err := o.dst.WriteChunk(context.WithoutCancel(ctx), t, recs)
		if err != nil {
			return tr, errs.WithContext(err, errs.KindWrite, t.Name, chunk.Index)
		}
		tr.Written += n
		tr.Chunks++
		metrics.RecordRows(o.job, tr.Table, metrics.RowsWritten, n)
		metrics.RecordRows(o.job, tr.Table, metrics.RowsSkipped, int64(len(recs))-n)
		metrics.RecordChunks(o.job, tr.Table, 1)

		now := time.Now()
		sinceLast := now.Sub(lastFlush)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(tr.Written-lastTotal) / sinceLast.Seconds()
		}
		log.Debug("chunk committed",
			zap.Int("chunk", chunk.Index),
			zap.Int("rows", len(recs)),
			zap.Int64("written", n),
			zap.Int64("total_written", tr.Written),
			zap.Float64("rps", rps),
			zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
		)
		lastFlush, lastTotal = now, tr.Written
	}

	log.Info("table finished",
		zap.Int64("read", tr.Read),
		zap.Int64("written", tr.Written),
		zap.Int64("skipped", tr.Skipped()),
		zap.Int("chunks", tr.Chunks),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
	return tr, nil
}
