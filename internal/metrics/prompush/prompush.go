// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A one-shot migration has nothing to scrape, so collected metrics are pushed
// to a Pushgateway when the run ends. The job label is the Pushgateway
// grouping key; every other label becomes a Prometheus label.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"moviesetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	tableCounter    *prometheus.CounterVec // moviesetl_table_total
	tableDuration   *prometheus.SummaryVec // moviesetl_table_duration_seconds
	rowCounter      *prometheus.CounterVec // moviesetl_rows_total
	chunkCounter    *prometheus.CounterVec // moviesetl_chunks_total
	mismatchCounter *prometheus.CounterVec // moviesetl_verify_mismatch_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "moviesetl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		tableCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TableTotal,
			Help: "Migrated tables, partitioned by table and status.",
		}, []string{"table", "status"}),
		tableDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.TableDuration,
			Help:       "Wall time per table migration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"table", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows per table and kind (read, written, skipped).",
		}, []string{"table", "kind"}),
		chunkCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ChunksTotal,
			Help: "Committed chunks per table.",
		}, []string{"table"}),
		mismatchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.VerifyMismatch,
			Help: "Tables whose source and target disagree after a run.",
		}, []string{"table"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"table counter":    b.tableCounter,
		"table summary":    b.tableDuration,
		"row counter":      b.rowCounter,
		"chunk counter":    b.chunkCounter,
		"mismatch counter": b.mismatchCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.TableTotal:
		if b.tableCounter != nil {
			b.tableCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["table"], labels["kind"]).Add(delta)
		}
	case metrics.ChunksTotal:
		if b.chunkCounter != nil {
			b.chunkCounter.WithLabelValues(labels["table"]).Add(delta)
		}
	case metrics.VerifyMismatch:
		if b.mismatchCounter != nil {
			b.mismatchCounter.WithLabelValues(labels["table"]).Add(delta)
		}
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.TableDuration || b.tableDuration == nil {
		return
	}
	b.tableDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
