package datadog

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"moviesetl/internal/metrics"
)

// fakeClient captures the calls the backend makes; the embedded interface
// panics on anything else.
type fakeClient struct {
	statsd.ClientInterface
	counts  map[string]int64
	tags    map[string][]string
	samples map[string][]float64
	flushed bool
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		counts:  map[string]int64{},
		tags:    map[string][]string{},
		samples: map[string][]float64{},
	}
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.counts[name] += value
	f.tags[name] = tags
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, rate float64) error {
	f.samples[name] = append(f.samples[name], value)
	return nil
}

func (f *fakeClient) Flush() error { f.flushed = true; return nil }
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend() without Addr should fail")
	}
}

func TestBackend_RecordsThroughMetricsHelpers(t *testing.T) {
	fc := newFakeClient()
	b := &Backend{client: fc}

	b.IncCounter(metrics.RowsTotal, 100, metrics.Labels{"table": "genre", "kind": "read", "job": "movies"})
	b.IncCounter(metrics.RowsTotal, 50, metrics.Labels{"table": "genre", "kind": "read", "job": "movies"})
	b.ObserveHistogram(metrics.TableDuration, (1500 * time.Millisecond).Seconds(), metrics.Labels{"table": "genre"})

	if got := fc.counts["moviesetl.rows.total"]; got != 150 {
		t.Fatalf("rows count = %d, want 150", got)
	}
	want := []string{"job:movies", "kind:read", "table:genre"}
	got := fc.tags["moviesetl.rows.total"]
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags = %v, want %v", got, want)
		}
	}
	if s := fc.samples["moviesetl.table.duration.seconds"]; len(s) != 1 || s[0] != 1.5 {
		t.Fatalf("duration samples = %v", s)
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !fc.flushed || !fc.closed {
		t.Fatalf("Flush() should flush and close the client")
	}
}

func TestBackend_NilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.ChunksTotal, 1, nil)
	b.ObserveHistogram(metrics.TableDuration, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}
