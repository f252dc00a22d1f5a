package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func TestRecordTable_SuccessAndFailure(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordTable("jobA", "genre", nil, 2*time.Second)
	RecordTable("", "film_work", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 || len(fb.callsHistograms) != 2 {
		t.Fatalf("calls = %d counters, %d histograms; want 2 and 2", len(fb.callsCounters), len(fb.callsHistograms))
	}

	cc0 := fb.callsCounters[0]
	if cc0.name != TableTotal || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=%s, delta=1", cc0, TableTotal)
	}
	if cc0.labels["job"] != "jobA" || cc0.labels["table"] != "genre" || cc0.labels["status"] != StatusSuccess {
		t.Fatalf("counter[0].labels = %v", cc0.labels)
	}
	if h0 := fb.callsHistograms[0]; h0.name != TableDuration || h0.value < 1.999 || h0.value > 2.001 {
		t.Fatalf("hist[0] = %#v; want %s ~2.0", h0, TableDuration)
	}

	cc1 := fb.callsCounters[1]
	if cc1.labels["job"] != defaultJobLabel || cc1.labels["status"] != StatusFailure {
		t.Fatalf("counter[1].labels = %v; want default job and failure", cc1.labels)
	}
}

func TestRecordRowsAndChunks(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordRows("jobX", "genre", RowsRead, 3)
	RecordRows("jobX", "genre", RowsSkipped, 0) // ignored
	RecordRows("jobX", "genre", RowsWritten, 2)
	RecordChunks("jobX", "genre", 1)
	RecordChunks("jobX", "genre", -1) // ignored
	RecordMismatch("jobX", "person")

	if len(fb.callsCounters) != 4 {
		t.Fatalf("expected 4 counter calls, got %d", len(fb.callsCounters))
	}
	if c := fb.callsCounters[0]; c.name != RowsTotal || c.delta != 3 || c.labels["kind"] != RowsRead || c.labels["table"] != "genre" {
		t.Fatalf("counter[0] = %#v", c)
	}
	if c := fb.callsCounters[1]; c.delta != 2 || c.labels["kind"] != RowsWritten {
		t.Fatalf("counter[1] = %#v", c)
	}
	if c := fb.callsCounters[2]; c.name != ChunksTotal || c.delta != 1 {
		t.Fatalf("counter[2] = %#v", c)
	}
	if c := fb.callsCounters[3]; c.name != VerifyMismatch || c.labels["table"] != "person" {
		t.Fatalf("counter[3] = %#v", c)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)

	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
