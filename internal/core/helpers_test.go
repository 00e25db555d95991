package core

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"ampcore/pkg/domain"
)

// sampleDataset returns four features over three samples:
//
//	F1 p__A          [10  0  4]
//	F2 p__B          [ 5  5  0]
//	F3 g__X          [ 0  5  0]
//	F4 p__B / g__Y   [ 5  0  0]
func sampleDataset(t *testing.T) Dataset {
	t.Helper()
	seqs, err := domain.NewReferenceSequences([]domain.SequenceRecord{
		{ID: "F4", Residues: "AAAA"},
		{ID: "F3", Residues: "CCCC"},
		{ID: "F1", Residues: "GGGG"},
	})
	if err != nil {
		t.Fatalf("sequences: %v", err)
	}
	ds, err := domain.NewDataset(
		AbundanceMatrix{
			FeatureIDs: []string{"F1", "F2", "F3", "F4"},
			SampleIDs:  []string{"S1", "S2", "S3"},
			Counts:     [][]float64{{10, 0, 4}, {5, 5, 0}, {0, 5, 0}, {5, 0, 0}},
		},
		TaxonomyTable{Rows: []TaxonomyRow{
			{FeatureID: "F1", Kingdom: "k__Bacteria", Phylum: "p__A"},
			{FeatureID: "F2", Kingdom: "k__Bacteria", Phylum: "p__B"},
			{FeatureID: "F3", Kingdom: "k__Bacteria", Genus: "g__X"},
			{FeatureID: "F4", Kingdom: "k__Bacteria", Phylum: "p__B", Genus: "g__Y"},
		}},
		SampleMetadata{
			Variables: []string{"site"},
			Records: []domain.SampleRecord{
				{SampleID: "S1", Values: map[string]string{"site": "inlet"}},
				{SampleID: "S2", Values: map[string]string{"site": "outlet"}},
				{SampleID: "S3", Values: map[string]string{"site": "inlet"}},
			},
		},
		seqs,
	)
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	return ds
}

func featureIDs(ds Dataset) []string { return ds.Taxonomy.FeatureIDs() }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func assertColumnsSumTo100(t *testing.T, m AbundanceMatrix) {
	t.Helper()
	for j, total := range m.ColumnTotals() {
		if total != 0 && !approx(total, 100) {
			t.Fatalf("column %s sums to %v", m.SampleIDs[j], total)
		}
	}
}

func assertRowConsistent(t *testing.T, ds Dataset) {
	t.Helper()
	if err := domain.ValidateDataset(ds); err != nil {
		t.Fatalf("dataset inconsistent: %v", err)
	}
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

// stepClock advances by step on every call.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type failingStore struct {
	DatasetStore
	saveErr error
}

func (f failingStore) Save(context.Context, string, Dataset) error {
	return fmt.Errorf("wrapped: %w", f.saveErr)
}
