// Package export renders stored datasets into downloadable artifacts and
// writes them to blob storage from a background worker.
package export

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"ampcore/internal/blob"
	"ampcore/internal/core"
	"ampcore/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names one rendering of a dataset.
type Format string

const (
	FormatAbundanceTSV Format = "abundance_tsv"
	FormatTaxonomyTSV  Format = "taxonomy_tsv"
	FormatMetadataTSV  Format = "metadata_tsv"
	FormatFASTA        Format = "fasta"
	FormatJSON         Format = "json"
)

// DefaultFormats is used when a request names none. FASTA is skipped for
// datasets without sequences.
var DefaultFormats = []Format{FormatAbundanceTSV, FormatTaxonomyTSV, FormatMetadataTSV, FormatFASTA, FormatJSON}

var fileNames = map[Format]string{
	FormatAbundanceTSV: "abundance.tsv",
	FormatTaxonomyTSV:  "taxonomy.tsv",
	FormatMetadataTSV:  "metadata.tsv",
	FormatFASTA:        "sequences.fasta",
	FormatJSON:         "dataset.json",
}

var contentTypes = map[Format]string{
	FormatAbundanceTSV: "text/tab-separated-values",
	FormatTaxonomyTSV:  "text/tab-separated-values",
	FormatMetadataTSV:  "text/tab-separated-values",
	FormatFASTA:        "text/x-fasta",
	FormatJSON:         "application/json",
}

// Artifact captures one stored rendering.
type Artifact struct {
	Key         string            `json:"key"`
	Format      Format            `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	ETag        string            `json:"etag,omitempty"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Dataset     string     `json:"dataset"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input is an enqueue request.
type Input struct {
	Dataset     string
	Formats     []Format
	RequestedBy string
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures one export status transition.
type AuditEntry struct {
	ExportID   string    `json:"export_id"`
	Dataset    string    `json:"dataset"`
	Actor      string    `json:"actor,omitempty"`
	Status     Status    `json:"status"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Worker executes dataset exports asynchronously on a single goroutine.
type Worker struct {
	datasets domain.DatasetStore
	store    blob.Store
	audit    AuditLogger
	logger   core.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// Option configures a Worker.
type Option func(*Worker)

// WithAuditLogger installs an audit sink.
func WithAuditLogger(audit AuditLogger) Option {
	return func(w *Worker) { w.audit = audit }
}

// WithLogger installs a structured logger.
func WithLogger(logger core.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize overrides the pending request capacity (default 32).
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// NewWorker constructs an export worker reading from datasets and writing to store.
func NewWorker(datasets domain.DatasetStore, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		datasets: datasets,
		store:    store,
		logger:   nopLogger{},
		queue:    make(chan task, 32),
		jobs:     make(map[string]*Record),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the current job to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// EnqueueExport validates the request and schedules it.
func (w *Worker) EnqueueExport(ctx context.Context, input Input) (Record, error) {
	if w.datasets == nil || w.store == nil {
		return Record{}, fmt.Errorf("export worker not configured")
	}
	name := strings.TrimSpace(input.Dataset)
	if name == "" {
		return Record{}, domain.NewInvalidInputError("dataset", "dataset name required")
	}
	if _, err := w.datasets.Load(ctx, name); err != nil {
		return Record{}, err
	}
	formats, err := normalizeFormats(input.Formats)
	if err != nil {
		return Record{}, err
	}

	now := time.Now().UTC()
	record := Record{
		ID:          newID(),
		Dataset:     name,
		Formats:     formats,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	input.Dataset = name

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.record(ctx, queued, StatusQueued, "", now)
	select {
	case w.queue <- task{id: record.ID, input: input}:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		w.record(ctx, queued, StatusFailed, "queue full", now)
		return Record{}, fmt.Errorf("export queue full")
	}
	w.logger.Info("export queued", "export", queued.ID, "dataset", name, "formats", len(formats))
	return queued, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (Record, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, domain.ErrNotFound{Entity: domain.EntityExport, ID: id}
	}
	return record.copy(), nil
}

func normalizeFormats(formats []Format) ([]Format, error) {
	if len(formats) == 0 {
		return slices.Clone(DefaultFormats), nil
	}
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		if _, ok := fileNames[f]; !ok {
			return nil, domain.NewInvalidInputError("formats", "unsupported export format %q", f)
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (w *Worker) process(t task) {
	w.update(t.id, StatusRunning, "")

	ds, err := w.datasets.Load(w.ctx, t.input.Dataset)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("load dataset: %v", err))
		return
	}

	formats := w.formatsFor(t.id)
	artifacts := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		if format == FormatFASTA && !ds.HasSequences() {
			continue
		}
		payload, rows, err := Render(format, ds)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		key := path.Join(t.id, fileNames[format])
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentTypes[format],
			Metadata: map[string]string{
				"dataset": t.input.Dataset,
				"format":  string(format),
				"rows":    strconv.Itoa(rows),
			},
		})
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store %s: %v", key, err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: contentTypes[format],
			SizeBytes:   int64(len(payload)),
			ETag:        info.ETag,
			URL:         info.URL,
			Metadata:    info.Metadata,
			CreatedAt:   info.LastModified,
		})
	}
	w.complete(t.id, artifacts)
}

func (w *Worker) formatsFor(id string) []Format {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return slices.Clone(record.Formats)
	}
	return nil
}

func (w *Worker) update(id string, status Status, note string) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = status
		record.Error = note
		record.UpdatedAt = now
	}
	var snapshot Record
	if ok {
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.record(w.ctx, snapshot, status, note, now)
	}
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	var snapshot Record
	if ok {
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.record(w.ctx, snapshot, StatusSucceeded, "", now)
		w.logger.Info("export succeeded", "export", id, "artifacts", len(artifacts))
	}
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	var snapshot Record
	if ok {
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.record(w.ctx, snapshot, StatusFailed, reason, now)
		w.logger.Error("export failed", "export", id, "error", reason)
	}
}

func (w *Worker) record(ctx context.Context, r Record, status Status, note string, at time.Time) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ExportID:   r.ID,
		Dataset:    r.Dataset,
		Actor:      r.RequestedBy,
		Status:     status,
		Note:       note,
		OccurredAt: at,
	})
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = slices.Clone(r.Formats)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = make([]Artifact, len(r.Artifacts))
		for i, a := range r.Artifacts {
			a.Metadata = cloneStrings(a.Metadata)
			dup.Artifacts[i] = a
		}
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// MemoryAuditLog captures audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Render produces the payload for format and the number of data rows it holds.
func Render(format Format, ds domain.Dataset) ([]byte, int, error) {
	switch format {
	case FormatAbundanceTSV:
		return renderAbundance(ds.Abundance)
	case FormatTaxonomyTSV:
		return renderTaxonomy(ds.Taxonomy)
	case FormatMetadataTSV:
		return renderMetadata(ds.Metadata)
	case FormatFASTA:
		return renderFASTA(ds.Sequences)
	case FormatJSON:
		payload, err := json.MarshalIndent(ds, "", "  ")
		if err != nil {
			return nil, 0, fmt.Errorf("marshal json: %w", err)
		}
		return payload, ds.Abundance.Rows(), nil
	default:
		return nil, 0, fmt.Errorf("unsupported export format %s", format)
	}
}

func newTSV(buf *bytes.Buffer) *csv.Writer {
	w := csv.NewWriter(buf)
	w.Comma = '\t'
	return w
}

func renderAbundance(m domain.AbundanceMatrix) ([]byte, int, error) {
	buf := &bytes.Buffer{}
	w := newTSV(buf)
	if err := w.Write(append([]string{string(domain.RankFeature)}, m.SampleIDs...)); err != nil {
		return nil, 0, err
	}
	for i, id := range m.FeatureIDs {
		row := make([]string, 0, len(m.SampleIDs)+1)
		row = append(row, id)
		for _, v := range m.Counts[i] {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return nil, 0, err
		}
	}
	w.Flush()
	return buf.Bytes(), m.Rows(), w.Error()
}

func renderTaxonomy(t domain.TaxonomyTable) ([]byte, int, error) {
	buf := &bytes.Buffer{}
	w := newTSV(buf)
	header := []string{string(domain.RankFeature)}
	for _, rank := range domain.Ranks {
		header = append(header, string(rank))
	}
	if err := w.Write(header); err != nil {
		return nil, 0, err
	}
	for _, r := range t.Rows {
		row := []string{r.FeatureID}
		for _, rank := range domain.Ranks {
			row = append(row, r.Value(rank))
		}
		if err := w.Write(row); err != nil {
			return nil, 0, err
		}
	}
	w.Flush()
	return buf.Bytes(), t.Len(), w.Error()
}

func renderMetadata(m domain.SampleMetadata) ([]byte, int, error) {
	buf := &bytes.Buffer{}
	w := newTSV(buf)
	if err := w.Write(append([]string{"SampleID"}, m.Variables...)); err != nil {
		return nil, 0, err
	}
	for _, rec := range m.Records {
		row := make([]string, 0, len(m.Variables)+1)
		row = append(row, rec.SampleID)
		for _, v := range m.Variables {
			row = append(row, rec.Values[v])
		}
		if err := w.Write(row); err != nil {
			return nil, 0, err
		}
	}
	w.Flush()
	return buf.Bytes(), m.Len(), w.Error()
}

func renderFASTA(seqs domain.SequenceCollection) ([]byte, int, error) {
	records := domain.SequenceRecords(seqs)
	if records == nil {
		return nil, 0, fmt.Errorf("dataset has no reference sequences")
	}
	buf := &bytes.Buffer{}
	for _, rec := range records {
		buf.WriteString(">")
		buf.WriteString(rec.ID)
		buf.WriteString("\n")
		for residues := rec.Residues; len(residues) > 0; {
			n := min(len(residues), 60)
			buf.WriteString(residues[:n])
			buf.WriteString("\n")
			residues = residues[n:]
		}
	}
	return buf.Bytes(), len(records), nil
}
