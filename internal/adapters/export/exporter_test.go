package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ampcore/internal/blob"
	"ampcore/internal/infra/persistence/memory"
	"ampcore/pkg/domain"
)

func newDataset(t *testing.T, withSeqs bool) domain.Dataset {
	t.Helper()
	var seqs domain.SequenceCollection
	if withSeqs {
		rs, err := domain.NewReferenceSequences([]domain.SequenceRecord{
			{ID: "F1", Residues: strings.Repeat("A", 70)},
			{ID: "F2", Residues: "CGT"},
		})
		if err != nil {
			t.Fatalf("sequences: %v", err)
		}
		seqs = rs
	}
	ds, err := domain.NewDataset(
		domain.AbundanceMatrix{FeatureIDs: []string{"F1", "F2"}, SampleIDs: []string{"S1", "S2"}, Counts: [][]float64{{10, 0}, {2.5, 5}}},
		domain.TaxonomyTable{Rows: []domain.TaxonomyRow{
			{FeatureID: "F1", Kingdom: "k__Bacteria", Phylum: "p__A"},
			{FeatureID: "F2", Kingdom: "k__Bacteria", Phylum: "p__B", Genus: "g__X"},
		}},
		domain.SampleMetadata{Variables: []string{"site"}, Records: []domain.SampleRecord{
			{SampleID: "S1", Values: map[string]string{"site": "inlet"}},
			{SampleID: "S2", Values: map[string]string{"site": "outlet"}},
		}},
		seqs,
	)
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return ds
}

func newWorker(t *testing.T, opts ...Option) (*Worker, *memory.Store, blob.Store) {
	t.Helper()
	datasets := memory.NewStore()
	store := blob.NewMemory()
	w := NewWorker(datasets, store, opts...)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w, datasets, store
}

func waitFor(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := w.GetExport(id)
		if err != nil {
			t.Fatalf("get export: %v", err)
		}
		if rec.Status == StatusSucceeded || rec.Status == StatusFailed {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return Record{}
}

func TestWorkerExportsAllFormats(t *testing.T) {
	ctx := context.Background()
	audit := &MemoryAuditLog{}
	w, datasets, store := newWorker(t, WithAuditLogger(audit))
	if err := datasets.Save(ctx, "soil", newDataset(t, true)); err != nil {
		t.Fatalf("save: %v", err)
	}

	queued, err := w.EnqueueExport(ctx, Input{Dataset: " soil ", RequestedBy: "analyst"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued || queued.Dataset != "soil" || len(queued.Formats) != len(DefaultFormats) {
		t.Fatalf("unexpected queued record %+v", queued)
	}

	rec := waitFor(t, w, queued.ID)
	if rec.Status != StatusSucceeded || rec.CompletedAt == nil {
		t.Fatalf("expected success, got %+v", rec)
	}
	if len(rec.Artifacts) != 5 {
		t.Fatalf("expected 5 artifacts, got %d", len(rec.Artifacts))
	}
	for _, a := range rec.Artifacts {
		if !strings.HasPrefix(a.Key, queued.ID+"/") || a.Metadata["dataset"] != "soil" {
			t.Fatalf("unexpected artifact %+v", a)
		}
	}

	_, rc, err := store.Get(ctx, queued.ID+"/abundance.tsv")
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "OTU\tS1\tS2\nF1\t10\t0\nF2\t2.5\t5\n" {
		t.Fatalf("unexpected abundance artifact %q", body)
	}

	var statuses []Status
	for _, e := range audit.Entries() {
		if e.ExportID == queued.ID {
			statuses = append(statuses, e.Status)
			if e.Actor != "analyst" {
				t.Fatalf("unexpected actor %q", e.Actor)
			}
		}
	}
	want := []Status{StatusQueued, StatusRunning, StatusSucceeded}
	if len(statuses) != len(want) {
		t.Fatalf("audit statuses %v", statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("audit statuses %v", statuses)
		}
	}
}

func TestWorkerSkipsFASTAWithoutSequences(t *testing.T) {
	ctx := context.Background()
	w, datasets, store := newWorker(t)
	if err := datasets.Save(ctx, "water", newDataset(t, false)); err != nil {
		t.Fatalf("save: %v", err)
	}
	queued, err := w.EnqueueExport(ctx, Input{Dataset: "water", Formats: []Format{FormatFASTA, FormatJSON, FormatJSON}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(queued.Formats) != 2 {
		t.Fatalf("duplicate formats not collapsed: %v", queued.Formats)
	}
	rec := waitFor(t, w, queued.ID)
	if rec.Status != StatusSucceeded || len(rec.Artifacts) != 1 || rec.Artifacts[0].Format != FormatJSON {
		t.Fatalf("unexpected record %+v", rec)
	}
	infos, err := store.List(ctx, queued.ID+"/")
	if err != nil || len(infos) != 1 || infos[0].Key != queued.ID+"/dataset.json" {
		t.Fatalf("stored artifacts %+v err %v", infos, err)
	}
}

func TestWorkerFailsWhenArtifactExists(t *testing.T) {
	ctx := context.Background()
	audit := &MemoryAuditLog{}
	datasets := memory.NewStore()
	store := blob.NewMemory()
	if err := datasets.Save(ctx, "soil", newDataset(t, false)); err != nil {
		t.Fatalf("save: %v", err)
	}
	w := NewWorker(datasets, store, WithAuditLogger(audit))
	queued, err := w.EnqueueExport(ctx, Input{Dataset: "soil", Formats: []Format{FormatTaxonomyTSV}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.Put(ctx, queued.ID+"/taxonomy.tsv", strings.NewReader("taken"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	rec := waitFor(t, w, queued.ID)
	if rec.Status != StatusFailed || !strings.Contains(rec.Error, "already exists") {
		t.Fatalf("expected failure, got %+v", rec)
	}
	entries := audit.Entries()
	if last := entries[len(entries)-1]; last.Status != StatusFailed || last.Note == "" {
		t.Fatalf("unexpected last audit entry %+v", last)
	}
}

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()
	w, datasets, _ := newWorker(t)
	if err := datasets.Save(ctx, "soil", newDataset(t, false)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := w.EnqueueExport(ctx, Input{Dataset: "  "}); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := w.EnqueueExport(ctx, Input{Dataset: "missing"}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := w.EnqueueExport(ctx, Input{Dataset: "soil", Formats: []Format{"xlsx"}}); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid format, got %v", err)
	}
	if _, err := w.GetExport("nope"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found export, got %v", err)
	}

	unconfigured := NewWorker(nil, nil)
	if _, err := unconfigured.EnqueueExport(ctx, Input{Dataset: "soil"}); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestEnqueueQueueFull(t *testing.T) {
	ctx := context.Background()
	audit := &MemoryAuditLog{}
	datasets := memory.NewStore()
	if err := datasets.Save(ctx, "soil", newDataset(t, false)); err != nil {
		t.Fatalf("save: %v", err)
	}
	w := NewWorker(datasets, blob.NewMemory(), WithQueueSize(1), WithAuditLogger(audit))
	if _, err := w.EnqueueExport(ctx, Input{Dataset: "soil"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := w.EnqueueExport(ctx, Input{Dataset: "soil"}); err == nil || !strings.Contains(err.Error(), "queue full") {
		t.Fatalf("expected queue full, got %v", err)
	}
	entries := audit.Entries()
	if len(entries) != 3 || entries[2].Status != StatusFailed || entries[2].Note != "queue full" {
		t.Fatalf("unexpected audit trail %+v", entries)
	}
	rejected := entries[2].ExportID
	if _, err := w.GetExport(rejected); !domain.IsNotFound(err) {
		t.Fatalf("rejected export should not be tracked")
	}
}

func TestStopWaitsForLoop(t *testing.T) {
	w := NewWorker(memory.NewStore(), blob.NewMemory())
	w.Start()
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRender(t *testing.T) {
	ds := newDataset(t, true)

	tax, rows, err := Render(FormatTaxonomyTSV, ds)
	if err != nil || rows != 2 {
		t.Fatalf("taxonomy: %d %v", rows, err)
	}
	lines := strings.Split(string(tax), "\n")
	if lines[0] != "OTU\tKingdom\tPhylum\tClass\tOrder\tFamily\tGenus\tSpecies" {
		t.Fatalf("unexpected taxonomy header %q", lines[0])
	}
	if lines[2] != "F2\tk__Bacteria\tp__B\t\t\t\tg__X\t" {
		t.Fatalf("unexpected taxonomy row %q", lines[2])
	}

	meta, rows, err := Render(FormatMetadataTSV, ds)
	if err != nil || rows != 2 || string(meta) != "SampleID\tsite\nS1\tinlet\nS2\toutlet\n" {
		t.Fatalf("metadata %q %d %v", meta, rows, err)
	}

	fasta, rows, err := Render(FormatFASTA, ds)
	if err != nil || rows != 2 {
		t.Fatalf("fasta: %d %v", rows, err)
	}
	want := ">F1\n" + strings.Repeat("A", 60) + "\n" + strings.Repeat("A", 10) + "\n>F2\nCGT\n"
	if string(fasta) != want {
		t.Fatalf("unexpected fasta %q", fasta)
	}
	if _, _, err := Render(FormatFASTA, newDataset(t, false)); err == nil {
		t.Fatalf("expected error rendering fasta without sequences")
	}

	payload, _, err := Render(FormatJSON, ds)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded domain.Dataset
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ReadStats != ds.ReadStats || decoded.Sequences.Len() != 2 {
		t.Fatalf("json round trip lost data: %+v", decoded)
	}

	if _, _, err := Render("xlsx", ds); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestWorkerWritesToS3(t *testing.T) {
	ctx := context.Background()
	datasets := memory.NewStore()
	if err := datasets.Save(ctx, "soil", newDataset(t, true)); err != nil {
		t.Fatalf("save: %v", err)
	}
	store := blob.NewMockS3ForTests()
	w := NewWorker(datasets, store)
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	queued, err := w.EnqueueExport(ctx, Input{Dataset: "soil", Formats: []Format{FormatFASTA}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	rec := waitFor(t, w, queued.ID)
	if rec.Status != StatusSucceeded {
		t.Fatalf("expected success, got %+v", rec)
	}
	info, err := store.Head(ctx, queued.ID+"/sequences.fasta")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Metadata["format"] != string(FormatFASTA) || info.Metadata["rows"] != "2" {
		t.Fatalf("unexpected metadata %+v", info.Metadata)
	}
	if !errors.Is(func() error { _, err := store.Head(ctx, "nope"); return err }(), blob.ErrNotExist) {
		t.Fatalf("expected ErrNotExist for unknown key")
	}
}
