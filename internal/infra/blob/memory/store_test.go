package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ampcore/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("driver %s", s.Driver())
	}
	md := map[string]string{"dataset": "soil"}
	info, err := s.Put(ctx, "exp/abundance.tsv", strings.NewReader("OTU\tS1\n"), core.PutOptions{ContentType: "text/tab-separated-values", Metadata: md})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	md["dataset"] = "mutated"
	if info.Size != 7 || info.Metadata["dataset"] != "soil" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exp/abundance.tsv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "exp/abundance.tsv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "OTU\tS1\n" || got.ContentType != "text/tab-separated-values" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}
	if _, err := s.Head(ctx, "exp/abundance.tsv"); err != nil {
		t.Fatalf("head: %v", err)
	}

	if _, err := s.Put(ctx, "exp/taxonomy.tsv", strings.NewReader("t"), core.PutOptions{}); err != nil {
		t.Fatalf("put taxonomy: %v", err)
	}
	if _, err := s.Put(ctx, "other/x", strings.NewReader("o"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := s.List(ctx, "exp/")
	if err != nil || len(list) != 2 || list[0].Key != "exp/abundance.tsv" || list[1].Key != "exp/taxonomy.tsv" {
		t.Fatalf("list %+v err %v", list, err)
	}

	if ok, _ := s.Delete(ctx, "exp/abundance.tsv"); !ok {
		t.Fatalf("expected delete to report true")
	}
	if ok, _ := s.Delete(ctx, "exp/abundance.tsv"); ok {
		t.Fatalf("expected second delete to report false")
	}
	if _, _, err := s.Get(ctx, "exp/abundance.tsv"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := s.PresignURL(ctx, "exp/taxonomy.tsv", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	s := New()
	for _, key := range []string{"", "  ", "/abs", "../x", "a/../../b"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestCleanKeyNormalizes(t *testing.T) {
	got, err := core.CleanKey("a//b/./c")
	if err != nil || got != "a/b/c" {
		t.Fatalf("CleanKey = %q, %v", got, err)
	}
	if core.CloneMetadata(nil) != nil {
		t.Fatalf("nil metadata should stay nil")
	}
}
