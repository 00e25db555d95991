package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ampcore/internal/blob/core"
)

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 {
		t.Fatalf("driver %s", s.Driver())
	}

	info, err := s.Put(ctx, "exp/abundance.tsv", strings.NewReader("OTU\tS1\nF1\t3\n"), core.PutOptions{
		ContentType: "text/tab-separated-values",
		Metadata:    map[string]string{"dataset": "soil"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exp/abundance.tsv" || info.ETag == "" {
		t.Fatalf("unexpected put info %+v", info)
	}
	if _, err := s.Put(ctx, "exp/abundance.tsv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	head, err := s.Head(ctx, "exp/abundance.tsv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != 12 || head.Metadata["dataset"] != "soil" || head.ContentType != "text/tab-separated-values" {
		t.Fatalf("unexpected head %+v", head)
	}

	_, rc, err := s.Get(ctx, "exp/abundance.tsv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "OTU\tS1\nF1\t3\n" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := s.Put(ctx, "exp/taxonomy.tsv", strings.NewReader("OTU\n"), core.PutOptions{}); err != nil {
		t.Fatalf("put taxonomy: %v", err)
	}
	if _, err := s.Put(ctx, "zzz/other", strings.NewReader("o"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := s.List(ctx, "exp/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exp/abundance.tsv" || list[1].Key != "exp/taxonomy.tsv" {
		t.Fatalf("unexpected list %+v", list)
	}

	if ok, err := s.Delete(ctx, "exp/abundance.tsv"); err != nil || !ok {
		t.Fatalf("delete %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "exp/abundance.tsv"); err != nil || ok {
		t.Fatalf("second delete %v %v", ok, err)
	}
	if _, _, err := s.Get(ctx, "exp/abundance.tsv"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist from get, got %v", err)
	}
	if _, err := s.Head(ctx, "exp/abundance.tsv"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist from head, got %v", err)
	}
}

func TestMockStorePresign(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	url, err := s.PresignURL(ctx, "exp/dataset.json", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "mock-bucket/exp/dataset.json") || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("unexpected presigned url %s", url)
	}
	if _, err := s.PresignURL(ctx, "exp/dataset.json", core.SignedURLOptions{Method: "DELETE"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("AMPCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	t.Setenv("AMPCORE_BLOB_S3_BUCKET", "exports")
	t.Setenv("AMPCORE_BLOB_S3_REGION", "eu-west-1")
	t.Setenv("AMPCORE_BLOB_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("AMPCORE_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	s, err := OpenFromEnv(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.bucket != "exports" || s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected store %+v", s)
	}
}
