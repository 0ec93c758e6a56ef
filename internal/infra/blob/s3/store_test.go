package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"kwhcheck/internal/blob/core"
)

func TestStore_MockedBasicFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	body := "PC6,Date,PC6_WeekIndex,kWh\n1000AA,2021-01-04,1000AA_1,3\n"
	if _, err := store.Put(ctx, "fixtures/original.csv", strings.NewReader(body), core.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "fixtures/original.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	head, err := store.Head(ctx, "fixtures/original.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != int64(len(body)) || head.ETag != "etag123" {
		t.Fatalf("unexpected head %+v", head)
	}
	_, rc, err := store.Get(ctx, "fixtures/original.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != body {
		t.Fatalf("unexpected body %q", got)
	}
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver")
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if _, err := store.Head(ctx, "missing.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
}

func TestStore_New(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	s, err := New(context.Background(), Config{Bucket: "b", Prefix: "/runs/", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.objectKey("x.csv") != "runs/x.csv" {
		t.Fatalf("unexpected object key %s", s.objectKey("x.csv"))
	}
}

func TestDecodeChunked(t *testing.T) {
	if b, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("decode failed: %q %v", b, ok)
	}
	if b, ok := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0;chunk-signature=def\r\n\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("decode with extension failed: %q %v", b, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("plain body must not decode")
	}
	if _, ok := decodeChunked([]byte("zz\r\nhello\r\n0\r\n")); ok {
		t.Fatalf("invalid hex must not decode")
	}
}
