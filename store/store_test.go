package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wallarm/medley"
)

func TestOpener_PublishThenRead(t *testing.T) {
	root := filepath.Join(t.TempDir(), "hash2id")
	opener := NewOpener(nil)
	ctx := context.Background()

	w, err := opener.Open(ctx, root, true)
	if err != nil {
		t.Fatalf("open for write: %v", err)
	}
	if err := w.Put([]byte("key-a"), []byte("payload-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := w.Put([]byte("key-a"), []byte("payload-2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := w.Put([]byte("key-b"), []byte("payload-3")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := w.Publish(ctx); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := opener.Open(ctx, root, false)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer r.Close()

	rows, err := r.Lookup([]byte("key-a"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows under key-a, got %d", len(rows))
	}
	found := map[string]bool{}
	for _, row := range rows {
		found[string(row)] = true
	}
	if !found["payload-1"] || !found["payload-2"] {
		t.Errorf("missing expected payloads, got %v", rows)
	}

	rows, err = r.Lookup([]byte("key-c"))
	if err != nil {
		t.Fatalf("lookup absent key: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows for absent key, got %d", len(rows))
	}
}

func TestOpener_ReadBeforePublishIsMissingIndex(t *testing.T) {
	root := filepath.Join(t.TempDir(), "never-published")
	opener := NewOpener(nil)
	ctx := context.Background()

	_, err := opener.Open(ctx, root, false)
	if !errors.Is(err, medley.ErrMissingIndex) {
		t.Fatalf("expected ErrMissingIndex, got %v", err)
	}
}

func TestOpener_PuttingAfterPublishFails(t *testing.T) {
	root := filepath.Join(t.TempDir(), "hash2id")
	opener := NewOpener(nil)
	ctx := context.Background()

	w, err := opener.Open(ctx, root, true)
	if err != nil {
		t.Fatalf("open for write: %v", err)
	}
	if err := w.Publish(ctx); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := w.Put([]byte("key"), []byte("value")); err == nil {
		t.Error("expected write after publish to fail")
	}
}

func TestOpener_RebuildRepointsCurrentToNewGeneration(t *testing.T) {
	root := filepath.Join(t.TempDir(), "hash2id")
	opener := NewOpener(nil)
	ctx := context.Background()

	w1, _ := opener.Open(ctx, root, true)
	_ = w1.Put([]byte("k"), []byte("v1"))
	_ = w1.Publish(ctx)
	_ = w1.Close()

	w2, _ := opener.Open(ctx, root, true)
	_ = w2.Put([]byte("k"), []byte("v2"))
	_ = w2.Publish(ctx)
	_ = w2.Close()

	r, err := opener.Open(ctx, root, false)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer r.Close()

	rows, err := r.Lookup([]byte("k"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(rows) != 1 || !bytes.Equal(rows[0], []byte("v2")) {
		t.Fatalf("expected only the second generation's row, got %v", rows)
	}

	link := filepath.Join(root, currentLinkName)
	if _, err := os.Lstat(link); err != nil {
		t.Fatalf("expected current symlink to exist: %v", err)
	}
}
