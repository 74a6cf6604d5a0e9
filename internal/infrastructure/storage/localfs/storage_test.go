package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenRemoveRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "clip-1.m4a", strings.NewReader("audio")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := storage.Open(ctx, "clip-1.m4a")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if string(raw) != "audio" {
		t.Fatalf("expected stored bytes, got %q", raw)
	}

	if err := storage.Remove(ctx, "clip-1.m4a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := storage.Open(ctx, "clip-1.m4a"); err == nil {
		t.Fatalf("expected open failure after remove")
	}
}

func TestRemoveMissingClipIsNoError(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Remove(context.Background(), "never-written.m4a"); err != nil {
		t.Fatalf("Remove() of missing clip error = %v", err)
	}
}

func TestSaveStripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "../escape.m4a", strings.NewReader("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := storage.Open(ctx, "escape.m4a"); err != nil {
		t.Fatalf("expected clip stored under base dir, got %v", err)
	}
}
