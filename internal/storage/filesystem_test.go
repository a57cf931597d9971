package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteAndURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	key, err := store.Write(context.Background(), "generated/videos/job-1/video.mp4", "video/mp4", []byte("payload"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "generated/videos/job-1/video.mp4" {
		t.Fatalf("key = %q", key)
	}
	data, err := os.ReadFile(filepath.Join(dir, "generated", "videos", "job-1", "video.mp4"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("data = %q", data)
	}
	if got := store.URL(key); got != "http://localhost:8080/static/generated/videos/job-1/video.mp4" {
		t.Fatalf("url = %q", got)
	}
	back, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(back) != "payload" {
		t.Fatalf("read back = %q", back)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.bin", "application/octet-stream", []byte{1}); err == nil {
		t.Fatalf("expected traversal rejection")
	}
}
