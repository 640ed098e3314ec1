package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewSkipsMissingDirs(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist")

	var calls int32
	w, err := New([]string{missing}, 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no callback for a missing directory, got %d", calls)
	}
}

func TestWriteTriggersDebouncedCallback(t *testing.T) {
	dir := t.TempDir()

	var calls int32
	w, err := New([]string{dir}, 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "evidence.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&calls) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected at least one invalidation callback after a write")
}

func TestBurstOfWritesCoalescesIntoOneCallback(t *testing.T) {
	dir := t.TempDir()

	var calls int32
	w, err := New([]string{dir}, 100*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "evidence.jsonl")
	for i := 0; i < 10; i++ {
		if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a burst of writes to coalesce into exactly one callback, got %d", got)
	}
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()

	var calls int32
	w, err := New([]string{dir}, 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(sub, "file.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&calls) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a write inside a newly created subdirectory to trigger a callback")
}

func TestCloseStopsDelivery(t *testing.T) {
	dir := t.TempDir()

	var calls int32
	w, err := New([]string{dir}, 10*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "evidence.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no callbacks after Close, got %d", calls)
	}
}
