package blob

import (
	"testing"
	"time"
)

func TestWriteIsIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	content := []byte("package main\n")
	h1, err := s.Write(content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	h2, err := s.Write(content)
	if err != nil {
		t.Fatalf("Write (second): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ across idempotent writes: %s vs %s", h1, h2)
	}
}

func TestReadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	content := []byte("hello, blob store")
	hash, err := s.Write(content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(hash)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Read = %q, want %q", got, content)
	}
}

func TestReadGzipRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	content := []byte("gzipped content body")
	hash, err := s.WriteGzip(content)
	if err != nil {
		t.Fatalf("WriteGzip: %v", err)
	}
	got, err := s.Read(hash)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Read (gzip) = %q, want %q", got, content)
	}
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Read("deadbeef"); err != ErrNotFound {
		t.Errorf("Read(missing) = %v, want ErrNotFound", err)
	}
}

func TestRecordVersionHistoryOrdering(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Unix(1000, 0)
	h1, err := s.RecordVersion("main.go", []byte("v1"), now, 1, 0)
	if err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}
	h2, err := s.RecordVersion("main.go", []byte("v2"), now.Add(time.Minute), 1, 0)
	if err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}
	versions, ok := s.History("main.go")
	if !ok {
		t.Fatal("expected history to exist")
	}
	if len(versions) != 2 || versions[0] != h1 || versions[1] != h2 {
		t.Fatalf("unexpected history: %v", versions)
	}
}

func TestRecordVersionSameHashIsNoOp(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Unix(1000, 0)
	if _, err := s.RecordVersion("main.go", []byte("same"), now, 1, 0); err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}
	if _, err := s.RecordVersion("main.go", []byte("same"), now.Add(time.Minute), 0, 0); err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}
	versions, _ := s.History("main.go")
	if len(versions) != 1 {
		t.Fatalf("expected unchanged hash to not duplicate history, got %v", versions)
	}
}

func TestPersistedIndexesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Unix(2000, 0)
	hash, err := s.RecordVersion("a.go", []byte("content a"), now, 5, 0)
	if err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open (reload): %v", err)
	}
	versions, ok := s2.History("a.go")
	if !ok || len(versions) != 1 || versions[0] != hash {
		t.Fatalf("history did not survive reopen: %v, ok=%v", versions, ok)
	}
	meta, ok := s2.VersionMeta(hash)
	if !ok {
		t.Fatal("expected version metadata to survive reopen")
	}
	if meta.AddedLines != 5 {
		t.Errorf("meta.AddedLines = %d, want 5", meta.AddedLines)
	}
}

func TestCoverage(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.Coverage(0); got != 1 {
		t.Errorf("Coverage(0) = %v, want 1", got)
	}
	now := time.Unix(3000, 0)
	s.RecordVersion("a.go", []byte("a"), now, 1, 0)
	if got := s.Coverage(2); got != 0.5 {
		t.Errorf("Coverage(2) = %v, want 0.5", got)
	}
}
