package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soynido/rl4/internal/blob"
	"github.com/soynido/rl4/internal/evidence"
)

func TestComputeSignatureStableWithoutChanges(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, ".rl4", "evidence"))
	mustWrite(t, filepath.Join(root, ".rl4", "evidence", "activity.jsonl"), `{"t":1,"path":"a.go"}`+"\n")

	a := ComputeSignature(root)
	b := ComputeSignature(root)
	if a != b {
		t.Fatalf("signature should be stable across calls with no changes: %q vs %q", a, b)
	}
}

func TestComputeSignatureChangesOnNewEvidence(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, ".rl4", "evidence"))

	before := ComputeSignature(root)
	mustWrite(t, filepath.Join(root, ".rl4", "evidence", "activity.jsonl"), `{"t":1,"path":"a.go"}`+"\n")
	after := ComputeSignature(root)

	if before == after {
		t.Fatal("expected signature to change after a new evidence file appears")
	}
}

func TestBuildReusesInMemoryCache(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, ".rl4", "evidence"))
	mustMkdirAll(t, filepath.Join(root, ".rl4", "snapshots"))

	b := NewBuilder(Config{})
	first, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first.Signature != second.Signature {
		t.Fatalf("expected identical signature on repeated build with no changes")
	}
	if !second.BuiltAt.Equal(first.BuiltAt) {
		t.Errorf("expected the second Build to reuse the cached index rather than rebuild")
	}
}

func TestBuildFileHistoryChunksRequiresAtLeastTwoVersions(t *testing.T) {
	dir := t.TempDir()
	store, err := blob.Open(dir)
	if err != nil {
		t.Fatalf("blob.Open: %v", err)
	}
	now := time.Now()
	if _, err := store.RecordVersion("only_once.go", []byte("v1"), now, 1, 0); err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}
	if _, err := store.RecordVersion("has_history.go", []byte("v1"), now, 1, 0); err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}
	if _, err := store.RecordVersion("has_history.go", []byte("v2"), now.Add(time.Hour), 2, 1); err != nil {
		t.Fatalf("RecordVersion: %v", err)
	}

	chunks := buildFileHistoryChunks(store)
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 file-history chunk, got %d", len(chunks))
	}
	if chunks[0].Meta.FilePath != "has_history.go" {
		t.Errorf("expected chunk for has_history.go, got %q", chunks[0].Meta.FilePath)
	}
}

func TestBuildLiveActivityChunksCapsAtTwo(t *testing.T) {
	now := time.Now()
	activity := []evidence.ActivityRecord{
		{T: now.UnixMilli(), Path: "a.go", LinesAdded: 5},
		{T: now.UnixMilli(), Path: "b.go", LinesAdded: 2, LinesRemoved: 1},
	}
	sessions := []evidence.SessionBurst{
		{BurstID: "burst-1", T: now.UnixMilli(), Files: []string{"a.go"}, EventsCount: 3},
	}
	chunks := buildLiveActivityChunks(activity, sessions, now)
	if len(chunks) > 2 {
		t.Fatalf("expected at most 2 live-activity chunks, got %d", len(chunks))
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks (sessions + hot files) given non-empty input, got %d", len(chunks))
	}
}

func TestBuildLiveActivityChunksExcludesOldRecords(t *testing.T) {
	now := time.Now()
	old := now.Add(-48 * time.Hour)
	activity := []evidence.ActivityRecord{{T: old.UnixMilli(), Path: "a.go", LinesAdded: 5}}
	chunks := buildLiveActivityChunks(activity, nil, now)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for activity older than 24h, got %d", len(chunks))
	}
}

func TestBuildIntentChainChunksGroupsByBurst(t *testing.T) {
	records := []evidence.IntentChainRecord{
		{T: 1, File: "a.go", BurstID: "b1", Delta: evidence.IntentDelta{LinesAdded: 3}},
		{T: 2, File: "b.go", BurstID: "b1", Delta: evidence.IntentDelta{LinesAdded: 1}},
		{T: 3, File: "c.go", BurstID: "b2", Delta: evidence.IntentDelta{LinesRemoved: 2}},
	}
	chunks := buildIntentChainChunks(records)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks (one per burst), got %d", len(chunks))
	}
}

func TestIsBuildArtifactExcludesLockAndCompiledFiles(t *testing.T) {
	for _, path := range []string{"package-lock.json", "dist/app.min.js", "vendor/lib.so", "go.sum"} {
		if !isBuildArtifact(path) {
			t.Errorf("expected %q to be recognized as a build artifact", path)
		}
	}
	if isBuildArtifact("internal/rank/engine.go") {
		t.Error("expected a normal source file to not be a build artifact")
	}
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", path, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
