package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeLinesSkipsMalformed(t *testing.T) {
	data := []byte(`{"t":1,"path":"a.go","sha256":"x"}
not json at all
{"t":2,"path":"b.go","sha256":"y"}
`)
	recs := decodeLines[ActivityRecord](data)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Path != "a.go" || recs[1].Path != "b.go" {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestReadFullMissingFile(t *testing.T) {
	recs := ReadFull[ActivityRecord](filepath.Join(t.TempDir(), "nope.jsonl"))
	if recs != nil {
		t.Errorf("expected nil for missing file, got %+v", recs)
	}
}

func TestAppendLineAndReadFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence", "activity.jsonl")
	for i := 0; i < 3; i++ {
		if err := AppendLine(path, ActivityRecord{T: int64(i), Path: "f.go"}); err != nil {
			t.Fatalf("AppendLine: %v", err)
		}
	}
	recs := ReadFull[ActivityRecord](path)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, r := range recs {
		if r.T != int64(i) {
			t.Errorf("record %d: T = %d, want %d", i, r.T, i)
		}
	}
}

func TestReadTailReturnsLastN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.jsonl")
	for i := 0; i < 10; i++ {
		if err := AppendLine(path, ActivityRecord{T: int64(i)}); err != nil {
			t.Fatalf("AppendLine: %v", err)
		}
	}
	recs := ReadTail[ActivityRecord](path, 3)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].T != 7 || recs[2].T != 9 {
		t.Errorf("unexpected tail records: %+v", recs)
	}
}

func TestReadTailSmallerThanBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.jsonl")
	if err := AppendLine(path, ActivityRecord{T: 1}); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}
	recs := ReadTail[ActivityRecord](path, 10)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
}

func TestGitignoreToRegexBasics(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.log", "debug.log", true},
		{"*.log", "sub/debug.log", true},
		{"/build", "build", true},
		{"/build", "sub/build", false},
		{"node_modules/", "node_modules/", true},
		{"**/generated/*.go", "a/b/generated/x.go", true},
	}
	for _, c := range cases {
		re, ok := gitignoreToRegex(c.pattern)
		if !ok {
			t.Fatalf("pattern %q: expected ok", c.pattern)
		}
		if got := re.MatchString(c.path); got != c.want {
			t.Errorf("pattern %q vs path %q: got %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestGitignoreNegationSkipped(t *testing.T) {
	if _, ok := gitignoreToRegex("!important.log"); ok {
		t.Error("negation patterns should be skipped, not compiled")
	}
}

func TestScanHonorsGitignoreAndSkipDirs(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644)
	os.WriteFile(filepath.Join(root, "keep.go"), []byte("package x"), 0o644)
	os.WriteFile(filepath.Join(root, "drop.log"), []byte("noise"), 0o644)
	os.MkdirAll(filepath.Join(root, "node_modules"), 0o755)
	os.WriteFile(filepath.Join(root, "node_modules", "pkg.js"), []byte("x"), 0o644)

	result := Scan(root, ScannerConfig{})
	var paths []string
	for _, f := range result.Files {
		paths = append(paths, f.Path)
	}
	joined := strings.Join(paths, ",")
	if !strings.Contains(joined, "keep.go") {
		t.Errorf("expected keep.go in scan results, got %v", paths)
	}
	if strings.Contains(joined, "drop.log") {
		t.Errorf("expected drop.log to be gitignored, got %v", paths)
	}
	if strings.Contains(joined, "pkg.js") {
		t.Errorf("expected node_modules to be skipped, got %v", paths)
	}
}

func TestScanTruncatesAtMaxFiles(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(root, strings.Repeat("f", i+1)+".txt"), []byte("x"), 0o644)
	}
	result := Scan(root, ScannerConfig{MaxFiles: 2})
	if !result.Truncated {
		t.Error("expected Truncated=true")
	}
	if len(result.Files) > 2 {
		t.Errorf("expected at most 2 files, got %d", len(result.Files))
	}
}
