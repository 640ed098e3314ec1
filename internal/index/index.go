// Package index implements the metadata index builder (C4): a two-level
// cache (in-memory, then on-disk at .cache/metadata_index.json) over the
// full chunk set, rebuilt in a fixed source order whenever the workspace's
// cache signature changes.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soynido/rl4/internal/blob"
	"github.com/soynido/rl4/internal/chunk"
	"github.com/soynido/rl4/internal/evidence"
)

// Config mirrors the chunk/scanner slices of rl4.Config needed to rebuild
// an index, duplicated locally per the import-cycle-avoidance pattern used
// throughout internal/*.
type Config struct {
	Chat    chunk.ChatConfig
	CLI     int // window events
	Code    chunk.CodeConfig
	Scanner evidence.ScannerConfig
}

// MetadataIndex is the full chunk set produced by one build (§4.4, §6's
// ".cache/metadata_index.json").
type MetadataIndex struct {
	Signature string        `json:"signature"`
	BuiltAt   time.Time     `json:"builtAt"`
	Root      string        `json:"root"`
	Chunks    []chunk.Chunk `json:"chunks"`
}

// Builder owns the in-memory cache layer and on-disk persistence across
// one or more workspace roots.
type Builder struct {
	mu     sync.Mutex
	byRoot map[string]MetadataIndex
	cfg    Config
}

// NewBuilder returns a Builder with normalized defaults applied to cfg.
func NewBuilder(cfg Config) *Builder {
	if cfg.CLI <= 0 {
		cfg.CLI = 20
	}
	return &Builder{byRoot: map[string]MetadataIndex{}, cfg: cfg}
}

// Invalidate drops root's in-memory cache entry, forcing the next Build
// call to recompute root's signature and rebuild rather than serving a
// stale cached index. Intended for a caller that watches the evidence and
// snapshot directories for writes (fsnotify) instead of relying solely on
// ComputeSignature's per-call mtime scan to notice a change.
func (b *Builder) Invalidate(root string) {
	b.mu.Lock()
	delete(b.byRoot, root)
	b.mu.Unlock()
}

// Build returns the MetadataIndex for root, reusing the in-memory cache on
// a signature match, else the on-disk cache, else rebuilding from scratch
// (§4.4 steps 1-4).
func (b *Builder) Build(root string) (MetadataIndex, error) {
	sig := ComputeSignature(root)

	b.mu.Lock()
	if cached, ok := b.byRoot[root]; ok && cached.Signature == sig {
		b.mu.Unlock()
		return cached, nil
	}
	b.mu.Unlock()

	if onDisk, ok := loadDiskCache(root); ok && onDisk.Signature == sig {
		b.mu.Lock()
		b.byRoot[root] = onDisk
		b.mu.Unlock()
		return onDisk, nil
	}

	idx, err := b.rebuild(root, sig)
	if err != nil {
		return MetadataIndex{}, err
	}
	_ = saveDiskCache(root, idx)

	b.mu.Lock()
	b.byRoot[root] = idx
	b.mu.Unlock()
	return idx, nil
}

// evidenceStreamNames lists the JSONL files whose mtime/size feed the
// signature, in the canonical order from §6.
var evidenceStreamNames = []string{
	"activity.jsonl", "sessions.jsonl", "chat_history.jsonl",
	"chat_threads.jsonl", "cli_history.jsonl", "decisions.jsonl",
	"intent_chains.jsonl", "agent_actions.jsonl",
}

// ComputeSignature derives a cheap signature from the evidence streams'
// (size, mtime), the snapshot checksum index's (size, mtime), and a
// summary of a live scan (file count, truncation flag, latest mtime), so
// that any change to tracked inputs invalidates both cache levels (§4.4
// step 1).
func ComputeSignature(root string) string {
	h := sha256.New()
	evDir := filepath.Join(root, ".rl4", "evidence")
	for _, name := range evidenceStreamNames {
		if fi, err := os.Stat(filepath.Join(evDir, name)); err == nil {
			fmt.Fprintf(h, "%s:%d:%d;", name, fi.Size(), fi.ModTime().UnixNano())
		}
	}
	if fi, err := os.Stat(filepath.Join(root, ".rl4", "snapshots", "checksum_index.json")); err == nil {
		fmt.Fprintf(h, "checksum_index:%d:%d;", fi.Size(), fi.ModTime().UnixNano())
	}

	scan := evidence.Scan(root, evidence.ScannerConfig{})
	var latest time.Time
	for _, f := range scan.Files {
		if f.ModTime.After(latest) {
			latest = f.ModTime
		}
	}
	fmt.Fprintf(h, "scan:%d:%v:%d", len(scan.Files), scan.Truncated, latest.UnixNano())
	return hex.EncodeToString(h.Sum(nil))[:20]
}

func diskCachePath(root string) string {
	return filepath.Join(root, ".rl4", ".cache", "metadata_index.json")
}

func loadDiskCache(root string) (MetadataIndex, bool) {
	data, err := os.ReadFile(diskCachePath(root))
	if err != nil {
		return MetadataIndex{}, false
	}
	var idx MetadataIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return MetadataIndex{}, false
	}
	return idx, true
}

func saveDiskCache(root string, idx MetadataIndex) error {
	path := diskCachePath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// rebuild loads the independent evidence sources concurrently via
// errgroup — the same fan-out-then-first-error-cancels idiom as the
// teacher's own use of errgroup for parallel fetches — then appends their
// chunks in the fixed order named by §4.4 step 4: dashboards, decisions,
// chat archives (oldest-first then live), live-activity synthetic chunks,
// file-history synthetic chunks, intent-chain synthetic chunks, CLI, then
// code. Per-record malformed-JSON errors never reach here (the evidence
// readers swallow those per §7); the only failure this group actually
// propagates is the blob store failing to open.
func (b *Builder) rebuild(root, sig string) (MetadataIndex, error) {
	rl4Dir := filepath.Join(root, ".rl4")
	evDir := filepath.Join(rl4Dir, "evidence")
	now := time.Now()

	var (
		dashboardChunks, decisionChunks, chatChunks []chunk.Chunk
		activityChunks, intentChunks, cliChunks     []chunk.Chunk
		fileHistoryChunks, codeChunks               []chunk.Chunk
	)

	g := new(errgroup.Group)

	g.Go(func() error {
		dashboardChunks = readDashboards(rl4Dir)
		return nil
	})
	g.Go(func() error {
		decisions := evidence.ReadFull[evidence.DecisionRecord](filepath.Join(evDir, "decisions.jsonl"))
		decisionChunks = chunk.Decisions(filepath.Join(evDir, "decisions.jsonl"), decisions)
		return nil
	})
	g.Go(func() error {
		chatPath := filepath.Join(evDir, "chat_history.jsonl")
		chatMessages := evidence.ReadWithArchives[evidence.ChatMessage](
			filepath.Join(rl4Dir, ".internal", "archives"), "chat_history", chatPath)
		chatChunks = chunk.Chat(chatPath, chatMessages, b.cfg.Chat)
		return nil
	})
	g.Go(func() error {
		activity := evidence.ReadFull[evidence.ActivityRecord](filepath.Join(evDir, "activity.jsonl"))
		sessions := evidence.ReadFull[evidence.SessionBurst](filepath.Join(evDir, "sessions.jsonl"))
		activityChunks = buildLiveActivityChunks(activity, sessions, now)
		return nil
	})
	g.Go(func() error {
		intentChains := evidence.ReadFull[evidence.IntentChainRecord](filepath.Join(evDir, "intent_chains.jsonl"))
		intentChunks = buildIntentChainChunks(intentChains)
		return nil
	})
	g.Go(func() error {
		cliRecords := evidence.ReadFull[evidence.CLIRecord](filepath.Join(evDir, "cli_history.jsonl"))
		cliChunks = chunk.CLI(filepath.Join(evDir, "cli_history.jsonl"), cliRecords, b.cfg.CLI)
		return nil
	})

	var store *blob.Store
	g.Go(func() error {
		s, err := blob.Open(filepath.Join(rl4Dir, "snapshots"))
		if err != nil {
			return fmt.Errorf("index: opening blob store: %w", err)
		}
		store = s
		fileHistoryChunks = buildFileHistoryChunks(store)
		return nil
	})

	if err := g.Wait(); err != nil {
		return MetadataIndex{}, err
	}

	codeChunks, err := b.buildCodeChunks(root, store)
	if err != nil {
		return MetadataIndex{}, err
	}

	var chunks []chunk.Chunk
	chunks = append(chunks, dashboardChunks...)
	chunks = append(chunks, decisionChunks...)
	chunks = append(chunks, chatChunks...)
	chunks = append(chunks, activityChunks...)
	chunks = append(chunks, fileHistoryChunks...)
	chunks = append(chunks, intentChunks...)
	chunks = append(chunks, cliChunks...)
	chunks = append(chunks, codeChunks...)

	return MetadataIndex{Signature: sig, BuiltAt: now, Root: root, Chunks: chunks}, nil
}

func readDashboards(rl4Dir string) []chunk.Chunk {
	var chunks []chunk.Chunk
	if data, err := os.ReadFile(filepath.Join(rl4Dir, "evidence.md")); err == nil {
		chunks = append(chunks, chunk.Evidence(filepath.Join(rl4Dir, "evidence.md"), string(data))...)
	}
	if data, err := os.ReadFile(filepath.Join(rl4Dir, "timeline.md")); err == nil {
		chunks = append(chunks, chunk.Timeline(filepath.Join(rl4Dir, "timeline.md"), string(data))...)
	}
	return chunks
}

// buildCodeChunks chunks every blob-tracked file's latest version, then
// falls back to a live read for any scanned, non-build-artifact path the
// snapshot index doesn't cover, per §4.4's "Fallback" rule: trigger the
// live-read path whenever tracked coverage is below half of what the
// scanner sees.
func (b *Builder) buildCodeChunks(root string, store *blob.Store) ([]chunk.Chunk, error) {
	var chunks []chunk.Chunk
	tracked := map[string]bool{}

	for _, path := range store.TrackedPaths() {
		versions, ok := store.History(path)
		if !ok || len(versions) == 0 {
			continue
		}
		tracked[path] = true
		content, err := store.Read(versions[len(versions)-1])
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk.Code(path, languageFor(path), string(content), b.cfg.Code)...)
	}

	scan := evidence.Scan(root, b.cfg.Scanner)
	if store.Coverage(len(scan.Files)) >= 0.5 {
		return chunks, nil
	}
	for _, f := range scan.Files {
		if tracked[f.Path] || isBuildArtifact(f.Path) {
			continue
		}
		data, err := os.ReadFile(f.AbsPath)
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk.Code(f.Path, languageFor(f.Path), string(data), b.cfg.Code)...)
	}
	return chunks, nil
}

var languageByExt = map[string]string{
	".go": "go", ".js": "javascript", ".ts": "typescript", ".tsx": "typescript",
	".jsx": "javascript", ".py": "python", ".java": "java", ".rs": "rust",
	".rb": "ruby", ".md": "markdown", ".json": "json", ".yaml": "yaml",
	".yml": "yaml", ".sql": "sql", ".sh": "shell",
}

func languageFor(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}

// sortedKeys returns a map's keys in sorted order, for deterministic
// synthetic-chunk generation.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
