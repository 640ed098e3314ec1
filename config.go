package rl4

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the rl4 engine. It mirrors the shape
// of the teacher's goreason.Config: a flat struct with json/yaml tags and a
// DefaultConfig constructor, loadable from a JSON --config flag or a
// workspace-local .rl4.yaml file.
type Config struct {
	// WorkspaceRoot is the source tree this engine indexes. If empty, the
	// current working directory is used.
	WorkspaceRoot string `json:"workspace_root" yaml:"workspace_root"`

	// DataDir is joined between WorkspaceRoot and .rl4/ for the evidence and
	// snapshot directories the watcher observes. Defaults to "." (i.e.
	// "<root>/.rl4"). The engine's own reads and writes and the index
	// builder always use "<root>/.rl4", whatever DataDir is set to.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Ranker (C5) tuning.
	Ranker RankerConfig `json:"ranker" yaml:"ranker"`

	// Chunking (C3) tuning.
	Chunk ChunkConfig `json:"chunk" yaml:"chunk"`

	// Scanner (C2 workspace scanner) tuning.
	Scanner ScannerConfig `json:"scanner" yaml:"scanner"`

	// CRE (C9-C11) tuning.
	CRE CREConfig `json:"cre" yaml:"cre"`

	// RemoteSync configures the optional context-sync service client.
	RemoteSync RemoteSyncConfig `json:"remote_sync" yaml:"remote_sync"`

	// RateLimit configures the per-tool fixed-window limiter.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RankerConfig tunes the hybrid ranker (C5).
type RankerConfig struct {
	RRFConstant    int     `json:"rrf_k" yaml:"rrf_k"`
	TopW           int     `json:"top_w" yaml:"top_w"`
	DefaultLimit   int     `json:"default_limit" yaml:"default_limit"`
	MaxLimit       int     `json:"max_limit" yaml:"max_limit"`
	RecencyDays    int     `json:"recency_days" yaml:"recency_days"`
	RecencyBoost   float64 `json:"recency_boost" yaml:"recency_boost"`
	FileMatchBoost float64 `json:"file_match_boost" yaml:"file_match_boost"`
	CacheSize      int     `json:"semantic_cache_size" yaml:"semantic_cache_size"`
}

// ChunkConfig tunes the chunker (C3).
type ChunkConfig struct {
	ChatByteBudget  int `json:"chat_byte_budget" yaml:"chat_byte_budget"`
	ChatMessageCap  int `json:"chat_message_cap" yaml:"chat_message_cap"`
	CLIWindowEvents int `json:"cli_window_events" yaml:"cli_window_events"`
	CodeSmallLines  int `json:"code_small_lines" yaml:"code_small_lines"`
	CodeWindowLines int `json:"code_window_lines" yaml:"code_window_lines"`
	CodeOverlapLines int `json:"code_overlap_lines" yaml:"code_overlap_lines"`
}

// ScannerConfig tunes the workspace scanner (C2).
type ScannerConfig struct {
	MaxFileBytes int64 `json:"max_file_bytes" yaml:"max_file_bytes"`
	MaxFiles     int   `json:"max_files" yaml:"max_files"`
	DeadlineMS   int   `json:"deadline_ms" yaml:"deadline_ms"`
}

// CREConfig tunes the Causal Relevance Engine (C9-C11).
type CREConfig struct {
	TokenBudget         int     `json:"token_budget" yaml:"token_budget"`
	MaxItems            int     `json:"max_items" yaml:"max_items"`
	Alpha               float64 `json:"alpha" yaml:"alpha"`
	Beta                float64 `json:"beta" yaml:"beta"`
	Gamma                float64 `json:"gamma" yaml:"gamma"`
	Delta               float64 `json:"delta" yaml:"delta"`
	V2ActivationGate    int     `json:"v2_activation_gate" yaml:"v2_activation_gate"`
	SafetyMinTotal      int     `json:"safety_min_total" yaml:"safety_min_total"`
	SafetyRegressionGap float64 `json:"safety_regression_gap" yaml:"safety_regression_gap"`
}

// RemoteSyncConfig configures the opaque context-sync KV client.
type RemoteSyncConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	BaseURL    string `json:"base_url" yaml:"base_url"`
	WorkspaceID string `json:"workspace_id" yaml:"workspace_id"`
	Token      string `json:"token" yaml:"token"`
}

// RateLimitConfig configures the per-tool fixed-window limiter.
type RateLimitConfig struct {
	CallsPerWindow int `json:"calls_per_window" yaml:"calls_per_window"`
	WindowSeconds  int `json:"window_seconds" yaml:"window_seconds"`
}

// DefaultConfig returns a Config with the defaults named throughout spec.md.
func DefaultConfig() Config {
	return Config{
		DataDir: ".",
		Ranker: RankerConfig{
			RRFConstant:    60,
			TopW:           50,
			DefaultLimit:   10,
			MaxLimit:       20,
			RecencyDays:    7,
			RecencyBoost:   1.5,
			FileMatchBoost: 2.0,
			CacheSize:      256,
		},
		Chunk: ChunkConfig{
			ChatByteBudget:   4096,
			ChatMessageCap:   40,
			CLIWindowEvents:  20,
			CodeSmallLines:   80,
			CodeWindowLines:  80,
			CodeOverlapLines: 15,
		},
		Scanner: ScannerConfig{
			MaxFileBytes: 1 << 20,
			MaxFiles:     20000,
			DeadlineMS:   8000,
		},
		CRE: CREConfig{
			TokenBudget:         300,
			MaxItems:            4,
			Alpha:               0.35,
			Beta:                0.30,
			Gamma:               0.20,
			Delta:               0.15,
			V2ActivationGate:    100,
			SafetyMinTotal:      10,
			SafetyRegressionGap: 0.15,
		},
		RateLimit: RateLimitConfig{
			CallsPerWindow: 30,
			WindowSeconds:  60,
		},
	}
}

// dataDir returns the absolute path to the workspace's .rl4 directory.
func (c Config) dataDir() string {
	root := c.WorkspaceRoot
	if root == "" {
		root, _ = os.Getwd()
	}
	base := c.DataDir
	if base == "" {
		base = "."
	}
	return filepath.Join(root, base, ".rl4")
}
