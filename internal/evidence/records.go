// Package evidence implements the tail-safe, malformed-tolerant readers for
// the JSONL evidence streams and the source-tree workspace scanner (C2).
package evidence

// ActivityRecord is one line of evidence/activity.jsonl: a file-save event.
type ActivityRecord struct {
	T            int64  `json:"t"`
	Path         string `json:"path"`
	SHA256       string `json:"sha256"`
	LinesAdded   int    `json:"linesAdded"`
	LinesRemoved int    `json:"linesRemoved"`
	Kind         string `json:"kind,omitempty"`
}

// BurstPattern labels the shape of a burst, assigned by an external
// classifier (e.g. "refactor", "feature", "fix").
type BurstPattern struct {
	Type string `json:"type"`
}

// SessionBurst is one line of evidence/sessions.jsonl.
type SessionBurst struct {
	BurstID     string       `json:"burst_id"`
	T           int64        `json:"t"`
	Files       []string     `json:"files"`
	Pattern     BurstPattern `json:"pattern"`
	EventsCount int          `json:"events_count"`
	DurationMs  int64        `json:"duration_ms"`
}

// ChatMessage is one line of evidence/chat_history.jsonl.
type ChatMessage struct {
	ThreadID  string `json:"thread_id"`
	Timestamp int64  `json:"timestamp"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Provider  string `json:"provider,omitempty"`
}

// ChatThread is one line of evidence/chat_threads.jsonl.
type ChatThread struct {
	ThreadKey string   `json:"thread_key"`
	Title     string   `json:"title"`
	Count     int      `json:"count"`
	Provider  string   `json:"provider,omitempty"`
	FirstMs   int64    `json:"firstMs"`
	LastMs    int64    `json:"lastMs"`
	Topics    []string `json:"topics,omitempty"`
}

// CLIRecord is one line of evidence/cli_history.jsonl.
type CLIRecord struct {
	T             int64  `json:"t"`
	Command       string `json:"command"`
	Tool          string `json:"tool"`
	ExitCode      int    `json:"exit_code"`
	DurationMs    int64  `json:"duration_ms"`
	Cwd           string `json:"cwd,omitempty"`
	StdoutPreview string `json:"stdout_preview,omitempty"`
	SessionID     string `json:"session_id"`
}

// DecisionRecord is one line of evidence/decisions.jsonl.
type DecisionRecord struct {
	ID             string  `json:"id"`
	IntentText     string  `json:"intent_text"`
	ChosenOption   string  `json:"chosen_option"`
	ConfidenceGate float64 `json:"confidence_gate"`
	ISOTimestamp   string  `json:"isoTimestamp"`
	ThreadID       string  `json:"thread_id,omitempty"`
}

// IntentDelta is the embedded delta of an IntentChainRecord.
type IntentDelta struct {
	LinesAdded   int `json:"linesAdded"`
	LinesRemoved int `json:"linesRemoved"`
	NetChange    int `json:"netChange"`
}

// IntentChainRecord is one line of evidence/intent_chains.jsonl.
type IntentChainRecord struct {
	T            int64       `json:"t"`
	File         string      `json:"file"`
	Delta        IntentDelta `json:"delta"`
	IntentSignal string      `json:"intent_signal,omitempty"`
	BurstID      string      `json:"burst_id,omitempty"`
}

// AgentAction is one line of evidence/agent_actions.jsonl.
type AgentAction struct {
	T      int64                  `json:"t"`
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Result string                 `json:"result,omitempty"`
}
