package cre

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/soynido/rl4/internal/evidence"
)

// EngineVersion is stamped on every intervention record (§3).
const EngineVersion = "rl4-cre-v1"

// Outcome enumerates an intervention's resolved state (§3).
type Outcome string

const (
	OutcomePending       Outcome = "pending"
	OutcomeReversedFast  Outcome = "reversed_fast"
	OutcomeReworked      Outcome = "reworked"
	OutcomeAccepted      Outcome = "accepted"
	OutcomeIndeterminate Outcome = "indeterminate"
)

// SelectedLessonRecord is one entry of an intervention's selected-lessons
// list (§3).
type SelectedLessonRecord struct {
	ID            string        `json:"id"`
	Type          LessonType    `json:"type"`
	Score         float64       `json:"score"`
	Rank          int           `json:"rank"`
	Density       float64       `json:"density"`
	DensityBucket int           `json:"density_bucket"`
	Axes          AxisBreakdown `json:"axes"`
}

// CandidateLessonRecord is one entry of an intervention's rejected
// candidates list (§3).
type CandidateLessonRecord struct {
	ID           string        `json:"id"`
	Type         LessonType    `json:"type"`
	Score        float64       `json:"score"`
	Density      float64       `json:"density"`
	DensityBucket int          `json:"density_bucket"`
	Axes         AxisBreakdown `json:"axes"`
	DropReason   DropReason    `json:"drop_reason"`
}

// OutcomeSignals carries the evidence the resolver observed when deciding
// an outcome, useful for debugging and for the replay property test.
type OutcomeSignals struct {
	RepeatedHash     bool  `json:"repeated_hash,omitempty"`
	LinesChanged     int   `json:"lines_changed,omitempty"`
	NoTouchMinutes   int   `json:"no_touch_minutes,omitempty"`
	CommittedStable  bool  `json:"committed_stable,omitempty"`
	ElapsedMinutes   int   `json:"elapsed_minutes,omitempty"`
}

// Record is one append-only intervention log entry (§3 "Intervention
// record").
type Record struct {
	ID           string                  `json:"id"`
	EngineVersion string                 `json:"engine_version"`
	Timestamp    int64                   `json:"timestamp"`
	TargetFile   string                  `json:"target_file"`
	BurstID      string                  `json:"burst_id,omitempty"`
	Selected     []SelectedLessonRecord  `json:"selected"`
	Candidates   []CandidateLessonRecord `json:"candidates"`
	TokenBudget  int                     `json:"token_budget"`
	UsedTokens   int                     `json:"used_tokens"`
	Outcome      Outcome                 `json:"outcome"`
	ResolvedAt   int64                   `json:"resolved_at,omitempty"`
	Signals      OutcomeSignals          `json:"signals,omitempty"`
	PropensityLog []float64              `json:"propensity_log,omitempty"`
	// RefactorStorm is stamped by the resolver at resolution time (>=6
	// refactor-pattern bursts out of the last 10 with average event count
	// >4, per §4.11) so that recomputeStateFromLogs stays a pure fold over
	// the log alone, without re-reading burst evidence during replay.
	RefactorStorm bool `json:"refactor_storm,omitempty"`
}

// BuildRecord assembles an intervention record from a Selection, computing
// the normalized propensity vector pi_log over selected (+) candidates per
// §4.10: score_i / sum(scores), falling back to uniform 1/|selected| if all
// scores are zero.
func BuildRecord(sel Selection, targetFile, burstID string, now int64) (Record, bool) {
	if len(sel.Selected) == 0 {
		// Empty selections are not logged (§4.10 integrity guard).
		return Record{}, false
	}

	selected := make([]SelectedLessonRecord, len(sel.Selected))
	sumScores := 0.0
	for i, s := range sel.Selected {
		selected[i] = SelectedLessonRecord{
			ID: s.Lesson.ID, Type: s.Lesson.Type, Score: s.Score, Rank: i + 1,
			Density: s.Density, DensityBucket: s.DensityBucket, Axes: s.Axes,
		}
		sumScores += s.Score
	}
	candidates := make([]CandidateLessonRecord, len(sel.Candidates))
	for i, c := range sel.Candidates {
		candidates[i] = CandidateLessonRecord{
			ID: c.ScoredLesson.Lesson.ID, Type: c.ScoredLesson.Lesson.Type,
			Score: c.ScoredLesson.Score, Density: c.ScoredLesson.Density,
			DensityBucket: c.ScoredLesson.DensityBucket, Axes: c.ScoredLesson.Axes,
			DropReason: c.DropReason,
		}
		sumScores += c.ScoredLesson.Score
	}

	propensity := make([]float64, len(selected))
	if sumScores <= 0 {
		uniform := 1.0 / float64(len(selected))
		for i := range propensity {
			propensity[i] = uniform
		}
	} else {
		for i, s := range sel.Selected {
			propensity[i] = s.Score / sumScores
		}
	}

	return Record{
		ID:            uuid.NewString(),
		EngineVersion: EngineVersion,
		Timestamp:     now,
		TargetFile:    targetFile,
		BurstID:       burstID,
		Selected:      selected,
		Candidates:    candidates,
		TokenBudget:   sel.Budget,
		UsedTokens:    sel.UsedTokens,
		Outcome:       OutcomePending,
		PropensityLog: propensity,
	}, true
}

// Log is the append-only intervention log at a fixed path (§4.10).
type Log struct {
	path string
}

// NewLog returns a Log backed by path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes rec as a complete JSONL line, per §5's atomic-append
// requirement (delegated to evidence.AppendLine, which writes the full
// encoded line in a single os.File.Write).
func (l *Log) Append(rec Record) error {
	if err := evidence.AppendLine(l.path, rec); err != nil {
		return fmt.Errorf("cre: appending intervention record: %w", err)
	}
	return nil
}

// ReadAll parses every valid record in the log, in file order, tolerating a
// truncated final line (§4.2/§5).
func (l *Log) ReadAll() []Record {
	return evidence.ReadFull[Record](l.path)
}

// rewriteAll atomically replaces the log's contents with records, used by
// the outcome resolver's read-modify-write cycle (§5: "read-modify-write on
// the intervention log file"). Writes to a temp file and renames, so
// readers never observe a partially-written log.
func (l *Log) rewriteAll(records []Record) error {
	return evidence.RewriteLines[Record](l.path, records)
}
