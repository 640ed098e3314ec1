package cre

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/soynido/rl4/internal/blob"
	"github.com/soynido/rl4/internal/evidence"
	"github.com/soynido/rl4/internal/graph"
)

// hotspotMinVersions is the version-history length at which a tracked
// file earns a HOTSPOT lesson.
const hotspotMinVersions = 5

// couplingMinWeight is the minimum edge weight at which two files earn a
// COUPLING lesson for each other. Edge weight is capped at 1.0, so this sits
// well above the graph's own minEdgeWeight inclusion floor of 0.1 — a
// tracked edge needs to be more than barely-present before it's worth
// surfacing as a lesson.
const couplingMinWeight = 0.3

// LoadLessons assembles the full lesson pool from every source named in
// §3's Lesson types: skills.mdc (AVOID), decisions.jsonl (DECISION), past
// reversed interventions (REVERSAL), the coupling graph (COUPLING),
// version-history length (HOTSPOT), and chat thread topics (CHAT).
func LoadLessons(rl4Dir string, g *graph.Graph, store *blob.Store, pastRecords []Record, decisions []evidence.DecisionRecord, threads []evidence.ChatThread, now int64) []Lesson {
	var lessons []Lesson
	lessons = append(lessons, loadAvoidLessons(rl4Dir, now)...)
	lessons = append(lessons, loadDecisionLessons(decisions, now)...)
	lessons = append(lessons, loadReversalLessons(pastRecords)...)
	lessons = append(lessons, loadCouplingLessons(g, now)...)
	lessons = append(lessons, loadHotspotLessons(store, now)...)
	lessons = append(lessons, loadChatLessons(threads)...)
	return dedupeLessons(lessons)
}

// loadAvoidLessons reads skills.mdc line by line: blank lines and lines
// starting with "#" are skipped, every remaining line becomes one AVOID
// lesson (§6 "free-text rules file ... read line-by-line to extract AVOID
// patterns").
func loadAvoidLessons(rl4Dir string, now int64) []Lesson {
	f, err := os.Open(rl4Dir + "/skills.mdc")
	if err != nil {
		return nil
	}
	defer f.Close()

	var lessons []Lesson
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lessons = append(lessons, NewLesson(LessonAvoid, "", line, []string{"skills.mdc"}, now, now))
	}
	return lessons
}

func loadDecisionLessons(decisions []evidence.DecisionRecord, now int64) []Lesson {
	var lessons []Lesson
	for _, d := range decisions {
		text := fmt.Sprintf("decided: %s (chose %s)", d.IntentText, d.ChosenOption)
		ref := d.ID
		lessons = append(lessons, NewLesson(LessonDecision, "", text, []string{ref}, now, now))
	}
	return lessons
}

// loadReversalLessons turns past reversed_fast interventions into
// cautionary lessons scoped to the file that was reversed.
func loadReversalLessons(records []Record) []Lesson {
	var lessons []Lesson
	for _, rec := range records {
		if rec.Outcome != OutcomeReversedFast || rec.TargetFile == "" {
			continue
		}
		text := fmt.Sprintf("an edit to %s was reversed shortly after being applied", rec.TargetFile)
		lessons = append(lessons, NewLesson(LessonReversal, rec.TargetFile, text, []string{rec.ID}, rec.Timestamp, rec.ResolvedAt))
	}
	return lessons
}

// loadCouplingLessons emits a COUPLING lesson for each file pair whose
// edge weight clears couplingMinWeight, in both directions so either file
// can surface it as an origin (§4.8).
func loadCouplingLessons(g *graph.Graph, now int64) []Lesson {
	if g == nil {
		return nil
	}
	var lessons []Lesson
	for _, origin := range g.TrackedFiles() {
		for _, neighbor := range g.Neighbors(origin) {
			w := g.Weight(origin, neighbor)
			if w < couplingMinWeight {
				continue
			}
			text := fmt.Sprintf("changes here are usually paired with changes to %s", neighbor)
			lessons = append(lessons, NewLesson(LessonCoupling, origin, text, []string{neighbor}, now, now))
		}
	}
	return lessons
}

// loadHotspotLessons flags files with long version histories, per §3's
// HOTSPOT lesson type: frequently-revised files are more likely to regress.
func loadHotspotLessons(store *blob.Store, now int64) []Lesson {
	if store == nil {
		return nil
	}
	var lessons []Lesson
	for _, path := range store.TrackedPaths() {
		versions, ok := store.History(path)
		if !ok || len(versions) < hotspotMinVersions {
			continue
		}
		text := fmt.Sprintf("%s has been revised %d times; review changes carefully", path, len(versions))
		lessons = append(lessons, NewLesson(LessonHotspot, path, text, nil, now, now))
	}
	return lessons
}

// loadChatLessons surfaces the topics of chat threads with enough volume
// to suggest a recurring discussion worth resurfacing.
func loadChatLessons(threads []evidence.ChatThread) []Lesson {
	var lessons []Lesson
	for _, th := range threads {
		if th.Count < 3 || len(th.Topics) == 0 {
			continue
		}
		text := fmt.Sprintf("%s: %s", th.Title, strings.Join(th.Topics, ", "))
		lessons = append(lessons, NewLesson(LessonChat, "", text, []string{th.ThreadKey}, th.FirstMs, th.LastMs))
	}
	return lessons
}

// dedupeLessons collapses lessons whose id (type + origin + SimHash
// fingerprint) already collided, keeping the widest first/last-seen range
// and the union of evidence refs.
func dedupeLessons(lessons []Lesson) []Lesson {
	byID := map[string]*Lesson{}
	var order []string
	for _, l := range lessons {
		if existing, ok := byID[l.ID]; ok {
			if l.FirstSeen < existing.FirstSeen {
				existing.FirstSeen = l.FirstSeen
			}
			if l.LastSeen > existing.LastSeen {
				existing.LastSeen = l.LastSeen
			}
			existing.EvidenceRefs = append(existing.EvidenceRefs, l.EvidenceRefs...)
			continue
		}
		cp := l
		byID[l.ID] = &cp
		order = append(order, l.ID)
	}
	sort.Strings(order)
	out := make([]Lesson, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
