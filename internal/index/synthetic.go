package index

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soynido/rl4/internal/blob"
	"github.com/soynido/rl4/internal/chunk"
	"github.com/soynido/rl4/internal/evidence"
)

// buildLiveActivityChunks injects at most two summary chunks covering the
// last 24 hours — one summarizing work sessions, one summarizing hot
// files — so freshly-saved work is findable before a dashboard has been
// re-rendered (§4.4 "Synthetic chunks for live activity").
func buildLiveActivityChunks(activity []evidence.ActivityRecord, sessions []evidence.SessionBurst, now time.Time) []chunk.Chunk {
	cutoff := now.Add(-24 * time.Hour).UnixMilli()
	var chunks []chunk.Chunk

	var recent []evidence.SessionBurst
	for _, s := range sessions {
		if s.T >= cutoff {
			recent = append(recent, s)
		}
	}
	if len(recent) > 0 {
		sort.Slice(recent, func(i, j int) bool { return recent[i].T < recent[j].T })
		var b strings.Builder
		b.WriteString("recent work sessions (last 24h)\n")
		for _, s := range recent {
			fmt.Fprintf(&b, "%s: burst %s, %d files, %d events, %s, %dms\n",
				time.UnixMilli(s.T).UTC().Format(time.RFC3339), s.BurstID, len(s.Files), s.EventsCount, s.Pattern.Type, s.DurationMs)
		}
		meta := chunk.Meta{Tag: "live_sessions", Date: now.UTC().Format("2006-01-02")}
		chunks = append(chunks, chunk.New(strings.TrimSpace(b.String()), chunk.KindEvidence,
			fmt.Sprintf("live_sessions#%d", now.Unix()/86400), meta))
	}

	hot := map[string]int{}
	for _, a := range activity {
		if a.T >= cutoff {
			hot[a.Path] += a.LinesAdded + a.LinesRemoved
		}
	}
	if len(hot) > 0 {
		type hotFile struct {
			path  string
			churn int
		}
		files := make([]hotFile, 0, len(hot))
		for p, c := range hot {
			files = append(files, hotFile{path: p, churn: c})
		}
		sort.Slice(files, func(i, j int) bool {
			if files[i].churn != files[j].churn {
				return files[i].churn > files[j].churn
			}
			return files[i].path < files[j].path
		})
		var b strings.Builder
		b.WriteString("hot files (last 24h)\n")
		for _, f := range files {
			fmt.Fprintf(&b, "%s: %d lines churned\n", f.path, f.churn)
		}
		meta := chunk.Meta{Tag: "hot_files", Date: now.UTC().Format("2006-01-02")}
		chunks = append(chunks, chunk.New(strings.TrimSpace(b.String()), chunk.KindEvidence,
			fmt.Sprintf("hot_files#%d", now.Unix()/86400), meta))
	}
	return chunks
}

// buildFileHistoryChunks injects a per-file "version history" chunk for
// every blob-tracked file with at least two recorded versions, describing
// each version's timestamp and delta (§4.4 "Synthetic chunks for live
// activity").
func buildFileHistoryChunks(store *blob.Store) []chunk.Chunk {
	var chunks []chunk.Chunk
	for _, path := range store.TrackedPaths() {
		versions, ok := store.History(path)
		if !ok || len(versions) < 2 {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "version history: %s\n", path)
		var last blob.VersionMeta
		for i, hash := range versions {
			meta, ok := store.VersionMeta(hash)
			if !ok {
				continue
			}
			last = meta
			fmt.Fprintf(&b, "v%d %s: +%d/-%d lines (%d total, %d bytes)\n",
				i+1, meta.Timestamp.UTC().Format(time.RFC3339), meta.AddedLines, meta.RemovedLines, meta.TotalLines, meta.ByteSize)
		}
		chunkMeta := chunk.Meta{FilePath: path, Tag: "file_history", Date: last.Timestamp.UTC().Format("2006-01-02")}
		chunks = append(chunks, chunk.New(strings.TrimSpace(b.String()), chunk.KindEvidence,
			fmt.Sprintf("file_history#%s#%d", path, len(versions)), chunkMeta))
	}
	return chunks
}

// buildIntentChainChunks groups per-save file-change deltas by burst id
// into one synthetic chunk each, so a burst's overall intent trajectory is
// retrievable as a unit (§4.4 "intent-chain synthetic chunks").
func buildIntentChainChunks(records []evidence.IntentChainRecord) []chunk.Chunk {
	byBurst := map[string][]evidence.IntentChainRecord{}
	for _, r := range records {
		key := r.BurstID
		if key == "" {
			key = "unassigned"
		}
		byBurst[key] = append(byBurst[key], r)
	}

	var chunks []chunk.Chunk
	for _, burstID := range sortedKeys(byBurst) {
		recs := byBurst[burstID]
		sort.Slice(recs, func(i, j int) bool { return recs[i].T < recs[j].T })

		var b strings.Builder
		fmt.Fprintf(&b, "intent chain %s\n", burstID)
		for _, r := range recs {
			signal := r.IntentSignal
			if signal == "" {
				signal = "unclassified"
			}
			fmt.Fprintf(&b, "%s: %s +%d/-%d (net %d) [%s]\n",
				time.UnixMilli(r.T).UTC().Format(time.RFC3339), r.File,
				r.Delta.LinesAdded, r.Delta.LinesRemoved, r.Delta.NetChange, signal)
		}

		last := recs[len(recs)-1].T
		meta := chunk.Meta{Tag: "intent_chain", Date: time.UnixMilli(last).UTC().Format("2006-01-02")}
		rangeKey := fmt.Sprintf("intent_chain#%s#%d", burstID, len(recs))
		chunks = append(chunks, chunk.New(strings.TrimSpace(b.String()), chunk.KindEvidence, rangeKey, meta))
	}
	return chunks
}
