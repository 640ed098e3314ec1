package cre

import "strconv"

const (
	msPerDay       = 24 * 60 * 60 * 1000
	safetyWindowMs = 7 * msPerDay
	minAdjacentObs = 5
	minTotalForFreeze = 10
	freezeGapThreshold = 0.15
)

// resolvedEvent is the minimal per-resolved-intervention record kept in
// State to recompute the 7-day/prior-week reversal-rate windows (§4.11)
// without re-reading the log. It is not persisted: the periodically
// re-derived cre_state.json is only ever a checkpoint, and an exact restore
// of the window history is obtained by replaying the log (see Replay).
type resolvedEvent struct {
	at       int64
	reversed bool
}

// ApplyIntervention folds one resolved intervention record into state,
// mutating it in place, per §4.11's "State update". Records with outcome
// pending, indeterminate, or stamped RefactorStorm contribute nothing
// (excluded from both the treatment/control updates and the safety
// totals), so replay and online updates agree exactly.
func ApplyIntervention(state *State, rec Record) {
	if rec.Outcome == OutcomePending {
		return
	}
	if rec.Outcome == OutcomeIndeterminate || rec.RefactorStorm {
		return
	}

	selectedBuckets := map[int]bool{}
	for _, sel := range rec.Selected {
		c := state.counters(sel.ID, sel.Type, rec.Timestamp)
		applyOutcome(&c.InjectedOK, &c.InjectedFail, &c.InjectedSoftFail, rec.Outcome)
		c.Triggers++
		c.LastTriggered = rec.ResolvedAt
		selectedBuckets[sel.DensityBucket] = true
	}

	for _, cand := range rec.Candidates {
		bucket := cand.DensityBucket
		matches := selectedBuckets[bucket]
		if !matches {
			for b := range selectedBuckets {
				if (b == bucket-1 || b == bucket+1) && adjacentHasFewObservations(state, cand.ID) {
					matches = true
					break
				}
			}
		}
		if !matches {
			continue
		}
		c := state.counters(cand.ID, cand.Type, rec.Timestamp)
		applyOutcome(&c.BaselineOK, &c.BaselineFail, &c.BaselineSoftFail, rec.Outcome)
	}

	state.KPIs.TotalInterventions++
	switch rec.Outcome {
	case OutcomeAccepted:
		state.KPIs.TotalAccepted++
	case OutcomeReworked:
		state.KPIs.TotalReworked++
	case OutcomeReversedFast:
		state.KPIs.TotalReversed++
	}

	state.history = append(state.history, resolvedEvent{at: rec.ResolvedAt, reversed: rec.Outcome == OutcomeReversedFast})
	state.history = pruneHistory(state.history, rec.ResolvedAt)
	recomputeSafety(state, rec.ResolvedAt)
}

func applyOutcome(ok, fail, softFail *int, outcome Outcome) {
	switch outcome {
	case OutcomeAccepted:
		*ok++
	case OutcomeReworked:
		*softFail++
	case OutcomeReversedFast:
		*fail++
	}
}

func adjacentHasFewObservations(state *State, lessonID string) bool {
	c, ok := state.Lessons[lessonID]
	if !ok {
		return true
	}
	return c.BaselineOK+c.BaselineFail+c.BaselineSoftFail < minAdjacentObs
}

func pruneHistory(history []resolvedEvent, now int64) []resolvedEvent {
	cutoff := now - 2*safetyWindowMs
	out := history[:0:0]
	for _, h := range history {
		if h.at >= cutoff {
			out = append(out, h)
		}
	}
	return out
}

func windowRate(history []resolvedEvent, from, to int64) float64 {
	total, reversed := 0, 0
	for _, h := range history {
		if h.at > from && h.at <= to {
			total++
			if h.reversed {
				reversed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(reversed) / float64(total)
}

// recomputeSafety recomputes the 7-day (window A) and prior-week (window B)
// reversal rates and applies the freeze/auto-unfreeze rule (§4.11).
func recomputeSafety(state *State, now int64) {
	windowA := windowRate(state.history, now-safetyWindowMs, now)
	windowB := windowRate(state.history, now-2*safetyWindowMs, now-safetyWindowMs)

	state.Safety.RecentWindowRate = windowA
	state.Safety.PriorWindowRate = windowB
	state.Safety.TotalInterventions = state.KPIs.TotalInterventions

	if state.Safety.TotalInterventions < minTotalForFreeze {
		return
	}

	if windowA > windowB+freezeGapThreshold && windowB > 0 {
		if !state.Safety.Frozen {
			state.Safety.Frozen = true
			state.Safety.FrozenAt = now
		}
		state.Safety.FrozenReason = frozenReason(windowA, windowB)
		return
	}
	if state.Safety.Frozen && windowA <= windowB {
		state.Safety.Frozen = false
		state.Safety.FrozenReason = ""
	}
}

func frozenReason(windowA, windowB float64) string {
	return "recent reversal rate " + formatRate(windowA) + " exceeds prior-week rate " + formatRate(windowB) + " by more than 0.15"
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', 2, 64)
}

// Replay recomputes a CRE state from scratch by folding records in file
// order (§4.11 "Deterministic replay"): the result must be byte-identical
// (field-for-field) to the state produced by online updates over the same
// log, since ApplyIntervention is the sole mutator used by both paths.
func Replay(records []Record, weights Weights) *State {
	state := NewState()
	state.Weights = weights
	for _, rec := range records {
		ApplyIntervention(state, rec)
	}
	return state
}
