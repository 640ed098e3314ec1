package cre

import "github.com/soynido/rl4/internal/evidence"

// IsRefactorStorm reports whether recent burst history qualifies as a
// refactor storm (§4.11): at least 6 of the last 10 bursts are
// refactor-pattern bursts with an average event count > 4. recentBursts
// must already be truncated/ordered to "the last 10" by the caller.
func IsRefactorStorm(recentBursts []evidence.SessionBurst) bool {
	n := len(recentBursts)
	if n == 0 {
		return false
	}
	if n > 10 {
		recentBursts = recentBursts[n-10:]
		n = 10
	}
	refactorCount := 0
	totalEvents := 0
	for _, b := range recentBursts {
		if b.Pattern.Type == "refactor" {
			refactorCount++
			totalEvents += b.EventsCount
		}
	}
	if refactorCount < 6 {
		return false
	}
	avg := float64(totalEvents) / float64(refactorCount)
	return avg > 4
}

const (
	reworkedLinesThreshold  = 50
	reworkedWindowMs        = 60 * 60 * 1000
	acceptedNoTouchMs       = 60 * 60 * 1000
	acceptedSessionEndMs    = 20 * 60 * 1000
	acceptedCommitSettleMs  = 15 * 60 * 1000
	indeterminateAfterMs    = 120 * 60 * 1000
	reversedLookaheadEvents = 5
)

// ResolveOutcome implements §4.10's outcome table, checked strictly in
// order: reversed_fast, reworked, accepted, indeterminate. activity must be
// every file-save event on rec.TargetFile with T > rec.Timestamp, sorted
// ascending by T. lastKnownLines is the total line count of the file's
// last known version (0 if unavailable); committedAt, if non-nil, is the
// timestamp of a commit known to include the target file. Returns
// resolved=false if none of the conditions hold yet (the intervention
// stays pending).
func ResolveOutcome(rec Record, activity []evidence.ActivityRecord, now int64, lastKnownLines int, committedAt *int64) (Outcome, OutcomeSignals, bool) {
	if repeatedHashInLookahead(activity) {
		return OutcomeReversedFast, OutcomeSignals{RepeatedHash: true}, true
	}

	changed, withinWindow := linesChangedWithin(activity, rec.Timestamp, reworkedWindowMs)
	if withinWindow && reworked(changed, lastKnownLines) {
		return OutcomeReworked, OutcomeSignals{LinesChanged: changed}, true
	}

	lastEventT := rec.Timestamp
	if len(activity) > 0 {
		lastEventT = activity[len(activity)-1].T
	}
	noTouchMs := now - lastEventT
	noTouchMinutes := int(noTouchMs / 60000)

	if noTouchMs >= acceptedNoTouchMs {
		return OutcomeAccepted, OutcomeSignals{NoTouchMinutes: noTouchMinutes}, true
	}
	if len(activity) > 0 && noTouchMs >= acceptedSessionEndMs && !reworked(changed, lastKnownLines) {
		return OutcomeAccepted, OutcomeSignals{NoTouchMinutes: noTouchMinutes}, true
	}
	if committedAt != nil && *committedAt > rec.Timestamp {
		settledMs := now - *committedAt
		noEditsAfterCommit := true
		for _, a := range activity {
			if a.T > *committedAt {
				noEditsAfterCommit = false
				break
			}
		}
		if noEditsAfterCommit && settledMs >= acceptedCommitSettleMs {
			return OutcomeAccepted, OutcomeSignals{CommittedStable: true}, true
		}
	}

	elapsedMs := now - rec.Timestamp
	elapsedMinutes := int(elapsedMs / 60000)
	if elapsedMs > indeterminateAfterMs {
		return OutcomeIndeterminate, OutcomeSignals{ElapsedMinutes: elapsedMinutes}, true
	}

	return OutcomePending, OutcomeSignals{}, false
}

func repeatedHashInLookahead(activity []evidence.ActivityRecord) bool {
	n := reversedLookaheadEvents
	if len(activity) < n {
		n = len(activity)
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		h := activity[i].SHA256
		if h == "" {
			continue
		}
		if seen[h] {
			return true
		}
		seen[h] = true
	}
	return false
}

func linesChangedWithin(activity []evidence.ActivityRecord, since int64, windowMs int64) (int, bool) {
	total := 0
	any := false
	for _, a := range activity {
		if a.T-since > windowMs {
			break
		}
		total += a.LinesAdded + a.LinesRemoved
		any = true
	}
	return total, any
}

func reworked(changed, lastKnownLines int) bool {
	if changed >= reworkedLinesThreshold {
		return true
	}
	if lastKnownLines > 0 && float64(changed) >= 0.15*float64(lastKnownLines) {
		return true
	}
	return false
}

// ResolvePending scans log's pending records and resolves whichever ones
// ResolveOutcome decides. activityByFile must map target file path to its
// activity events sorted ascending by T. The entire log is rewritten
// atomically (§5's read-modify-write requirement); returns the records that
// transitioned out of pending this call, for the caller to fold into state.
func ResolvePending(log *Log, activityByFile map[string][]evidence.ActivityRecord, now int64, lastKnownLines map[string]int, committedAt map[string]int64, recentBursts []evidence.SessionBurst) ([]Record, error) {
	all := log.ReadAll()
	storm := IsRefactorStorm(recentBursts)
	var newlyResolved []Record
	for i, rec := range all {
		if rec.Outcome != OutcomePending {
			continue
		}
		events := activityByFile[rec.TargetFile]
		var after []evidence.ActivityRecord
		for _, e := range events {
			if e.T > rec.Timestamp {
				after = append(after, e)
			}
		}
		var commitPtr *int64
		if t, ok := committedAt[rec.TargetFile]; ok {
			commitPtr = &t
		}
		outcome, signals, resolved := ResolveOutcome(rec, after, now, lastKnownLines[rec.TargetFile], commitPtr)
		if !resolved {
			continue
		}
		rec.Outcome = outcome
		rec.Signals = signals
		rec.ResolvedAt = now
		rec.RefactorStorm = storm
		all[i] = rec
		newlyResolved = append(newlyResolved, rec)
	}
	if len(newlyResolved) == 0 {
		return nil, nil
	}
	if err := log.rewriteAll(all); err != nil {
		return nil, err
	}
	return newlyResolved, nil
}
