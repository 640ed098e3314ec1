package cre

import (
	"math"
	"time"
)

func unixMillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// v2Gate is the minimum count of resolved interventions required before
// weight adaptation activates (§4.11 "V2 weight adaptation").
const v2Gate = 100

// v2PropensityClipLow, v2PropensityClipHigh bound pi_log during the
// doubly-robust estimate, per §4.11.
const (
	v2PropensityClipLow  = 0.05
	v2PropensityClipHigh = 0.95
	v2WeakPrior          = 0.7
	v2WeightClampLow     = 0.1
	v2WeightClampHigh    = 0.6
)

func outcomeSignal(outcome Outcome) (float64, bool) {
	switch outcome {
	case OutcomeAccepted:
		return 1.0, true
	case OutcomeReworked:
		return 0.3, true
	case OutcomeReversedFast:
		return 0.0, true
	default:
		return 0, false
	}
}

// resolvedForV2 filters records down to the ones eligible for the V2
// estimator: resolved with a defined outcome signal, not during a refactor
// storm (mirroring ApplyIntervention's own exclusion rule so the training
// set matches what actually updated the counters).
func resolvedForV2(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.RefactorStorm {
			continue
		}
		if _, ok := outcomeSignal(r.Outcome); ok {
			out = append(out, r)
		}
	}
	return out
}

// axisSignal averages one axis across an intervention's selected lessons.
func axisSignal(rec Record, axis func(AxisBreakdown) float64) float64 {
	if len(rec.Selected) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range rec.Selected {
		sum += axis(s.Axes)
	}
	return sum / float64(len(rec.Selected))
}

// meanPropensity is this implementation's scalar stand-in for pi_log: the
// mean of the intervention's propensity vector (a safe simplification
// explicitly allowed by the REDESIGN FLAGS note, which leaves the exact DR
// estimator as a design choice).
func meanPropensity(rec Record) float64 {
	if len(rec.PropensityLog) == 0 {
		return 1
	}
	sum := 0.0
	for _, p := range rec.PropensityLog {
		sum += p
	}
	return sum / float64(len(rec.PropensityLog))
}

func clipPropensity(p float64) float64 {
	return clamp(p, v2PropensityClipLow, v2PropensityClipHigh)
}

// doublyRobust computes DR for one axis over the eligible records, per
// §4.11's formula.
func doublyRobust(records []Record, axis func(AxisBreakdown) float64) float64 {
	sum := 0.0
	for _, rec := range records {
		y, _ := outcomeSignal(rec.Outcome)
		signal := axisSignal(rec, axis)
		pi := clipPropensity(meanPropensity(rec))
		sum += (y-v2WeakPrior)*signal/pi + v2WeakPrior*signal
	}
	return sum
}

// MaybeAdaptWeights activates V2 weight adaptation once at least v2Gate
// resolved interventions have accumulated, per §4.11. now is stamped as
// the activation time the first time it fires. Returns true if weights
// were updated.
func MaybeAdaptWeights(state *State, records []Record, now int64) bool {
	eligible := resolvedForV2(records)
	n := len(eligible)
	if n < v2Gate {
		return false
	}
	if state.V2ActivatedAt == nil {
		t := unixMillisToTime(now)
		state.V2ActivatedAt = &t
	}

	lr := 0.1 / math.Sqrt(float64(n)/float64(v2Gate))

	drAlpha := doublyRobust(eligible, func(a AxisBreakdown) float64 { return a.CausalProximity })
	drBeta := doublyRobust(eligible, func(a AxisBreakdown) float64 { return a.Counterfactual })
	drGamma := doublyRobust(eligible, func(a AxisBreakdown) float64 { return a.Temporal })
	drDelta := doublyRobust(eligible, func(a AxisBreakdown) float64 { return a.InfoGain })

	w := state.Weights
	w.Alpha += lr * drAlpha
	w.Beta += lr * drBeta
	w.Gamma += lr * drGamma
	w.Delta += lr * drDelta

	w.Alpha = clamp(w.Alpha, v2WeightClampLow, v2WeightClampHigh)
	w.Beta = clamp(w.Beta, v2WeightClampLow, v2WeightClampHigh)
	w.Gamma = clamp(w.Gamma, v2WeightClampLow, v2WeightClampHigh)
	w.Delta = clamp(w.Delta, v2WeightClampLow, v2WeightClampHigh)

	sum := w.Alpha + w.Beta + w.Gamma + w.Delta
	if sum > 0 {
		w.Alpha /= sum
		w.Beta /= sum
		w.Gamma /= sum
		w.Delta /= sum
	}

	state.Weights = w
	return true
}
