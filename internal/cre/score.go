package cre

import "math"

// AxisBreakdown is the per-axis score detail attached to a ScoredLesson
// (§3 "Scored lesson").
type AxisBreakdown struct {
	CausalProximity float64 `json:"causal_proximity"`
	Counterfactual  float64 `json:"counterfactual"`
	Temporal        float64 `json:"temporal"`
	InfoGain        float64 `json:"info_gain"`
}

// ScoredLesson is a Lesson plus its composite score and axis breakdown
// (§3).
type ScoredLesson struct {
	Lesson        Lesson        `json:"lesson"`
	Score         float64       `json:"score"`
	Axes          AxisBreakdown `json:"axes"`
	Tokens        int           `json:"tokens"`
	Density       float64       `json:"density"`
	DensityBucket int           `json:"density_bucket"`
}

// proximityGraph is the minimal surface of *graph.Graph the scorer needs.
// The scoring and selection functions take this interface rather than
// *graph.Graph, so *graph.Graph or any other type with a Proximity method
// can be passed.
type proximityGraph interface {
	Proximity(origin, target string) float64
}

// typePriors are the counterfactual axis's type-specific fallback used when
// no state or no per-lesson record exists yet (§4.9).
var typePriors = map[LessonType]float64{
	LessonAvoid:    0.6,
	LessonReversal: 0.4,
	LessonCoupling: 0.2,
	LessonDecision: 0.15,
	LessonChat:     0.1,
	LessonHotspot:  0.05,
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// causalProximityAxis computes graph.proximity(lesson.origin_file,
// target_file) (§4.9).
func causalProximityAxis(g proximityGraph, lesson Lesson, targetFile string) float64 {
	if g == nil {
		return 0
	}
	return g.Proximity(lesson.OriginFile, targetFile)
}

// counterfactualAxis implements §4.9's counterfactual axis: a type prior
// when no observations exist, else a clamp(p_fail_baseline - p_fail_treated
// + prior/sqrt(1+n_obs), 0, 1) shrinkage estimate.
func counterfactualAxis(state *State, lessonID string, typ LessonType) float64 {
	prior := typePriors[typ]
	if state == nil {
		return prior
	}
	c, ok := state.Lessons[lessonID]
	if !ok {
		return prior
	}
	nObs := c.observations()
	if nObs == 0 {
		return prior
	}
	pFailTreated := (float64(c.InjectedFail) + 0.5*float64(c.InjectedSoftFail) + 1) /
		(float64(c.InjectedFail) + float64(c.InjectedOK) + float64(c.InjectedSoftFail) + 2)
	pFailBaseline := (float64(c.BaselineFail) + 0.5*float64(c.BaselineSoftFail) + 1) /
		(float64(c.BaselineFail) + float64(c.BaselineOK) + float64(c.BaselineSoftFail) + 2)
	return clamp(pFailBaseline-pFailTreated+prior/math.Sqrt(1+float64(nObs)), 0, 1)
}

// temporalAxis implements §4.9's temporal decay axis.
func temporalAxis(lesson Lesson, triggers int, now, avgDaysBetweenSaves float64) float64 {
	deltaDays := now - float64(lesson.LastSeen)/86400000
	lambda := clamp(1/math.Max(2, avgDaysBetweenSaves), 0.05, 0.5)
	return math.Exp(-lambda*deltaDays) * math.Min(3.0, 1+math.Log(1+float64(triggers)))
}

// baseScore computes S = alpha*prox + beta*counter + gamma*temporal (§4.9),
// without the info_gain term (computed only during selection).
func baseScore(w Weights, prox, counter, temporal float64) float64 {
	return w.Alpha*prox + w.Beta*counter + w.Gamma*temporal
}

// ScoreLessons scores each lesson over the three static axes
// (causal_proximity, counterfactual, temporal); info_gain and the final
// composite (including delta*info_gain) are computed during Select.
// nowUnixDays and avgDaysBetweenSaves are expressed in days, matching
// §4.9's temporal-decay formula.
func ScoreLessons(lessons []Lesson, g proximityGraph, state *State, targetFile string, avgDaysBetweenSaves, nowUnixDays float64) []ScoredLesson {
	weights := DefaultWeights()
	if state != nil {
		weights = state.Weights
	}
	out := make([]ScoredLesson, 0, len(lessons))
	for _, l := range lessons {
		triggers := 0
		if state != nil {
			if c, ok := state.Lessons[l.ID]; ok {
				triggers = c.Triggers
			}
		}
		prox := causalProximityAxis(g, l, targetFile)
		counter := counterfactualAxis(state, l.ID, l.Type)
		temporal := temporalAxis(l, triggers, nowUnixDays, avgDaysBetweenSaves)
		s := baseScore(weights, prox, counter, temporal)
		tokens := TokenEstimate(l.Text)
		density := 0.0
		if tokens > 0 {
			density = s / float64(tokens)
		}
		out = append(out, ScoredLesson{
			Lesson: l,
			Score:  s,
			Axes: AxisBreakdown{
				CausalProximity: prox,
				Counterfactual:  counter,
				Temporal:        temporal,
			},
			Tokens:        tokens,
			Density:       density,
			DensityBucket: densityBucket(density),
		})
	}
	return out
}
