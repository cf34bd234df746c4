package kalmanformer

import (
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// topInfluences is how many past observations the explanation ranks.
const topInfluences = 5

// recencyDominanceRatio is how much heavier recent entries must weigh to
// classify the attention pattern as recency bias.
const recencyDominanceRatio = 1.5

// distantPeakRatio is how far the single heaviest attention weight must
// exceed the uniform share, when it sits at least two steps back, to
// classify the pattern as pattern matching.
const distantPeakRatio = 2.0

// Explain summarizes the self-attention weights over the observation
// history: the top influential past observations for the current step and
// a classification of the temporal pattern.
func (e *Engine) Explain() (*forecast.AttentionSummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}
	return e.explainLocked(), nil
}

// explainLocked assumes the caller holds at least a read lock. Returns nil
// when the history is empty; an empty-history explanation is a documented
// capability gap, not an error.
func (e *Engine) explainLocked() *forecast.AttentionSummary {
	n := len(e.history)
	if n == 0 {
		return nil
	}

	_, attention := encode(e.config, e.weights, e.historyEmbeddings())
	if len(attention) == 0 {
		return nil
	}

	// The last row is how the current step attends over the past.
	current := attention[n-1]

	summary := &forecast.AttentionSummary{
		Pattern:       classifyPattern(current),
		HistoryLength: n,
	}
	// Rank genuine past positions only; the current entry would otherwise
	// crowd out the history through self-attention.
	for _, idx := range mathx.TopKIndices(current[:n-1], topInfluences) {
		entry := e.history[idx]
		summary.TopInfluences = append(summary.TopInfluences, forecast.AttentionInfluence{
			Position:  idx,
			Weight:    current[idx],
			Timestamp: entry.observation.Timestamp,
			Values:    append([]float64(nil), entry.observation.Values...),
		})
	}
	return summary
}

// classifyPattern labels the temporal shape of one attention row:
// recency_bias when the most recent quarter of the window dominates,
// pattern_matching when non-adjacent history carries most of the weight,
// uniform otherwise.
func classifyPattern(weights []float64) forecast.AttentionPattern {
	n := len(weights)
	if n < 2 {
		return forecast.PatternUniform
	}

	recent := (n + 3) / 4
	var recentMass, restMass float64
	for i, w := range weights {
		if i >= n-recent {
			recentMass += w
		} else {
			restMass += w
		}
	}
	recentAvg := recentMass / float64(recent)
	restAvg := restMass / float64(n-recent)
	if restAvg > 0 && recentAvg > recencyDominanceRatio*restAvg {
		return forecast.PatternRecencyBias
	}

	// A pronounced peak at least two steps back reads as matching against
	// older history rather than tracking the recent trend.
	peak := 0
	var total float64
	for i, w := range weights {
		total += w
		if w > weights[peak] {
			peak = i
		}
	}
	if total > 0 && n-1-peak >= 2 && weights[peak] > distantPeakRatio*total/float64(n) {
		return forecast.PatternPatternMatching
	}
	return forecast.PatternUniform
}
