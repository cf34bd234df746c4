package state

import "time"

// Neutral defaults applied when a posterior is absent from an incoming
// belief state. Dominance and risk are the fields the upstream belief
// engine most often omits.
const (
	DefaultDominanceMean = 0.5
	DefaultRiskMean      = 0.1
	DefaultVariance      = 0.1
)

// Gaussian is a single independent posterior.
type Gaussian struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// zero reports whether the posterior was never populated. A genuinely
// observed posterior always carries positive variance.
func (g Gaussian) zero() bool {
	return g.Mean == 0 && g.Variance == 0
}

// BeliefState is the external Bayesian representation of the five
// psychological dimensions as independent Gaussian posteriors. It is
// owned by the upstream belief engine; this core only converts it.
type BeliefState struct {
	Valence   Gaussian  `json:"valence"`
	Arousal   Gaussian  `json:"arousal"`
	Dominance Gaussian  `json:"dominance"`
	Risk      Gaussian  `json:"risk"`
	Resources Gaussian  `json:"resources"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Normalized returns a copy with absent posteriors replaced by neutral
// defaults and non-positive variances floored at DefaultVariance.
func (b BeliefState) Normalized() BeliefState {
	if b.Dominance.zero() {
		b.Dominance = Gaussian{Mean: DefaultDominanceMean, Variance: DefaultVariance}
	}
	if b.Risk.zero() {
		b.Risk = Gaussian{Mean: DefaultRiskMean, Variance: DefaultVariance}
	}
	posteriors := []*Gaussian{&b.Valence, &b.Arousal, &b.Dominance, &b.Risk, &b.Resources}
	for _, g := range posteriors {
		if g.Variance <= 0 {
			g.Variance = DefaultVariance
		}
	}
	return b
}

// Means returns the posterior means in canonical dimension order.
func (b BeliefState) Means() []float64 {
	return []float64{b.Valence.Mean, b.Arousal.Mean, b.Dominance.Mean, b.Risk.Mean, b.Resources.Mean}
}

// Variances returns the posterior variances in canonical dimension order.
func (b BeliefState) Variances() []float64 {
	return []float64{b.Valence.Variance, b.Arousal.Variance, b.Dominance.Variance, b.Risk.Variance, b.Resources.Variance}
}

// BeliefFromVectors rebuilds a belief state from mean/variance vectors in
// canonical dimension order. Short vectors leave trailing posteriors zero.
func BeliefFromVectors(means, variances []float64, at time.Time) BeliefState {
	get := func(v []float64, i int) float64 {
		if i < len(v) {
			return v[i]
		}
		return 0
	}
	return BeliefState{
		Valence:   Gaussian{Mean: get(means, DimValence), Variance: get(variances, DimValence)},
		Arousal:   Gaussian{Mean: get(means, DimArousal), Variance: get(variances, DimArousal)},
		Dominance: Gaussian{Mean: get(means, DimDominance), Variance: get(variances, DimDominance)},
		Risk:      Gaussian{Mean: get(means, DimRisk), Variance: get(variances, DimRisk)},
		Resources: Gaussian{Mean: get(means, DimResources), Variance: get(variances, DimResources)},
		UpdatedAt: at,
	}
}
