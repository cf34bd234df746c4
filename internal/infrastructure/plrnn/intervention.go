package plrnn

import (
	"fmt"
	"math"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// interventionHorizon is the fixed simulation length in steps.
const interventionHorizon = 24

// sideEffectThreshold is the minimum final effect magnitude on a
// non-target dimension to be reported as a side effect.
const sideEffectThreshold = 0.1

// SimulateIntervention runs a counterfactual: a baseline trajectory and an
// intervened trajectory from the same start state, where the intervention
// feeds a sustained input on the target dimension (+magnitude, -magnitude,
// or -0.5x the current value for stabilize). The report carries the
// per-dimension effect at the horizon end, the step of peak effect on the
// target, the decay duration, side effects, and a confidence derived from
// the target's final uncertainty.
func (e *Engine) SimulateIntervention(st *state.LatentState, target string, mode forecast.InterventionMode, magnitude float64) (*forecast.InterventionReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}

	idx, err := state.DimensionIndex(target)
	if err != nil {
		return nil, err
	}

	input := make([]float64, e.config.LatentDim)
	switch mode {
	case forecast.InterventionIncrease:
		input[idx] = magnitude
	case forecast.InterventionDecrease:
		input[idx] = -magnitude
	case forecast.InterventionStabilize:
		input[idx] = -0.5 * st.Latent[idx]
	default:
		return nil, fmt.Errorf("unknown intervention mode: %q", mode)
	}

	baseCur := st.Clone()
	intCur := st.Clone()
	effects := make([][]float64, interventionHorizon) // per step, per dimension
	for t := 0; t < interventionHorizon; t++ {
		baseCur = e.step(baseCur, nil)
		intCur = e.step(intCur, input)
		diff := make([]float64, e.config.ObservedDim)
		for d := range diff {
			diff[d] = intCur.Observed[d] - baseCur.Observed[d]
		}
		effects[t] = diff
	}

	final := effects[interventionHorizon-1]

	// Peak and decay on the target dimension.
	peakStep, peakAbs := 0, 0.0
	for t, diff := range effects {
		if a := math.Abs(diff[idx]); a > peakAbs {
			peakAbs = a
			peakStep = t
		}
	}
	duration := interventionHorizon
	for t := peakStep + 1; t < interventionHorizon; t++ {
		if math.Abs(effects[t][idx]) < 0.1*peakAbs {
			duration = t
			break
		}
	}

	report := &forecast.InterventionReport{
		Target:     target,
		Mode:       mode,
		Magnitude:  magnitude,
		Effects:    make(map[string]float64, e.config.ObservedDim),
		TimeToPeak: peakStep,
		Duration:   duration,
		Confidence: mathx.Clamp(1.0-intCur.Uncertainty[idx], 0, 1),
	}
	for d, v := range final {
		label := dimensionLabel(d)
		report.Effects[label] = v
		if d != idx && math.Abs(v) > sideEffectThreshold {
			report.SideEffects = append(report.SideEffects, label)
		}
	}
	return report, nil
}
