package plrnn

import (
	"fmt"
	"math"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// Detection thresholds for the four signal families.
const (
	acRiseThreshold      = 0.1  // late AC must rise by more than this
	acLevelThreshold     = 0.5  // and exceed this level
	varianceRatio        = 1.5  // late/early variance trigger
	flickeringDelta      = 0.25 // change in normalized mean-crossing rate
	connectivityRatio    = 1.3  // late/early mean pairwise correlation trigger
	maxTimeToTransition  = 48.0
	confidenceFullLength = 48.0 // history length at which confidence saturates
)

// DetectEarlyWarnings compares an early window against a late window of
// the history per dimension and reports autocorrelation, variance,
// flickering, and network-connectivity precursors of a critical
// transition. windowSize <= 0 falls back to the configured default.
func (e *Engine) DetectEarlyWarnings(history [][]float64, windowSize int) ([]forecast.EarlyWarning, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}
	if windowSize <= 0 {
		windowSize = e.config.WarningWindow
	}
	return e.detectWarnings(history, windowSize), nil
}

func (e *Engine) detectWarnings(history [][]float64, windowSize int) []forecast.EarlyWarning {
	n := len(history)
	if windowSize < 3 || n < 2*windowSize {
		return nil
	}

	dim := len(history[0])
	confidence := mathx.Clamp(float64(n)/confidenceFullLength, 0.2, 1.0)

	early := make([][]float64, dim) // per-dimension series, early window
	late := make([][]float64, dim)
	for d := 0; d < dim; d++ {
		early[d] = column(history[:windowSize], d)
		late[d] = column(history[n-windowSize:], d)
	}

	var signals []forecast.EarlyWarning
	for d := 0; d < dim; d++ {
		label := dimensionLabel(d)

		earlyAC := mathx.Lag1Autocorrelation(early[d])
		lateAC := mathx.Lag1Autocorrelation(late[d])
		if lateAC-earlyAC > acRiseThreshold && lateAC > acLevelThreshold {
			ttt := 0.0
			if lateAC < 1 {
				ttt = math.Min(maxTimeToTransition, 1.0/(1.0-lateAC))
			}
			signals = append(signals, forecast.EarlyWarning{
				Kind:             forecast.WarningAutocorrelation,
				Dimension:        label,
				Strength:         lateAC - earlyAC,
				Confidence:       confidence,
				TimeToTransition: ttt,
				Recommendation: fmt.Sprintf(
					"critical slowing down on %s; recovery from perturbations is weakening, consider early stabilizing support", label),
			})
		}

		earlyVar := mathx.Variance(early[d])
		lateVar := mathx.Variance(late[d])
		if earlyVar > 0 && lateVar > varianceRatio*earlyVar {
			signals = append(signals, forecast.EarlyWarning{
				Kind:       forecast.WarningVariance,
				Dimension:  label,
				Strength:   lateVar/earlyVar - 1.0,
				Confidence: confidence,
				Recommendation: fmt.Sprintf(
					"rising variance on %s; state swings are widening, increase observation frequency", label),
			})
		}

		earlyCross := mathx.MeanCrossingRate(early[d])
		lateCross := mathx.MeanCrossingRate(late[d])
		if math.Abs(lateCross-earlyCross) > flickeringDelta {
			signals = append(signals, forecast.EarlyWarning{
				Kind:       forecast.WarningFlickering,
				Dimension:  label,
				Strength:   math.Abs(lateCross - earlyCross),
				Confidence: confidence,
				Recommendation: fmt.Sprintf(
					"flickering on %s; the state is switching between regimes, watch for bistability", label),
			})
		}
	}

	earlyConn := meanPairwiseCorrelation(early)
	lateConn := meanPairwiseCorrelation(late)
	if earlyConn > 0 && lateConn > connectivityRatio*earlyConn {
		signals = append(signals, forecast.EarlyWarning{
			Kind:       forecast.WarningConnectivity,
			Dimension:  "network",
			Strength:   lateConn/earlyConn - 1.0,
			Confidence: confidence,
			Recommendation: "rising cross-dimension coupling; the whole state network is tightening, " +
				"a system-level transition may be approaching",
		})
	}

	return signals
}

// column extracts one dimension's series from a trajectory.
func column(rows [][]float64, d int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if d < len(r) {
			out[i] = r[d]
		}
	}
	return out
}

// meanPairwiseCorrelation averages |corr| over all dimension pairs.
func meanPairwiseCorrelation(series [][]float64) float64 {
	dim := len(series)
	if dim < 2 {
		return 0
	}
	var sum float64
	var count int
	for i := 0; i < dim; i++ {
		for j := i + 1; j < dim; j++ {
			sum += math.Abs(mathx.PearsonCorrelation(series[i], series[j]))
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// dimensionLabel maps an index to its canonical label, falling back to a
// positional name for engines configured beyond the canonical space.
func dimensionLabel(d int) string {
	if d < len(state.DimensionLabels) {
		return state.DimensionLabels[d]
	}
	return fmt.Sprintf("dim%d", d)
}
