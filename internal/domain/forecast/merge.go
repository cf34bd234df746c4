package forecast

import "time"

// Engine names used for the primary-engine tag on merged forecasts.
const (
	EnginePLRNN        = "plrnn"
	EngineKalmanFormer = "kalmanformer"
)

// Merge combines the two engines' forecasts under the horizon policy:
// short delegates to the filter-encoder, long to the dynamics engine,
// medium averages the means at equal weight and takes the wider CI bound
// per dimension. Either forecast may be nil; the other is returned with
// its own engine tagged primary.
func Merge(plrnn, kf *Forecast, horizon Horizon) *Forecast {
	if plrnn == nil && kf == nil {
		return nil
	}
	if plrnn == nil {
		return tagged(kf, EngineKalmanFormer)
	}
	if kf == nil {
		return tagged(plrnn, EnginePLRNN)
	}

	switch horizon {
	case HorizonShort:
		return tagged(kf, EngineKalmanFormer)
	case HorizonLong:
		// Nonlinear regime shifts dominate long horizons; the filter's
		// near-linear extrapolation is intentionally ignored here.
		return tagged(plrnn, EnginePLRNN)
	}

	dim := len(plrnn.Mean)
	merged := &Forecast{
		Horizon:       horizon,
		Steps:         plrnn.Steps,
		Trajectory:    plrnn.Trajectory,
		Mean:          make([]float64, dim),
		Lower:         make([]float64, dim),
		Upper:         make([]float64, dim),
		Confidence:    (plrnn.Confidence + kf.Confidence) / 2,
		PrimaryEngine: EnginePLRNN,
		Warnings:      plrnn.Warnings,
		Attention:     kf.Attention,
		GeneratedAt:   time.Now(),
	}
	for i := 0; i < dim; i++ {
		merged.Mean[i] = (plrnn.Mean[i] + kf.Mean[i]) / 2
		// Conservative union of the two bands.
		merged.Lower[i] = minf(plrnn.Lower[i], kf.Lower[i])
		merged.Upper[i] = maxf(plrnn.Upper[i], kf.Upper[i])
	}
	return merged
}

// tagged copies the forecast before tagging so callers keep their inputs
// unmodified.
func tagged(f *Forecast, engine string) *Forecast {
	out := *f
	out.PrimaryEngine = engine
	return &out
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
