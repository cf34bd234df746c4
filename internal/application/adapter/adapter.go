// Package adapter bridges the external Bayesian belief representation to
// the two forecasting engines and orchestrates horizon-dependent blending
// into one hybrid forecast.
package adapter

import (
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/kalmanformer"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/plrnn"
)

// Adapter holds the configured engines. Either engine may be absent; the
// pass-through operations then return a nil result, which is a documented
// capability gap rather than an error.
type Adapter struct {
	dynamics *plrnn.Engine
	filter   *kalmanformer.Engine
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithPLRNN attaches the nonlinear dynamics engine.
func WithPLRNN(e *plrnn.Engine) Option {
	return func(a *Adapter) { a.dynamics = e }
}

// WithKalmanFormer attaches the hybrid filter-encoder.
func WithKalmanFormer(e *kalmanformer.Engine) Option {
	return func(a *Adapter) { a.filter = e }
}

// New builds an adapter and initializes every attached engine.
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{}
	for _, opt := range opts {
		opt(a)
	}
	if a.dynamics == nil && a.filter == nil {
		return nil, forecast.ErrNoEngine
	}
	if a.dynamics != nil {
		if err := a.dynamics.Initialize(); err != nil {
			return nil, err
		}
	}
	if a.filter != nil {
		if err := a.filter.Initialize(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// NewDefault builds an adapter with both engines on default configs.
func NewDefault() (*Adapter, error) {
	return New(
		WithPLRNN(plrnn.NewEngine(forecast.DefaultPLRNNConfig())),
		WithKalmanFormer(kalmanformer.NewEngine(forecast.DefaultKalmanFormerConfig())),
	)
}

// ToLatentState converts a belief state to the dynamics engine's native
// representation. Absent posteriors take the neutral defaults.
func (a *Adapter) ToLatentState(b state.BeliefState) (*state.LatentState, error) {
	if a.dynamics == nil {
		return nil, forecast.ErrNoEngine
	}
	nb := b.Normalized()
	st, err := a.dynamics.StateFromObservation(state.Observation{
		Values:    nb.Means(),
		Timestamp: nb.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	copy(st.Uncertainty, nb.Variances())
	return st, nil
}

// ToFilterState converts a belief state to the filter-encoder's native
// representation: posterior means as the estimate, variances on the
// covariance diagonal.
func (a *Adapter) ToFilterState(b state.BeliefState) (*state.FilterState, error) {
	if a.filter == nil {
		return nil, forecast.ErrNoEngine
	}
	nb := b.Normalized()
	st, err := a.filter.StateFromEstimate(nb.Means(), nb.Variances())
	if err != nil {
		return nil, err
	}
	if !nb.UpdatedAt.IsZero() {
		st.Timestamp = nb.UpdatedAt
	}
	return st, nil
}

// BeliefFromLatent converts a dynamics state back to belief posteriors.
func (a *Adapter) BeliefFromLatent(st *state.LatentState) state.BeliefState {
	return state.BeliefFromVectors(st.Observed, st.Uncertainty, st.Timestamp)
}

// BeliefFromFilter converts a filter state back to belief posteriors,
// taking variances from the covariance diagonal.
func (a *Adapter) BeliefFromFilter(st *state.FilterState) state.BeliefState {
	dim := len(st.Estimate)
	variances := make([]float64, dim)
	for i := 0; i < dim; i++ {
		variances[i] = st.ErrorCovariance[i][i]
	}
	return state.BeliefFromVectors(st.Estimate, variances, st.Timestamp)
}

// PredictHybrid converts the belief once per configured engine, asks each
// for its horizon-scaled prediction, and merges under the horizon policy:
// short belongs to the filter-encoder, long to the dynamics engine, medium
// averages both with the conservative union of their CIs. The primary
// engine is tagged for explainability.
func (a *Adapter) PredictHybrid(b state.BeliefState, horizon forecast.Horizon) (*forecast.Forecast, error) {
	if !horizon.Valid() {
		return nil, forecast.ErrUnknownHorizon
	}

	var dynForecast, filterForecast *forecast.Forecast

	if a.dynamics != nil && horizon != forecast.HorizonShort {
		st, err := a.ToLatentState(b)
		if err != nil {
			return nil, err
		}
		dynForecast, err = a.dynamics.Predict(st, horizon.Steps(), nil)
		if err != nil {
			return nil, err
		}
		dynForecast.Horizon = horizon
	}

	if a.filter != nil && horizon != forecast.HorizonLong {
		st, err := a.ToFilterState(b)
		if err != nil {
			return nil, err
		}
		filterForecast, err = a.filter.Predict(st, horizon.Steps())
		if err != nil {
			return nil, err
		}
		filterForecast.Horizon = horizon
	}

	// Single-engine configurations degrade to that engine at any horizon.
	if dynForecast == nil && filterForecast == nil {
		if a.dynamics != nil {
			st, err := a.ToLatentState(b)
			if err != nil {
				return nil, err
			}
			f, err := a.dynamics.Predict(st, horizon.Steps(), nil)
			if err != nil {
				return nil, err
			}
			f.Horizon = horizon
			return forecast.Merge(f, nil, horizon), nil
		}
		st, err := a.ToFilterState(b)
		if err != nil {
			return nil, err
		}
		f, err := a.filter.Predict(st, horizon.Steps())
		if err != nil {
			return nil, err
		}
		f.Horizon = horizon
		return forecast.Merge(nil, f, horizon), nil
	}

	return forecast.Merge(dynForecast, filterForecast, horizon), nil
}

// Observe feeds a raw observation through the filter-encoder and returns
// the refreshed belief. Without a filter engine it echoes the observation
// back as posterior means with default variances.
func (a *Adapter) Observe(b state.BeliefState, obs state.Observation) (state.BeliefState, error) {
	if a.filter == nil {
		return state.BeliefFromVectors(obs.Values, nil, obs.Timestamp).Normalized(), nil
	}
	st, err := a.ToFilterState(b)
	if err != nil {
		return state.BeliefState{}, err
	}
	next, err := a.filter.Update(st, obs)
	if err != nil {
		return state.BeliefState{}, err
	}
	return a.BeliefFromFilter(next), nil
}

// ExtractCausalNetwork passes through to the dynamics engine. A nil
// network with nil error means no dynamics engine is configured.
func (a *Adapter) ExtractCausalNetwork() (*forecast.CausalNetwork, error) {
	if a.dynamics == nil {
		return nil, nil
	}
	return a.dynamics.ExtractCausalNetwork()
}

// SimulateIntervention passes through to the dynamics engine. A nil
// report with nil error means no dynamics engine is configured.
func (a *Adapter) SimulateIntervention(b state.BeliefState, target string, mode forecast.InterventionMode, magnitude float64) (*forecast.InterventionReport, error) {
	if a.dynamics == nil {
		return nil, nil
	}
	st, err := a.ToLatentState(b)
	if err != nil {
		return nil, err
	}
	return a.dynamics.SimulateIntervention(st, target, mode, magnitude)
}

// ExplainPrediction passes through to the filter-encoder. A nil summary
// with nil error means no filter engine is configured (or its history is
// still empty).
func (a *Adapter) ExplainPrediction() (*forecast.AttentionSummary, error) {
	if a.filter == nil {
		return nil, nil
	}
	return a.filter.Explain()
}

// DetectEarlyWarnings passes through to the dynamics engine.
func (a *Adapter) DetectEarlyWarnings(history [][]float64, windowSize int) ([]forecast.EarlyWarning, error) {
	if a.dynamics == nil {
		return nil, nil
	}
	return a.dynamics.DetectEarlyWarnings(history, windowSize)
}

// TrainOnline passes one sample to the dynamics engine.
func (a *Adapter) TrainOnline(sample forecast.TrainingSample) (*forecast.TrainingResult, error) {
	if a.dynamics == nil {
		return nil, nil
	}
	return a.dynamics.TrainOnline(sample)
}

// TrainBatch passes a sample set to the dynamics engine.
func (a *Adapter) TrainBatch(samples []forecast.TrainingSample) (*forecast.TrainingResult, error) {
	if a.dynamics == nil {
		return nil, nil
	}
	return a.dynamics.TrainBatch(samples)
}

// Snapshots returns the serializable weight bundles of every configured
// engine, tagged with a shared capture time.
func (a *Adapter) Snapshots() ([]*forecast.WeightSnapshot, error) {
	var snaps []*forecast.WeightSnapshot
	now := time.Now()
	if a.dynamics != nil {
		s, err := a.dynamics.Snapshot()
		if err != nil {
			return nil, err
		}
		if s.TrainedAt.IsZero() {
			s.TrainedAt = now
		}
		snaps = append(snaps, s)
	}
	if a.filter != nil {
		s, err := a.filter.Snapshot()
		if err != nil {
			return nil, err
		}
		if s.TrainedAt.IsZero() {
			s.TrainedAt = now
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}
