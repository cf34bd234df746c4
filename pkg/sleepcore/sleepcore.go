// Package sleepcore provides the public API for the hybrid psychological
// state forecasting core.
//
// The core estimates and forecasts a 5-dimensional state (valence,
// arousal, dominance, risk, resources) from noisy observations, fusing a
// piecewise-linear recurrent dynamics model with a Kalman-filter /
// self-attention hybrid, and simulates hypothetical interventions.
//
// Example:
//
//	core, err := sleepcore.New(sleepcore.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fc, err := core.PredictHybrid(belief, sleepcore.HorizonLong)
package sleepcore

import (
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/application/adapter"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/kalmanformer"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/plrnn"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/weightstore"
)

// Re-export types for the public API.
type (
	// State types
	Observation = state.Observation
	LatentState = state.LatentState
	FilterState = state.FilterState
	BeliefState = state.BeliefState
	Gaussian    = state.Gaussian

	// Forecast types
	Horizon            = forecast.Horizon
	Forecast           = forecast.Forecast
	CausalNetwork      = forecast.CausalNetwork
	EarlyWarning       = forecast.EarlyWarning
	InterventionMode   = forecast.InterventionMode
	InterventionReport = forecast.InterventionReport
	AttentionSummary   = forecast.AttentionSummary
	TrainingSample     = forecast.TrainingSample
	TrainingResult     = forecast.TrainingResult
	WeightSnapshot     = forecast.WeightSnapshot
	PLRNNConfig        = forecast.PLRNNConfig
	KalmanFormerConfig = forecast.KalmanFormerConfig
)

// Horizon and intervention constants.
const (
	HorizonShort  = forecast.HorizonShort
	HorizonMedium = forecast.HorizonMedium
	HorizonLong   = forecast.HorizonLong

	InterventionIncrease  = forecast.InterventionIncrease
	InterventionDecrease  = forecast.InterventionDecrease
	InterventionStabilize = forecast.InterventionStabilize
)

// ParseHorizon re-exports the named-horizon parser ("6h", "24h", "72h").
var ParseHorizon = forecast.ParseHorizon

// Config selects which engines the core runs and where weight bundles are
// persisted. Zero-valued engine configs take defaults; DisablePLRNN /
// DisableKalmanFormer produce a single-engine core with documented
// capability gaps on the pass-through operations.
type Config struct {
	PLRNN               PLRNNConfig        `json:"plrnn"`
	KalmanFormer        KalmanFormerConfig `json:"kalmanformer"`
	DisablePLRNN        bool               `json:"disablePlrnn"`
	DisableKalmanFormer bool               `json:"disableKalmanformer"`
	WeightDBPath        string             `json:"weightDbPath"` // empty = in-memory
}

// Core is the top-level handle: one adapter over the configured engines
// plus the weight-bundle store.
type Core struct {
	*adapter.Adapter
	store *weightstore.Store
}

// New builds and initializes a core.
func New(cfg Config) (*Core, error) {
	var opts []adapter.Option
	if !cfg.DisablePLRNN {
		opts = append(opts, adapter.WithPLRNN(plrnn.NewEngine(cfg.PLRNN)))
	}
	if !cfg.DisableKalmanFormer {
		opts = append(opts, adapter.WithKalmanFormer(kalmanformer.NewEngine(cfg.KalmanFormer)))
	}

	a, err := adapter.New(opts...)
	if err != nil {
		return nil, err
	}

	store := weightstore.NewStore(cfg.WeightDBPath)
	if err := store.Initialize(); err != nil {
		return nil, err
	}

	return &Core{Adapter: a, store: store}, nil
}

// SaveWeights snapshots every configured engine into the weight store.
func (c *Core) SaveWeights() ([]*WeightSnapshot, error) {
	snaps, err := c.Snapshots()
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if err := c.store.Save(snap); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

// ListWeights returns stored snapshot metadata, newest first.
func (c *Core) ListWeights() ([]*WeightSnapshot, error) {
	return c.store.List()
}

// Close releases the weight store.
func (c *Core) Close() error {
	return c.store.Close()
}
