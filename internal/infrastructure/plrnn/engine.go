package plrnn

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// StepInterval is the nominal wall-clock duration of one forward step, so
// that the long horizon's 48 steps span 72 hours.
const StepInterval = 90 * time.Minute

// Engine is the nonlinear dynamics engine. Its weight bundle is the only
// mutable state; callers keep single-writer discipline and the mutex
// guards concurrent readers during training.
type Engine struct {
	mu          sync.RWMutex
	config      forecast.PLRNNConfig
	weights     *Weights
	opt         *adam
	rng         *rand.Rand
	initialized bool

	bundleID    string
	trainedAt   time.Time
	sampleCount int
	lastLoss    float64
}

// NewEngine creates an uninitialized engine. Zero config fields fall back
// to defaults.
func NewEngine(cfg forecast.PLRNNConfig) *Engine {
	def := forecast.DefaultPLRNNConfig()
	if cfg.LatentDim == 0 {
		cfg.LatentDim = def.LatentDim
	}
	if cfg.ObservedDim == 0 {
		cfg.ObservedDim = def.ObservedDim
	}
	if cfg.ClampRange == 0 {
		cfg.ClampRange = def.ClampRange
	}
	if cfg.InitialUncertainty == 0 {
		cfg.InitialUncertainty = def.InitialUncertainty
	}
	if cfg.UncertaintyGrowth == 0 {
		cfg.UncertaintyGrowth = def.UncertaintyGrowth
	}
	if cfg.UncertaintyPenalty == 0 {
		cfg.UncertaintyPenalty = def.UncertaintyPenalty
	}
	if cfg.DeviationThreshold == 0 {
		cfg.DeviationThreshold = def.DeviationThreshold
	}
	if cfg.UncertaintyMax == 0 {
		cfg.UncertaintyMax = def.UncertaintyMax
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.TeacherForcingRatio == 0 {
		cfg.TeacherForcingRatio = def.TeacherForcingRatio
	}
	if cfg.GradientClip == 0 {
		cfg.GradientClip = def.GradientClip
	}
	if cfg.ConvergenceThreshold == 0 {
		cfg.ConvergenceThreshold = def.ConvergenceThreshold
	}
	if cfg.SignificanceThreshold == 0 {
		cfg.SignificanceThreshold = def.SignificanceThreshold
	}
	if cfg.WarningWindow == 0 {
		cfg.WarningWindow = def.WarningWindow
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Engine{config: cfg}
}

// Initialize builds the weight bundle and optimizer state. Idempotent.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.config.LatentDim < 1 || e.config.ObservedDim < 1 {
		return fmt.Errorf("%w: latentDim=%d observedDim=%d",
			forecast.ErrInvalidConfig, e.config.LatentDim, e.config.ObservedDim)
	}

	e.weights = newWeights(e.config)
	e.opt = newAdam(e.config.LearningRate)
	e.rng = rand.New(rand.NewSource(e.config.Seed + 1))
	e.bundleID = uuid.New().String()
	e.initialized = true
	return nil
}

// Config returns the engine configuration.
func (e *Engine) Config() forecast.PLRNNConfig {
	return e.config
}

// NewState returns a zero latent state sized for this engine.
func (e *Engine) NewState() *state.LatentState {
	return state.NewLatentState(e.config.LatentDim, e.config.InitialUncertainty)
}

// StateFromObservation seeds a latent state directly from an observation
// vector; the output projection starts near identity so this is a fair
// warm start.
func (e *Engine) StateFromObservation(obs state.Observation) (*state.LatentState, error) {
	if len(obs.Values) != e.config.LatentDim {
		return nil, fmt.Errorf("%w: got %d values, want %d",
			forecast.ErrDimensionMismatch, len(obs.Values), e.config.LatentDim)
	}
	st := e.NewState()
	copy(st.Latent, obs.Values)
	copy(st.Observed, obs.Values)
	st.Hidden = mathx.ReLUVector(obs.Values)
	if !obs.Timestamp.IsZero() {
		st.Timestamp = obs.Timestamp
	}
	return st, nil
}

// Forward advances the state one step:
//
//	z' = A⊙z + W·φ(z) + dendritic(z) + C·input + biasZ
//	x' = B·z' + biasX
//
// with φ = ReLU. Non-finite intermediates are zeroed and both vectors are
// clamped to the stability range. Uncertainty grows by the configured
// rate, with a penalty when the new latent exceeds the deviation
// threshold, capped at the maximum.
func (e *Engine) Forward(st *state.LatentState, input []float64) (*state.LatentState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}
	if len(st.Latent) != e.config.LatentDim {
		return nil, fmt.Errorf("%w: state has %d latent dims, want %d",
			forecast.ErrDimensionMismatch, len(st.Latent), e.config.LatentDim)
	}
	if input != nil && len(input) != e.config.LatentDim {
		return nil, fmt.Errorf("%w: input has %d dims, want %d",
			forecast.ErrDimensionMismatch, len(input), e.config.LatentDim)
	}

	next := e.step(st, input)
	return next, nil
}

// step is the lock-free forward recurrence used by Forward, Predict and
// the training loop.
func (e *Engine) step(st *state.LatentState, input []float64) *state.LatentState {
	cfg := e.config
	w := e.weights
	d := cfg.LatentDim

	phi := mathx.ReLUVector(st.Latent)

	latent := make([]float64, d)
	for i := 0; i < d; i++ {
		v := w.A[i]*st.Latent[i] + w.BiasZ[i]
		for j := 0; j < d; j++ {
			v += w.W[i][j] * phi[j]
		}
		v += e.dendritic(i, st.Latent[i])
		if input != nil {
			for j := 0; j < d; j++ {
				v += w.C[i][j] * input[j]
			}
		}
		latent[i] = v
	}
	state.Sanitize(latent, cfg.ClampRange)

	observed := make([]float64, cfg.ObservedDim)
	for i := 0; i < cfg.ObservedDim; i++ {
		v := w.BiasX[i]
		for j := 0; j < d; j++ {
			v += w.B[i][j] * latent[j]
		}
		observed[i] = v
	}
	state.Sanitize(observed, cfg.ClampRange)

	uncertainty := make([]float64, d)
	for i := 0; i < d; i++ {
		u := st.Uncertainty[i] + cfg.UncertaintyGrowth
		if latent[i] > cfg.DeviationThreshold || latent[i] < -cfg.DeviationThreshold {
			u += cfg.UncertaintyPenalty
		}
		if u > cfg.UncertaintyMax {
			u = cfg.UncertaintyMax
		}
		uncertainty[i] = u
	}

	return &state.LatentState{
		Latent:      latent,
		Hidden:      mathx.ReLUVector(latent),
		Observed:    observed,
		Uncertainty: uncertainty,
		Timestamp:   st.Timestamp.Add(StepInterval),
		Timestep:    st.Timestep + 1,
	}
}

// dendritic evaluates the basis expansion for one dimension.
func (e *Engine) dendritic(i int, z float64) float64 {
	w := e.weights
	var v float64
	for b := 0; b < len(w.Thresholds); b++ {
		v += w.Alpha[i][b] * mathx.ReLU(z-w.Thresholds[b])
	}
	return v
}

// Predict iterates the forward recurrence steps times. inputs may be nil
// or provide one input vector per step. The CI is mean ± 1.96·√u with the
// final per-dimension uncertainty; early warnings are computed over the
// produced trajectory.
func (e *Engine) Predict(st *state.LatentState, steps int, inputs [][]float64) (*forecast.Forecast, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}
	if steps < 1 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", forecast.ErrInvalidConfig, steps)
	}

	return e.predict(st, steps, inputs), nil
}

func (e *Engine) predict(st *state.LatentState, steps int, inputs [][]float64) *forecast.Forecast {
	cur := st.Clone()
	trajectory := make([][]float64, 0, steps)
	for t := 0; t < steps; t++ {
		var input []float64
		if t < len(inputs) {
			input = inputs[t]
		}
		cur = e.step(cur, input)
		trajectory = append(trajectory, append([]float64(nil), cur.Observed...))
	}

	dim := e.config.ObservedDim
	mean := append([]float64(nil), cur.Observed...)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	var avgU float64
	for i := 0; i < dim; i++ {
		u := cur.Uncertainty[i]
		half := 1.96 * sqrt(u)
		lower[i] = mean[i] - half
		upper[i] = mean[i] + half
		avgU += u
	}
	avgU /= float64(dim)

	return &forecast.Forecast{
		Horizon:       horizonForSteps(steps),
		Steps:         steps,
		Trajectory:    trajectory,
		Mean:          mean,
		Lower:         lower,
		Upper:         upper,
		Confidence:    mathx.Clamp(1.0-avgU/e.config.UncertaintyMax, 0, 1),
		PrimaryEngine: forecast.EnginePLRNN,
		Warnings:      e.detectWarnings(trajectory, e.config.WarningWindow),
		GeneratedAt:   time.Now(),
	}
}

// HybridPredict applies the horizon policy: short delegates fully to the
// companion filter-encoder forecast, medium averages both at equal weight
// with the wider CI bound per dimension, long uses this engine alone. A
// nil companion degrades to this engine's own forecast.
func (e *Engine) HybridPredict(st *state.LatentState, horizon forecast.Horizon, companion *forecast.Forecast) (*forecast.Forecast, error) {
	if !horizon.Valid() {
		return nil, fmt.Errorf("%w: %q", forecast.ErrUnknownHorizon, horizon)
	}

	if horizon == forecast.HorizonShort && companion != nil {
		return forecast.Merge(nil, companion, horizon), nil
	}

	own, err := e.Predict(st, horizon.Steps(), nil)
	if err != nil {
		return nil, err
	}
	own.Horizon = horizon
	if horizon == forecast.HorizonLong {
		companion = nil
	}
	return forecast.Merge(own, companion, horizon), nil
}

// Snapshot serializes the current weight bundle with training metadata.
func (e *Engine) Snapshot() (*forecast.WeightSnapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}

	payload, err := json.Marshal(e.weights)
	if err != nil {
		return nil, fmt.Errorf("marshal weights: %w", err)
	}
	cfg, err := json.Marshal(e.config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return &forecast.WeightSnapshot{
		ID:             e.bundleID,
		Engine:         forecast.EnginePLRNN,
		TrainedAt:      e.trainedAt,
		SampleCount:    e.sampleCount,
		ValidationLoss: e.lastLoss,
		Config:         cfg,
		Payload:        payload,
	}, nil
}

// Restore replaces the weight bundle from a snapshot. The engine must be
// initialized so shapes are already validated against the config.
func (e *Engine) Restore(snap *forecast.WeightSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return forecast.ErrNotInitialized
	}

	var w Weights
	if err := json.Unmarshal(snap.Payload, &w); err != nil {
		return fmt.Errorf("unmarshal weights: %w", err)
	}
	if len(w.A) != e.config.LatentDim || len(w.W) != e.config.LatentDim {
		return fmt.Errorf("%w: snapshot latentDim %d, engine %d",
			forecast.ErrDimensionMismatch, len(w.A), e.config.LatentDim)
	}

	e.weights = &w
	e.bundleID = snap.ID
	e.trainedAt = snap.TrainedAt
	e.sampleCount = snap.SampleCount
	e.lastLoss = snap.ValidationLoss
	e.opt = newAdam(e.config.LearningRate)
	return nil
}

func horizonForSteps(steps int) forecast.Horizon {
	switch {
	case steps <= forecast.ShortSteps:
		return forecast.HorizonShort
	case steps <= forecast.MediumSteps:
		return forecast.HorizonMedium
	default:
		return forecast.HorizonLong
	}
}

// sqrt guards against tiny negative uncertainty from float error.
func sqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Sqrt(x)
}
