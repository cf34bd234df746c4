package kalmanformer

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// stepInterval mirrors the dynamics engine's nominal step duration so
// pseudo-observation timestamps stay consistent across engines.
const stepInterval = 90 * time.Minute

// Blend ratio clamp range; both the learned predictor output and the
// heuristic adapter stay inside it.
const (
	blendMin = 0.2
	blendMax = 0.8
)

// historyEntry is one observation in the bounded context window with its
// cached embedding (positional terms are added per encoding pass, since
// positions shift as old entries are evicted).
type historyEntry struct {
	observation state.Observation
	embedding   []float64
}

// Engine is the hybrid filter-encoder. It owns the weight bundle and the
// bounded observation history for one session; callers keep single-writer
// discipline.
type Engine struct {
	mu          sync.RWMutex
	config      forecast.KalmanFormerConfig
	weights     *Weights
	history     []historyEntry
	initialized bool

	bundleID    string
	trainedAt   time.Time
	sampleCount int
	lastLoss    float64
}

// NewEngine creates an uninitialized engine. Zero config fields fall back
// to defaults.
func NewEngine(cfg forecast.KalmanFormerConfig) *Engine {
	def := forecast.DefaultKalmanFormerConfig()
	if cfg.StateDim == 0 {
		cfg.StateDim = def.StateDim
	}
	if cfg.EmbedDim == 0 {
		cfg.EmbedDim = def.EmbedDim
	}
	if cfg.NumHeads == 0 {
		cfg.NumHeads = def.NumHeads
	}
	if cfg.NumLayers == 0 {
		cfg.NumLayers = def.NumLayers
	}
	if cfg.FeedForward == 0 {
		cfg.FeedForward = def.FeedForward
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = def.ContextWindow
	}
	if cfg.ProcessNoise == 0 {
		cfg.ProcessNoise = def.ProcessNoise
	}
	if cfg.MeasurementNoise == 0 {
		cfg.MeasurementNoise = def.MeasurementNoise
	}
	if cfg.InitialCovariance == 0 {
		cfg.InitialCovariance = def.InitialCovariance
	}
	if cfg.ConfidenceDecay == 0 {
		cfg.ConfidenceDecay = def.ConfidenceDecay
	}
	if cfg.PseudoNoiseGrowth == 0 {
		cfg.PseudoNoiseGrowth = def.PseudoNoiseGrowth
	}
	if cfg.BlendStep == 0 {
		cfg.BlendStep = def.BlendStep
	}
	if cfg.RMSEThreshold == 0 {
		cfg.RMSEThreshold = def.RMSEThreshold
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Engine{config: cfg}
}

// Initialize builds the weight bundle. Idempotent.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.config.StateDim < 1 || e.config.EmbedDim < 1 {
		return fmt.Errorf("%w: stateDim=%d embedDim=%d",
			forecast.ErrInvalidConfig, e.config.StateDim, e.config.EmbedDim)
	}
	if e.config.EmbedDim%e.config.NumHeads != 0 {
		return fmt.Errorf("%w: embedDim %d not divisible by %d heads",
			forecast.ErrInvalidConfig, e.config.EmbedDim, e.config.NumHeads)
	}

	e.weights = newWeights(e.config)
	e.bundleID = uuid.New().String()
	e.initialized = true
	return nil
}

// Config returns the engine configuration.
func (e *Engine) Config() forecast.KalmanFormerConfig {
	return e.config
}

// NewState returns a fresh filter state sized for this engine.
func (e *Engine) NewState() *state.FilterState {
	return state.NewFilterState(e.config.StateDim, e.config.InitialCovariance)
}

// StateFromEstimate seeds a filter state from a mean/variance pair, as
// produced by the belief adapter.
func (e *Engine) StateFromEstimate(mean, variance []float64) (*state.FilterState, error) {
	if len(mean) != e.config.StateDim {
		return nil, fmt.Errorf("%w: got %d values, want %d",
			forecast.ErrDimensionMismatch, len(mean), e.config.StateDim)
	}
	st := e.NewState()
	copy(st.Estimate, mean)
	copy(st.Predicted, mean)
	for i, v := range variance {
		if i < e.config.StateDim && v > 0 {
			st.ErrorCovariance[i][i] = v
			st.PredictedCov[i][i] = v
		}
	}
	return st, nil
}

// Update runs one hybrid correction: Kalman-predict, encode the history,
// compute the gain (Riccati or learned), correct with the observation,
// take the attention stack's independent point prediction, and blend the
// two with the learned blend predictor. Confidence combines sub-model
// agreement and innovation magnitude through exponential-decay scores.
func (e *Engine) Update(st *state.FilterState, obs state.Observation) (*state.FilterState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}
	if len(obs.Values) != e.config.StateDim {
		return nil, fmt.Errorf("%w: observation has %d values, want %d",
			forecast.ErrDimensionMismatch, len(obs.Values), e.config.StateDim)
	}

	e.push(obs)
	next := e.hybridStep(st, obs.Values, e.historyEmbeddings(), e.config.MeasurementNoise)
	next.Timestamp = obs.Timestamp
	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now()
	}
	return next, nil
}

// Predict repeats the update logic horizonSteps times, feeding the
// previous blended output back as a pseudo-observation. The measurement
// noise is inflated per pseudo step (a pseudo-observation is less
// trustworthy than a real one) and confidence decays multiplicatively.
// The CI comes from the diagonal of the final error covariance.
func (e *Engine) Predict(st *state.FilterState, horizonSteps int) (*forecast.Forecast, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}
	if horizonSteps < 1 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", forecast.ErrInvalidConfig, horizonSteps)
	}

	// Work on copies so prediction never pollutes the real history.
	embeddings := e.historyEmbeddings()
	cur := st.Clone()
	confidence := cur.Confidence
	if confidence == 0 {
		confidence = 0.5
	}

	trajectory := make([][]float64, 0, horizonSteps)
	for t := 0; t < horizonSteps; t++ {
		pseudo := append([]float64(nil), cur.Estimate...)
		embeddings = pushEmbedding(embeddings, e.embed(state.Observation{
			Values:    pseudo,
			Timestamp: cur.Timestamp.Add(stepInterval),
		}), e.config.ContextWindow)

		noise := e.config.MeasurementNoise + e.config.PseudoNoiseGrowth*float64(t+1)
		cur = e.hybridStep(cur, pseudo, embeddings, noise)
		cur.Timestamp = cur.Timestamp.Add(stepInterval)
		confidence *= e.config.ConfidenceDecay
		trajectory = append(trajectory, append([]float64(nil), cur.Estimate...))
	}

	dim := e.config.StateDim
	mean := append([]float64(nil), cur.Estimate...)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		half := 1.96 * math.Sqrt(math.Max(0, cur.ErrorCovariance[i][i]))
		lower[i] = mean[i] - half
		upper[i] = mean[i] + half
	}

	return &forecast.Forecast{
		Horizon:       horizonForSteps(horizonSteps),
		Steps:         horizonSteps,
		Trajectory:    trajectory,
		Mean:          mean,
		Lower:         lower,
		Upper:         upper,
		Confidence:    mathx.Clamp(confidence, 0, 1),
		PrimaryEngine: forecast.EngineKalmanFormer,
		Attention:     e.explainLocked(),
		GeneratedAt:   time.Now(),
	}, nil
}

// hybridStep is the shared lock-free update core used by Update and
// Predict. embeddings is the context window to encode; measurementNoise
// lets Predict distrust pseudo-observations progressively.
func (e *Engine) hybridStep(st *state.FilterState, obs []float64, embeddings [][]float64, measurementNoise float64) *state.FilterState {
	w := e.weights

	pred, predCov := kalmanPredict(st, e.config.ProcessNoise)

	contexts, _ := encode(e.config, w, embeddings)
	var latest []float64
	if len(contexts) > 0 {
		latest = contexts[len(contexts)-1]
	} else {
		latest = make([]float64, e.config.EmbedDim)
	}

	var gain [][]float64
	if e.config.UseLearnedGain {
		gain = e.learnedGain(latest)
	} else {
		gain = riccatiGain(predCov, measurementNoise)
	}

	estimate, cov, innovation := kalmanCorrect(pred, predCov, gain, obs)

	attnPred := mathx.VectorAdd(mathx.MatVec(w.Decode, latest), w.DecodeBias)
	state.Sanitize(attnPred, clampRange)

	ratio := e.blendRatio(latest)
	hybrid := make([]float64, e.config.StateDim)
	for i := range hybrid {
		hybrid[i] = (1-ratio)*estimate[i] + ratio*attnPred[i]
	}
	state.Sanitize(hybrid, clampRange)

	agreement := math.Exp(-distance(estimate, attnPred))
	tracking := math.Exp(-mathx.L2Norm(innovation))
	confidence := (agreement + tracking) / 2

	return &state.FilterState{
		Estimate:        hybrid,
		ErrorCovariance: cov,
		Predicted:       pred,
		PredictedCov:    predCov,
		Innovation:      innovation,
		Gain:            gain,
		OutlierScore:    mathx.L2Norm(innovation),
		BlendRatio:      ratio,
		Confidence:      mathx.Clamp(confidence, 0, 1),
		Timestamp:       st.Timestamp,
		Timestep:        st.Timestep + 1,
	}
}

// clampRange bounds every estimate component, matching the dynamics
// engine's stability range.
const clampRange = 10.0

// learnedGain predicts a diagonal gain from the latest context embedding;
// each diagonal entry is a logistic in (0, 1).
func (e *Engine) learnedGain(context []float64) [][]float64 {
	w := e.weights
	dim := e.config.StateDim
	gain := state.ScaledIdentity(dim, 0)
	for i := 0; i < dim; i++ {
		gain[i][i] = mathx.Sigmoid(mathx.DotProduct(w.GainW[i], context) + w.GainBias[i])
	}
	return gain
}

// blendRatio is the learned per-step blend predictor: a logistic over the
// latest context embedding, shifted by the slow calibration offset and
// clamped to the working range.
func (e *Engine) blendRatio(context []float64) float64 {
	w := e.weights
	logit := mathx.DotProduct(w.BlendW, context) + w.BlendBias + w.GlobalBlendBias
	return mathx.Clamp(mathx.Sigmoid(logit), blendMin, blendMax)
}

// push appends an observation to the bounded history.
func (e *Engine) push(obs state.Observation) {
	e.history = append(e.history, historyEntry{
		observation: obs,
		embedding:   e.embed(obs),
	})
	if len(e.history) > e.config.ContextWindow {
		e.history = e.history[len(e.history)-e.config.ContextWindow:]
	}
}

// historyEmbeddings snapshots the cached embeddings.
func (e *Engine) historyEmbeddings() [][]float64 {
	out := make([][]float64, len(e.history))
	for i := range e.history {
		out[i] = e.history[i].embedding
	}
	return out
}

func pushEmbedding(embeddings [][]float64, emb []float64, window int) [][]float64 {
	embeddings = append(embeddings, emb)
	if len(embeddings) > window {
		embeddings = embeddings[len(embeddings)-window:]
	}
	return embeddings
}

// embed maps an observation into the embedding space, optionally folding
// in a sinusoidal encoding of hour-of-day and day-of-week.
func (e *Engine) embed(obs state.Observation) []float64 {
	w := e.weights
	emb := mathx.VectorAdd(mathx.MatVec(w.Embed, obs.Values), w.EmbedBias)

	if e.config.UseTimeEmbedding && !obs.Timestamp.IsZero() {
		hour := float64(obs.Timestamp.Hour()) + float64(obs.Timestamp.Minute())/60.0
		day := float64(obs.Timestamp.Weekday())
		timeTerms := []float64{
			math.Sin(2 * math.Pi * hour / 24),
			math.Cos(2 * math.Pi * hour / 24),
			math.Sin(2 * math.Pi * day / 7),
			math.Cos(2 * math.Pi * day / 7),
		}
		for i, v := range timeTerms {
			if i < len(emb) {
				emb[i] += v
			}
		}
	}
	return emb
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
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
		Engine:         forecast.EngineKalmanFormer,
		TrainedAt:      e.trainedAt,
		SampleCount:    e.sampleCount,
		ValidationLoss: e.lastLoss,
		Config:         cfg,
		Payload:        payload,
	}, nil
}

// Restore replaces the weight bundle from a snapshot.
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
	if len(w.Embed) != e.config.EmbedDim || len(w.Layers) != e.config.NumLayers {
		return fmt.Errorf("%w: snapshot shape does not match engine config",
			forecast.ErrDimensionMismatch)
	}

	e.weights = &w
	e.bundleID = snap.ID
	e.trainedAt = snap.TrainedAt
	e.sampleCount = snap.SampleCount
	e.lastLoss = snap.ValidationLoss
	return nil
}
