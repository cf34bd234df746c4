package plrnn

import (
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// Adam hyperparameters (fixed; the learning rate comes from the config).
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// adam holds per-parameter first and second moment estimates, keyed by
// parameter group ("A", "W.0", "B.2", ...).
type adam struct {
	lr float64
	t  int
	m  map[string][]float64
	v  map[string][]float64
}

func newAdam(lr float64) *adam {
	return &adam{
		lr: lr,
		m:  make(map[string][]float64),
		v:  make(map[string][]float64),
	}
}

// begin advances the shared timestep before a round of update calls.
func (a *adam) begin() {
	a.t++
}

// update applies one bias-corrected Adam step to params in place.
func (a *adam) update(key string, params, grads []float64) {
	m, ok := a.m[key]
	if !ok {
		m = make([]float64, len(params))
		a.m[key] = m
	}
	v, ok := a.v[key]
	if !ok {
		v = make([]float64, len(params))
		a.v[key] = v
	}

	c1 := 1.0 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1.0 - math.Pow(adamBeta2, float64(a.t))
	for i, g := range grads {
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		mHat := m[i] / c1
		vHat := v[i] / c2
		params[i] -= a.lr * mHat / (math.Sqrt(vHat) + adamEps)
	}
}

// TrainOnline runs one pass over an observation sequence with
// probabilistic teacher forcing. A sample with fewer than two observations
// is reported as infinite loss and not converged rather than an error.
func (e *Engine) TrainOnline(sample forecast.TrainingSample) (*forecast.TrainingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}

	result := e.trainSample(sample)
	result.Samples = 1
	return result, nil
}

// TrainBatch repeats the online pass per sample and reports the aggregate
// loss. Malformed samples are skipped; a batch with no usable sample is
// reported as infinite loss.
func (e *Engine) TrainBatch(samples []forecast.TrainingSample) (*forecast.TrainingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}

	agg := &forecast.TrainingResult{Samples: len(samples)}
	var totalLoss float64
	var usable int
	for _, s := range samples {
		r := e.trainSample(s)
		agg.Steps += r.Steps
		if !math.IsInf(r.Loss, 1) {
			totalLoss += r.Loss
			usable++
		}
	}

	if usable == 0 {
		agg.Loss = math.Inf(1)
		return agg, nil
	}
	agg.Loss = totalLoss / float64(usable)
	agg.Converged = agg.Loss < e.config.ConvergenceThreshold
	e.lastLoss = agg.Loss
	return agg, nil
}

// trainSample is the lock-free single-sequence pass shared by TrainOnline
// and TrainBatch.
func (e *Engine) trainSample(sample forecast.TrainingSample) *forecast.TrainingResult {
	obs := sample.Observations
	if len(obs) < 2 {
		return &forecast.TrainingResult{Loss: math.Inf(1), Converged: false}
	}

	cfg := e.config
	d := cfg.LatentDim
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(cfg.Seed + 1))
	}

	st := state.NewLatentState(d, cfg.InitialUncertainty)
	copy(st.Latent, obs[0].Values)
	copy(st.Observed, obs[0].Values)

	var totalLoss float64
	steps := 0

	for t := 1; t < len(obs); t++ {
		target := obs[t].Values
		if len(target) != d {
			continue
		}

		prev := st
		pred := e.step(prev, nil)

		// Output and latent errors against the next observation; with B
		// near identity the observation doubles as a latent target.
		ex := make([]float64, cfg.ObservedDim)
		for i := range ex {
			ex[i] = pred.Observed[i] - target[i]
			totalLoss += ex[i] * ex[i]
		}
		ez := make([]float64, d)
		for i := range ez {
			ez[i] = pred.Latent[i] - target[i]
		}

		e.applyGradients(prev, pred, ex, ez)
		steps++

		// Teacher forcing: replace the predicted state with ground truth
		// before the next step, with the configured probability.
		if e.rng.Float64() < cfg.TeacherForcingRatio {
			st = state.NewLatentState(d, cfg.InitialUncertainty)
			copy(st.Latent, target)
			copy(st.Observed, target)
			st.Hidden = mathx.ReLUVector(target)
			st.Timestep = pred.Timestep
			st.Timestamp = obs[t].Timestamp
		} else {
			st = pred
		}
	}

	if steps == 0 {
		return &forecast.TrainingResult{Loss: math.Inf(1), Converged: false}
	}

	loss := totalLoss / float64(steps*cfg.ObservedDim)
	e.sampleCount++
	e.trainedAt = time.Now()
	e.lastLoss = loss

	return &forecast.TrainingResult{
		Loss:      loss,
		Converged: loss < cfg.ConvergenceThreshold,
		Steps:     steps,
	}
}

// applyGradients backpropagates one step's errors through the recurrence
// and applies Adam with L1 sparsity on W, L2 decay on all matrices, and
// elementwise gradient clipping.
func (e *Engine) applyGradients(prev, pred *state.LatentState, ex, ez []float64) {
	cfg := e.config
	w := e.weights
	d := cfg.LatentDim

	clip := func(g float64) float64 {
		return mathx.Clamp(g, -cfg.GradientClip, cfg.GradientClip)
	}

	// dL/dz' through the output projection, plus the direct latent error.
	dz := make([]float64, d)
	for j := 0; j < d; j++ {
		v := ez[j]
		for i := 0; i < cfg.ObservedDim; i++ {
			v += ex[i] * w.B[i][j]
		}
		dz[j] = v
	}

	phi := mathx.ReLUVector(prev.Latent)

	gA := make([]float64, d)
	gBiasZ := make([]float64, d)
	gW := make([][]float64, d)
	gAlpha := make([][]float64, d)
	for i := 0; i < d; i++ {
		gA[i] = clip(dz[i] * prev.Latent[i])
		gBiasZ[i] = clip(dz[i])

		gW[i] = make([]float64, d)
		for j := 0; j < d; j++ {
			g := dz[i] * phi[j]
			g += cfg.L1Sparsity * sign(w.W[i][j])
			g += cfg.WeightDecay * w.W[i][j]
			gW[i][j] = clip(g)
		}

		gAlpha[i] = make([]float64, len(w.Thresholds))
		for b := range w.Thresholds {
			g := dz[i] * mathx.ReLU(prev.Latent[i]-w.Thresholds[b])
			g += cfg.WeightDecay * w.Alpha[i][b]
			gAlpha[i][b] = clip(g)
		}
	}

	gBiasX := make([]float64, cfg.ObservedDim)
	gB := make([][]float64, cfg.ObservedDim)
	for i := 0; i < cfg.ObservedDim; i++ {
		gBiasX[i] = clip(ex[i])
		gB[i] = make([]float64, d)
		for j := 0; j < d; j++ {
			g := ex[i] * pred.Latent[j]
			g += cfg.WeightDecay * w.B[i][j]
			gB[i][j] = clip(g)
		}
	}

	e.opt.begin()
	e.opt.update("A", w.A, gA)
	e.opt.update("biasZ", w.BiasZ, gBiasZ)
	e.opt.update("biasX", w.BiasX, gBiasX)
	for i := 0; i < d; i++ {
		e.opt.update(rowKey("W", i), w.W[i], gW[i])
		e.opt.update(rowKey("alpha", i), w.Alpha[i], gAlpha[i])
	}
	for i := 0; i < cfg.ObservedDim; i++ {
		e.opt.update(rowKey("B", i), w.B[i], gB[i])
	}
}

func rowKey(name string, i int) string {
	return name + "." + strconv.Itoa(i)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
