package kalmanformer

import (
	"fmt"
	"math"
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// The learned per-step blend predictor is the primary mechanism; this
// heuristic adapter is a slow-moving calibration signal that only shifts
// the predictor's global bias term (see blendRatio in engine.go).

// AdaptBlendRatio compares predicted against actual sequences and nudges
// the global blend bias: a large RMSE shifts trust toward the attention
// model, an RMSE well under half the threshold shifts it back toward the
// filter. Returns the resulting ratio at the current context, clamped to
// [0.2, 0.8].
func (e *Engine) AdaptBlendRatio(predictions, actuals [][]float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return 0, forecast.ErrNotInitialized
	}
	if len(predictions) != len(actuals) || len(predictions) == 0 {
		return 0, fmt.Errorf("%w: %d predictions vs %d actuals",
			forecast.ErrDimensionMismatch, len(predictions), len(actuals))
	}

	rmse := rootMeanSquareError(predictions, actuals)

	// Step size in logit space sized so one adjustment moves the ratio by
	// roughly BlendStep near the middle of the range.
	logitStep := 4 * e.config.BlendStep
	switch {
	case rmse > e.config.RMSEThreshold:
		e.weights.GlobalBlendBias += logitStep
	case rmse < e.config.RMSEThreshold/2:
		e.weights.GlobalBlendBias -= logitStep
	}
	// Keep the offset bounded so the learned predictor stays primary.
	e.weights.GlobalBlendBias = mathx.Clamp(e.weights.GlobalBlendBias, -2, 2)

	context := e.latestContext()
	return e.blendRatio(context), nil
}

// Train is an evaluation pass over an observation sequence: it replays
// the hybrid update, measures the Kalman and attention sub-model losses,
// and applies a gradient step only to the blend predictor's logistic
// parameters. The attention weights themselves stay fixed after
// initialization; this is intentional, not a missing gradient path.
func (e *Engine) Train(sample forecast.TrainingSample) (*forecast.TrainingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}
	obs := sample.Observations
	if len(obs) < 2 {
		return &forecast.TrainingResult{Loss: math.Inf(1), Converged: false, Samples: 1}, nil
	}

	w := e.weights
	st := e.NewState()
	embeddings := make([][]float64, 0, e.config.ContextWindow)

	var totalLoss float64
	steps := 0
	const lr = 0.01

	for t := 0; t < len(obs)-1; t++ {
		if len(obs[t].Values) != e.config.StateDim {
			continue
		}
		embeddings = pushEmbedding(embeddings, e.embed(obs[t]), e.config.ContextWindow)

		contexts, _ := encode(e.config, w, embeddings)
		latest := contexts[len(contexts)-1]

		pred, predCov := kalmanPredict(st, e.config.ProcessNoise)
		gain := riccatiGain(predCov, e.config.MeasurementNoise)
		kEst, cov, innovation := kalmanCorrect(pred, predCov, gain, obs[t].Values)

		attnPred := mathx.VectorAdd(mathx.MatVec(w.Decode, latest), w.DecodeBias)

		target := obs[t+1].Values
		ratio := e.blendRatio(latest)

		var stepLoss, gradLogit float64
		for i := 0; i < e.config.StateDim; i++ {
			blended := (1-ratio)*kEst[i] + ratio*attnPred[i]
			err := blended - target[i]
			stepLoss += err * err
			gradLogit += 2 * err * (attnPred[i] - kEst[i])
		}
		stepLoss /= float64(e.config.StateDim)
		totalLoss += stepLoss

		// Chain through the logistic; only the blend parameters move.
		gradLogit *= ratio * (1 - ratio) / float64(e.config.StateDim)
		gradLogit = mathx.Clamp(gradLogit, -1, 1)
		w.BlendBias -= lr * gradLogit
		for i := range w.BlendW {
			w.BlendW[i] -= lr * gradLogit * latest[i]
		}

		st.Estimate = kEst
		st.ErrorCovariance = cov
		st.Innovation = innovation
		st.Timestep++
		steps++
	}

	if steps == 0 {
		return &forecast.TrainingResult{Loss: math.Inf(1), Converged: false, Samples: 1}, nil
	}

	loss := totalLoss / float64(steps)
	e.sampleCount++
	e.trainedAt = time.Now()
	e.lastLoss = loss
	return &forecast.TrainingResult{
		Loss:      loss,
		Converged: loss < e.config.RMSEThreshold*e.config.RMSEThreshold,
		Steps:     steps,
		Samples:   1,
	}, nil
}

// latestContext encodes the current history and returns the final context
// embedding, or a zero vector when the history is empty.
func (e *Engine) latestContext() []float64 {
	contexts, _ := encode(e.config, e.weights, e.historyEmbeddings())
	if len(contexts) == 0 {
		return make([]float64, e.config.EmbedDim)
	}
	return contexts[len(contexts)-1]
}

func rootMeanSquareError(predictions, actuals [][]float64) float64 {
	var sum float64
	var count int
	for i := range predictions {
		for j := range predictions[i] {
			if j < len(actuals[i]) {
				d := predictions[i][j] - actuals[i][j]
				sum += d * d
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
