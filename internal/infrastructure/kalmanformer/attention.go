package kalmanformer

import (
	"math"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/infrastructure/mathx"
)

// encode runs the observation history through the attention stack and
// returns the per-position context embeddings plus the final layer's
// attention weight matrix averaged over heads (rows attend, columns are
// attended to).
func encode(cfg forecast.KalmanFormerConfig, w *Weights, embeddings [][]float64) ([][]float64, [][]float64) {
	n := len(embeddings)
	if n == 0 {
		return nil, nil
	}

	// Positional encoding on top of the cached observation embeddings.
	x := make([][]float64, n)
	for i := range embeddings {
		x[i] = mathx.VectorAdd(embeddings[i], mathx.SinusoidalEncoding(i, cfg.EmbedDim))
	}

	var lastAttention [][]float64
	for l := range w.Layers {
		var attn [][]float64
		x, attn = encodeLayer(cfg, &w.Layers[l], x)
		if l == len(w.Layers)-1 {
			lastAttention = attn
		}
	}
	return x, lastAttention
}

// encodeLayer applies one pre-projection multi-head self-attention block
// with residual connections and layer normalization.
func encodeLayer(cfg forecast.KalmanFormerConfig, lw *LayerWeights, x [][]float64) ([][]float64, [][]float64) {
	n := len(x)
	ed := cfg.EmbedDim
	heads := cfg.NumHeads
	headDim := ed / heads
	scale := 1.0 / math.Sqrt(float64(headDim))

	q := make([][]float64, n)
	k := make([][]float64, n)
	v := make([][]float64, n)
	for i := range x {
		q[i] = mathx.MatVec(lw.WQ, x[i])
		k[i] = mathx.MatVec(lw.WK, x[i])
		v[i] = mathx.MatVec(lw.WV, x[i])
	}

	attnOut := make([][]float64, n)
	avgWeights := make([][]float64, n)
	for i := range avgWeights {
		attnOut[i] = make([]float64, ed)
		avgWeights[i] = make([]float64, n)
	}

	for h := 0; h < heads; h++ {
		lo := h * headDim
		hi := lo + headDim
		for i := 0; i < n; i++ {
			scores := make([]float64, n)
			for j := 0; j < n; j++ {
				scores[j] = mathx.DotProduct(q[i][lo:hi], k[j][lo:hi]) * scale
			}
			weights := mathx.Softmax(scores)
			for j := 0; j < n; j++ {
				avgWeights[i][j] += weights[j] / float64(heads)
				for d := lo; d < hi; d++ {
					attnOut[i][d] += weights[j] * v[j][d]
				}
			}
		}
	}

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		projected := mathx.MatVec(lw.WO, attnOut[i])
		out[i] = layerNorm(mathx.VectorAdd(x[i], projected), lw.Norm1Gain, lw.Norm1Bias)
	}

	for i := 0; i < n; i++ {
		hidden := mathx.MatVec(lw.FF1, out[i])
		for j := range hidden {
			hidden[j] = mathx.ReLU(hidden[j] + lw.FF1Bias[j])
		}
		ff := mathx.MatVec(lw.FF2, hidden)
		ff = mathx.VectorAdd(ff, lw.FF2Bias)
		out[i] = layerNorm(mathx.VectorAdd(out[i], ff), lw.Norm2Gain, lw.Norm2Bias)
	}

	return out, avgWeights
}

// layerNorm normalizes a vector to zero mean and unit variance, then
// applies the learned gain and bias.
func layerNorm(v, gain, bias []float64) []float64 {
	const eps = 1e-5

	mean := mathx.Mean(v)
	var variance float64
	for _, x := range v {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(v))

	inv := 1.0 / math.Sqrt(variance+eps)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x-mean)*inv*gain[i] + bias[i]
	}
	return out
}
