package kalmanformer

import (
	"math"
	"math/rand"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

// Weights is the KalmanFormer weight bundle: observation embedding,
// attention stack, output decoders, the learned gain predictor, and the
// blend predictor.
type Weights struct {
	Embed     [][]float64 `json:"embed"` // embedDim x stateDim
	EmbedBias []float64   `json:"embedBias"`

	Layers []LayerWeights `json:"layers"`

	Decode     [][]float64 `json:"decode"` // stateDim x embedDim point prediction head
	DecodeBias []float64   `json:"decodeBias"`

	GainW    [][]float64 `json:"gainW"` // stateDim x embedDim learned diagonal gain
	GainBias []float64   `json:"gainBias"`

	BlendW          []float64 `json:"blendW"` // embedDim
	BlendBias       float64   `json:"blendBias"`
	GlobalBlendBias float64   `json:"globalBlendBias"` // slow calibration offset, logit space
}

// LayerWeights is one encoder layer: multi-head self-attention projections,
// a two-layer feed-forward block, and two layer norms.
type LayerWeights struct {
	WQ [][]float64 `json:"wq"` // embedDim x embedDim
	WK [][]float64 `json:"wk"`
	WV [][]float64 `json:"wv"`
	WO [][]float64 `json:"wo"`

	FF1     [][]float64 `json:"ff1"` // ffDim x embedDim
	FF1Bias []float64   `json:"ff1Bias"`
	FF2     [][]float64 `json:"ff2"` // embedDim x ffDim
	FF2Bias []float64   `json:"ff2Bias"`

	Norm1Gain []float64 `json:"norm1Gain"`
	Norm1Bias []float64 `json:"norm1Bias"`
	Norm2Gain []float64 `json:"norm2Gain"`
	Norm2Bias []float64 `json:"norm2Bias"`
}

// newWeights initializes the bundle from the config seed with Xavier-style
// scaling on every projection.
func newWeights(cfg forecast.KalmanFormerConfig) *Weights {
	rng := rand.New(rand.NewSource(cfg.Seed))
	ed := cfg.EmbedDim
	sd := cfg.StateDim
	ff := cfg.FeedForward

	w := &Weights{
		Embed:      randomMatrix(rng, ed, sd),
		EmbedBias:  make([]float64, ed),
		Layers:     make([]LayerWeights, cfg.NumLayers),
		Decode:     randomMatrix(rng, sd, ed),
		DecodeBias: make([]float64, sd),
		GainW:      randomMatrix(rng, sd, ed),
		GainBias:   make([]float64, sd),
		BlendW:     randomVector(rng, ed),
	}

	for l := range w.Layers {
		w.Layers[l] = LayerWeights{
			WQ:        randomMatrix(rng, ed, ed),
			WK:        randomMatrix(rng, ed, ed),
			WV:        randomMatrix(rng, ed, ed),
			WO:        randomMatrix(rng, ed, ed),
			FF1:       randomMatrix(rng, ff, ed),
			FF1Bias:   make([]float64, ff),
			FF2:       randomMatrix(rng, ed, ff),
			FF2Bias:   make([]float64, ed),
			Norm1Gain: ones(ed),
			Norm1Bias: make([]float64, ed),
			Norm2Gain: ones(ed),
			Norm2Bias: make([]float64, ed),
		}
	}

	return w
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	scale := math.Sqrt(2.0 / float64(cols))
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64() - 0.5) * scale
		}
	}
	return m
}

func randomVector(rng *rand.Rand, n int) []float64 {
	scale := math.Sqrt(2.0 / float64(n))
	v := make([]float64, n)
	for i := range v {
		v[i] = (rng.Float64() - 0.5) * scale
	}
	return v
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
