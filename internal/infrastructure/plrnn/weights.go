// Package plrnn implements the piecewise-linear recurrent dynamics engine:
// nonlinear state recursion, multi-step forecasting, causal-network
// extraction, intervention simulation, early-warning detection, and
// online/batch training with manual backprop and Adam.
package plrnn

import (
	"math/rand"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

// Weights is the PLRNN weight bundle. A holds per-dimension self-dynamics,
// W the recurrent coupling over nonlinear activations, B the output
// projection, C the input coupling, Alpha/Thresholds the dendritic basis.
type Weights struct {
	A          []float64   `json:"a"`          // diagonal, length latentDim
	W          [][]float64 `json:"w"`          // latentDim x latentDim, kept sparse by L1
	B          [][]float64 `json:"b"`          // observedDim x latentDim
	C          [][]float64 `json:"c"`          // latentDim x latentDim input coupling
	Alpha      [][]float64 `json:"alpha"`      // latentDim x numBases dendritic weights
	Thresholds []float64   `json:"thresholds"` // numBases dendritic offsets
	BiasZ      []float64   `json:"biasZ"`
	BiasX      []float64   `json:"biasX"`
}

// newWeights initializes a bundle from the config seed. A starts near unit
// magnitude for stability, W small and symmetric-free, B near identity so
// the observed space tracks the latent space before training.
func newWeights(cfg forecast.PLRNNConfig) *Weights {
	rng := rand.New(rand.NewSource(cfg.Seed))
	d := cfg.LatentDim
	od := cfg.ObservedDim

	w := &Weights{
		A:          make([]float64, d),
		W:          make([][]float64, d),
		B:          make([][]float64, od),
		C:          make([][]float64, d),
		Alpha:      make([][]float64, d),
		Thresholds: make([]float64, cfg.NumBases),
		BiasZ:      make([]float64, d),
		BiasX:      make([]float64, od),
	}

	for i := 0; i < d; i++ {
		w.A[i] = 0.9 + 0.05*rng.Float64()

		w.W[i] = make([]float64, d)
		for j := 0; j < d; j++ {
			if i != j {
				w.W[i][j] = (rng.Float64() - 0.5) * 0.1
			}
		}

		w.C[i] = make([]float64, d)
		w.C[i][i] = 0.5

		w.Alpha[i] = make([]float64, cfg.NumBases)
		for b := 0; b < cfg.NumBases; b++ {
			w.Alpha[i][b] = (rng.Float64() - 0.5) * 0.05
		}
	}

	for i := 0; i < od; i++ {
		w.B[i] = make([]float64, d)
		if i < d {
			w.B[i][i] = 1.0
		}
	}

	// Spread dendritic thresholds across the operating range.
	for b := 0; b < cfg.NumBases; b++ {
		if cfg.NumBases > 1 {
			w.Thresholds[b] = -2.0 + 4.0*float64(b)/float64(cfg.NumBases-1)
		}
	}

	return w
}

// Clone deep-copies the bundle.
func (w *Weights) Clone() *Weights {
	return &Weights{
		A:          append([]float64(nil), w.A...),
		W:          cloneMatrix(w.W),
		B:          cloneMatrix(w.B),
		C:          cloneMatrix(w.C),
		Alpha:      cloneMatrix(w.Alpha),
		Thresholds: append([]float64(nil), w.Thresholds...),
		BiasZ:      append([]float64(nil), w.BiasZ...),
		BiasX:      append([]float64(nil), w.BiasX...),
	}
}

func cloneMatrix(m [][]float64) [][]float64 {
	c := make([][]float64, len(m))
	for i := range m {
		c[i] = append([]float64(nil), m[i]...)
	}
	return c
}
