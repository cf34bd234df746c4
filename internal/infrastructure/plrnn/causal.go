package plrnn

import (
	"math"
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

// ExtractCausalNetwork derives the read-only causal graph from the current
// weights: node self-weights from A, centrality from the absolute weight
// mass of each dimension's row and column in W, edges from off-diagonal
// couplings above the significance threshold, and feedback loops from
// bidirectional significant pairs.
func (e *Engine) ExtractCausalNetwork() (*forecast.CausalNetwork, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, forecast.ErrNotInitialized
	}

	d := e.config.LatentDim
	w := e.weights
	threshold := e.config.SignificanceThreshold

	// Row+column absolute mass per dimension, then normalize to [0,1].
	mass := make([]float64, d)
	var maxMass float64
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			if i == j {
				continue
			}
			mass[i] += math.Abs(w.W[i][j]) + math.Abs(w.W[j][i])
		}
		mass[i] /= float64(2 * (d - 1))
		if mass[i] > maxMass {
			maxMass = mass[i]
		}
	}

	net := &forecast.CausalNetwork{
		Nodes:       make([]forecast.CausalNode, d),
		ExtractedAt: time.Now(),
	}

	mostCentral := 0
	for i := 0; i < d; i++ {
		centrality := 0.0
		if maxMass > 0 {
			centrality = mass[i] / maxMass
		}
		net.Nodes[i] = forecast.CausalNode{
			Dimension:  dimensionLabel(i),
			SelfWeight: w.A[i],
			Centrality: centrality,
		}
		if mass[i] > mass[mostCentral] {
			mostCentral = i
		}
	}
	net.MostCentral = dimensionLabel(mostCentral)

	// Edge significance saturates at the uniform-coupling scale 1/d.
	uniform := 1.0 / float64(d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			if i == j {
				continue
			}
			weight := w.W[i][j]
			if math.Abs(weight) <= threshold {
				continue
			}
			net.Edges = append(net.Edges, forecast.CausalEdge{
				From:         dimensionLabel(j),
				To:           dimensionLabel(i),
				Weight:       weight,
				Lag:          1,
				Significance: math.Min(1.0, math.Abs(weight)/uniform),
			})
		}
	}

	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			if math.Abs(w.W[i][j]) > threshold && math.Abs(w.W[j][i]) > threshold {
				net.Loops = append(net.Loops, forecast.FeedbackLoop{
					A:        dimensionLabel(i),
					B:        dimensionLabel(j),
					Strength: math.Min(math.Abs(w.W[i][j]), math.Abs(w.W[j][i])),
				})
			}
		}
	}

	if d > 1 {
		net.Density = float64(len(net.Edges)) / float64(d*(d-1))
	}
	return net, nil
}
