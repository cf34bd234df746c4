// Package state provides the shared state types the forecasting engines
// operate on: latent/observed vectors, filter state, and the external
// Bayesian belief representation.
package state

import (
	"fmt"
	"math"
	"time"
)

// LatentDim is the fixed dimensionality of the psychological state space.
const LatentDim = 5

// Dimension indices into every state vector, in canonical order.
const (
	DimValence = iota
	DimArousal
	DimDominance
	DimRisk
	DimResources
)

// DimensionLabels maps indices to canonical dimension names.
var DimensionLabels = [LatentDim]string{"valence", "arousal", "dominance", "risk", "resources"}

// DimensionIndex resolves a canonical dimension label to its index.
func DimensionIndex(label string) (int, error) {
	for i, l := range DimensionLabels {
		if l == label {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unknown dimension: %q", label)
}

// Observation is a raw 5-dimensional measurement with its wall-clock time.
type Observation struct {
	Values    []float64 `json:"values"`
	Timestamp time.Time `json:"timestamp"`
}

// LatentState is one PLRNN state at a single timestep.
type LatentState struct {
	Latent      []float64 `json:"latent"`      // pre-nonlinearity latent vector
	Hidden      []float64 `json:"hidden"`      // post-nonlinearity activations
	Observed    []float64 `json:"observed"`    // projected output vector
	Uncertainty []float64 `json:"uncertainty"` // per-dimension variance proxy, non-negative
	Timestamp   time.Time `json:"timestamp"`
	Timestep    int       `json:"timestep"`
}

// NewLatentState returns a zero state with all vectors allocated at dim.
func NewLatentState(dim int, initialUncertainty float64) *LatentState {
	return &LatentState{
		Latent:      make([]float64, dim),
		Hidden:      make([]float64, dim),
		Observed:    make([]float64, dim),
		Uncertainty: filled(dim, initialUncertainty),
		Timestamp:   time.Now(),
	}
}

// Clone returns a deep copy so callers can branch trajectories safely.
func (s *LatentState) Clone() *LatentState {
	c := &LatentState{
		Latent:      append([]float64(nil), s.Latent...),
		Hidden:      append([]float64(nil), s.Hidden...),
		Observed:    append([]float64(nil), s.Observed...),
		Uncertainty: append([]float64(nil), s.Uncertainty...),
		Timestamp:   s.Timestamp,
		Timestep:    s.Timestep,
	}
	return c
}

// FilterState is one KalmanFormer state: the Kalman estimate plus the
// blend diagnostics produced by the hybrid update.
type FilterState struct {
	Estimate        []float64   `json:"estimate"`
	ErrorCovariance [][]float64 `json:"errorCovariance"`
	Predicted       []float64   `json:"predicted"`
	PredictedCov    [][]float64 `json:"predictedCov"`
	Innovation      []float64   `json:"innovation"`
	Gain            [][]float64 `json:"gain"`
	OutlierScore    float64     `json:"outlierScore"`
	BlendRatio      float64     `json:"blendRatio"` // weight on the attention prediction, 0..1
	Confidence      float64     `json:"confidence"` // 0..1
	Timestamp       time.Time   `json:"timestamp"`
	Timestep        int         `json:"timestep"`
}

// NewFilterState returns a filter state with identity-scaled covariance.
func NewFilterState(dim int, initialCovariance float64) *FilterState {
	return &FilterState{
		Estimate:        make([]float64, dim),
		ErrorCovariance: ScaledIdentity(dim, initialCovariance),
		Predicted:       make([]float64, dim),
		PredictedCov:    ScaledIdentity(dim, initialCovariance),
		Innovation:      make([]float64, dim),
		Gain:            ScaledIdentity(dim, 0),
		BlendRatio:      0.5,
		Confidence:      0.5,
		Timestamp:       time.Now(),
	}
}

// Clone returns a deep copy of the filter state.
func (s *FilterState) Clone() *FilterState {
	return &FilterState{
		Estimate:        append([]float64(nil), s.Estimate...),
		ErrorCovariance: CloneMatrix(s.ErrorCovariance),
		Predicted:       append([]float64(nil), s.Predicted...),
		PredictedCov:    CloneMatrix(s.PredictedCov),
		Innovation:      append([]float64(nil), s.Innovation...),
		Gain:            CloneMatrix(s.Gain),
		OutlierScore:    s.OutlierScore,
		BlendRatio:      s.BlendRatio,
		Confidence:      s.Confidence,
		Timestamp:       s.Timestamp,
		Timestep:        s.Timestep,
	}
}

// ScaledIdentity builds a dim x dim matrix with value on the diagonal.
func ScaledIdentity(dim int, value float64) [][]float64 {
	m := make([][]float64, dim)
	for i := range m {
		m[i] = make([]float64, dim)
		m[i][i] = value
	}
	return m
}

// CloneMatrix deep-copies a 2D matrix.
func CloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	c := make([][]float64, len(m))
	for i := range m {
		c[i] = append([]float64(nil), m[i]...)
	}
	return c
}

// Sanitize replaces non-finite entries with zero and clamps each entry to
// [-bound, bound]. It mutates v in place and reports whether any entry was
// non-finite.
func Sanitize(v []float64, bound float64) bool {
	dirty := false
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
			dirty = true
			continue
		}
		if x > bound {
			v[i] = bound
		} else if x < -bound {
			v[i] = -bound
		}
	}
	return dirty
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
