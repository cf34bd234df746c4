// Package kalmanformer implements the hybrid filter-encoder: a matrix
// Kalman filter whose gain can come from the Riccati recursion or a
// learned predictor, fused with a multi-head self-attention sequence
// model over a bounded observation history.
package kalmanformer

import (
	"log"
	"math"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
)

// fallbackGain is the scaled-identity gain used when the innovation
// covariance is singular or ill-conditioned.
const fallbackGain = 0.5

// kalmanPredict advances the estimate one step. The state transition is
// identity (the latent dimensions are modeled as slow random walks), so
// the prediction carries the estimate forward and inflates the covariance
// by the process noise.
func kalmanPredict(st *state.FilterState, processNoise float64) ([]float64, [][]float64) {
	dim := len(st.Estimate)
	pred := append([]float64(nil), st.Estimate...)
	predCov := state.CloneMatrix(st.ErrorCovariance)
	for i := 0; i < dim; i++ {
		predCov[i][i] += processNoise
	}
	return pred, predCov
}

// riccatiGain computes K = P·(P + R)⁻¹ with the observation model fixed at
// identity. A singular or ill-conditioned innovation covariance falls back
// to a scaled-identity gain instead of failing; this is a known
// approximation, not an error.
func riccatiGain(predCov [][]float64, measurementNoise float64) [][]float64 {
	dim := len(predCov)

	s := state.CloneMatrix(predCov)
	for i := 0; i < dim; i++ {
		s[i][i] += measurementNoise
	}

	inv, ok := invert(s)
	if !ok {
		log.Printf("kalmanformer: innovation covariance near-singular, using scaled-identity gain")
		return state.ScaledIdentity(dim, fallbackGain)
	}

	gain := matMulSquare(predCov, inv)
	for i := range gain {
		for j := range gain[i] {
			if math.IsNaN(gain[i][j]) || math.IsInf(gain[i][j], 0) {
				log.Printf("kalmanformer: non-finite gain entry, using scaled-identity gain")
				return state.ScaledIdentity(dim, fallbackGain)
			}
		}
	}
	return gain
}

// kalmanCorrect applies the measurement update and returns the corrected
// estimate, covariance, and innovation. The covariance is re-symmetrized
// and its diagonal floored to keep it positive semi-definite under
// floating-point drift.
func kalmanCorrect(pred []float64, predCov [][]float64, gain [][]float64, obs []float64) ([]float64, [][]float64, []float64) {
	dim := len(pred)

	innovation := make([]float64, dim)
	for i := 0; i < dim; i++ {
		innovation[i] = obs[i] - pred[i]
	}

	estimate := make([]float64, dim)
	for i := 0; i < dim; i++ {
		v := pred[i]
		for j := 0; j < dim; j++ {
			v += gain[i][j] * innovation[j]
		}
		estimate[i] = v
	}

	// P = (I - K)·P_pred
	cov := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		cov[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			var v float64
			for k := 0; k < dim; k++ {
				ik := -gain[i][k]
				if i == k {
					ik += 1
				}
				v += ik * predCov[k][j]
			}
			cov[i][j] = v
		}
	}
	symmetrize(cov)

	return estimate, cov, innovation
}

// invert computes the inverse of a square matrix by Gauss-Jordan
// elimination with partial pivoting. Returns false when the matrix is
// singular or ill-conditioned.
func invert(m [][]float64) ([][]float64, bool) {
	dim := len(m)
	a := state.CloneMatrix(m)
	inv := state.ScaledIdentity(dim, 1)

	const pivotEps = 1e-10

	for col := 0; col < dim; col++ {
		pivot := col
		for row := col + 1; row < dim; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < pivotEps {
			return nil, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		scale := a[col][col]
		for j := 0; j < dim; j++ {
			a[col][j] /= scale
			inv[col][j] /= scale
		}

		for row := 0; row < dim; row++ {
			if row == col {
				continue
			}
			factor := a[row][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < dim; j++ {
				a[row][j] -= factor * a[col][j]
				inv[row][j] -= factor * inv[col][j]
			}
		}
	}

	return inv, true
}

func matMulSquare(a, b [][]float64) [][]float64 {
	dim := len(a)
	out := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		out[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			var v float64
			for k := 0; k < dim; k++ {
				v += a[i][k] * b[k][j]
			}
			out[i][j] = v
		}
	}
	return out
}

// symmetrize averages the matrix with its transpose and floors the
// diagonal at zero.
func symmetrize(m [][]float64) {
	dim := len(m)
	for i := 0; i < dim; i++ {
		for j := i + 1; j < dim; j++ {
			v := (m[i][j] + m[j][i]) / 2
			m[i][j] = v
			m[j][i] = v
		}
		if m[i][i] < 0 {
			m[i][i] = 0
		}
	}
}
