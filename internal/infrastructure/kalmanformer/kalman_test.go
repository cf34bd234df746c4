package kalmanformer

import (
	"math"
	"testing"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
)

func TestInvert(t *testing.T) {
	m := [][]float64{
		{4, 1, 0},
		{1, 3, 1},
		{0, 1, 2},
	}
	inv, ok := invert(m)
	if !ok {
		t.Fatal("invert reported a well-conditioned matrix as singular")
	}

	prod := matMulSquare(m, inv)
	for i := range prod {
		for j := range prod[i] {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(prod[i][j]-want) > 1e-9 {
				t.Errorf("M·M⁻¹[%d][%d] = %v, want %v", i, j, prod[i][j], want)
			}
		}
	}
}

func TestInvertSingular(t *testing.T) {
	// Second row is a multiple of the first.
	m := [][]float64{
		{1, 2},
		{2, 4},
	}
	if _, ok := invert(m); ok {
		t.Fatal("invert accepted a singular matrix")
	}
}

func TestRiccatiGainFallback(t *testing.T) {
	tests := []struct {
		name    string
		predCov [][]float64
		noise   float64
	}{
		{
			name:    "zero covariance with zero noise",
			predCov: [][]float64{{0, 0}, {0, 0}},
			noise:   0,
		},
		{
			name:    "rank-deficient innovation covariance",
			predCov: [][]float64{{1, 2}, {2, 4}},
			noise:   0,
		},
		{
			name: "non-finite entries",
			predCov: [][]float64{
				{math.Inf(1), 0},
				{0, math.NaN()},
			},
			noise: 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gain := riccatiGain(tt.predCov, tt.noise)
			if len(gain) != len(tt.predCov) {
				t.Fatalf("gain dim = %d, want %d", len(gain), len(tt.predCov))
			}
			for i := range gain {
				for j := range gain[i] {
					if math.IsNaN(gain[i][j]) || math.IsInf(gain[i][j], 0) {
						t.Fatalf("gain[%d][%d] = %v, want finite", i, j, gain[i][j])
					}
				}
			}
			// The degraded path is the scaled identity.
			for i := range gain {
				if gain[i][i] != fallbackGain {
					t.Errorf("gain[%d][%d] = %v, want fallback %v", i, i, gain[i][i], fallbackGain)
				}
			}
		})
	}
}

func TestRiccatiGainWellConditioned(t *testing.T) {
	predCov := state.ScaledIdentity(state.LatentDim, 1.0)
	gain := riccatiGain(predCov, 0.25)

	// Scalar case per dimension: K = P/(P+R) = 1/1.25 = 0.8.
	for i := range gain {
		if math.Abs(gain[i][i]-0.8) > 1e-9 {
			t.Errorf("gain[%d][%d] = %v, want 0.8", i, i, gain[i][i])
		}
		for j := range gain[i] {
			if i != j && math.Abs(gain[i][j]) > 1e-9 {
				t.Errorf("gain[%d][%d] = %v, want 0", i, j, gain[i][j])
			}
		}
	}
}

func TestKalmanCorrect(t *testing.T) {
	dim := 2
	pred := []float64{1, -1}
	predCov := state.ScaledIdentity(dim, 1.0)
	gain := state.ScaledIdentity(dim, 0.8)
	obs := []float64{2, -2}

	estimate, cov, innovation := kalmanCorrect(pred, predCov, gain, obs)

	wantEst := []float64{1.8, -1.8}
	wantInn := []float64{1, -1}
	for i := 0; i < dim; i++ {
		if math.Abs(estimate[i]-wantEst[i]) > 1e-9 {
			t.Errorf("estimate[%d] = %v, want %v", i, estimate[i], wantEst[i])
		}
		if math.Abs(innovation[i]-wantInn[i]) > 1e-9 {
			t.Errorf("innovation[%d] = %v, want %v", i, innovation[i], wantInn[i])
		}
	}

	// (I-K)·P = 0.2·I; symmetric with a non-negative diagonal.
	for i := 0; i < dim; i++ {
		if math.Abs(cov[i][i]-0.2) > 1e-9 {
			t.Errorf("cov[%d][%d] = %v, want 0.2", i, i, cov[i][i])
		}
		for j := 0; j < dim; j++ {
			if math.Abs(cov[i][j]-cov[j][i]) > 1e-12 {
				t.Errorf("cov not symmetric at [%d][%d]", i, j)
			}
		}
		if cov[i][i] < 0 {
			t.Errorf("cov[%d][%d] = %v, want >= 0", i, i, cov[i][i])
		}
	}
}

func TestKalmanPredictInflatesCovariance(t *testing.T) {
	st := state.NewFilterState(3, 1.0)
	st.Estimate = []float64{0.1, 0.2, 0.3}

	pred, predCov := kalmanPredict(st, 0.01)

	for i, v := range pred {
		if v != st.Estimate[i] {
			t.Errorf("pred[%d] = %v, want carried-forward estimate %v", i, v, st.Estimate[i])
		}
	}
	for i := range predCov {
		if math.Abs(predCov[i][i]-1.01) > 1e-12 {
			t.Errorf("predCov[%d][%d] = %v, want 1.01", i, i, predCov[i][i])
		}
	}
	// The input state's covariance is untouched.
	if st.ErrorCovariance[0][0] != 1.0 {
		t.Errorf("input covariance mutated: %v", st.ErrorCovariance[0][0])
	}
}
