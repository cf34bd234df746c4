package state

import (
	"math"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name      string
		in        []float64
		want      []float64
		wantDirty bool
	}{
		{
			name: "clean vector untouched",
			in:   []float64{1, -2, 0.5},
			want: []float64{1, -2, 0.5},
		},
		{
			name:      "non-finite entries zeroed",
			in:        []float64{math.NaN(), math.Inf(1), math.Inf(-1), 3},
			want:      []float64{0, 0, 0, 3},
			wantDirty: true,
		},
		{
			name: "out-of-range entries clamped",
			in:   []float64{15, -15, 9.9},
			want: []float64{10, -10, 9.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirty := Sanitize(tt.in, 10)
			if dirty != tt.wantDirty {
				t.Errorf("dirty = %v, want %v", dirty, tt.wantDirty)
			}
			for i := range tt.want {
				if tt.in[i] != tt.want[i] {
					t.Errorf("v[%d] = %v, want %v", i, tt.in[i], tt.want[i])
				}
			}
		})
	}
}

func TestLatentStateClone(t *testing.T) {
	s := NewLatentState(LatentDim, 0.1)
	s.Latent[0] = 1
	c := s.Clone()
	c.Latent[0] = 2
	c.Uncertainty[1] = 9

	if s.Latent[0] != 1 || s.Uncertainty[1] != 0.1 {
		t.Errorf("clone shares storage with the original: %+v", s)
	}
}

func TestFilterStateClone(t *testing.T) {
	s := NewFilterState(LatentDim, 1.0)
	c := s.Clone()
	c.ErrorCovariance[0][0] = 42
	c.Estimate[1] = 7

	if s.ErrorCovariance[0][0] != 1.0 || s.Estimate[1] != 0 {
		t.Errorf("clone shares storage with the original: %+v", s)
	}
}
