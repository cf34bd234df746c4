package plrnn

import (
	"math"
	"testing"
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(forecast.DefaultPLRNNConfig())
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func neutralState(t *testing.T, e *Engine) *state.LatentState {
	t.Helper()
	st, err := e.StateFromObservation(state.Observation{
		Values:    []float64{0, 0, 0.5, 0.1, 0.5},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("StateFromObservation: %v", err)
	}
	return st
}

func TestForwardRequiresInitialize(t *testing.T) {
	e := NewEngine(forecast.DefaultPLRNNConfig())
	_, err := e.Forward(state.NewLatentState(5, 0.1), nil)
	if err != forecast.ErrNotInitialized {
		t.Fatalf("Forward before Initialize: got %v, want ErrNotInitialized", err)
	}
}

func TestInitializeIdempotent(t *testing.T) {
	e := newTestEngine(t)
	st := neutralState(t, e)
	first, err := e.Forward(st, nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	second, err := e.Forward(st, nil)
	if err != nil {
		t.Fatalf("Forward after re-Initialize: %v", err)
	}
	for i := range first.Latent {
		if first.Latent[i] != second.Latent[i] {
			t.Fatalf("re-Initialize changed weights: dim %d %v vs %v", i, first.Latent[i], second.Latent[i])
		}
	}
}

func TestForwardDeterminism(t *testing.T) {
	e := newTestEngine(t)
	st := neutralState(t, e)
	input := []float64{0.1, -0.2, 0, 0.3, 0}

	a, err := e.Forward(st, input)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	b, err := e.Forward(st, input)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i := range a.Latent {
		if a.Latent[i] != b.Latent[i] || a.Observed[i] != b.Observed[i] {
			t.Errorf("dim %d: Forward not deterministic (%v/%v vs %v/%v)",
				i, a.Latent[i], a.Observed[i], b.Latent[i], b.Observed[i])
		}
	}

	// A second engine built from the same seed must agree as well.
	e2 := newTestEngine(t)
	c, err := e2.Forward(st, input)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i := range a.Latent {
		if a.Latent[i] != c.Latent[i] {
			t.Errorf("dim %d: same seed, different dynamics (%v vs %v)", i, a.Latent[i], c.Latent[i])
		}
	}
}

func TestForwardBoundedness(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.Config()

	tests := []struct {
		name  string
		start []float64
		input []float64
	}{
		{"neutral no input", []float64{0, 0, 0.5, 0.1, 0.5}, nil},
		{"extreme start", []float64{10, -10, 10, -10, 10}, nil},
		{"extreme input", []float64{0, 0, 0, 0, 0}, []float64{100, -100, 100, -100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := e.StateFromObservation(state.Observation{Values: tt.start})
			if err != nil {
				t.Fatalf("StateFromObservation: %v", err)
			}
			for step := 0; step < 200; step++ {
				st, err = e.Forward(st, tt.input)
				if err != nil {
					t.Fatalf("Forward step %d: %v", step, err)
				}
				for i := range st.Latent {
					for _, v := range []float64{st.Latent[i], st.Observed[i]} {
						if math.IsNaN(v) || math.IsInf(v, 0) {
							t.Fatalf("step %d dim %d: non-finite value %v", step, i, v)
						}
						if v > cfg.ClampRange || v < -cfg.ClampRange {
							t.Fatalf("step %d dim %d: %v outside clamp range", step, i, v)
						}
					}
					if st.Uncertainty[i] < 0 || st.Uncertainty[i] > cfg.UncertaintyMax {
						t.Fatalf("step %d dim %d: uncertainty %v out of range", step, i, st.Uncertainty[i])
					}
				}
			}
		})
	}
}

func TestUncertaintyGrowsWithoutCorrection(t *testing.T) {
	e := newTestEngine(t)
	st := neutralState(t, e)

	prev := st.Uncertainty[0]
	for step := 0; step < 10; step++ {
		next, err := e.Forward(st, nil)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		if next.Uncertainty[0] < prev {
			t.Fatalf("step %d: uncertainty shrank from %v to %v without a correction",
				step, prev, next.Uncertainty[0])
		}
		prev = next.Uncertainty[0]
		st = next
	}
}

func TestPredictCIWidensWithHorizon(t *testing.T) {
	e := newTestEngine(t)
	st := neutralState(t, e)

	short, err := e.Predict(st, forecast.ShortSteps, nil)
	if err != nil {
		t.Fatalf("Predict short: %v", err)
	}
	long, err := e.Predict(st, forecast.LongSteps, nil)
	if err != nil {
		t.Fatalf("Predict long: %v", err)
	}

	for i := range short.Mean {
		if long.Width(i) < short.Width(i) {
			t.Errorf("dim %d: long CI width %v < short %v", i, long.Width(i), short.Width(i))
		}
	}
	if len(long.Trajectory) != forecast.LongSteps {
		t.Errorf("trajectory length = %d, want %d", len(long.Trajectory), forecast.LongSteps)
	}
}

func TestHybridPredictPolicy(t *testing.T) {
	e := newTestEngine(t)
	st := neutralState(t, e)

	companion := &forecast.Forecast{
		Horizon:       forecast.HorizonShort,
		Steps:         forecast.ShortSteps,
		Mean:          []float64{1, 1, 1, 1, 1},
		Lower:         []float64{0, 0, 0, 0, 0},
		Upper:         []float64{2, 2, 2, 2, 2},
		Confidence:    0.9,
		PrimaryEngine: forecast.EngineKalmanFormer,
	}

	t.Run("short delegates to companion", func(t *testing.T) {
		got, err := e.HybridPredict(st, forecast.HorizonShort, companion)
		if err != nil {
			t.Fatalf("HybridPredict: %v", err)
		}
		if got.PrimaryEngine != forecast.EngineKalmanFormer {
			t.Errorf("primary engine = %s, want kalmanformer", got.PrimaryEngine)
		}
		if got.Mean[0] != 1 {
			t.Errorf("short horizon did not delegate: mean[0] = %v", got.Mean[0])
		}
	})

	t.Run("long ignores companion", func(t *testing.T) {
		got, err := e.HybridPredict(st, forecast.HorizonLong, companion)
		if err != nil {
			t.Fatalf("HybridPredict: %v", err)
		}
		if got.PrimaryEngine != forecast.EnginePLRNN {
			t.Errorf("primary engine = %s, want plrnn", got.PrimaryEngine)
		}
	})

	t.Run("medium takes the wider bound", func(t *testing.T) {
		got, err := e.HybridPredict(st, forecast.HorizonMedium, companion)
		if err != nil {
			t.Fatalf("HybridPredict: %v", err)
		}
		own, err := e.Predict(st, forecast.MediumSteps, nil)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		for i := range got.Mean {
			wantMean := (own.Mean[i] + companion.Mean[i]) / 2
			if math.Abs(got.Mean[i]-wantMean) > 1e-9 {
				t.Errorf("dim %d: merged mean %v, want %v", i, got.Mean[i], wantMean)
			}
			if got.Upper[i] < own.Upper[i] && got.Upper[i] < companion.Upper[i] {
				t.Errorf("dim %d: merged upper %v narrower than both engines", i, got.Upper[i])
			}
		}
	})

	t.Run("unknown horizon rejected", func(t *testing.T) {
		if _, err := e.HybridPredict(st, forecast.Horizon("weekly"), nil); err == nil {
			t.Error("expected error for unknown horizon")
		}
	})
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	st := neutralState(t, e)

	// Perturb the weights away from init so the round trip is meaningful.
	sample := forecast.TrainingSample{Observations: rampObservations(12)}
	if _, err := e.TrainOnline(sample); err != nil {
		t.Fatalf("TrainOnline: %v", err)
	}

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Engine != forecast.EnginePLRNN || snap.ID == "" {
		t.Fatalf("snapshot metadata incomplete: %+v", snap)
	}

	before, err := e.Forward(st, nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	restored := newTestEngine(t)
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	after, err := restored.Forward(st, nil)
	if err != nil {
		t.Fatalf("Forward after restore: %v", err)
	}

	for i := range before.Latent {
		if math.Abs(before.Latent[i]-after.Latent[i]) > 1e-12 {
			t.Errorf("dim %d: restored dynamics diverge (%v vs %v)", i, before.Latent[i], after.Latent[i])
		}
	}
}

func rampObservations(n int) []state.Observation {
	obs := make([]state.Observation, n)
	base := time.Now()
	for i := 0; i < n; i++ {
		v := float64(i) * 0.05
		obs[i] = state.Observation{
			Values:    []float64{v, -v, 0.5, 0.1, 0.5 - v/2},
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return obs
}
