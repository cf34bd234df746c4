package plrnn

import (
	"math"
	"testing"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

// syntheticHistory builds a trajectory where only the risk dimension
// changes character between the early and the late window.
func syntheticHistory(n int, riskFn func(i int) float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{0.1, -0.1, 0.5, riskFn(i), 0.5}
	}
	return rows
}

func TestDetectEarlyWarningsRequiresInitialize(t *testing.T) {
	e := NewEngine(forecast.PLRNNConfig{})
	if _, err := e.DetectEarlyWarnings(syntheticHistory(32, func(int) float64 { return 0 }), 8); err != forecast.ErrNotInitialized {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
}

func TestDetectEarlyWarningsVarianceRise(t *testing.T) {
	e := newTestEngine(t)

	// Risk oscillates with small amplitude early and triples late, so the
	// late-window variance is ~9x the early-window variance.
	n := 32
	history := syntheticHistory(n, func(i int) float64 {
		amp := 0.05
		if i >= n/2 {
			amp = 0.15
		}
		if i%2 == 0 {
			return 0.1 + amp
		}
		return 0.1 - amp
	})

	signals, err := e.DetectEarlyWarnings(history, 8)
	if err != nil {
		t.Fatalf("DetectEarlyWarnings: %v", err)
	}

	var found *forecast.EarlyWarning
	for i := range signals {
		if signals[i].Kind == forecast.WarningVariance && signals[i].Dimension == "risk" {
			found = &signals[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("no variance signal for risk in %+v", signals)
	}
	if found.Strength <= 0 {
		t.Errorf("strength = %v, want > 0", found.Strength)
	}
	if found.Confidence < 0.2 || found.Confidence > 1 {
		t.Errorf("confidence = %v, want in [0.2, 1]", found.Confidence)
	}

	for _, s := range signals {
		if s.Kind == forecast.WarningVariance && s.Dimension != "risk" {
			t.Errorf("unexpected variance signal on stable dimension %q", s.Dimension)
		}
	}
}

func TestDetectEarlyWarningsCriticalSlowing(t *testing.T) {
	e := newTestEngine(t)

	// Early: alternating (negative lag-1 autocorrelation). Late: a slow
	// drift (autocorrelation near 1).
	n := 40
	history := syntheticHistory(n, func(i int) float64 {
		if i < n/2 {
			if i%2 == 0 {
				return 0.15
			}
			return 0.05
		}
		return 0.1 + 0.02*float64(i-n/2)
	})

	signals, err := e.DetectEarlyWarnings(history, 10)
	if err != nil {
		t.Fatalf("DetectEarlyWarnings: %v", err)
	}

	var found *forecast.EarlyWarning
	for i := range signals {
		if signals[i].Kind == forecast.WarningAutocorrelation && signals[i].Dimension == "risk" {
			found = &signals[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("no autocorrelation signal for risk in %+v", signals)
	}
	if found.TimeToTransition <= 0 || found.TimeToTransition > maxTimeToTransition {
		t.Errorf("time to transition = %v, want in (0, %v]", found.TimeToTransition, maxTimeToTransition)
	}
	if found.Recommendation == "" {
		t.Error("autocorrelation signal carries no recommendation")
	}
}

func TestDetectEarlyWarningsFlickering(t *testing.T) {
	e := newTestEngine(t)

	// Early: a slow monotonic drift on risk crosses its window mean once.
	// Late: alternation around the same level crosses it on every
	// consecutive pair, so the crossing rate jumps from ~0.14 to 1.
	n := 32
	history := syntheticHistory(n, func(i int) float64 {
		if i < n/2 {
			return 0.1 + 0.01*float64(i)
		}
		if i%2 == 0 {
			return 0.3
		}
		return -0.1
	})

	signals, err := e.DetectEarlyWarnings(history, 8)
	if err != nil {
		t.Fatalf("DetectEarlyWarnings: %v", err)
	}

	var found *forecast.EarlyWarning
	for i := range signals {
		if signals[i].Kind == forecast.WarningFlickering && signals[i].Dimension == "risk" {
			found = &signals[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("no flickering signal for risk in %+v", signals)
	}
	if found.Strength <= flickeringDelta {
		t.Errorf("strength = %v, want > %v", found.Strength, flickeringDelta)
	}
	if found.Recommendation == "" {
		t.Error("flickering signal carries no recommendation")
	}

	for _, s := range signals {
		if s.Kind == forecast.WarningFlickering && s.Dimension != "risk" {
			t.Errorf("unexpected flickering signal on constant dimension %q", s.Dimension)
		}
	}
}

func TestDetectEarlyWarningsConnectivity(t *testing.T) {
	e := newTestEngine(t)

	// Early: two perfectly correlated pairs and a fifth dimension on its
	// own slower wave, all mutually orthogonal over the window, so the mean
	// pairwise |corr| is 2/10. Late: every dimension rides the same
	// alternation, pushing it to 1.
	base := []float64{0.1, -0.1, 0.5, 0.1, 0.5}
	square := func(i, period int) float64 {
		if (i/period)%2 == 0 {
			return 0.05
		}
		return -0.05
	}
	n := 32
	history := make([][]float64, n)
	for i := range history {
		row := make([]float64, len(base))
		if i < n/2 {
			row[0] = base[0] + square(i, 1)
			row[1] = base[1] + square(i, 1)
			row[2] = base[2] + square(i, 2)
			row[3] = base[3] + square(i, 2)
			row[4] = base[4] + square(i, 4)
		} else {
			for d := range row {
				row[d] = base[d] + square(i, 1)
			}
		}
		history[i] = row
	}

	signals, err := e.DetectEarlyWarnings(history, 8)
	if err != nil {
		t.Fatalf("DetectEarlyWarnings: %v", err)
	}

	var found *forecast.EarlyWarning
	for i := range signals {
		if signals[i].Kind == forecast.WarningConnectivity {
			found = &signals[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("no connectivity signal in %+v", signals)
	}
	if found.Dimension != "network" {
		t.Errorf("dimension = %q, want network", found.Dimension)
	}
	if found.Strength <= 0 {
		t.Errorf("strength = %v, want > 0", found.Strength)
	}
}

func TestDetectEarlyWarningsInsufficientHistory(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name       string
		n          int
		windowSize int
	}{
		{"history shorter than two windows", 15, 8},
		{"window below minimum", 32, 2},
		{"empty history", 0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := syntheticHistory(tt.n, func(i int) float64 {
				return math.Sin(float64(i))
			})
			signals, err := e.DetectEarlyWarnings(history, tt.windowSize)
			if err != nil {
				t.Fatalf("DetectEarlyWarnings: %v", err)
			}
			if signals != nil {
				t.Errorf("signals = %+v, want nil", signals)
			}
		})
	}
}

func TestDetectEarlyWarningsStableSeriesIsQuiet(t *testing.T) {
	e := newTestEngine(t)

	// Identical statistics early and late: mild bounded oscillation.
	history := syntheticHistory(32, func(i int) float64 {
		if i%2 == 0 {
			return 0.12
		}
		return 0.08
	})

	signals, err := e.DetectEarlyWarnings(history, 8)
	if err != nil {
		t.Fatalf("DetectEarlyWarnings: %v", err)
	}
	for _, s := range signals {
		if s.Kind == forecast.WarningVariance || s.Kind == forecast.WarningAutocorrelation {
			t.Errorf("unexpected %s signal on a stationary series: %+v", s.Kind, s)
		}
	}
}
