package kalmanformer

import (
	"testing"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

func TestExplainEmptyHistory(t *testing.T) {
	e := newTestEngine(t)
	summary, err := e.Explain()
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil for an empty history", summary)
	}
}

func TestExplainRanksInfluences(t *testing.T) {
	e := newTestEngine(t)
	feedObservations(t, e, e.config.ContextWindow)

	summary, err := e.Explain()
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if summary == nil {
		t.Fatal("nil summary for a full history")
	}
	if summary.HistoryLength != e.config.ContextWindow {
		t.Errorf("history length = %d, want %d", summary.HistoryLength, e.config.ContextWindow)
	}
	if len(summary.TopInfluences) == 0 || len(summary.TopInfluences) > topInfluences {
		t.Fatalf("got %d influences, want 1..%d", len(summary.TopInfluences), topInfluences)
	}

	for i := 1; i < len(summary.TopInfluences); i++ {
		if summary.TopInfluences[i].Weight > summary.TopInfluences[i-1].Weight {
			t.Errorf("influences not ranked: weight[%d]=%v > weight[%d]=%v",
				i, summary.TopInfluences[i].Weight, i-1, summary.TopInfluences[i-1].Weight)
		}
	}
	for _, inf := range summary.TopInfluences {
		if inf.Position < 0 || inf.Position >= e.config.ContextWindow {
			t.Errorf("influence position %d out of range", inf.Position)
		}
		if len(inf.Values) != e.config.StateDim {
			t.Errorf("influence carries %d values, want %d", len(inf.Values), e.config.StateDim)
		}
	}

	switch summary.Pattern {
	case forecast.PatternRecencyBias, forecast.PatternPatternMatching, forecast.PatternUniform:
	default:
		t.Errorf("unknown pattern %q", summary.Pattern)
	}
}

func TestExplainRanksPastObservationsOnly(t *testing.T) {
	e := newTestEngine(t)
	feedObservations(t, e, e.config.ContextWindow)

	summary, err := e.Explain()
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	for _, inf := range summary.TopInfluences {
		if inf.Position == summary.HistoryLength-1 {
			t.Errorf("current step at position %d ranked among past influences", inf.Position)
		}
	}

	// With a single observation there is no past to rank, only a pattern.
	single := newTestEngine(t)
	feedObservations(t, single, 1)
	summary, err = single.Explain()
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if summary == nil {
		t.Fatal("nil summary for a one-entry history")
	}
	if len(summary.TopInfluences) != 0 {
		t.Errorf("got %d influences from a one-entry history, want none", len(summary.TopInfluences))
	}
}

func TestClassifyPattern(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		want    forecast.AttentionPattern
	}{
		{
			name:    "uniform weights",
			weights: []float64{0.125, 0.125, 0.125, 0.125, 0.125, 0.125, 0.125, 0.125},
			want:    forecast.PatternUniform,
		},
		{
			name:    "recent quarter dominates",
			weights: []float64{0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.44, 0.44},
			want:    forecast.PatternRecencyBias,
		},
		{
			name:    "old entry dominates",
			weights: []float64{0.65, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05},
			want:    forecast.PatternPatternMatching,
		},
		{
			name:    "single entry",
			weights: []float64{1},
			want:    forecast.PatternUniform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyPattern(tt.weights); got != tt.want {
				t.Errorf("classifyPattern = %q, want %q", got, tt.want)
			}
		})
	}
}
