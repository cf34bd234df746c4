package forecast

import "github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"

// PLRNNConfig holds the nonlinear dynamics engine hyperparameters.
type PLRNNConfig struct {
	LatentDim   int `json:"latentDim"`
	ObservedDim int `json:"observedDim"`
	NumBases    int `json:"numBases"` // dendritic basis functions; 0 disables

	ClampRange         float64 `json:"clampRange"` // states live in [-ClampRange, ClampRange]
	InitialUncertainty float64 `json:"initialUncertainty"`
	UncertaintyGrowth  float64 `json:"uncertaintyGrowth"`  // per forward step
	UncertaintyPenalty float64 `json:"uncertaintyPenalty"` // extra growth past the deviation threshold
	DeviationThreshold float64 `json:"deviationThreshold"`
	UncertaintyMax     float64 `json:"uncertaintyMax"`

	LearningRate         float64 `json:"learningRate"`
	TeacherForcingRatio  float64 `json:"teacherForcingRatio"`
	L1Sparsity           float64 `json:"l1Sparsity"`  // on W only
	WeightDecay          float64 `json:"weightDecay"` // L2 on all matrices
	GradientClip         float64 `json:"gradientClip"`
	ConvergenceThreshold float64 `json:"convergenceThreshold"`

	SignificanceThreshold float64 `json:"significanceThreshold"` // causal edge cutoff
	WarningWindow         int     `json:"warningWindow"`         // early-warning window size

	Seed int64 `json:"seed"`
}

// DefaultPLRNNConfig returns sensible defaults for the 5-dimensional
// psychological state space.
func DefaultPLRNNConfig() PLRNNConfig {
	return PLRNNConfig{
		LatentDim:             state.LatentDim,
		ObservedDim:           state.LatentDim,
		NumBases:              3,
		ClampRange:            10.0,
		InitialUncertainty:    0.1,
		UncertaintyGrowth:     0.02,
		UncertaintyPenalty:    0.05,
		DeviationThreshold:    5.0,
		UncertaintyMax:        4.0,
		LearningRate:          0.01,
		TeacherForcingRatio:   0.7,
		L1Sparsity:            0.001,
		WeightDecay:           0.0001,
		GradientClip:          1.0,
		ConvergenceThreshold:  0.05,
		SignificanceThreshold: 0.1,
		WarningWindow:         8,
		Seed:                  42,
	}
}

// KalmanFormerConfig holds the hybrid filter-encoder hyperparameters.
type KalmanFormerConfig struct {
	StateDim      int `json:"stateDim"`
	EmbedDim      int `json:"embedDim"`
	NumHeads      int `json:"numHeads"`
	NumLayers     int `json:"numLayers"`
	FeedForward   int `json:"feedForward"`   // hidden width of the FF blocks
	ContextWindow int `json:"contextWindow"` // bounded observation history

	ProcessNoise      float64 `json:"processNoise"`      // Q diagonal
	MeasurementNoise  float64 `json:"measurementNoise"`  // R diagonal
	InitialCovariance float64 `json:"initialCovariance"` // P diagonal at init

	UseLearnedGain    bool    `json:"useLearnedGain"`
	UseTimeEmbedding  bool    `json:"useTimeEmbedding"`
	ConfidenceDecay   float64 `json:"confidenceDecay"`   // per pseudo-observation step
	PseudoNoiseGrowth float64 `json:"pseudoNoiseGrowth"` // R inflation per pseudo step

	BlendStep     float64 `json:"blendStep"`     // heuristic adapter step size
	RMSEThreshold float64 `json:"rmseThreshold"` // heuristic adapter trigger

	Seed int64 `json:"seed"`
}

// DefaultKalmanFormerConfig returns sensible defaults matched to a
// 24-entry observation window.
func DefaultKalmanFormerConfig() KalmanFormerConfig {
	return KalmanFormerConfig{
		StateDim:          state.LatentDim,
		EmbedDim:          32,
		NumHeads:          4,
		NumLayers:         2,
		FeedForward:       64,
		ContextWindow:     24,
		ProcessNoise:      0.01,
		MeasurementNoise:  0.25,
		InitialCovariance: 1.0,
		UseLearnedGain:    false,
		UseTimeEmbedding:  true,
		ConfidenceDecay:   0.95,
		PseudoNoiseGrowth: 0.15,
		BlendStep:         0.05,
		RMSEThreshold:     0.5,
		Seed:              42,
	}
}
