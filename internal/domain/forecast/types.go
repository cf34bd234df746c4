package forecast

import (
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
)

// Forecast is a multi-step point prediction with a 95% confidence band.
type Forecast struct {
	Horizon       Horizon           `json:"horizon"`
	Steps         int               `json:"steps"`
	Trajectory    [][]float64       `json:"trajectory"` // one observed vector per step
	Mean          []float64         `json:"mean"`       // point forecast at the horizon end
	Lower         []float64         `json:"lower"`      // mean - 1.96*sqrt(var)
	Upper         []float64         `json:"upper"`      // mean + 1.96*sqrt(var)
	Confidence    float64           `json:"confidence"` // 0..1
	PrimaryEngine string            `json:"primaryEngine"`
	Warnings      []EarlyWarning    `json:"warnings,omitempty"`
	Attention     *AttentionSummary `json:"attention,omitempty"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

// Width returns the CI width for one dimension.
func (f *Forecast) Width(dim int) float64 {
	return f.Upper[dim] - f.Lower[dim]
}

// WarningKind names the four early-warning signal families.
type WarningKind string

const (
	WarningAutocorrelation WarningKind = "autocorrelation"
	WarningVariance        WarningKind = "variance"
	WarningFlickering      WarningKind = "flickering"
	WarningConnectivity    WarningKind = "connectivity"
)

// EarlyWarning is one detected precursor of a critical transition.
type EarlyWarning struct {
	Kind             WarningKind `json:"kind"`
	Dimension        string      `json:"dimension"` // canonical label, or "network" for connectivity
	Strength         float64     `json:"strength"`
	Confidence       float64     `json:"confidence"`
	TimeToTransition float64     `json:"timeToTransition,omitempty"` // steps; 0 when not estimable
	Recommendation   string      `json:"recommendation"`
}

// CausalNode is one latent dimension in the extracted causal network.
type CausalNode struct {
	Dimension  string  `json:"dimension"`
	SelfWeight float64 `json:"selfWeight"` // diagonal A entry
	Centrality float64 `json:"centrality"` // normalized row+column weight mass in W
}

// CausalEdge is a directed coupling above the significance threshold.
type CausalEdge struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	Weight       float64 `json:"weight"` // signed
	Lag          int     `json:"lag"`
	Significance float64 `json:"significance"` // 0..1
}

// FeedbackLoop is a bidirectional pair with both couplings significant.
type FeedbackLoop struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Strength float64 `json:"strength"` // min of the two coupling magnitudes
}

// CausalNetwork is the read-only graph derived from the PLRNN weights.
type CausalNetwork struct {
	Nodes       []CausalNode   `json:"nodes"`
	Edges       []CausalEdge   `json:"edges"`
	Loops       []FeedbackLoop `json:"loops"`
	Density     float64        `json:"density"` // edges / possible off-diagonal pairs
	MostCentral string         `json:"mostCentral"`
	ExtractedAt time.Time      `json:"extractedAt"`
}

// InterventionMode selects how a simulated intervention perturbs the
// target dimension.
type InterventionMode string

const (
	InterventionIncrease  InterventionMode = "increase"
	InterventionDecrease  InterventionMode = "decrease"
	InterventionStabilize InterventionMode = "stabilize"
)

// InterventionReport describes the simulated effect of one intervention
// against a baseline trajectory from the same start state.
type InterventionReport struct {
	Target      string             `json:"target"`
	Mode        InterventionMode   `json:"mode"`
	Magnitude   float64            `json:"magnitude"`
	Effects     map[string]float64 `json:"effects"` // per-dimension effect at horizon end
	TimeToPeak  int                `json:"timeToPeak"`
	Duration    int                `json:"duration"` // steps until effect decays below 10% of peak
	SideEffects []string           `json:"sideEffects"`
	Confidence  float64            `json:"confidence"`
}

// TrainingSample is one observation sequence used for training.
type TrainingSample struct {
	Observations []state.Observation `json:"observations"`
}

// TrainingResult reports one online or batch training pass.
type TrainingResult struct {
	Loss      float64 `json:"loss"`
	Converged bool    `json:"converged"`
	Steps     int     `json:"steps"`
	Samples   int     `json:"samples"`
}

// AttentionSummary explains which past observations drove the current
// prediction.
type AttentionSummary struct {
	TopInfluences []AttentionInfluence `json:"topInfluences"`
	Pattern       AttentionPattern     `json:"pattern"`
	HistoryLength int                  `json:"historyLength"`
}

// AttentionInfluence is one ranked past observation.
type AttentionInfluence struct {
	Position  int       `json:"position"` // index into the history window
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
	Values    []float64 `json:"values"`
}

// AttentionPattern classifies the temporal shape of the attention weights.
type AttentionPattern string

const (
	PatternRecencyBias     AttentionPattern = "recency_bias"
	PatternPatternMatching AttentionPattern = "pattern_matching"
	PatternUniform         AttentionPattern = "uniform"
)
