package forecast

import (
	"fmt"
	"strings"
)

// Horizon selects how far ahead a hybrid forecast reaches and which
// engine policy applies.
type Horizon string

const (
	// HorizonShort is dominated by measurement noise; the filter wins.
	HorizonShort Horizon = "short"
	// HorizonMedium blends both engines at equal weight.
	HorizonMedium Horizon = "medium"
	// HorizonLong is dominated by nonlinear dynamics; the recurrence wins.
	HorizonLong Horizon = "long"
)

// Step counts per horizon, at the canonical sampling interval.
const (
	ShortSteps  = 3
	MediumSteps = 12
	LongSteps   = 48
)

// Steps returns the number of forward steps the horizon spans.
func (h Horizon) Steps() int {
	switch h {
	case HorizonShort:
		return ShortSteps
	case HorizonMedium:
		return MediumSteps
	case HorizonLong:
		return LongSteps
	}
	return MediumSteps
}

// Valid reports whether h is one of the three defined horizons.
func (h Horizon) Valid() bool {
	return h == HorizonShort || h == HorizonMedium || h == HorizonLong
}

// ParseHorizon accepts both the policy names ("short", "medium", "long")
// and the named clock horizons callers key forecasts by ("6h", "24h", "72h").
func ParseHorizon(s string) (Horizon, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short", "6h":
		return HorizonShort, nil
	case "medium", "24h":
		return HorizonMedium, nil
	case "long", "72h":
		return HorizonLong, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHorizon, s)
}
