// Package forecast provides the domain types shared by the forecasting
// engines: horizons, forecasts, causal networks, early-warning signals,
// intervention reports, training results, and engine configuration.
package forecast

import "errors"

// Domain errors for the forecasting engines.
var (
	// ErrNotInitialized indicates an engine operation before Initialize.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrUnknownHorizon indicates an unrecognized horizon name.
	ErrUnknownHorizon = errors.New("unknown horizon")

	// ErrNoEngine indicates no engine is configured for the operation.
	ErrNoEngine = errors.New("no engine configured")

	// ErrInvalidConfig indicates a configuration that cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)
