// Package commands provides CLI command implementations.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/pkg/sleepcore"
)

// newCore builds a core honoring the shared --weights-db flag.
func newCore(dbPath string) (*sleepcore.Core, error) {
	return sleepcore.New(sleepcore.Config{WeightDBPath: dbPath})
}

// loadObservations reads a JSON array of observations from a file, or a
// neutral single observation when path is empty.
func loadObservations(path string) ([]state.Observation, error) {
	if path == "" {
		return []state.Observation{
			{Values: []float64{0, 0, 0.5, 0.1, 0.5}, Timestamp: time.Now()},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	var obs []state.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("parse observations: %w", err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("no observations in %s", path)
	}
	for i, o := range obs {
		if len(o.Values) != state.LatentDim {
			return nil, fmt.Errorf("observation %d has %d values, want %d", i, len(o.Values), state.LatentDim)
		}
	}
	return obs, nil
}

// beliefFromObservations seeds a belief from the last observation with
// default variances.
func beliefFromObservations(obs []state.Observation) state.BeliefState {
	last := obs[len(obs)-1]
	return state.BeliefFromVectors(last.Values, nil, last.Timestamp).Normalized()
}

// printJSON writes a value as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
