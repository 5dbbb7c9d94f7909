package config

import (
	"errors"
	"fmt"
	"math"
)

// Job kinds.
const (
	KindSession = "session"
	KindSweep   = "sweep"
)

// Job defines one render from the [[jobs]] array.
type Job struct {
	ID      string  `toml:"id" json:"id"`
	Kind    string  `toml:"kind" json:"kind"`       // "session" (default) or "sweep"
	Preset  string  `toml:"preset" json:"preset"`   // Session preset id
	Minutes float64 `toml:"minutes" json:"minutes"` // Session length; 0 uses the preset default
	StartHz float64 `toml:"start_hz" json:"start_hz"`
	EndHz   float64 `toml:"end_hz" json:"end_hz"`
	Seconds float64 `toml:"seconds" json:"seconds"` // Sweep length
	Output  string  `toml:"output" json:"output"`
}

// Validate checks if the job is complete for its kind.
func (j *Job) Validate() error {
	if j.Kind == "" {
		j.Kind = KindSession
	}
	switch j.Kind {
	case KindSession:
		if j.Preset == "" {
			return errors.New("preset cannot be empty")
		}
		if j.Minutes < 0 || math.IsNaN(j.Minutes) || math.IsInf(j.Minutes, 0) {
			return fmt.Errorf("minutes must be zero or positive, got %f", j.Minutes)
		}
	case KindSweep:
		if !positive(j.StartHz) || !positive(j.EndHz) {
			return fmt.Errorf("sweep frequencies must be positive, got %f..%f", j.StartHz, j.EndHz)
		}
		if !positive(j.Seconds) {
			return fmt.Errorf("sweep seconds must be positive, got %f", j.Seconds)
		}
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	if j.Output == "" {
		return errors.New("output cannot be empty")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
