package vad

import "github.com/xpanvictor/hearken/pkg/io/audio"

// Decision is the outcome of one observation plus the statistics it was taken
// against.
type Decision struct {
	Voice     bool `json:"voice"`
	Recording bool `json:"recording"`
	// Ready is false until two frames have been observed; no voice is
	// reported before that.
	Ready bool `json:"ready"`
	// Rescaled reports that this observation halved the distribution.
	Rescaled bool `json:"rescaled"`

	RMS               int     `json:"rms"`
	SNR               int     `json:"snr"`
	Mean              float64 `json:"mean"`
	StdDev            float64 `json:"stdDev"`
	Threshold         float64 `json:"threshold"`
	Reference         float64 `json:"reference"`
	DecisionThreshold float64 `json:"decisionThreshold"`
	MinSNR            float64 `json:"minSnr"`
	MaxSNR            float64 `json:"maxSnr"`
	Items             int     `json:"items"`
}

// Detector classifies frames one at a time. Implementations keep per-stream
// state and must only be driven from a single goroutine.
type Detector interface {
	Observe(frame audio.Frame, recording bool) Decision
}
