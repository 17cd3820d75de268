// Package vad decides per frame whether it contains speech. The detector
// learns the background level from a histogram of recent SNR values instead of
// relying on a fixed energy gate, so it follows changes in room noise.
package vad

import (
	"math"
	"sync/atomic"

	"github.com/xpanvictor/hearken/pkg/io/audio"
)

const (
	DefaultThreshold = 30.0
	DefaultSNRBound  = 200

	// rescaleAbove is the total weight at which the histogram is halved.
	rescaleAbove = 100
)

// AdaptiveVAD tracks the distribution of integer SNR values (dB relative to a
// moving threshold) and marks a frame as voice when its SNR reaches one
// standard deviation above the mean.
//
// Observe must be driven by a single goroutine. Stats is safe from any other.
type AdaptiveVAD struct {
	bound     int
	threshold float64
	// reference is the level SNR is measured against: the last positive
	// threshold. A histogram of digital silence drives the threshold to 0,
	// and measuring against 0 would pin every later SNR at 0.
	reference    float64
	distribution map[int]int
	items        int

	mean, stddev   float64
	minSNR, maxSNR float64
	haveRange      bool

	observed uint64
	voiced   uint64
	rescales uint64

	snapshot atomic.Pointer[Stats]
}

func New(initialThreshold float64, snrBound int) *AdaptiveVAD {
	if initialThreshold <= 0 {
		initialThreshold = DefaultThreshold
	}
	if snrBound <= 0 {
		snrBound = DefaultSNRBound
	}
	v := &AdaptiveVAD{
		bound:        snrBound,
		threshold:    initialThreshold,
		reference:    initialThreshold,
		distribution: make(map[int]int),
	}
	v.snapshot.Store(&Stats{Threshold: initialThreshold, Reference: initialThreshold})
	return v
}

// Classify reports whether frame is voice.
func (v *AdaptiveVAD) Classify(frame audio.Frame, recording bool) bool {
	return v.Observe(frame, recording).Voice
}

// Observe updates the statistics with frame and returns the decision. The
// threshold used while recording sits halfway between the mean and the
// threshold so a trailing-off voice keeps the recording open.
func (v *AdaptiveVAD) Observe(frame audio.Frame, recording bool) Decision {
	rms := frame.RMS()
	snr := v.snr(rms)
	v.distribution[snr]++
	v.items++

	ready := v.items > 1
	if ready {
		v.updateStats(snr)
	}

	rescaled := false
	if v.items > rescaleAbove {
		v.rescale()
		rescaled = true
	}

	decisionThreshold := v.threshold
	if recording {
		decisionThreshold = (v.mean + v.threshold) / 2
	}

	// zero energy is silence whatever the statistics say
	voice := ready && rms > 0 && float64(snr) >= decisionThreshold

	v.observed++
	if voice {
		v.voiced++
	}
	if rescaled {
		v.rescales++
	}
	d := Decision{
		Voice:             voice,
		Recording:         recording,
		Ready:             ready,
		Rescaled:          rescaled,
		RMS:               rms,
		SNR:               snr,
		Mean:              v.mean,
		StdDev:            v.stddev,
		Threshold:         v.threshold,
		Reference:         v.reference,
		DecisionThreshold: decisionThreshold,
		MinSNR:            v.minSNR,
		MaxSNR:            v.maxSNR,
		Items:             v.items,
	}
	v.snapshot.Store(&Stats{
		Last:      d,
		Threshold: v.threshold,
		Reference: v.reference,
		Items:     v.items,
		Buckets:   len(v.distribution),
		Observed:  v.observed,
		Voiced:    v.voiced,
		Rescales:  v.rescales,
	})
	return d
}

func (v *AdaptiveVAD) snr(rms int) int {
	if rms <= 0 {
		return 0
	}
	s := math.RoundToEven(20 * math.Log10(float64(rms)/v.reference))
	switch {
	case math.IsNaN(s):
		return 0
	case s > float64(v.bound):
		return v.bound
	case s < -float64(v.bound):
		return -v.bound
	}
	return int(s)
}

func (v *AdaptiveVAD) updateStats(snr int) {
	var weighted, squares float64
	for k, c := range v.distribution {
		weighted += float64(k * c)
		squares += float64(c) * float64(k) * float64(k)
	}
	n := float64(v.items)
	mean := weighted / n
	variance := (squares - n*mean*mean) / (n - 1)
	stddev := math.Sqrt(max(variance, 0))

	v.mean = mean
	v.stddev = stddev
	v.threshold = mean + stddev
	if v.threshold > 0 {
		v.reference = v.threshold
	}

	s := float64(snr)
	if !v.haveRange {
		v.minSNR, v.maxSNR = s, s
		v.haveRange = true
	}
	v.maxSNR = max(v.maxSNR, mean+3*stddev, s)
	v.minSNR = min(v.minSNR, mean-3*stddev, s)
}

// rescale halves every bucket, rounding up, and forgets buckets seen once.
func (v *AdaptiveVAD) rescale() {
	items := 0
	for k, c := range v.distribution {
		if c <= 1 {
			delete(v.distribution, k)
			continue
		}
		c = (c + 1) / 2
		v.distribution[k] = c
		items += c
	}
	v.items = items
}

// Stats is a point-in-time view for diagnostics endpoints.
type Stats struct {
	Last      Decision `json:"last"`
	Threshold float64  `json:"threshold"`
	Reference float64  `json:"reference"`
	Items     int      `json:"items"`
	Buckets   int      `json:"buckets"`
	Observed  uint64   `json:"observed"`
	Voiced    uint64   `json:"voiced"`
	Rescales  uint64   `json:"rescales"`
}

// Stats returns the snapshot published by the last Observe.
func (v *AdaptiveVAD) Stats() Stats {
	return *v.snapshot.Load()
}

// Distribution returns a copy of the SNR histogram. Like Observe it must not
// race with the goroutine driving the detector.
func (v *AdaptiveVAD) Distribution() map[int]int {
	out := make(map[int]int, len(v.distribution))
	for k, c := range v.distribution {
		out[k] = c
	}
	return out
}
