// Package audioring holds the pre-roll of frames captured while the segmenter
// is idle, so the start of an utterance is not lost to detection latency.
package audioring

import (
	"errors"

	"github.com/xpanvictor/hearken/pkg/io/audio"
)

var ErrFrameTooLarge = errors.New("audio frame too large for buffer")

// AudioRingBuffer keeps at most Capacity() frames; pushing into a full ring
// drops the oldest frame.
type AudioRingBuffer interface {
	Push(frame audio.Frame) error
	// Frames returns the held frames oldest first without consuming them.
	Frames() []audio.Frame
	Len() int
	Capacity() int
	Clear()
}
