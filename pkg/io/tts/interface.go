// Package tts speaks replies. An Engine is either text-only (Console) or a
// Synthesizer paired with a Playback sink.
package tts

import (
	"context"
	"errors"
	"time"

	"github.com/xpanvictor/hearken/pkg/io/audio"
)

var ErrEmptyText = errors.New("empty text")

// Clip is synthesized speech for one phrase.
type Clip struct {
	Text   string
	Format audio.Format
	PCM    []byte
}

func (c Clip) Duration() time.Duration { return c.Format.Duration(len(c.PCM)) }

// Engine speaks text. The pipeline calls it from a single worker, never
// concurrently.
type Engine interface {
	Speak(ctx context.Context, text string) error
	Name() string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
	Name() string
}

type Playback interface {
	Play(ctx context.Context, clip Clip) error
}
