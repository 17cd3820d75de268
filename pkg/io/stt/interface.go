package stt

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
)

var ErrEmptyUtterance = errors.New("utterance has no audio")

type Source string

const (
	SourceVoice Source = "voice" // transcribed from an utterance
	SourceText  Source = "text"  // typed by a client
)

type Transcript struct {
	UtteranceID   uuid.UUID     `json:"utteranceId"`
	Source        Source        `json:"source"`
	Content       string        `json:"content"`
	Language      string        `json:"language,omitempty"`
	Engine        string        `json:"engine"`
	AudioDuration time.Duration `json:"audioDuration"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// Engine converts an utterance into text. The pipeline calls it from a single
// worker, never concurrently.
type Engine interface {
	Transcribe(ctx context.Context, utt *segmenter.Utterance) (Transcript, error)
	Name() string
}
