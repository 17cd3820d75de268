// Package openai transcribes utterances with the OpenAI audio API.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
)

type Engine struct {
	client   openai.Client
	model    openai.AudioModel
	language string
	prompt   string
}

func New(apiKey, language, prompt string, opts ...option.RequestOption) *Engine {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Engine{
		client:   openai.NewClient(opts...),
		model:    openai.AudioModelWhisper1,
		language: language,
		prompt:   prompt,
	}
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) Transcribe(ctx context.Context, utt *segmenter.Utterance) (stt.Transcript, error) {
	if utt == nil || utt.Len() == 0 {
		return stt.Transcript{}, stt.ErrEmptyUtterance
	}
	wavData, err := utt.WAV()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to convert audio to WAV: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wavData), "utterance.wav", "audio/wav"),
		Model: e.model,
	}
	if e.language != "" {
		params.Language = openai.String(e.language)
	}
	if e.prompt != "" {
		params.Prompt = openai.String(e.prompt)
	}

	res, err := e.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai transcription failed: %w", err)
	}
	return stt.Transcript{
		UtteranceID:   utt.ID,
		Source:        stt.SourceVoice,
		Content:       strings.TrimSpace(res.Text),
		Language:      e.language,
		Engine:        e.Name(),
		AudioDuration: utt.Duration(),
		GeneratedAt:   time.Now(),
	}, nil
}
