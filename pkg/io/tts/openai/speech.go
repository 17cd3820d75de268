// Package openai synthesizes speech with the OpenAI audio API.
package openai

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/tts"
)

// pcmFormat is what the API returns for response_format=pcm.
var pcmFormat = audio.Mono(24000, 16)

type Speech struct {
	client openai.Client
	voice  openai.AudioSpeechNewParamsVoice
	model  openai.SpeechModel
}

func New(apiKey, voice string, opts ...option.RequestOption) *Speech {
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Speech{
		client: openai.NewClient(opts...),
		voice:  openai.AudioSpeechNewParamsVoice(voice),
		model:  openai.SpeechModelTTS1,
	}
}

func (s *Speech) Name() string { return "openai" }

func (s *Speech) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, tts.ErrEmptyText
	}
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          s.model,
		Voice:          s.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai speech failed: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("reading openai speech: %w", err)
	}
	return tts.Clip{Text: text, Format: pcmFormat, PCM: pcm}, nil
}
