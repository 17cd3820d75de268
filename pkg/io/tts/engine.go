package tts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xpanvictor/hearken/pkg/Logger"
)

// Console prints replies instead of speaking them.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, ">> %s\n", text)
	return err
}

// Voice synthesizes text phrase by phrase and plays each clip as soon as it
// is ready.
type Voice struct {
	synth    Synthesizer
	playback Playback
	logger   *Logger.Logger
	minChars int
	maxChars int
}

func NewVoice(synth Synthesizer, playback Playback, logger *Logger.Logger) *Voice {
	if logger == nil {
		logger = Logger.Nop()
	}
	if playback == nil {
		playback = Discard{}
	}
	return &Voice{
		synth:    synth,
		playback: playback,
		logger:   logger,
		minChars: defaultMinChars,
		maxChars: defaultMaxChars,
	}
}

func (v *Voice) Name() string { return v.synth.Name() }

func (v *Voice) Speak(ctx context.Context, text string) error {
	phrases := SplitPhrases(text, v.minChars, v.maxChars)
	if len(phrases) == 0 {
		return ErrEmptyText
	}
	for i, phrase := range phrases {
		clip, err := v.synth.Synthesize(ctx, phrase)
		if err != nil {
			return fmt.Errorf("synthesizing phrase %d/%d: %w", i+1, len(phrases), err)
		}
		v.logger.Debugf("%s: %d bytes (%s) for %q", v.synth.Name(), len(clip.PCM), clip.Duration(), phrase)
		if err := v.playback.Play(ctx, clip); err != nil {
			return fmt.Errorf("playing phrase %d/%d: %w", i+1, len(phrases), err)
		}
	}
	return nil
}
