package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	hio "github.com/xpanvictor/hearken/pkg/io"
	"github.com/xpanvictor/hearken/pkg/io/audio"
)

// Discard drops clips.
type Discard struct{}

func (Discard) Play(context.Context, Clip) error { return nil }

// FilePlayback writes each clip to its own WAV file.
type FilePlayback struct {
	dir string
	now func() time.Time
}

func NewFilePlayback(dir string) (*FilePlayback, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating playback dir: %w", err)
	}
	return &FilePlayback{dir: dir, now: time.Now}, nil
}

func (f *FilePlayback) Play(ctx context.Context, clip Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.wav", f.now().UTC().Format("20060102T150405.000"), uuid.NewString()[:8])
	out, err := os.Create(filepath.Join(f.dir, name))
	if err != nil {
		return fmt.Errorf("creating clip file: %w", err)
	}
	if err := audio.EncodeWAV(out, clip.Format, clip.PCM); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// PublisherPlayback streams clips to the most recently active audio endpoint
// as headered binary chunks, bracketed by audio_format and audio_complete
// events. With no audio endpoint connected clips are dropped.
type PublisherPlayback struct {
	pub   *hio.Publisher
	chunk time.Duration
}

func NewPublisherPlayback(pub *hio.Publisher, chunk time.Duration) *PublisherPlayback {
	if chunk <= 0 {
		chunk = 100 * time.Millisecond
	}
	return &PublisherPlayback{pub: pub, chunk: chunk}
}

type formatEvent struct {
	SampleRate    int    `json:"sampleRate"`
	BitsPerSample int    `json:"bitsPerSample"`
	Channels      int    `json:"channels"`
	Text          string `json:"text"`
}

type completeEvent struct {
	Text       string `json:"text"`
	Bytes      int    `json:"bytes"`
	DurationMs int64  `json:"durationMs"`
}

func (p *PublisherPlayback) Play(ctx context.Context, clip Clip) error {
	if _, ok := p.pub.Registry().SelectEndpointWithMRU(); !ok {
		return nil
	}

	_ = p.pub.SendEvent(ctx, "audio_format", formatEvent{
		SampleRate:    clip.Format.SampleRate,
		BitsPerSample: clip.Format.BitsPerSample,
		Channels:      clip.Format.Channels,
		Text:          clip.Text,
	})

	size := clip.Format.FrameBytes(p.chunk)
	if size <= 0 {
		size = len(clip.PCM)
	}
	for off := 0; off < len(clip.PCM); off += size {
		end := min(off+size, len(clip.PCM))
		msg := audio.AppendChunk(make([]byte, 0, audio.ChunkHeaderLen+end-off), clip.Format, clip.PCM[off:end])
		if err := p.pub.SendAudioFrame(ctx, msg); err != nil {
			return fmt.Errorf("sending audio chunk: %w", err)
		}
	}

	return p.pub.SendEvent(ctx, "audio_complete", completeEvent{
		Text:       clip.Text,
		Bytes:      len(clip.PCM),
		DurationMs: clip.Duration().Milliseconds(),
	})
}
