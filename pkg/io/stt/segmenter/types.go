package segmenter

import (
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/hearken/pkg/io/audio"
)

type Phase string

const (
	IDLE      Phase = "idle"
	RECORDING Phase = "recording" // collecting an utterance
)

type Event string

const (
	ONSET Event = "onset" // voice while idle
	END   Event = "end"   // hangover elapsed
)

// Utterance is one contiguous span of speech plus the pre-roll that preceded
// its detection.
type Utterance struct {
	ID         uuid.UUID
	Frames     []audio.Frame
	Format     audio.Format
	StartedAt  time.Time
	EndedAt    time.Time
	SeedFrames int
}

func (u *Utterance) Len() int { return len(u.Frames) }

// Duration is the audio length, not wall time.
func (u *Utterance) Duration() time.Duration {
	n := 0
	for _, f := range u.Frames {
		n += len(f.Data)
	}
	return u.Format.Duration(n)
}

// PCM concatenates the frame payloads.
func (u *Utterance) PCM() []byte {
	n := 0
	for _, f := range u.Frames {
		n += len(f.Data)
	}
	out := make([]byte, 0, n)
	for _, f := range u.Frames {
		out = append(out, f.Data...)
	}
	return out
}

// WAV encodes the utterance as an in-memory WAV file.
func (u *Utterance) WAV() ([]byte, error) {
	return audio.WAVBytes(u.Format, u.Frames)
}

// Stats is read by the status endpoint while the real-time loop runs.
type Stats struct {
	Phase     Phase  `json:"phase"`
	Buffered  int    `json:"buffered"`
	Emitted   uint64 `json:"emitted"`
	Discarded uint64 `json:"discarded"`
}
