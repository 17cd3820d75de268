// Package segmenter turns the per-frame voice decisions into utterances. While
// idle it keeps a short lookback of frames; on voice onset that lookback seeds
// the utterance, and recording stops once 2*hangover frames pass without voice.
package segmenter

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	audioring "github.com/xpanvictor/hearken/pkg/io/stt/audioRing"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
)

type Config struct {
	// Hangover is the lookback capacity in frames; 2*Hangover trailing
	// non-voice frames end an utterance.
	Hangover int
	// MinFrames: utterances of this many frames or fewer are discarded.
	MinFrames int
	// FrameBytes sizes the lookback ring.
	FrameBytes int
}

// Result reports what a single Push did. Utterance is set only when one
// completed on this frame.
type Result struct {
	Decision  vad.Decision
	Phase     Phase
	Utterance *Utterance
	// Discarded holds the frame count of a too-short utterance dropped on
	// this frame, 0 otherwise.
	Discarded int
}

// Segmenter is driven by one goroutine; Stats may be called from others.
type Segmenter struct {
	cfg      Config
	detector vad.Detector
	ring     audioring.AudioRingBuffer
	machine  *fsm.FSM
	logger   *Logger.Logger
	newID    func() uuid.UUID

	current   []audio.Frame
	seed      int
	lastVoice int

	buffered  atomic.Int64
	emitted   atomic.Uint64
	discarded atomic.Uint64
}

func New(cfg Config, detector vad.Detector, logger *Logger.Logger) *Segmenter {
	cfg.Hangover = max(cfg.Hangover, 1)
	cfg.MinFrames = max(cfg.MinFrames, 0)
	if logger == nil {
		logger = Logger.Nop()
	}

	s := &Segmenter{
		cfg:      cfg,
		detector: detector,
		ring:     audioring.New(cfg.Hangover, cfg.FrameBytes),
		logger:   logger,
		newID:    uuid.New,
	}
	s.machine = fsm.NewFSM(
		string(IDLE),
		fsm.Events{
			{Name: string(ONSET), Src: []string{string(IDLE)}, Dst: string(RECORDING)},
			{Name: string(END), Src: []string{string(RECORDING)}, Dst: string(IDLE)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debugf("segmenter %s -> %s", e.Src, e.Dst)
			},
		},
	)
	return s
}

func (s *Segmenter) Phase() Phase { return Phase(s.machine.Current()) }

// Push feeds one frame and classifies it exactly once.
func (s *Segmenter) Push(ctx context.Context, frame audio.Frame) Result {
	if s.Phase() == IDLE {
		return s.pushIdle(ctx, frame)
	}
	return s.pushRecording(ctx, frame)
}

func (s *Segmenter) pushIdle(ctx context.Context, frame audio.Frame) Result {
	if err := s.ring.Push(frame); err != nil {
		s.logger.Warnf("lookback dropped frame %d: %v", frame.Seq, err)
	}
	d := s.detector.Observe(frame, false)
	if !d.Voice {
		return Result{Decision: d, Phase: IDLE}
	}

	s.current = s.ring.Frames()
	s.seed = len(s.current)
	s.lastVoice = len(s.current)
	s.buffered.Store(int64(len(s.current)))
	s.fire(ctx, ONSET)
	return Result{Decision: d, Phase: RECORDING}
}

func (s *Segmenter) pushRecording(ctx context.Context, frame audio.Frame) Result {
	s.current = append(s.current, frame)
	s.buffered.Store(int64(len(s.current)))

	d := s.detector.Observe(frame, true)
	if d.Voice {
		s.lastVoice = len(s.current)
	}
	if s.lastVoice >= len(s.current)-2*s.cfg.Hangover {
		return Result{Decision: d, Phase: RECORDING}
	}

	res := Result{Decision: d, Phase: IDLE}
	if len(s.current) > s.cfg.MinFrames {
		res.Utterance = s.utterance()
		s.emitted.Add(1)
	} else {
		res.Discarded = len(s.current)
		s.discarded.Add(1)
		s.logger.Debugf("discarding %d-frame utterance (minimum %d)", len(s.current), s.cfg.MinFrames)
	}
	s.reset()
	s.fire(ctx, END)
	return res
}

func (s *Segmenter) utterance() *Utterance {
	frames := s.current
	first := frames[0]
	return &Utterance{
		ID:         s.newID(),
		Frames:     frames,
		Format:     audio.Mono(int(first.SampleRate), int(first.BitsPerSample)),
		StartedAt:  first.Timestamp,
		EndedAt:    frames[len(frames)-1].Timestamp,
		SeedFrames: s.seed,
	}
}

func (s *Segmenter) reset() {
	s.ring.Clear()
	s.current = nil
	s.seed = 0
	s.lastVoice = 0
	s.buffered.Store(0)
}

func (s *Segmenter) fire(ctx context.Context, ev Event) {
	if err := s.machine.Event(ctx, string(ev)); err != nil {
		s.logger.Errorf("segmenter event %s from %s: %v", ev, s.machine.Current(), err)
	}
}

func (s *Segmenter) Stats() Stats {
	return Stats{
		Phase:     s.Phase(),
		Buffered:  int(s.buffered.Load()),
		Emitted:   s.emitted.Load(),
		Discarded: s.discarded.Load(),
	}
}
