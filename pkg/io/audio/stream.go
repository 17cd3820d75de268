package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/xpanvictor/hearken/pkg/dispatch"
)

// StreamSource is fed by network producers (the websocket ingest) and read by
// the real-time loop. Feed re-chunks arbitrary payloads into frames; a bounded
// backlog drops the oldest frame when the loop falls behind. When no frame
// arrives within one period Next returns a silent frame so downstream hangover
// counting keeps running while a client pauses.
type StreamSource struct {
	format     Format
	period     time.Duration
	frameBytes int
	now        func() time.Time

	mu      sync.Mutex
	pending []byte
	backlog *dispatch.BoundedQueue[Frame]
	seq     uint64
	dropped uint64
	closed  bool
	notify  chan struct{}
	timer   *time.Timer
}

func NewStreamSource(format Format, period time.Duration, backlog int) (*StreamSource, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	frameBytes := format.FrameBytes(period)
	if frameBytes <= 0 {
		return nil, fmt.Errorf("frame period %s too short for %d Hz", period, format.SampleRate)
	}
	timer := time.NewTimer(period)
	timer.Stop()
	return &StreamSource{
		format:     format,
		period:     period,
		frameBytes: frameBytes,
		now:        time.Now,
		backlog:    dispatch.NewBoundedQueue[Frame](backlog),
		notify:     make(chan struct{}, 1),
		timer:      timer,
	}, nil
}

func (s *StreamSource) Format() Format { return s.format }

// Feed appends PCM in the source format and returns how many whole frames it
// completed. Feeding a closed source is a no-op.
func (s *StreamSource) Feed(pcm []byte) int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.pending = append(s.pending, pcm...)
	produced := 0
	for len(s.pending) >= s.frameBytes {
		data := make([]byte, s.frameBytes)
		copy(data, s.pending[:s.frameBytes])
		s.pending = s.pending[s.frameBytes:]
		s.seq++
		if _, evicted := s.backlog.Push(s.frame(data)); evicted {
			s.dropped++
		}
		produced++
	}
	if len(s.pending) == 0 {
		s.pending = nil
	}
	s.mu.Unlock()

	if produced > 0 {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	return produced
}

func (s *StreamSource) frame(data []byte) Frame {
	return Frame{
		Seq:           s.seq,
		Timestamp:     s.now(),
		SampleRate:    int32(s.format.SampleRate),
		BitsPerSample: int16(s.format.BitsPerSample),
		Data:          data,
	}
}

// Next is meant for a single reader, the real-time loop.
func (s *StreamSource) Next(ctx context.Context) (Frame, error) {
	if f, ok, err := s.take(); ok || err != nil {
		return f, err
	}

	s.timer.Reset(s.period)
	defer s.timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-s.notify:
			if f, ok, err := s.take(); ok || err != nil {
				return f, err
			}
		case <-s.timer.C:
			s.mu.Lock()
			s.seq++
			f := s.frame(make([]byte, s.frameBytes))
			s.mu.Unlock()
			return f, nil
		}
	}
}

func (s *StreamSource) take() (Frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.backlog.PopOldest(); ok {
		return f, true, nil
	}
	if s.closed {
		return Frame{}, false, io.EOF
	}
	return Frame{}, false, nil
}

// Dropped counts frames lost to backlog overflow.
func (s *StreamSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close ends the stream; frames already queued are still delivered.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}
