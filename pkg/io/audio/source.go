package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ReaderSource cuts a PCM byte stream (a file, a pipe from arecord, stdin)
// into frames. With realtime pacing it releases one frame per period, which is
// what a capture device would do; without it frames are produced as fast as
// the reader allows.
//
// Reads happen on a background goroutine so Next can return as soon as its
// context is cancelled, even while stdin has nothing to give.
type ReaderSource struct {
	r          io.Reader
	closer     io.Closer
	format     Format
	frameBytes int
	ticker     *time.Ticker
	seq        uint64
	done       bool
	err        error
	now        func() time.Time

	start  sync.Once
	chunks chan chunk
	stop   chan struct{}
	closed sync.Once
}

type chunk struct {
	data []byte
	err  error
}

func NewReaderSource(r io.Reader, format Format, period time.Duration, realtime bool) (*ReaderSource, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	frameBytes := format.FrameBytes(period)
	if frameBytes <= 0 {
		return nil, fmt.Errorf("frame period %s too short for %d Hz", period, format.SampleRate)
	}
	s := &ReaderSource{
		r:          bufio.NewReaderSize(r, frameBytes*4),
		format:     format,
		frameBytes: frameBytes,
		now:        time.Now,
		chunks:     make(chan chunk, 1),
		stop:       make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	if realtime {
		s.ticker = time.NewTicker(period)
	}
	return s, nil
}

// NewWAVSource reads the RIFF header from r and streams the samples that follow.
func NewWAVSource(r io.Reader, period time.Duration, realtime bool) (*ReaderSource, error) {
	format, _, err := ReadWAVHeader(r)
	if err != nil {
		return nil, err
	}
	return NewReaderSource(r, format, period, realtime)
}

// OpenFileSource opens path as WAV when it carries a RIFF header, otherwise as
// raw PCM in the fallback format.
func OpenFileSource(path string, fallback Format, period time.Duration, realtime bool) (*ReaderSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	var magic [4]byte
	n, _ := io.ReadFull(f, magic[:])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewind audio source: %w", err)
	}

	var src *ReaderSource
	if n == 4 && string(magic[:]) == "RIFF" {
		src, err = NewWAVSource(f, period, realtime)
	} else {
		src, err = NewReaderSource(f, fallback, period, realtime)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

func (s *ReaderSource) Format() Format { return s.format }

// Next returns the following frame. A trailing partial frame is delivered
// once; the call after it returns io.EOF.
func (s *ReaderSource) Next(ctx context.Context) (Frame, error) {
	if s.err != nil {
		return Frame{}, s.err
	}
	if s.done {
		return Frame{}, io.EOF
	}
	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-s.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.start.Do(func() { go s.read() })

	var c chunk
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case c = <-s.chunks:
	}

	switch {
	case errors.Is(c.err, io.EOF):
		s.done = true
		return Frame{}, io.EOF
	case errors.Is(c.err, io.ErrUnexpectedEOF):
		s.done = true
	case c.err != nil:
		s.err = fmt.Errorf("reading frame: %w", c.err)
		return Frame{}, s.err
	}

	s.seq++
	return Frame{
		Seq:           s.seq,
		Timestamp:     s.now(),
		SampleRate:    int32(s.format.SampleRate),
		BitsPerSample: int16(s.format.BitsPerSample),
		Data:          c.data,
	}, nil
}

// read runs until the reader fails or the source is closed, keeping at most
// one frame ahead of Next.
func (s *ReaderSource) read() {
	for {
		buf := make([]byte, s.frameBytes)
		n, err := io.ReadFull(s.r, buf)
		c := chunk{data: buf[:n], err: err}
		select {
		case s.chunks <- c:
		case <-s.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *ReaderSource) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.stop)
		if s.ticker != nil {
			s.ticker.Stop()
		}
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
