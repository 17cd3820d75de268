package listener

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/hearken/internal/metrics"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
)

const frameBytes = 960

// fakeSource replays a fixed list of frames, then returns end.
type fakeSource struct {
	frames  []audio.Frame
	end     error
	dropped uint64
	pos     int
}

func (s *fakeSource) Format() audio.Format { return audio.Mono(16000, 16) }
func (s *fakeSource) Close() error         { return nil }
func (s *fakeSource) Dropped() uint64      { return s.dropped }

func (s *fakeSource) Next(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return audio.Frame{}, s.end
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// blockingSource waits for ctx like a live capture device between frames.
type blockingSource struct{ fakeSource }

func (s *blockingSource) Next(ctx context.Context) (audio.Frame, error) {
	<-ctx.Done()
	return audio.Frame{}, ctx.Err()
}

type sink struct {
	mu     sync.Mutex
	utts   []*segmenter.Utterance
	reject bool
}

func (s *sink) Enqueue(u *segmenter.Utterance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utts = append(s.utts, u)
	return !s.reject
}

func frames(runs ...int) []audio.Frame {
	var out []audio.Frame
	loud := false
	for _, n := range runs {
		for i := 0; i < n; i++ {
			data := make([]byte, frameBytes)
			if loud {
				amp := int16(2000 * (i%8 + 1))
				for j := 0; j < len(data); j += 2 {
					s := amp
					if (j/2)%2 == 1 {
						s = -s
					}
					binary.LittleEndian.PutUint16(data[j:], uint16(s))
				}
			}
			out = append(out, audio.Frame{Seq: uint64(len(out) + 1), SampleRate: 16000, BitsPerSample: 16, Data: data})
		}
		loud = !loud
	}
	return out
}

func newSegmenter(minFrames int) *segmenter.Segmenter {
	return segmenter.New(segmenter.Config{Hangover: 10, MinFrames: minFrames, FrameBytes: frameBytes},
		vad.New(vad.DefaultThreshold, vad.DefaultSNRBound), nil)
}

func TestRunEmitsUtteranceAndEndsOnEOF(t *testing.T) {
	src := &fakeSource{frames: frames(5, 40, 40), end: io.EOF, dropped: 3}
	out := &sink{}
	m := metrics.New(prometheus.NewRegistry())

	l := New(Config{Meter: true}, src, newSegmenter(20), out, m, nil)
	require.NoError(t, l.Run(context.Background()))

	require.Len(t, out.utts, 1)
	assert.Equal(t, 66, out.utts[0].Len())
	assert.Equal(t, float64(85), testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UtterancesEmitted))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.UtterancesDiscarded))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.IngestDropped))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Recording))
}

func TestRunCountsDiscards(t *testing.T) {
	src := &fakeSource{frames: frames(5, 5, 40), end: io.EOF}
	out := &sink{}
	m := metrics.New(prometheus.NewRegistry())

	require.NoError(t, New(Config{}, src, newSegmenter(50), out, m, nil).Run(context.Background()))
	assert.Empty(t, out.utts)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UtterancesDiscarded))
}

func TestRunSurvivesClosedQueue(t *testing.T) {
	src := &fakeSource{frames: frames(5, 40, 40, 40, 40), end: io.EOF}
	out := &sink{reject: true}
	require.NoError(t, New(Config{}, src, newSegmenter(20), out, nil, nil).Run(context.Background()))
	assert.Len(t, out.utts, 2)
}

func TestRunReturnsSourceFailure(t *testing.T) {
	boom := errors.New("device unplugged")
	src := &fakeSource{frames: frames(3), end: boom}
	err := New(Config{}, src, newSegmenter(20), &sink{}, nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(Config{}, &blockingSource{}, newSegmenter(20), &sink{}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
