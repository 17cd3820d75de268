// Package listener runs the real-time capture loop: frames in, utterances out.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xpanvictor/hearken/internal/metrics"
	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
)

// Enqueuer accepts finished utterances without blocking.
type Enqueuer interface {
	Enqueue(utt *segmenter.Utterance) bool
}

type droppedCounter interface {
	Dropped() uint64
}

type Config struct {
	Meter      bool // log a level meter line per frame at debug level
	MeterWidth int
}

type Listener struct {
	source  audio.FrameSource
	seg     *segmenter.Segmenter
	out     Enqueuer
	metrics *metrics.Metrics
	logger  *Logger.Logger
	cfg     Config

	lastDropped uint64
}

// New wires a listener. m may be nil.
func New(cfg Config, source audio.FrameSource, seg *segmenter.Segmenter, out Enqueuer, m *metrics.Metrics, logger *Logger.Logger) *Listener {
	if logger == nil {
		logger = Logger.Nop()
	}
	if cfg.MeterWidth <= 0 {
		cfg.MeterWidth = 60
	}
	return &Listener{
		source:  source,
		seg:     seg,
		out:     out,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run reads frames until ctx is cancelled or the source ends. A clean end of
// stream or cancellation returns nil; any other source error is returned.
// Run never waits on transcription.
func (l *Listener) Run(ctx context.Context) error {
	format := l.source.Format()
	l.logger.Infof("listening: %d Hz, %d-bit mono", format.SampleRate, format.BitsPerSample)

	for {
		frame, err := l.source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				l.logger.Info("audio source ended")
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("reading audio source: %w", err)
			}
		}
		l.step(ctx, frame)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Listener) step(ctx context.Context, frame audio.Frame) {
	res := l.seg.Push(ctx, frame)

	if l.cfg.Meter {
		l.logger.Debug(vad.RenderMeter(res.Decision, l.cfg.MeterWidth))
	}
	if l.metrics != nil {
		l.metrics.ObserveFrame(res.Decision, res.Phase == segmenter.RECORDING)
		l.syncDropped()
	}

	if res.Discarded > 0 {
		l.logger.Debugf("discarded short utterance of %d frames", res.Discarded)
		if l.metrics != nil {
			l.metrics.UtterancesDiscarded.Inc()
		}
	}

	if utt := res.Utterance; utt != nil {
		l.logger.Infof("utterance %s: %d frames, %s", utt.ID, utt.Len(), utt.Duration())
		if l.metrics != nil {
			l.metrics.UtterancesEmitted.Inc()
			l.metrics.UtteranceDuration.Observe(utt.Duration().Seconds())
		}
		if !l.out.Enqueue(utt) {
			l.logger.Warnf("transcription queue closed, dropping utterance %s", utt.ID)
		}
	}
}

func (l *Listener) syncDropped() {
	dc, ok := l.source.(droppedCounter)
	if !ok {
		return
	}
	if n := dc.Dropped(); n > l.lastDropped {
		l.metrics.IngestDropped.Add(float64(n - l.lastDropped))
		l.lastDropped = n
	}
}
