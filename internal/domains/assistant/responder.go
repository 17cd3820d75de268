// Package assistant reacts to transcripts: it logs them, stores them, answers
// simple voice commands and hands speech to the output worker.
package assistant

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xpanvictor/hearken/internal/metrics"
	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
)

var quitPhrases = []string{"shut down", "shutdown", "turn off", "quit"}

const (
	quitReply = "okay, quitting"
	sayPrefix = "say "
	sayReply  = "here is what you said to say"
)

// Input is one unit of work for the transcription worker: either a captured
// utterance or text typed by a client.
type Input struct {
	Utterance *segmenter.Utterance
	Text      string
}

// Store persists transcripts.
type Store interface {
	Save(ctx context.Context, tr stt.Transcript) error
}

// Feed announces transcripts to other processes.
type Feed interface {
	Publish(ctx context.Context, tr stt.Transcript) error
}

// TextSink forwards transcripts to connected clients.
type TextSink interface {
	SendText(ctx context.Context, seq int, text string) error
}

// Speaker queues a phrase for the output worker without blocking.
type Speaker interface {
	Enqueue(phrase string) bool
}

type Options struct {
	Store    Store
	Feed     Feed
	Sink     TextSink
	Metrics  *metrics.Metrics
	Logger   *Logger.Logger
	Shutdown func() // called once a quit command is heard
}

type Responder struct {
	engine  stt.Engine
	speaker Speaker
	opts    Options
	logger  *Logger.Logger
	seq     atomic.Int64
	quit    atomic.Bool
}

func NewResponder(engine stt.Engine, speaker Speaker, opts Options) *Responder {
	logger := opts.Logger
	if logger == nil {
		logger = Logger.Nop()
	}
	return &Responder{engine: engine, speaker: speaker, opts: opts, logger: logger}
}

// Handle is the transcription worker's handler.
func (r *Responder) Handle(ctx context.Context, in Input) error {
	tr, err := r.transcribe(ctx, in)
	if err != nil {
		r.count("failed")
		return err
	}

	content := tr.Content
	if content == "" {
		r.logger.Info("<< <noise>")
		r.count("noise")
		return nil
	}
	r.logger.Infof("<< %s", content)
	r.count(string(tr.Source))

	r.record(ctx, tr)
	r.react(content)
	return nil
}

func (r *Responder) transcribe(ctx context.Context, in Input) (stt.Transcript, error) {
	if in.Utterance == nil {
		return stt.Transcript{
			Source:      stt.SourceText,
			Content:     strings.TrimSpace(in.Text),
			Engine:      "text",
			GeneratedAt: time.Now(),
		}, nil
	}
	return r.engine.Transcribe(ctx, in.Utterance)
}

// record stores, publishes and forwards tr. Failures are only logged.
func (r *Responder) record(ctx context.Context, tr stt.Transcript) {
	if r.opts.Store != nil {
		if err := r.opts.Store.Save(ctx, tr); err != nil {
			r.logger.Warnf("storing transcript: %v", err)
		}
	}
	if r.opts.Feed != nil {
		if err := r.opts.Feed.Publish(ctx, tr); err != nil {
			r.logger.Warnf("publishing transcript: %v", err)
		}
	}
	if r.opts.Sink != nil {
		if err := r.opts.Sink.SendText(ctx, int(r.seq.Add(1)), tr.Content); err != nil {
			r.logger.Debugf("forwarding transcript: %v", err)
		}
	}
}

func (r *Responder) react(content string) {
	lower := strings.ToLower(content)
	for _, p := range quitPhrases {
		if strings.Contains(lower, p) {
			r.Say(quitReply)
			if r.quit.CompareAndSwap(false, true) && r.opts.Shutdown != nil {
				r.opts.Shutdown()
			}
			break
		}
	}
	if strings.HasPrefix(lower, sayPrefix) {
		r.Say(sayReply)
		r.Say(content[len(sayPrefix):])
	}
}

// Say queues phrase for speech.
func (r *Responder) Say(phrase string) {
	if !r.speaker.Enqueue(phrase) {
		r.logger.Warnf("output queue closed, not saying %q", phrase)
	}
}

// QuitRequested reports whether a quit command has been heard.
func (r *Responder) QuitRequested() bool { return r.quit.Load() }

func (r *Responder) count(kind string) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.Transcripts.WithLabelValues(kind).Inc()
	}
}
