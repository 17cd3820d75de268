package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xpanvictor/hearken/internal/config"
	"github.com/xpanvictor/hearken/internal/domains/assistant"
	"github.com/xpanvictor/hearken/internal/domains/listener"
	"github.com/xpanvictor/hearken/internal/domains/sys_manager"
	"github.com/xpanvictor/hearken/internal/handlers"
	wshandler "github.com/xpanvictor/hearken/internal/handlers/websocket"
	"github.com/xpanvictor/hearken/internal/metrics"
	"github.com/xpanvictor/hearken/internal/repository/transcript"
	"github.com/xpanvictor/hearken/internal/server"
	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/dispatch"
	hio "github.com/xpanvictor/hearken/pkg/io"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/registry"
	memoryregistry "github.com/xpanvictor/hearken/pkg/io/registry/memoryRegistry"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
	"github.com/xpanvictor/hearken/pkg/io/tts"
	"gorm.io/gorm"
)

const retentionInterval = time.Hour

// App holds every long-lived component of the listener.
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	DB     *gorm.DB      // nil when persistence is disabled
	RC     *redis.Client // nil when the redis feed is disabled

	PromRegistry *prometheus.Registry
	Metrics      *metrics.Metrics

	EndpointRegistry registry.Registry
	Publisher        *hio.Publisher

	Source    audio.FrameSource
	Stream    *audio.StreamSource // set for websocket ingest
	VAD       *vad.AdaptiveVAD
	Segmenter *segmenter.Segmenter

	Transcriptions *dispatch.Dispatcher[assistant.Input]
	Output         *dispatch.Dispatcher[string]
	Responder      *assistant.Responder
	Listener       *listener.Listener

	Store         *transcript.GormTranscriptRepo
	Feed          *transcript.RedisFeed
	SystemManager *sys_manager.SystemManager
	Router        *gin.Engine

	quit context.CancelFunc
}

// Engines lets callers and tests replace the configured speech engines.
type Engines struct {
	STT    stt.Engine
	TTS    tts.Engine
	Source audio.FrameSource
}

// NewApp wires the pipeline. Engines left nil are built from cfg.
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client, engines Engines) (*App, error) {
	if logger == nil {
		logger = Logger.Nop()
	}
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}
	if err := app.setupDependencies(engines); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) setupDependencies(engines Engines) error {
	factory := NewEngineFactory(a.Config, a.Logger)

	// 1. observability and endpoints
	a.PromRegistry = prometheus.NewRegistry()
	a.PromRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.PromRegistry)
	a.EndpointRegistry = memoryregistry.New()
	pub := hio.New(a.EndpointRegistry)
	a.Publisher = &pub

	// 2. engines
	sttEngine := engines.STT
	if sttEngine == nil {
		var err error
		if sttEngine, err = factory.CreateSTT(); err != nil {
			return err
		}
	}
	ttsEngine := engines.TTS
	if ttsEngine == nil {
		var err error
		if ttsEngine, err = factory.CreateTTS(a.Publisher); err != nil {
			return err
		}
	}
	a.Source = engines.Source
	if a.Source == nil {
		var err error
		if a.Source, a.Stream, err = factory.CreateSource(); err != nil {
			return fmt.Errorf("opening audio source: %w", err)
		}
	}

	// 3. persistence
	if a.DB != nil {
		a.Store = transcript.NewGormTranscriptRepo(a.DB)
		a.SystemManager = sys_manager.NewSystemManager(a.Logger.Named("sys"))
		a.SystemManager.RegisterTask(sys_manager.NewRetentionTask(a.Store, a.Config.DB.Retention, retentionInterval, a.Logger.Named("retention")))
	}
	if a.RC != nil {
		a.Feed = transcript.NewRedisFeed(a.RC, a.Config.Redis.Channel, a.Config.Redis.RecentKey, a.Config.Redis.RecentLen)
	}

	// 4. queues, output first so the responder can speak
	order, err := dispatch.ParseOrder(a.Config.Queues.Order)
	if err != nil {
		return err
	}
	q := a.Config.Queues
	a.Output = dispatch.New("output", q.Capacity,
		assistant.SpeakHandler(ttsEngine, a.Logger.Named("output")),
		dispatch.WithOrder[string](order),
		dispatch.WithItemTimeout[string](q.ItemTimeout),
		dispatch.WithLogger[string](a.Logger.Named("output")),
		dispatch.WithHooks(metrics.QueueHooks[string](a.Metrics, "output")),
	)

	opts := assistant.Options{
		Sink:     a.Publisher,
		Metrics:  a.Metrics,
		Logger:   a.Logger.Named("responder"),
		Shutdown: a.requestQuit,
	}
	if a.Store != nil {
		opts.Store = a.Store
	}
	if a.Feed != nil {
		opts.Feed = a.Feed
	}
	a.Responder = assistant.NewResponder(sttEngine, a.Output, opts)

	a.Transcriptions = dispatch.New("transcription", q.Capacity,
		a.Responder.Handle,
		dispatch.WithOrder[assistant.Input](order),
		dispatch.WithItemTimeout[assistant.Input](q.ItemTimeout),
		dispatch.WithLogger[assistant.Input](a.Logger.Named("transcription")),
		dispatch.WithHooks(metrics.QueueHooks[assistant.Input](a.Metrics, "transcription")),
	)

	// 5. real-time path
	a.VAD = vad.New(a.Config.VAD.InitialThreshold, a.Config.VAD.SNRBound)
	format := a.Source.Format()
	a.Segmenter = segmenter.New(segmenter.Config{
		Hangover:   a.Config.Segmenter.HangoverFrames,
		MinFrames:  a.Config.MinimumCaptureFrames(),
		FrameBytes: format.FrameBytes(a.Config.FramePeriod()),
	}, a.VAD, a.Logger.Named("segmenter"))
	a.Listener = listener.New(listener.Config{
		Meter:      a.Config.VAD.Meter,
		MeterWidth: a.Config.VAD.MeterWidth,
	}, a.Source, a.Segmenter, utteranceQueue{a.Transcriptions}, a.Metrics, a.Logger.Named("listener"))

	// 6. HTTP surface
	var lister handlers.TranscriptLister
	if a.Store != nil {
		lister = a.Store
	}
	status := handlers.NewStatusHandler(a.VAD, a.Segmenter,
		[]handlers.QueueStatser{a.Transcriptions, a.Output},
		a.EndpointRegistry, lister, a.Logger.Named("http"))
	var ingest wshandler.AudioIngest
	if a.Stream != nil {
		ingest = a.Stream
	}
	ws := wshandler.NewWebSocketHandler(a.Logger.Named("ws"), a.EndpointRegistry, ingest, a.SubmitText)
	a.Router = server.NewRouter(a.Config, server.Dependencies{
		Status:    status,
		WebSocket: ws,
		Metrics:   a.Metrics,
		Gatherer:  a.PromRegistry,
		Logger:    a.Logger.Named("http"),
	})
	return nil
}

// SubmitText queues typed text as if it had been transcribed.
func (a *App) SubmitText(text string) bool {
	return a.Transcriptions.Enqueue(assistant.Input{Text: text})
}

func (a *App) requestQuit() {
	if a.quit != nil {
		a.quit()
	}
}

// Run drives the pipeline until ctx is cancelled, the source ends or a quit
// command is heard. On a signal, queued items are dropped and only in-flight
// work finishes; otherwise the queues drain first, bounded by queues.drain_wait.
func (a *App) Run(ctx context.Context) error {
	runCtx, quit := context.WithCancel(ctx)
	defer quit()
	a.quit = quit

	var srv *server.Server
	var srvErr <-chan error
	if a.Config.Server.Enabled {
		srv = server.New(a.Config.Server.Addr, a.Router, a.Logger.Named("http"))
		srvErr = srv.Start()
	}
	if a.SystemManager != nil {
		if err := a.SystemManager.Start(runCtx); err != nil {
			return err
		}
	}

	loopErr := make(chan error, 1)
	go func() { loopErr <- a.Listener.Run(runCtx) }()

	var runErr error
	select {
	case runErr = <-loopErr:
	case <-ctx.Done():
		a.Logger.Info("signal received, stopping listener")
		a.stopLoop(loopErr)
	case err, ok := <-srvErr:
		if ok && err != nil {
			runErr = err
		}
		quit()
		<-loopErr
	}

	a.shutdown(ctx.Err() == nil, srv)
	return runErr
}

func (a *App) shutdown(drain bool, srv *server.Server) {
	wait := a.Config.Queues.DrainWait
	if drain {
		a.Logger.Info("draining queues")
		// transcription feeds output, so it goes first
		a.drain(a.Transcriptions.Stats, wait)
		a.drain(a.Output.Stats, wait)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	a.Transcriptions.Close()
	a.Output.Close()
	if err := a.Transcriptions.Wait(ctx); err != nil {
		a.Logger.Warnf("%v", err)
	}
	if err := a.Output.Wait(ctx); err != nil {
		a.Logger.Warnf("%v", err)
	}

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.Logger.Errorf("http shutdown: %v", err)
		}
	}
	if a.SystemManager != nil {
		a.SystemManager.Stop()
	}
	if err := a.Source.Close(); err != nil {
		a.Logger.Debugf("closing source: %v", err)
	}
	a.Logger.Info("shutdown complete")
}

// stopLoop waits for the listener after cancellation. Closing the source
// releases a Next that does not watch its context.
func (a *App) stopLoop(loopErr <-chan error) {
	select {
	case <-loopErr:
		return
	case <-time.After(a.Config.Audio.FrameDuration * 4):
	}
	if err := a.Source.Close(); err != nil {
		a.Logger.Debugf("closing source: %v", err)
	}
	select {
	case <-loopErr:
	case <-time.After(a.Config.Queues.DrainWait):
		a.Logger.Warn("listener did not stop, abandoning it")
	}
}

// drain waits until the queue is empty and its worker idle, or timeout.
func (a *App) drain(stats func() dispatch.Stats, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s := stats()
		if s.Depth == 0 && !s.Active {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	a.Logger.Warnf("%s queue still busy after %s", stats().Name, timeout)
}

// utteranceQueue adapts the transcription dispatcher to the listener.
type utteranceQueue struct {
	d *dispatch.Dispatcher[assistant.Input]
}

func (q utteranceQueue) Enqueue(utt *segmenter.Utterance) bool {
	return q.d.Enqueue(assistant.Input{Utterance: utt})
}
