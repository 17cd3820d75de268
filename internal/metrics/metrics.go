// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xpanvictor/hearken/pkg/dispatch"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
)

const namespace = "hearken"

type Metrics struct {
	// real-time loop
	FramesProcessed     prometheus.Counter
	VoiceFrames         prometheus.Counter
	VADThreshold        prometheus.Gauge
	VADSNR              prometheus.Gauge
	Recording           prometheus.Gauge
	UtterancesEmitted   prometheus.Counter
	UtterancesDiscarded prometheus.Counter
	UtteranceDuration   prometheus.Histogram
	IngestDropped       prometheus.Counter

	// dispatch queues, labelled by queue name
	QueueDepth     *prometheus.GaugeVec
	QueueEvictions *prometheus.CounterVec
	ItemFailures   *prometheus.CounterVec
	ItemDuration   *prometheus.HistogramVec

	// responder
	Transcripts *prometheus.CounterVec

	// HTTP API
	HTTPRequests *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames read from the source and classified",
		}),
		VoiceFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_frames_total",
			Help:      "Frames classified as voice",
		}),
		VADThreshold: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vad_threshold_db",
			Help:      "Current adaptive SNR threshold",
		}),
		VADSNR: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vad_snr_db",
			Help:      "SNR of the last frame",
		}),
		Recording: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segmenter_recording",
			Help:      "1 while an utterance is being collected",
		}),
		UtterancesEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_emitted_total",
			Help:      "Utterances handed to transcription",
		}),
		UtterancesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_discarded_total",
			Help:      "Utterances dropped for being shorter than the minimum capture",
		}),
		UtteranceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_duration_seconds",
			Help:      "Audio length of emitted utterances",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
		IngestDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_frames_dropped_total",
			Help:      "Streamed frames lost because the real-time loop fell behind",
		}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Items waiting in a dispatch queue",
		}, []string{"queue"}),
		QueueEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_evictions_total",
			Help:      "Items dropped because a dispatch queue was full",
		}, []string{"queue"}),
		ItemFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_item_failures_total",
			Help:      "Handler errors and panics",
		}, []string{"queue"}),
		ItemDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_item_duration_seconds",
			Help:      "Time spent handling one item",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"queue"}),
		Transcripts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Transcripts handled by the responder",
		}, []string{"kind"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "path", "status"}),
	}
}

// ObserveFrame records one VAD decision.
func (m *Metrics) ObserveFrame(d vad.Decision, recording bool) {
	m.FramesProcessed.Inc()
	if d.Voice {
		m.VoiceFrames.Inc()
	}
	m.VADThreshold.Set(d.Threshold)
	m.VADSNR.Set(float64(d.SNR))
	if recording {
		m.Recording.Set(1)
	} else {
		m.Recording.Set(0)
	}
}

// QueueHooks feeds dispatcher activity for the named queue into m.
func QueueHooks[T any](m *Metrics, queue string) dispatch.Hooks[T] {
	depth := m.QueueDepth.WithLabelValues(queue)
	evictions := m.QueueEvictions.WithLabelValues(queue)
	failures := m.ItemFailures.WithLabelValues(queue)
	duration := m.ItemDuration.WithLabelValues(queue)
	return dispatch.Hooks[T]{
		OnEvict: func(T) { evictions.Inc() },
		OnDepth: func(n int) { depth.Set(float64(n)) },
		OnSuccess: func(_ T, took time.Duration) {
			duration.Observe(took.Seconds())
		},
		OnError: func(T, error) { failures.Inc() },
	}
}
