package handlers

import (
	"github.com/xpanvictor/hearken/pkg/dispatch"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is served by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Endpoints int    `json:"endpoints"`
}

// StatsResponse is served by GET /stats.
type StatsResponse struct {
	VAD       vad.Stats        `json:"vad"`
	Segmenter segmenter.Stats  `json:"segmenter"`
	Queues    []dispatch.Stats `json:"queues"`
	Endpoints int              `json:"endpoints"`
}

// TranscriptsResponse is served by GET /transcripts.
type TranscriptsResponse struct {
	Transcripts []stt.Transcript `json:"transcripts"`
	Count       int              `json:"count"`
}
