package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/dispatch"
	"github.com/xpanvictor/hearken/pkg/io/registry"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
)

const (
	defaultTranscriptLimit = 20
	maxTranscriptLimit     = 200
)

type VADStatser interface {
	Stats() vad.Stats
}

type SegmenterStatser interface {
	Stats() segmenter.Stats
}

type QueueStatser interface {
	Stats() dispatch.Stats
}

type TranscriptLister interface {
	Recent(ctx context.Context, limit int) ([]stt.Transcript, error)
}

// StatusHandler serves read-only views of the running pipeline.
type StatusHandler struct {
	vad         VADStatser
	segmenter   SegmenterStatser
	queues      []QueueStatser
	registry    registry.Registry
	transcripts TranscriptLister // nil without a database
	logger      *Logger.Logger
	started     time.Time
}

func NewStatusHandler(
	v VADStatser,
	seg SegmenterStatser,
	queues []QueueStatser,
	reg registry.Registry,
	transcripts TranscriptLister,
	logger *Logger.Logger,
) *StatusHandler {
	if logger == nil {
		logger = Logger.Nop()
	}
	return &StatusHandler{
		vad:         v,
		segmenter:   seg,
		queues:      queues,
		registry:    reg,
		transcripts: transcripts,
		logger:      logger,
		started:     time.Now(),
	}
}

func (h *StatusHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/stats", h.Stats)
	router.GET("/transcripts", h.Transcripts)
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Endpoints: h.registry.Count(),
	})
}

func (h *StatusHandler) Stats(c *gin.Context) {
	resp := StatsResponse{
		VAD:       h.vad.Stats(),
		Segmenter: h.segmenter.Stats(),
		Queues:    make([]dispatch.Stats, 0, len(h.queues)),
		Endpoints: h.registry.Count(),
	}
	for _, q := range h.queues {
		resp.Queues = append(resp.Queues, q.Stats())
	}
	c.JSON(http.StatusOK, resp)
}

// Transcripts lists stored transcripts, newest first.
func (h *StatusHandler) Transcripts(c *gin.Context) {
	if h.transcripts == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "transcript storage is disabled"})
		return
	}

	limit := defaultTranscriptLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid limit", Details: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTranscriptLimit)
	}

	list, err := h.transcripts.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf("listing transcripts: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list transcripts"})
		return
	}
	c.JSON(http.StatusOK, TranscriptsResponse{Transcripts: list, Count: len(list)})
}
