package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/device"
	wsdevice "github.com/xpanvictor/hearken/pkg/io/device/websocket"
	"github.com/xpanvictor/hearken/pkg/io/registry"
)

// AudioIngest receives PCM in a fixed format.
type AudioIngest interface {
	Format() audio.Format
	Feed(pcm []byte) int
}

// WebSocketHandler accepts client connections. Each connection is an output
// endpoint; it may also stream microphone audio and type text.
type WebSocketHandler struct {
	logger   *Logger.Logger
	registry registry.Registry
	ingest   AudioIngest // nil when audio comes from elsewhere
	submit   func(text string) bool
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(
	logger *Logger.Logger,
	reg registry.Registry,
	ingest AudioIngest,
	submit func(text string) bool,
) *WebSocketHandler {
	if logger == nil {
		logger = Logger.Nop()
	}
	return &WebSocketHandler{
		logger:   logger,
		registry: reg,
		ingest:   ingest,
		submit:   submit,
		upgrader: websocket.Upgrader{
			// TODO: restrict origins once a browser client ships
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket serves one client. Query flags audio=false and text=false
// opt out of the matching output.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	caps := device.Capabilities{
		AudioSink: queryFlag(c, "audio", true),
		TextSink:  queryFlag(c, "text", true),
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	ep := wsdevice.New(conn, caps)
	defer ep.Close()

	if err := h.registry.AttachEndpoint(ep); err != nil {
		h.logger.Errorf("Failed to register endpoint: %v", err)
		return
	}
	defer h.registry.DetachEndpoint(ep.ID())
	h.logger.Infof("endpoint %s connected (audio=%v text=%v)", ep.ID(), caps.AudioSink, caps.TextSink)

	hello := InitMessage{EndpointID: ep.ID().String(), Ingest: h.ingest != nil}
	if h.ingest != nil {
		hello.Format = h.ingest.Format()
	}
	if err := ep.SendEvent(string(MessageTypeInit), hello); err != nil {
		h.logger.Warnf("endpoint %s: sending init: %v", ep.ID(), err)
		return
	}

	h.handleConnection(conn, ep)
}

func (h *WebSocketHandler) handleConnection(conn *websocket.Conn, ep device.Endpoint) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("WebSocket read error: %v", err)
			} else {
				h.logger.Infof("endpoint %s disconnected", ep.ID())
			}
			return
		}
		ep.Touch()

		switch messageType {
		case websocket.TextMessage:
			h.handleTextMessage(ep, data)
		case websocket.BinaryMessage:
			h.handleBinaryMessage(ep, data)
		}
	}
}

func (h *WebSocketHandler) handleTextMessage(ep device.Endpoint, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(ep, "INVALID_MESSAGE", "Invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeText:
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil || strings.TrimSpace(text.Content) == "" {
			h.sendError(ep, "INVALID_MESSAGE", "text message needs data.content")
			return
		}
		if h.submit == nil || !h.submit(text.Content) {
			h.sendError(ep, "TEXT_REJECTED", "text input is not being accepted")
		}
	default:
		h.sendError(ep, "UNKNOWN_MESSAGE_TYPE", fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

// handleBinaryMessage feeds a headered PCM chunk to the ingest stream.
func (h *WebSocketHandler) handleBinaryMessage(ep device.Endpoint, data []byte) {
	if h.ingest == nil {
		h.sendError(ep, "AUDIO_DISABLED", "this server does not take audio over websocket")
		return
	}
	format, pcm, err := audio.ParseChunk(data)
	if err != nil {
		h.sendError(ep, "INVALID_AUDIO", err.Error())
		return
	}
	want := h.ingest.Format()
	if format.SampleRate != want.SampleRate || format.BitsPerSample != want.BitsPerSample || format.Channels != want.Channels {
		h.sendError(ep, "AUDIO_FORMAT", fmt.Sprintf("expected %d Hz %d-bit mono, got %d Hz %d-bit %d channels",
			want.SampleRate, want.BitsPerSample, format.SampleRate, format.BitsPerSample, format.Channels))
		return
	}
	h.ingest.Feed(pcm)
}

func (h *WebSocketHandler) sendError(ep device.Endpoint, code, message string) {
	if err := ep.SendEvent(string(MessageTypeError), ErrorMessage{Code: code, Message: message}); err != nil {
		h.logger.Debugf("endpoint %s: sending error: %v", ep.ID(), err)
	}
}

func queryFlag(c *gin.Context, key string, def bool) bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
