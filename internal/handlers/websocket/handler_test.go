package websocket

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/registry"
	"github.com/xpanvictor/hearken/pkg/io/registry/memoryRegistry"
)

type fakeIngest struct {
	mu  sync.Mutex
	got []byte
}

func (f *fakeIngest) Format() audio.Format { return audio.Mono(16000, 16) }

func (f *fakeIngest) Feed(pcm []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, pcm...)
	return len(f.got) / 960
}

func (f *fakeIngest) bytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type event struct {
	Type string         `json:"type"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

type harness struct {
	reg    registry.Registry
	ingest *fakeIngest
	mu     sync.Mutex
	texts  []string
	srv    *httptest.Server
}

func newHarness(t *testing.T, withIngest bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{reg: memoryregistry.New(), ingest: &fakeIngest{}}

	var ingest AudioIngest
	if withIngest {
		ingest = h.ingest
	}
	handler := NewWebSocketHandler(nil, h.reg, ingest, func(text string) bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.texts = append(h.texts, text)
		return true
	})
	router := gin.New()
	handler.RegisterRoutes(router)
	h.srv = httptest.NewServer(router)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestConnectRegistersEndpoint(t *testing.T) {
	h := newHarness(t, true)
	conn := h.dial(t, "?audio=false")

	hello := readEvent(t, conn)
	assert.Equal(t, "event", hello.Type)
	assert.Equal(t, "init", hello.Name)
	assert.Equal(t, true, hello.Data["ingest"])
	assert.NotEmpty(t, hello.Data["endpointId"])

	require.Equal(t, 1, h.reg.Count())
	ep := h.reg.ListEndpoints()[0]
	assert.False(t, ep.Caps().AudioSink)
	assert.True(t, ep.Caps().TextSink)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return h.reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBinaryChunksFeedIngest(t *testing.T) {
	h := newHarness(t, true)
	conn := h.dial(t, "")
	readEvent(t, conn)

	chunk := audio.AppendChunk(nil, audio.Mono(16000, 16), make([]byte, 1920))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, chunk))
	require.Eventually(t, func() bool { return h.ingest.bytes() == 1920 }, 2*time.Second, 10*time.Millisecond)
}

func TestWrongFormatIsRejected(t *testing.T) {
	h := newHarness(t, true)
	conn := h.dial(t, "")
	readEvent(t, conn)

	chunk := audio.AppendChunk(nil, audio.Mono(48000, 16), make([]byte, 1920))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, chunk))

	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Name)
	assert.Equal(t, "AUDIO_FORMAT", ev.Data["code"])
	assert.Zero(t, h.ingest.bytes())

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2}))
	assert.Equal(t, "INVALID_AUDIO", readEvent(t, conn).Data["code"])
}

func TestAudioDisabledWithoutIngest(t *testing.T) {
	h := newHarness(t, false)
	conn := h.dial(t, "")
	hello := readEvent(t, conn)
	assert.Equal(t, false, hello.Data["ingest"])

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, audio.AppendChunk(nil, audio.Mono(16000, 16), make([]byte, 4))))
	assert.Equal(t, "AUDIO_DISABLED", readEvent(t, conn).Data["code"])
}

func TestTextMessagesAreSubmitted(t *testing.T) {
	h := newHarness(t, false)
	conn := h.dial(t, "")
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","data":{"content":"say hello"}}`)))
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.texts) == 1 && h.texts[0] == "say hello"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	assert.Equal(t, "UNKNOWN_MESSAGE_TYPE", readEvent(t, conn).Data["code"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, "INVALID_MESSAGE", readEvent(t, conn).Data["code"])
}
