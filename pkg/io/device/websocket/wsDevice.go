package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/hearken/pkg/io/device"
)

var ErrEndpointClosed = errors.New("endpoint closed")

const writeWait = 5 * time.Second

// wsEndpoint serialises writes; gorilla connections allow one concurrent
// writer.
type wsEndpoint struct {
	id     uuid.UUID
	client *websocket.Conn
	caps   device.Capabilities

	mu         sync.Mutex
	lastActive time.Time
	closed     bool
}

// Caps implements device.Endpoint.
func (w *wsEndpoint) Caps() device.Capabilities {
	return w.caps
}

// Close implements device.Endpoint.
func (w *wsEndpoint) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.client.Close()
}

// ID implements device.Endpoint.
func (w *wsEndpoint) ID() device.EndpointID {
	return device.EndpointID(w.id)
}

func (w *wsEndpoint) Touch() {
	w.mu.Lock()
	w.lastActive = time.Now()
	w.mu.Unlock()
}

// IsAlive implements device.Endpoint.
func (w *wsEndpoint) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	return w.client.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)) == nil
}

// LastActive implements device.Endpoint.
func (w *wsEndpoint) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// SendAudioFrame implements device.Endpoint.
func (w *wsEndpoint) SendAudioFrame(frame []byte) error {
	return w.write(func() error {
		return w.client.WriteMessage(websocket.BinaryMessage, frame)
	})
}

// SendEvent implements device.Endpoint.
func (w *wsEndpoint) SendEvent(name string, payload any) error {
	msg := struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Data any    `json:"data"`
	}{
		Type: "event",
		Name: name,
		Data: payload,
	}
	return w.write(func() error { return w.client.WriteJSON(msg) })
}

// SendText implements device.Endpoint.
func (w *wsEndpoint) SendText(seq int, text string) error {
	msg := struct {
		Type  string `json:"type"`
		Index int    `json:"index"`
		Text  string `json:"text"`
	}{Type: "text", Index: seq, Text: text}
	return w.write(func() error { return w.client.WriteJSON(msg) })
}

func (w *wsEndpoint) write(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrEndpointClosed
	}
	if err := w.client.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return fn()
}

// Transport implements device.Endpoint.
func (w *wsEndpoint) Transport() device.Transport {
	return device.TransportWS
}

func New(client *websocket.Conn, caps device.Capabilities) device.Endpoint {
	return &wsEndpoint{
		id:         uuid.New(),
		client:     client,
		caps:       caps,
		lastActive: time.Now(),
	}
}
