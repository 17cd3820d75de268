package websocket

import (
	"encoding/json"

	"github.com/xpanvictor/hearken/pkg/io/audio"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeInit  MessageType = "init"
	MessageTypeError MessageType = "error"
)

// WSMessage is the envelope of client text messages.
type WSMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TextMessage contains text input payload
type TextMessage struct {
	Content string `json:"content"`
}

// InitMessage is sent once the endpoint is registered.
type InitMessage struct {
	EndpointID string       `json:"endpointId"`
	Format     audio.Format `json:"format"`
	Ingest     bool         `json:"ingest"` // binary audio is accepted
}

// ErrorMessage contains error information
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
