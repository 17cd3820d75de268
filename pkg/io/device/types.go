package device

import (
	"time"

	"github.com/google/uuid"
)

type Transport string

const (
	TransportWS Transport = "ws"
)

type Capabilities struct {
	AudioSink bool // can play synthesized speech
	TextSink  bool // can display transcripts and replies
}

type EndpointID uuid.UUID

func (id EndpointID) String() string { return uuid.UUID(id).String() }

// Endpoint is a connected client the publisher can push output to.
type Endpoint interface {
	// Identity
	ID() EndpointID
	Caps() Capabilities
	Transport() Transport
	// abstraction for publisher
	SendText(seq int, text string) error
	SendAudioFrame(frame []byte) error
	SendEvent(name string, payload any) error
	Touch()
	// lifecycle
	IsAlive() bool
	Close() error
	LastActive() time.Time
}
