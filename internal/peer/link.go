// Package peer connects the local participant to remote participants.
//
// Two transports are provided: a WebSocket relay that rebroadcasts messages to
// every other participant in the room, and a WebRTC data channel mesh that is
// signalled over the same relay.
package peer

import (
	"context"

	"github.com/teslashibe/go-gaze/internal/transform"
)

// Transport names
const (
	TransportNone   = "none"
	TransportRelay  = "relay"
	TransportWebRTC = "webrtc"
)

// Handler receives the state of remote participants
type Handler interface {
	UpdateRemote(id string, t transform.WindowTransform)
	RemoveRemote(id string) bool
}

// Link is an outbound channel to remote participants
type Link interface {
	Name() string
	Connect(ctx context.Context) error
	SendTransform(ctx context.Context, t transform.WindowTransform) error
	Connected() bool
	Peers() []string
	Close() error
}

// Stats contains link statistics
type Stats struct {
	Transport        string   `json:"transport"`
	Connected        bool     `json:"connected"`
	Peers            []string `json:"peers"`
	MessagesSent     uint64   `json:"messages_sent"`
	MessagesReceived uint64   `json:"messages_received"`
	Reconnects       uint64   `json:"reconnects"`
}
