// Package protocol defines the WebSocket message types exchanged with the
// browser capture page, local renderers and remote peers.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-gaze/internal/orientation"
	"github.com/teslashibe/go-gaze/internal/transform"
	"github.com/teslashibe/go-gaze/internal/vecmath"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Capture page → daemon
	TypeLandmarks  MessageType = "landmarks"  // Face landmark frame
	TypeAudio      MessageType = "audio"      // Audio level or frequency bins
	TypeTranscript MessageType = "transcript" // Speech-to-text result

	// Daemon → capture page
	TypeCapture MessageType = "capture" // Start or stop speech capture

	// Daemon → renderers, and between peers
	TypeTransform MessageType = "transform" // Window transform of the sender
	TypeRemote    MessageType = "remote"    // Window transform of a remote peer

	// Between peers
	TypeHello  MessageType = "hello"  // Peer announces itself
	TypeLeave  MessageType = "leave"  // Peer left
	TypeSignal MessageType = "signal" // WebRTC session description or candidate

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	From      string          `json:"from,omitempty"` // participant ID of the sender
	To        string          `json:"to,omitempty"`   // addressed peer, empty for broadcast
	Timestamp int64           `json:"ts,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// LandmarksData is one face landmark frame in normalized coordinates
type LandmarksData struct {
	Points []vecmath.Vec2 `json:"points"`
}

// Frame converts the landmark payload into an orientation frame stamped at ts
func (l LandmarksData) Frame(ts time.Time) orientation.Frame {
	return orientation.Frame{Landmarks: l.Points, Timestamp: ts}
}

// GetLandmarks extracts a landmark frame from a message
func (m *Message) GetLandmarks() (orientation.Frame, error) {
	var data LandmarksData
	if err := m.ParseData(&data); err != nil {
		return orientation.Frame{}, err
	}

	ts := time.Now()
	if m.Timestamp > 0 {
		ts = time.UnixMilli(m.Timestamp)
	}
	return data.Frame(ts), nil
}

// AudioData carries either a scalar level or a base64 frequency magnitude buffer
type AudioData struct {
	Level *float64 `json:"level,omitempty"`
	Bins  string   `json:"bins,omitempty"`
}

// GetAudio extracts an audio sample. Exactly one of level or bins is set.
func (m *Message) GetAudio() (level float64, bins []byte, err error) {
	var data AudioData
	if err := m.ParseData(&data); err != nil {
		return 0, nil, err
	}

	if data.Level != nil {
		return *data.Level, nil, nil
	}
	if data.Bins == "" {
		return 0, nil, fmt.Errorf("audio message without level or bins")
	}

	bins, err = base64.StdEncoding.DecodeString(data.Bins)
	if err != nil {
		return 0, nil, fmt.Errorf("decode bins: %w", err)
	}
	return 0, bins, nil
}

// NewAudioBinsMessage creates an audio message from a frequency magnitude buffer
func NewAudioBinsMessage(bins []byte) (*Message, error) {
	return NewMessage(TypeAudio, AudioData{Bins: base64.StdEncoding.EncodeToString(bins)})
}

// NewAudioLevelMessage creates an audio message from a scalar level
func NewAudioLevelMessage(level float64) (*Message, error) {
	return NewMessage(TypeAudio, AudioData{Level: &level})
}

// TranscriptData is the latest speech-to-text result
type TranscriptData struct {
	Text string `json:"text"`
}

// GetTranscript extracts the transcript text from a message
func (m *Message) GetTranscript() (string, error) {
	var data TranscriptData
	if err := m.ParseData(&data); err != nil {
		return "", err
	}
	return data.Text, nil
}

// CaptureData toggles speech capture on the capture page
type CaptureData struct {
	Listen bool `json:"listen"`
}

// NewCaptureMessage creates a capture toggle message
func NewCaptureMessage(listen bool) (*Message, error) {
	return NewMessage(TypeCapture, CaptureData{Listen: listen})
}

// NewTransformMessage creates a transform message sent by participant from
func NewTransformMessage(from string, t transform.WindowTransform) (*Message, error) {
	msg, err := NewMessage(TypeTransform, t)
	if err != nil {
		return nil, err
	}
	msg.From = from
	return msg, nil
}

// NewRemoteMessage creates a message carrying the transform of a remote peer
func NewRemoteMessage(from string, t transform.WindowTransform) (*Message, error) {
	msg, err := NewMessage(TypeRemote, t)
	if err != nil {
		return nil, err
	}
	msg.From = from
	return msg, nil
}

// GetTransform extracts a window transform from a transform or remote message
func (m *Message) GetTransform() (transform.WindowTransform, error) {
	var data transform.WindowTransform
	if err := m.ParseData(&data); err != nil {
		return transform.WindowTransform{}, err
	}
	return data, nil
}

// NewPeerMessage creates a data-less peer message such as hello or leave
func NewPeerMessage(msgType MessageType, from string) *Message {
	return &Message{
		Type:      msgType,
		From:      from,
		Timestamp: time.Now().UnixMilli(),
	}
}

// SignalData is a WebRTC session description or ICE candidate
type SignalData struct {
	Kind          string  `json:"kind"` // offer, answer, candidate
	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Signal kinds
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// NewSignalMessage creates a signalling message addressed to a single peer
func NewSignalMessage(from, to string, sig SignalData) (*Message, error) {
	msg, err := NewMessage(TypeSignal, sig)
	if err != nil {
		return nil, err
	}
	msg.From = from
	msg.To = to
	return msg, nil
}

// GetSignal extracts signalling data from a message
func (m *Message) GetSignal() (*SignalData, error) {
	var data SignalData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
