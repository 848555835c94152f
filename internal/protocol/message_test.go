package protocol

import (
	"encoding/json"
	"testing"

	"github.com/teslashibe/go-gaze/internal/transform"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeTranscript, TranscriptData{Text: "hi"})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	if msg.Type != TypeTranscript {
		t.Errorf("Type = %v, want %v", msg.Type, TypeTranscript)
	}

	if msg.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
}

func TestParseMessageMissingType(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"data":{}}`)); err == nil {
		t.Error("expected error for message without type")
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestGetLandmarks(t *testing.T) {
	raw := []byte(`{"type":"landmarks","ts":1700000000000,"data":{"points":[{"x":0.4,"y":0.5},{"x":0.6,"y":0.5}]}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	frame, err := msg.GetLandmarks()
	if err != nil {
		t.Fatalf("GetLandmarks() error = %v", err)
	}

	if len(frame.Landmarks) != 2 {
		t.Fatalf("len(Landmarks) = %d, want 2", len(frame.Landmarks))
	}
	if frame.Landmarks[1].X != 0.6 {
		t.Errorf("Landmarks[1].X = %v, want 0.6", frame.Landmarks[1].X)
	}
	if frame.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("Timestamp = %v, want 1700000000000", frame.Timestamp.UnixMilli())
	}
}

func TestGetAudio(t *testing.T) {
	levelMsg, err := NewAudioLevelMessage(42)
	if err != nil {
		t.Fatalf("NewAudioLevelMessage() error = %v", err)
	}
	level, bins, err := levelMsg.GetAudio()
	if err != nil {
		t.Fatalf("GetAudio() error = %v", err)
	}
	if level != 42 || bins != nil {
		t.Errorf("GetAudio() = (%v, %v), want (42, nil)", level, bins)
	}

	binsMsg, err := NewAudioBinsMessage([]byte{10, 20, 30})
	if err != nil {
		t.Fatalf("NewAudioBinsMessage() error = %v", err)
	}
	_, bins, err = binsMsg.GetAudio()
	if err != nil {
		t.Fatalf("GetAudio() error = %v", err)
	}
	if len(bins) != 3 || bins[2] != 30 {
		t.Errorf("bins = %v, want [10 20 30]", bins)
	}

	empty, _ := NewMessage(TypeAudio, AudioData{})
	if _, _, err := empty.GetAudio(); err == nil {
		t.Error("expected error for audio message without payload")
	}

	bad := &Message{Type: TypeAudio, Data: json.RawMessage(`{"bins":"!!!"}`)}
	if _, _, err := bad.GetAudio(); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestLevelZeroIsPresent(t *testing.T) {
	msg := &Message{Type: TypeAudio, Data: json.RawMessage(`{"level":0}`)}
	level, bins, err := msg.GetAudio()
	if err != nil {
		t.Fatalf("GetAudio() error = %v", err)
	}
	if level != 0 || bins != nil {
		t.Errorf("GetAudio() = (%v, %v), want (0, nil)", level, bins)
	}
}

func TestTransformMessage(t *testing.T) {
	original := transform.WindowTransform{
		Width:      1000,
		Height:     750,
		Theta:      270,
		GazeStatus: transform.GazeMutual,
		IsSpeaking: true,
		Transcript: "hello",
	}

	msg, err := NewTransformMessage("3", original)
	if err != nil {
		t.Fatalf("NewTransformMessage() error = %v", err)
	}

	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(bytes, &wire); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	data := wire["data"].(map[string]interface{})
	if data["gazeStatus"] != "mutual gaze" {
		t.Errorf("gazeStatus = %v, want mutual gaze", data["gazeStatus"])
	}
	if wire["from"] != "3" {
		t.Errorf("from = %v, want 3", wire["from"])
	}

	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	got, err := parsed.GetTransform()
	if err != nil {
		t.Fatalf("GetTransform() error = %v", err)
	}
	if got != original {
		t.Errorf("GetTransform() = %+v, want %+v", got, original)
	}
}

func TestSignalMessage(t *testing.T) {
	msg, err := NewSignalMessage("1", "2", SignalData{Kind: "offer", SDP: "v=0"})
	if err != nil {
		t.Fatalf("NewSignalMessage() error = %v", err)
	}

	if msg.From != "1" || msg.To != "2" {
		t.Errorf("From/To = %s/%s, want 1/2", msg.From, msg.To)
	}

	sig, err := msg.GetSignal()
	if err != nil {
		t.Fatalf("GetSignal() error = %v", err)
	}
	if sig.Kind != "offer" || sig.SDP != "v=0" {
		t.Errorf("GetSignal() = %+v", sig)
	}
}

func TestPeerMessage(t *testing.T) {
	msg := NewPeerMessage(TypeLeave, "4")

	if msg.Type != TypeLeave || msg.From != "4" {
		t.Errorf("NewPeerMessage() = %+v", msg)
	}
	if msg.Data != nil {
		t.Error("expected no data")
	}
}
