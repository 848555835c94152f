package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-gaze/internal/engine"
	"github.com/teslashibe/go-gaze/internal/orientation"
	"github.com/teslashibe/go-gaze/internal/protocol"
)

// IngestHub receives landmark frames, audio levels and transcripts from the
// browser capture page and toggles its speech capture
type IngestHub struct {
	*hub
	engine *engine.Engine

	messages atomic.Uint64
	invalid  atomic.Uint64
}

// NewIngestHub creates a capture ingest hub
func NewIngestHub(eng *engine.Engine, logger *slog.Logger) *IngestHub {
	return &IngestHub{
		hub:    newHub("ingest", logger),
		engine: eng,
	}
}

// StartListening asks every capture page to start speech-to-text
func (h *IngestHub) StartListening() {
	h.sendCapture(true)
}

// StopListening asks every capture page to stop speech-to-text
func (h *IngestHub) StopListening() {
	h.sendCapture(false)
}

func (h *IngestHub) sendCapture(listen bool) {
	msg, err := protocol.NewCaptureMessage(listen)
	if err != nil {
		return
	}
	h.broadcast(msg)
}

// UpgradeHandler returns the WebSocket upgrade handler
func (h *IngestHub) UpgradeHandler() fiber.Handler {
	return upgrade(h.handleConnection, "Connect via WebSocket to send landmarks and audio")
}

func (h *IngestHub) handleConnection(c *websocket.Conn) {
	cl := h.add(c)
	defer h.remove(c)

	ctx := context.Background()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			break
		}

		h.messages.Add(1)
		if err := h.handle(ctx, cl, data); err != nil {
			h.invalid.Add(1)
			h.logger.Debug("ingest message rejected", "error", err)
		}
	}
}

func (h *IngestHub) handle(ctx context.Context, cl *client, data []byte) error {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return err
	}

	switch msg.Type {
	case protocol.TypeLandmarks:
		frame, err := msg.GetLandmarks()
		if err != nil {
			return err
		}
		_, err = h.engine.HandleFrame(ctx, frame)
		if errors.Is(err, orientation.ErrUnavailable) || errors.Is(err, orientation.ErrTooFewLandmarks) {
			// skipped frames are counted by the engine
			return nil
		}
		return err

	case protocol.TypeAudio:
		level, bins, err := msg.GetAudio()
		if err != nil {
			return err
		}
		if bins != nil {
			h.engine.HandleBins(bins)
		} else {
			h.engine.HandleAudio(level)
		}

	case protocol.TypeTranscript:
		text, err := msg.GetTranscript()
		if err != nil {
			return err
		}
		h.engine.HandleTranscript(text)

	case protocol.TypePing:
		return cl.send(pong())
	}

	return nil
}

// Counts returns the number of received and rejected messages
func (h *IngestHub) Counts() (received, rejected uint64) {
	return h.messages.Load(), h.invalid.Load()
}

// Close shuts down the hub
func (h *IngestHub) Close() {
	h.closeAll()
}
