package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-gaze/internal/engine"
	"github.com/teslashibe/go-gaze/internal/protocol"
)

// StreamHub pushes local and remote window transforms to render clients
type StreamHub struct {
	*hub
	engine *engine.Engine

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreamHub creates a render stream hub
func NewStreamHub(eng *engine.Engine, logger *slog.Logger) *StreamHub {
	return &StreamHub{
		hub:    newHub("stream", logger),
		engine: eng,
		done:   make(chan struct{}),
	}
}

// Run forwards engine updates to all clients until ctx is done
func (h *StreamHub) Run(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	defer close(h.done)

	updates := h.engine.Subscribe()
	defer h.engine.Unsubscribe(updates)

	h.logger.Info("stream hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream hub stopped")
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if msg := updateMessage(u); msg != nil {
				h.broadcast(msg)
			}
		}
	}
}

func updateMessage(u engine.Update) *protocol.Message {
	switch {
	case u.Left:
		return protocol.NewPeerMessage(protocol.TypeLeave, u.From)
	case u.Local:
		msg, err := protocol.NewTransformMessage(u.From, u.Transform)
		if err != nil {
			return nil
		}
		return msg
	default:
		msg, err := protocol.NewRemoteMessage(u.From, u.Transform)
		if err != nil {
			return nil
		}
		return msg
	}
}

// UpgradeHandler returns the WebSocket upgrade handler
func (h *StreamHub) UpgradeHandler() fiber.Handler {
	return upgrade(h.handleConnection, "Connect via WebSocket to receive window transforms")
}

func (h *StreamHub) handleConnection(c *websocket.Conn) {
	cl := h.add(c)
	defer h.remove(c)

	// Late joiners get the current state first
	if msg, err := protocol.NewTransformMessage(h.engine.ParticipantID(), h.engine.Latest()); err == nil {
		cl.send(msg)
	}
	for _, r := range h.engine.Remotes() {
		if msg, err := protocol.NewRemoteMessage(r.ID, r.Transform); err == nil {
			cl.send(msg)
		}
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			break
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		if msg.Type == protocol.TypePing {
			cl.send(pong())
		}
	}
}

// Close shuts down the hub
func (h *StreamHub) Close() {
	if h.cancel != nil {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(time.Second):
		}
	}
	h.closeAll()
}
