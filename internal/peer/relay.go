package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/internal/protocol"
	"github.com/teslashibe/go-gaze/internal/transform"
)

// RelayConfig holds relay client configuration
type RelayConfig struct {
	URL              string        // WebSocket URL of the room relay
	ParticipantID    string        // Local participant, sent as "from"
	ReconnectBackoff time.Duration // Initial reconnect delay
	MaxBackoff       time.Duration // Maximum reconnect delay
	PingInterval     time.Duration // Ping interval for keepalive
	WriteTimeout     time.Duration // Write timeout
}

// DefaultRelayConfig returns sensible defaults
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:              "ws://localhost:9000/room/default",
		ParticipantID:    "1",
		ReconnectBackoff: 1 * time.Second,
		MaxBackoff:       30 * time.Second,
		PingInterval:     10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Relay exchanges protocol messages with remote participants through a
// broadcasting WebSocket relay
type Relay struct {
	cfg     RelayConfig
	handler Handler
	logger  *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
	peers     map[string]time.Time

	// gorilla connections support one concurrent writer
	writeMu sync.Mutex

	// Signalling hooks used by the data channel mesh
	onHello  func(from string)
	onSignal func(from string, sig protocol.SignalData)
	onLeave  func(from string)

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	reconnects       atomic.Uint64
}

// NewRelay creates a relay client. handler may be nil.
func NewRelay(cfg RelayConfig, handler Handler, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = DefaultRelayConfig().ReconnectBackoff
	}
	if cfg.MaxBackoff < cfg.ReconnectBackoff {
		cfg.MaxBackoff = cfg.ReconnectBackoff
	}

	return &Relay{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		peers:   make(map[string]time.Time),
	}
}

// Name returns the transport name
func (r *Relay) Name() string {
	return TransportRelay
}

// Connect starts the connection loop in the background
func (r *Relay) Connect(ctx context.Context) error {
	if r.cfg.URL == "" {
		return fmt.Errorf("relay url is empty")
	}

	ctx, r.cancel = context.WithCancel(ctx)

	go r.connectionLoop(ctx)
	return nil
}

// connectionLoop manages the connection with auto-reconnect
func (r *Relay) connectionLoop(ctx context.Context) {
	backoff := r.cfg.ReconnectBackoff

	for {
		select {
		case <-ctx.Done():
			r.closeConnection()
			return
		default:
		}

		if err := r.connect(ctx); err != nil {
			r.logger.Warn("relay connection failed",
				"error", err,
				"retry_in", backoff,
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}

			backoff *= 2
			if backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
			r.reconnects.Add(1)
			continue
		}

		backoff = r.cfg.ReconnectBackoff

		r.readLoop(ctx)
	}
}

func (r *Relay) connect(ctx context.Context) error {
	r.logger.Info("connecting to relay", "url", r.cfg.URL)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.connected = true
	r.mu.Unlock()

	r.logger.Info("connected to relay", "participant", r.cfg.ParticipantID)

	if err := r.SendMessage(protocol.NewPeerMessage(protocol.TypeHello, r.cfg.ParticipantID)); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	go r.pingLoop(ctx, conn)

	return nil
}

func (r *Relay) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if r.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			current := r.conn
			r.mu.Unlock()
			if current != conn {
				return
			}

			r.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			r.writeMu.Unlock()
			if err != nil {
				r.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (r *Relay) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()

		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("relay read error", "error", err)
			}
			r.closeConnection()
			return
		}

		r.messagesReceived.Add(1)
		r.handleMessage(data)
	}
}

func (r *Relay) handleMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		r.logger.Warn("parse message error", "error", err)
		return
	}

	if msg.From == r.cfg.ParticipantID {
		return
	}
	if msg.To != "" && msg.To != r.cfg.ParticipantID {
		return
	}

	r.mu.Lock()
	onHello := r.onHello
	onSignal := r.onSignal
	onLeave := r.onLeave
	r.mu.Unlock()

	switch msg.Type {
	case protocol.TypeHello:
		if msg.From == "" {
			return
		}
		if isNew := r.touchPeer(msg.From); isNew && msg.To == "" {
			// introduce ourselves to the newcomer only
			reply := protocol.NewPeerMessage(protocol.TypeHello, r.cfg.ParticipantID)
			reply.To = msg.From
			r.SendMessage(reply)
		}
		if onHello != nil {
			onHello(msg.From)
		}

	case protocol.TypeTransform:
		if msg.From == "" {
			return
		}
		t, err := msg.GetTransform()
		if err != nil {
			r.logger.Debug("invalid transform", "from", msg.From, "error", err)
			return
		}
		r.touchPeer(msg.From)
		if r.handler != nil {
			r.handler.UpdateRemote(msg.From, t)
		}

	case protocol.TypeLeave:
		r.mu.Lock()
		delete(r.peers, msg.From)
		r.mu.Unlock()
		if r.handler != nil {
			r.handler.RemoveRemote(msg.From)
		}
		if onLeave != nil {
			onLeave(msg.From)
		}

	case protocol.TypeSignal:
		if onSignal == nil || msg.To != r.cfg.ParticipantID {
			return
		}
		sig, err := msg.GetSignal()
		if err != nil {
			r.logger.Debug("invalid signal", "from", msg.From, "error", err)
			return
		}
		onSignal(msg.From, *sig)

	case protocol.TypePing:
		pong := &protocol.Message{Type: protocol.TypePong, From: r.cfg.ParticipantID, Timestamp: time.Now().UnixMilli()}
		r.SendMessage(pong)
	}
}

// touchPeer records activity of a peer and reports whether it was unknown
func (r *Relay) touchPeer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, known := r.peers[id]
	r.peers[id] = time.Now()
	return !known
}

// SendMessage sends a message to the relay, stamping it with the local participant
func (r *Relay) SendMessage(msg *protocol.Message) error {
	r.mu.Lock()
	conn := r.conn
	connected := r.connected
	r.mu.Unlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	if msg.From == "" {
		msg.From = r.cfg.ParticipantID
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	r.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	r.writeMu.Unlock()
	if err != nil {
		r.logger.Warn("send error", "error", err)
		r.closeConnection()
		return fmt.Errorf("write: %w", err)
	}

	r.messagesSent.Add(1)
	return nil
}

// SendTransform broadcasts the local transform to all participants
func (r *Relay) SendTransform(_ context.Context, t transform.WindowTransform) error {
	msg, err := protocol.NewTransformMessage(r.cfg.ParticipantID, t)
	if err != nil {
		return err
	}
	return r.SendMessage(msg)
}

// SendTransformTo sends the local transform to a single participant
func (r *Relay) SendTransformTo(_ context.Context, to string, t transform.WindowTransform) error {
	msg, err := protocol.NewTransformMessage(r.cfg.ParticipantID, t)
	if err != nil {
		return err
	}
	msg.To = to
	return r.SendMessage(msg)
}

// SendSignal sends WebRTC signalling data to a single peer
func (r *Relay) SendSignal(to string, sig protocol.SignalData) error {
	msg, err := protocol.NewSignalMessage(r.cfg.ParticipantID, to, sig)
	if err != nil {
		return err
	}
	return r.SendMessage(msg)
}

func (r *Relay) closeConnection() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connected = false
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// Close announces departure and shuts down the client
func (r *Relay) Close() error {
	if r.Connected() {
		r.SendMessage(protocol.NewPeerMessage(protocol.TypeLeave, r.cfg.ParticipantID))
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.closeConnection()
	return nil
}

// Connected returns connection status
func (r *Relay) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Peers returns the IDs of participants seen on the relay, sorted
func (r *Relay) Peers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GetStats returns relay statistics
func (r *Relay) GetStats() Stats {
	return Stats{
		Transport:        TransportRelay,
		Connected:        r.Connected(),
		Peers:            r.Peers(),
		MessagesSent:     r.messagesSent.Load(),
		MessagesReceived: r.messagesReceived.Load(),
		Reconnects:       r.reconnects.Load(),
	}
}
