package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-gaze/internal/protocol"
	"github.com/teslashibe/go-gaze/internal/transform"
)

// MeshConfig configures the WebRTC data channel mesh
type MeshConfig struct {
	ParticipantID string
	ICEServers    []string // STUN/TURN URLs
	ChannelLabel  string
}

// DefaultMeshConfig returns sensible defaults
func DefaultMeshConfig() MeshConfig {
	return MeshConfig{
		ParticipantID: "1",
		ICEServers:    []string{"stun:stun.l.google.com:19302"},
		ChannelLabel:  "gaze",
	}
}

// signaller carries signalling messages between mesh members
type signaller interface {
	Connect(ctx context.Context) error
	Connected() bool
	SendSignal(to string, sig protocol.SignalData) error
	SendTransform(ctx context.Context, t transform.WindowTransform) error
	SendTransformTo(ctx context.Context, to string, t transform.WindowTransform) error
	Peers() []string
	Close() error
}

// Mesh keeps one data channel per remote participant. Connections are
// negotiated over the relay; of every pair, the participant with the lower
// ID makes the offer. Transforms go over open data channels; every other
// known participant gets them through the relay.
type Mesh struct {
	cfg     MeshConfig
	sig     signaller
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	peers  map[string]*meshPeer
	early  map[string][]webrtc.ICECandidateInit // candidates received before the offer
	closed bool

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
}

type meshPeer struct {
	id        string
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// NewMesh creates a mesh signalled over relay. The relay's signalling hooks
// are taken over by the mesh.
func NewMesh(cfg MeshConfig, relay *Relay, handler Handler, logger *slog.Logger) *Mesh {
	m := newMesh(cfg, relay, handler, logger)

	relay.mu.Lock()
	relay.onHello = m.handleHello
	relay.onSignal = m.handleSignal
	relay.onLeave = m.handleLeave
	relay.mu.Unlock()

	return m
}

func newMesh(cfg MeshConfig, sig signaller, handler Handler, logger *slog.Logger) *Mesh {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChannelLabel == "" {
		cfg.ChannelLabel = "gaze"
	}

	return &Mesh{
		cfg:     cfg,
		sig:     sig,
		handler: handler,
		logger:  logger,
		peers:   make(map[string]*meshPeer),
		early:   make(map[string][]webrtc.ICECandidateInit),
	}
}

// Name returns the transport name
func (m *Mesh) Name() string {
	return TransportWebRTC
}

// Connect connects the signalling relay
func (m *Mesh) Connect(ctx context.Context) error {
	return m.sig.Connect(ctx)
}

func (m *Mesh) configuration() webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(m.cfg.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: m.cfg.ICEServers}}
	}
	return cfg
}

// handleHello offers a connection to a newly seen participant with a higher ID
func (m *Mesh) handleHello(from string) {
	if from == "" || from == m.cfg.ParticipantID || m.cfg.ParticipantID > from {
		return
	}

	m.mu.Lock()
	_, exists := m.peers[from]
	closed := m.closed
	m.mu.Unlock()
	if exists || closed {
		return
	}

	if err := m.offer(from); err != nil {
		m.logger.Warn("webrtc offer failed", "peer", from, "error", err)
		m.dropPeer(from)
	}
}

func (m *Mesh) offer(id string) error {
	p, err := m.newPeer(id)
	if err != nil {
		return err
	}

	dc, err := p.pc.CreateDataChannel(m.cfg.ChannelLabel, nil)
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	m.bindChannel(p, dc)

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	m.logger.Debug("sending webrtc offer", "peer", id)
	return m.sig.SendSignal(id, protocol.SignalData{Kind: protocol.SignalOffer, SDP: offer.SDP})
}

func (m *Mesh) newPeer(id string) (*meshPeer, error) {
	pc, err := webrtc.NewPeerConnection(m.configuration())
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	p := &meshPeer{id: id, pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		cand := c.ToJSON()
		m.sig.SendSignal(id, protocol.SignalData{
			Kind:          protocol.SignalCandidate,
			Candidate:     cand.Candidate,
			SDPMid:        cand.SDPMid,
			SDPMLineIndex: cand.SDPMLineIndex,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.logger.Debug("webrtc connection state changed", "peer", id, "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			m.mu.Lock()
			current := m.peers[id] == p
			m.mu.Unlock()
			if current {
				m.dropPeer(id)
			}
		}
	})

	m.mu.Lock()
	if old, ok := m.peers[id]; ok {
		old.pc.Close()
	}
	m.peers[id] = p
	m.mu.Unlock()

	return p, nil
}

func (m *Mesh) bindChannel(p *meshPeer, dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		m.mu.Lock()
		p.dc = dc
		m.mu.Unlock()
		m.logger.Info("webrtc data channel open", "peer", p.id)
	})

	dc.OnClose(func() {
		m.mu.Lock()
		if p.dc == dc {
			p.dc = nil
		}
		m.mu.Unlock()
		m.logger.Debug("webrtc data channel closed", "peer", p.id)
	})

	dc.OnMessage(func(raw webrtc.DataChannelMessage) {
		m.messagesReceived.Add(1)

		msg, err := protocol.ParseMessage(raw.Data)
		if err != nil {
			m.logger.Debug("invalid data channel message", "peer", p.id, "error", err)
			return
		}
		if msg.Type != protocol.TypeTransform {
			return
		}
		t, err := msg.GetTransform()
		if err != nil {
			return
		}
		if m.handler != nil {
			m.handler.UpdateRemote(p.id, t)
		}
	})
}

func (m *Mesh) handleSignal(from string, sig protocol.SignalData) {
	var err error

	switch sig.Kind {
	case protocol.SignalOffer:
		err = m.answer(from, sig.SDP)
	case protocol.SignalAnswer:
		err = m.acceptAnswer(from, sig.SDP)
	case protocol.SignalCandidate:
		err = m.addCandidate(from, webrtc.ICECandidateInit{
			Candidate:     sig.Candidate,
			SDPMid:        sig.SDPMid,
			SDPMLineIndex: sig.SDPMLineIndex,
		})
	default:
		err = fmt.Errorf("unknown signal kind %q", sig.Kind)
	}

	if err != nil {
		m.logger.Warn("webrtc signalling failed", "peer", from, "kind", sig.Kind, "error", err)
	}
}

func (m *Mesh) answer(from, sdp string) error {
	p, err := m.newPeer(from)
	if err != nil {
		return err
	}

	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		m.bindChannel(p, dc)
	})

	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	m.mu.Lock()
	p.pending = append(p.pending, m.early[from]...)
	delete(m.early, from)
	m.mu.Unlock()
	m.flushCandidates(p)

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	m.logger.Debug("sending webrtc answer", "peer", from)
	return m.sig.SendSignal(from, protocol.SignalData{Kind: protocol.SignalAnswer, SDP: answer.SDP})
}

func (m *Mesh) acceptAnswer(from, sdp string) error {
	m.mu.Lock()
	p, ok := m.peers[from]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("answer from unknown peer")
	}

	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	m.flushCandidates(p)
	return nil
}

func (m *Mesh) addCandidate(from string, c webrtc.ICECandidateInit) error {
	m.mu.Lock()
	p, ok := m.peers[from]
	if !ok {
		m.early[from] = append(m.early[from], c)
		m.mu.Unlock()
		return nil
	}
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	return p.pc.AddICECandidate(c)
}

// flushCandidates marks the remote description as set and applies queued candidates
func (m *Mesh) flushCandidates(p *meshPeer) {
	m.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	m.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			m.logger.Debug("add ice candidate failed", "peer", p.id, "error", err)
		}
	}
}

func (m *Mesh) handleLeave(from string) {
	m.dropPeer(from)
}

func (m *Mesh) dropPeer(id string) {
	m.mu.Lock()
	p, ok := m.peers[id]
	delete(m.peers, id)
	delete(m.early, id)
	m.mu.Unlock()

	if ok {
		p.pc.Close()
	}
}

// SendTransform sends t over every open data channel and through the relay to
// every known participant without one. With no channel open it is a single
// relay broadcast.
func (m *Mesh) SendTransform(ctx context.Context, t transform.WindowTransform) error {
	m.mu.Lock()
	channels := make(map[string]*webrtc.DataChannel, len(m.peers))
	known := make([]string, 0, len(m.peers))
	for id, p := range m.peers {
		known = append(known, id)
		if p.dc != nil && p.dc.ReadyState() == webrtc.DataChannelStateOpen {
			channels[id] = p.dc
		}
	}
	m.mu.Unlock()

	if len(channels) == 0 {
		return m.sig.SendTransform(ctx, t)
	}

	msg, err := protocol.NewTransformMessage(m.cfg.ParticipantID, t)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	var errs []error
	for id, dc := range channels {
		if err := dc.SendText(string(data)); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", id, err))
			continue
		}
		m.messagesSent.Add(1)
	}

	for _, id := range relayTargets(m.cfg.ParticipantID, channels, known, m.sig.Peers()) {
		if err := m.sig.SendTransformTo(ctx, id, t); err != nil {
			errs = append(errs, fmt.Errorf("relay %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// relayTargets returns the participants, sorted, that have no open data
// channel and so must be reached through the relay
func relayTargets(self string, open map[string]*webrtc.DataChannel, lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ids := range lists {
		for _, id := range ids {
			if id == "" || id == self || seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := open[id]; !ok {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Connected reports whether signalling is up or any data channel is open
func (m *Mesh) Connected() bool {
	if m.sig.Connected() {
		return true
	}
	return len(m.Peers()) > 0
}

// Peers returns the participants with an open data channel, sorted
func (m *Mesh) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.peers))
	for id, p := range m.peers {
		if p.dc != nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Close closes every peer connection and the signalling relay
func (m *Mesh) Close() error {
	m.mu.Lock()
	m.closed = true
	peers := m.peers
	m.peers = make(map[string]*meshPeer)
	m.mu.Unlock()

	for _, p := range peers {
		p.pc.Close()
	}
	return m.sig.Close()
}

// GetStats returns mesh statistics
func (m *Mesh) GetStats() Stats {
	return Stats{
		Transport:        TransportWebRTC,
		Connected:        m.Connected(),
		Peers:            m.Peers(),
		MessagesSent:     m.messagesSent.Load(),
		MessagesReceived: m.messagesReceived.Load(),
	}
}
