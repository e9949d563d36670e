package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v4"
)

// State is the lifecycle stage of one peer connection.
type State string

const (
	StateNew      State = "NEW"
	StateOffered  State = "OFFERED"
	StateAnswered State = "ANSWERED"
	StateIncoming State = "INCOMING"
	StateOpen     State = "OPEN"
	StateClosed   State = "CLOSED"
)

var (
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrPeerExists       = errors.New("peer already exists")
	ErrUnexpectedSignal = errors.New("unexpected signal")
	ErrNotOpen          = errors.New("data channel not open")
	ErrManagerClosed    = errors.New("manager closed")
)

// Handlers receive connection events. They are called from transport
// goroutines and must not block.
type Handlers struct {
	OnSignal  func(peerID string, s Signal)
	OnMessage func(peerID string, data []byte)
	OnStatus  func(peerID string, connected bool)
}

// PeerInfo is a snapshot of one connection as reported by Peers.
type PeerInfo struct {
	ID    string
	State State
}

// Manager owns every WebRTC connection of the local player, keyed by peer
// id. All methods are safe for concurrent use.
type Manager struct {
	api  *webrtc.API
	opts managerOptions
	log  *slog.Logger
	h    Handlers

	mu     sync.Mutex
	peers  map[string]*conn
	closed bool
}

type conn struct {
	// signaling serializes offer/answer handling for one connection
	signaling sync.Mutex
	pc        *webrtc.PeerConnection

	// guarded by Manager.mu
	id    string
	dc    *webrtc.DataChannel
	state State
}

// NewManager returns an empty manager. Connections are created by
// CreateConnection or by an incoming offer passed to HandleSignal.
func NewManager(h Handlers, opts ...Option) *Manager {
	o := defaultManagerOptions()
	for _, opt := range opts {
		o = opt(o)
	}
	var api *webrtc.API
	if o.settings != nil {
		api = webrtc.NewAPI(webrtc.WithSettingEngine(*o.settings))
	} else {
		api = webrtc.NewAPI()
	}
	return &Manager{
		api:   api,
		opts:  o,
		log:   o.log.With("component", "network"),
		h:     h,
		peers: make(map[string]*conn),
	}
}

// CreateConnection starts an outgoing connection and emits its offer through
// OnSignal. An empty targetID is replaced by a fresh UUID, which the caller
// may later swap for the real peer id with RenamePeer.
func (m *Manager) CreateConnection(ctx context.Context, targetID string) (string, error) {
	if targetID == "" {
		targetID = uuid.NewString()
	}
	c, err := m.open(targetID, StateNew)
	if err != nil {
		return "", err
	}
	c.signaling.Lock()
	defer c.signaling.Unlock()

	dc, err := c.pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		m.drop(c)
		return "", err
	}
	m.bindChannel(c, dc)

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		m.drop(c)
		return "", err
	}
	if err := m.setLocal(ctx, c, offer); err != nil {
		m.drop(c)
		return "", err
	}
	m.setState(c, StateOffered)
	m.emitSignal(c)
	return targetID, nil
}

// HandleSignal applies a remote offer or answer for peerID.
func (m *Manager) HandleSignal(ctx context.Context, peerID string, s Signal) error {
	if err := s.validate(); err != nil {
		return err
	}
	if s.Type == SignalOffer {
		return m.acceptOffer(ctx, peerID, s)
	}
	return m.acceptAnswer(peerID, s)
}

func (m *Manager) acceptOffer(ctx context.Context, peerID string, s Signal) error {
	c := m.lookup(peerID)
	if c != nil && m.stateOf(c) == StateClosed {
		c = nil
	}
	created := c == nil
	if created {
		var err error
		if c, err = m.open(peerID, StateIncoming); err != nil {
			return err
		}
		c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != DataChannelLabel {
				m.log.Warn("ignoring data channel", "label", dc.Label(), "peer", m.idOf(c))
				return
			}
			m.bindChannel(c, dc)
		})
	}
	c.signaling.Lock()
	defer c.signaling.Unlock()

	if m.stateOf(c) == StateOffered {
		return fmt.Errorf("%w: offer from %s while our own offer is pending", ErrUnexpectedSignal, peerID)
	}
	if err := m.answer(ctx, c, s); err != nil {
		// a half-built incoming connection must not linger in the map
		if created {
			m.drop(c)
		}
		return err
	}
	m.emitSignal(c)
	return nil
}

func (m *Manager) answer(ctx context.Context, c *conn, s Signal) error {
	if err := c.pc.SetRemoteDescription(s.description()); err != nil {
		return err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	return m.setLocal(ctx, c, answer)
}

func (m *Manager) acceptAnswer(peerID string, s Signal) error {
	c := m.lookup(peerID)
	if c == nil {
		return fmt.Errorf("%w: answer for %s", ErrUnknownPeer, peerID)
	}
	c.signaling.Lock()
	defer c.signaling.Unlock()

	st := m.stateOf(c)
	if st == StateAnswered || st == StateOpen || c.pc.SignalingState() == webrtc.SignalingStateStable {
		m.log.Warn("connection already answered, ignoring duplicate answer", "peer", peerID, "state", st)
		return nil
	}
	if st != StateOffered {
		return fmt.Errorf("%w: answer for %s in state %s", ErrUnexpectedSignal, peerID, st)
	}
	if err := c.pc.SetRemoteDescription(s.description()); err != nil {
		return err
	}
	m.mu.Lock()
	if c.state == StateOffered {
		c.state = StateAnswered
	}
	m.mu.Unlock()
	return nil
}

// setLocal applies desc and waits for ICE gathering, bounded by the gather
// timeout.
func (m *Manager) setLocal(ctx context.Context, c *conn, desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(desc); err != nil {
		return err
	}
	timedOut, err := waitGathering(ctx, m.opts.clock, m.opts.gatherTimeout, gathered)
	if err != nil {
		return err
	}
	if timedOut {
		m.log.Warn("ICE gathering timed out, sending partial candidates", "peer", m.idOf(c), "timeout", m.opts.gatherTimeout)
	}
	return nil
}

func waitGathering(ctx context.Context, clock clockwork.Clock, timeout time.Duration, gathered <-chan struct{}) (timedOut bool, err error) {
	timer := clock.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-gathered:
		return false, nil
	case <-timer.Chan():
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *Manager) emitSignal(c *conn) {
	desc := c.pc.LocalDescription()
	if desc == nil || m.h.OnSignal == nil {
		return
	}
	m.h.OnSignal(m.idOf(c), signalFrom(desc))
}

func (m *Manager) open(id string, st State) (*conn, error) {
	pc, err := m.api.NewPeerConnection(webrtc.Configuration{ICEServers: m.opts.iceServers})
	if err != nil {
		return nil, err
	}
	c := &conn{id: id, pc: pc, state: st}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = pc.Close()
		return nil, ErrManagerClosed
	}
	if old, ok := m.peers[id]; ok && old.state != StateClosed {
		m.mu.Unlock()
		_ = pc.Close()
		return nil, fmt.Errorf("%w: %s", ErrPeerExists, id)
	}
	m.peers[id] = c
	m.mu.Unlock()

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.log.Debug("connection state", "peer", m.idOf(c), "state", s.String())
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			m.markClosed(c)
		}
	})
	return c, nil
}

func (m *Manager) bindChannel(c *conn, dc *webrtc.DataChannel) {
	m.mu.Lock()
	c.dc = dc
	m.mu.Unlock()

	dc.OnOpen(func() {
		m.setState(c, StateOpen)
		id := m.idOf(c)
		m.log.Info("data channel open", "peer", id)
		if m.h.OnStatus != nil {
			m.h.OnStatus(id, true)
		}
	})
	dc.OnClose(func() { m.markClosed(c) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if m.h.OnMessage != nil {
			m.h.OnMessage(m.idOf(c), msg.Data)
		}
	})
}

func (m *Manager) markClosed(c *conn) {
	m.mu.Lock()
	if c.state == StateClosed {
		m.mu.Unlock()
		return
	}
	c.state = StateClosed
	id := c.id
	m.mu.Unlock()

	m.log.Info("connection closed", "peer", id)
	if m.h.OnStatus != nil {
		m.h.OnStatus(id, false)
	}
}

func (m *Manager) drop(c *conn) {
	m.mu.Lock()
	if m.peers[c.id] == c {
		delete(m.peers, c.id)
	}
	c.state = StateClosed
	m.mu.Unlock()
	_ = c.pc.Close()
}

func (m *Manager) lookup(id string) *conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

func (m *Manager) idOf(c *conn) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return c.id
}

func (m *Manager) stateOf(c *conn) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return c.state
}

func (m *Manager) setState(c *conn, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.state != StateClosed {
		c.state = st
	}
}

// RenamePeer re-keys a connection. It refuses, with a warning, to overwrite
// an existing id.
func (m *Manager) RenamePeer(oldID, newID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.peers[oldID]
	if !ok {
		m.log.Warn("rename of unknown peer", "peer", oldID)
		return false
	}
	if _, exists := m.peers[newID]; exists {
		m.log.Warn("cannot rename peer, id already exists", "peer", oldID, "new", newID)
		return false
	}
	delete(m.peers, oldID)
	c.id = newID
	m.peers[newID] = c
	m.log.Info("renamed peer", "peer", oldID, "new", newID)
	return true
}

// Broadcast serializes msg once and sends it on every open channel. It
// returns how many peers it reached.
func (m *Manager) Broadcast(msg any) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	targets := make(map[string]*webrtc.DataChannel)
	for id, c := range m.peers {
		if c.state == StateOpen && c.dc != nil && c.dc.ReadyState() == webrtc.DataChannelStateOpen {
			targets[id] = c.dc
		}
	}
	m.mu.Unlock()

	sent := 0
	for id, dc := range targets {
		if err := dc.SendText(string(data)); err != nil {
			m.log.Warn("broadcast send failed", "peer", id, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Send delivers msg to one peer.
func (m *Manager) Send(peerID string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	c, ok := m.peers[peerID]
	var dc *webrtc.DataChannel
	if ok && c.state == StateOpen {
		dc = c.dc
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("%w: %s", ErrNotOpen, peerID)
	}
	return dc.SendText(string(data))
}

// State reports the lifecycle stage of peerID and whether it is known.
func (m *Manager) State(peerID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.peers[peerID]
	if !ok {
		return "", false
	}
	return c.state, true
}

// Peers lists connections ordered by id.
func (m *Manager) Peers() []PeerInfo {
	m.mu.Lock()
	out := make([]PeerInfo, 0, len(m.peers))
	for id, c := range m.peers {
		out = append(out, PeerInfo{ID: id, State: c.state})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close tears down every connection. The manager cannot be reused.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	conns := make([]*conn, 0, len(m.peers))
	for _, c := range m.peers {
		conns = append(conns, c)
	}
	m.peers = make(map[string]*conn)
	m.mu.Unlock()

	var errs []error
	for _, c := range conns {
		errs = append(errs, c.pc.Close())
	}
	return errors.Join(errs...)
}
