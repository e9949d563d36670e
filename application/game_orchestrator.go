package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/commitment"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/communication"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/domain/rps"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/identity"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/ledger"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/network"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/zk"
)

var (
	ErrClosed          = errors.New("orchestrator closed")
	ErrOwnSignal       = errors.New("cannot accept your own signal")
	ErrProofInProgress = errors.New("proof generation already running")
	// ErrRenameRefused means the pending connection could not take the
	// answering peer's id; its envelopes would never match the channel.
	ErrRenameRefused = errors.New("cannot move pending connection to the answering peer id")
)

type GameOrchestrator struct {
	cfg      Config
	log      *slog.Logger
	id       *identity.Identity
	selfID   string
	keyField *big.Int

	net      *network.Manager
	ledger   *ledger.Blockchain
	prover   Prover
	verifier Verifier

	inbox     chan func()
	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// owned by the event loop
	sm       *rps.StateMachine
	nonces   *commitment.NonceSource
	pending  string
	proving  bool
	resolved bool
}

// NewGameOrchestrator creates a fresh identity and starts the event loop.
// Extra network options are applied after the ones derived from cfg.
func NewGameOrchestrator(cfg Config, prover Prover, verifier Verifier, opts ...network.Option) (*GameOrchestrator, error) {
	id, err := identity.Generate()
	if err != nil {
		return nil, err
	}
	field, err := commitment.FieldFromPublicKey(id.PublicKey())
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	selfID := uuid.NewString()
	g := &GameOrchestrator{
		cfg:      cfg,
		log:      log.With("self", selfID),
		id:       id,
		selfID:   selfID,
		keyField: field,
		ledger:   ledger.NewBlockchain(),
		prover:   prover,
		verifier: verifier,
		inbox:    make(chan func(), 64),
		events:   make(chan Event, cfg.EventBuffer),
		done:     make(chan struct{}),
		sm:       rps.NewStateMachine(),
		nonces:   commitment.NewNonceSource(),
	}
	netOpts := []network.Option{
		network.WithLogger(g.log),
		network.WithICEServers(cfg.ICEServers...),
	}
	if cfg.GatherTimeout > 0 {
		netOpts = append(netOpts, network.WithGatherTimeout(cfg.GatherTimeout))
	}
	g.net = network.NewManager(network.Handlers{
		OnSignal:  g.onSignal,
		OnMessage: g.onMessage,
		OnStatus:  g.onStatus,
	}, append(netOpts, opts...)...)

	g.wg.Add(1)
	go g.run()
	return g, nil
}

func (g *GameOrchestrator) SelfID() string {
	return g.selfID
}

func (g *GameOrchestrator) Events() <-chan Event {
	return g.events
}

func (g *GameOrchestrator) Ledger() *ledger.Blockchain {
	return g.ledger
}

func (g *GameOrchestrator) run() {
	defer g.wg.Done()
	for {
		select {
		case f := <-g.inbox:
			f()
		case <-g.done:
			return
		}
	}
}

func (g *GameOrchestrator) post(f func()) bool {
	select {
	case g.inbox <- f:
		return true
	case <-g.done:
		return false
	}
}

// call runs f on the event loop and waits for it.
func (g *GameOrchestrator) call(ctx context.Context, f func() error) error {
	res := make(chan error, 1)
	if !g.post(func() { res <- f() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrClosed
	}
}

func (g *GameOrchestrator) emit(e Event) {
	if e.Round == 0 {
		e.Round = g.sm.Round()
	}
	select {
	case g.events <- e:
	default:
		g.log.Warn("event dropped, consumer too slow", "kind", e.Kind)
	}
}

func (g *GameOrchestrator) alert(peer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	g.log.Warn(msg, "peer", peer)
	g.emit(Event{Kind: EventAlert, Peer: peer, Message: msg})
}

// State returns a snapshot taken on the event loop.
func (g *GameOrchestrator) State(ctx context.Context) (View, error) {
	var v View
	err := g.call(ctx, func() error {
		v = View{
			SelfID:    g.selfID,
			PublicKey: g.id.PublicKeyHex(),
			Round:     g.sm.Round(),
			Self:      g.sm.Self(),
			Peers:     g.sm.Peers(),
		}
		return nil
	})
	return v, err
}

// CreateOffer opens a connection under a temporary id. The offer blob is
// delivered as an EventSignal once ICE gathering ends.
func (g *GameOrchestrator) CreateOffer(ctx context.Context) (string, error) {
	id, err := g.net.CreateConnection(ctx, "")
	if err != nil {
		return "", err
	}
	err = g.call(ctx, func() error {
		g.pending = id
		g.sm.AddPeer(id)
		g.emit(Event{Kind: EventPeerUpdate, Peer: id, Message: "connecting"})
		return nil
	})
	return id, err
}

// AcceptSignal applies a blob pasted by the user: an offer is answered, an
// answer completes the pending connection, replacing its temporary id with
// the sender's real id.
func (g *GameOrchestrator) AcceptSignal(ctx context.Context, blob string) error {
	b, err := network.DecodeBlob(blob)
	if err != nil {
		return err
	}
	if b.SenderID == g.selfID {
		return ErrOwnSignal
	}
	if b.Signal.Type == network.SignalOffer {
		if err := g.call(ctx, func() error {
			g.sm.AddPeer(b.SenderID)
			g.emit(Event{Kind: EventPeerUpdate, Peer: b.SenderID, Message: "offer accepted"})
			return nil
		}); err != nil {
			return err
		}
		return g.net.HandleSignal(ctx, b.SenderID, b.Signal)
	}

	err = g.call(ctx, func() error {
		temp := g.pending
		_, known := g.sm.Peer(b.SenderID)
		if temp == "" || temp == b.SenderID || known {
			return nil
		}
		// rename before the answer lands so the channel opens under the real id
		if !g.net.RenamePeer(temp, b.SenderID) {
			return fmt.Errorf("%w: %s -> %s", ErrRenameRefused, temp, b.SenderID)
		}
		if err := g.sm.RenamePeer(temp, b.SenderID); err != nil {
			g.sm.RemovePeer(temp)
			g.sm.AddPeer(b.SenderID)
		}
		g.pending = ""
		g.log.Info("replaced temporary id", "peer", temp, "new", b.SenderID)
		g.emit(Event{Kind: EventPeerUpdate, Peer: b.SenderID, Message: "renamed from " + temp})
		return nil
	})
	if err != nil {
		return err
	}
	return g.net.HandleSignal(ctx, b.SenderID, b.Signal)
}

func (g *GameOrchestrator) onSignal(peer string, s network.Signal) {
	blob, err := network.EncodeBlob(network.Blob{Target: peer, SenderID: g.selfID, Signal: s})
	g.post(func() {
		if err != nil {
			g.alert(peer, "encode signal: %v", err)
			return
		}
		g.emit(Event{Kind: EventSignal, Peer: peer, Blob: blob, Message: string(s.Type)})
	})
}

func (g *GameOrchestrator) onStatus(peer string, connected bool) {
	g.post(func() {
		g.sm.SetConnected(peer, connected)
		msg := "disconnected"
		if connected {
			msg = "connected"
			env := communication.New(g.cfg.RoomID, g.sm.Round(), g.selfID, &communication.JoinPayload{Description: g.cfg.Description})
			g.sendTo(peer, env)
		}
		g.emit(Event{Kind: EventPeerUpdate, Peer: peer, Message: msg})
	})
}

// onMessage authenticates outside the loop; only verified envelopes are
// posted.
func (g *GameOrchestrator) onMessage(peer string, data []byte) {
	env, err := communication.Decode(data)
	if err != nil {
		g.log.Warn("dropping envelope", "peer", peer, "err", err)
		return
	}
	g.post(func() { g.handleEnvelope(peer, env) })
}

func (g *GameOrchestrator) handleEnvelope(peer string, env *communication.Envelope) {
	log := g.log.With("peer", peer, "type", env.Type, "round", env.Round)
	if env.SenderID != peer {
		log.Warn("dropping envelope, sender does not match channel", "sender", env.SenderID)
		return
	}
	if env.RoomID != g.cfg.RoomID {
		log.Warn("dropping envelope for another room", "room", env.RoomID)
		return
	}
	g.sm.AddPeer(peer)
	if err := g.sm.PinKey(peer, env.SenderPublicKey); err != nil {
		g.alert(peer, "dropping envelope: %v", err)
		return
	}
	if err := g.ledger.Append(ledger.Received, peer, env); err != nil {
		log.Warn("ledger append failed", "err", err)
	}

	switch p := env.Payload.(type) {
	case *communication.JoinPayload:
		_ = g.sm.SetDescription(peer, p.Description)
		g.emit(Event{Kind: EventPeerUpdate, Peer: peer, Message: "joined as " + p.Description})
	case *communication.SignalPayload:
		log.Debug("in-band signal ignored", "target", p.Target)
	case *communication.HandCommitPayload:
		if env.Round != g.sm.Round() {
			log.Warn("dropping commit for another round", "current", g.sm.Round())
			return
		}
		if err := g.sm.RecordCommit(peer, p.HandCommit); err != nil {
			g.alert(peer, "commit rejected: %v", err)
			return
		}
		g.emit(Event{Kind: EventPeerUpdate, Peer: peer, Message: "committed"})
	case *communication.HandProofPayload:
		if env.Round != g.sm.Round() {
			log.Warn("dropping proof for another round", "current", g.sm.Round())
			return
		}
		g.checkProof(peer, p)
	case *communication.NextRoundPayload:
		if env.Round != g.sm.Round() {
			log.Debug("ignoring next round for a finished round", "current", g.sm.Round())
			return
		}
		g.advance(true)
	default:
		log.Warn("unhandled payload")
	}
}

func (g *GameOrchestrator) checkProof(peer string, p *communication.HandProofPayload) {
	state, _ := g.sm.Peer(peer)
	keyField, err := peerKeyField(state.PublicKey)
	if err != nil {
		g.alert(peer, "proof rejected: %v", err)
		return
	}
	round := g.sm.Round()
	if err := rps.CheckPublicSignals(p.PublicSignals, keyField, round, state.Commitment); err != nil {
		g.alert(peer, "proof rejected: %v", err)
		return
	}
	move := rps.Move(p.Hand)
	if state.IsVerified {
		// the proof already checked out this round; only the move may not change
		if err := g.sm.RecordReveal(peer, move); err != nil {
			g.alert(peer, "reveal rejected: %v", err)
			return
		}
		g.log.Debug("duplicate proof ignored", "peer", peer, "round", round)
		return
	}
	proof := &zk.Proof{Proof: p.Proof, PublicSignals: p.PublicSignals}
	g.emit(Event{Kind: EventProofStatus, Peer: peer, Message: "verifying proof"})
	go func() {
		ok := g.verifier.Verify(proof)
		g.post(func() {
			if g.sm.Round() != round {
				g.log.Debug("discarding stale verification", "peer", peer, "round", round)
				return
			}
			if !ok {
				g.alert(peer, "proof verification failed")
				return
			}
			prev, _ := g.sm.Peer(peer)
			if err := g.sm.RecordReveal(peer, move); err != nil {
				g.alert(peer, "reveal rejected: %v", err)
				return
			}
			if prev.IsVerified {
				return
			}
			g.emit(Event{Kind: EventProofStatus, Peer: peer, Message: "proof verified"})
			g.tryResolve()
		})
	}()
}

func peerKeyField(publicKeyHex string) (string, error) {
	raw, err := identity.DecodePublicKey(publicKeyHex)
	if err != nil {
		return "", err
	}
	f, err := commitment.FieldFromPublicKey(raw)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// Commit commits to m for the current round and broadcasts the commitment.
func (g *GameOrchestrator) Commit(ctx context.Context, m rps.Move) error {
	return g.call(ctx, func() error {
		if !m.Valid() {
			return fmt.Errorf("%w: %d", rps.ErrInvalidMove, m)
		}
		if g.sm.Self().Commitment != "" {
			return rps.ErrAlreadyCommitted
		}
		round := g.sm.Round()
		nonce, err := g.nonces.Next(round)
		if err != nil {
			return err
		}
		c, err := commitment.Commit(uint8(m), nonce, g.keyField, round)
		if err != nil {
			return err
		}
		if err := g.sm.CommitSelf(m, nonce, c); err != nil {
			return err
		}
		env := communication.New(g.cfg.RoomID, round, g.selfID, &communication.HandCommitPayload{HandCommit: c})
		g.broadcast(env)
		g.emit(Event{Kind: EventPeerUpdate, Peer: g.selfID, Message: "committed"})
		return nil
	})
}

// Reveal starts proof generation in the background. The proof is broadcast
// when ready; failures are reported as EventProofStatus.
func (g *GameOrchestrator) Reveal(ctx context.Context) error {
	return g.call(ctx, func() error {
		if g.proving {
			return ErrProofInProgress
		}
		if !g.sm.CanReveal() {
			return rps.ErrNotReady
		}
		self := g.sm.Self()
		round := g.sm.Round()
		in := zk.Inputs{
			Move:           uint8(*self.Move),
			Nonce:          self.Nonce,
			PublicKeyField: g.keyField,
			Round:          round,
			Commitment:     self.Commitment,
		}
		g.proving = true
		g.emit(Event{Kind: EventProofStatus, Peer: g.selfID, Message: "generating proof"})
		go g.prove(in, *self.Move)
		return nil
	})
}

func (g *GameOrchestrator) prove(in zk.Inputs, m rps.Move) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-g.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	proof, err := g.prover.Prove(ctx, in)
	g.post(func() {
		if g.sm.Round() != in.Round {
			g.log.Info("discarding proof for a finished round", "round", in.Round)
			return
		}
		g.proving = false
		if err != nil {
			g.log.Error("proof generation failed", "err", err)
			g.emit(Event{Kind: EventProofStatus, Peer: g.selfID, Message: "proof generation failed: " + err.Error()})
			return
		}
		env := communication.New(g.cfg.RoomID, in.Round, g.selfID, &communication.HandProofPayload{
			Proof:         proof.Proof,
			PublicSignals: proof.PublicSignals,
			Hand:          uint8(m),
		})
		g.broadcast(env)
		_ = g.sm.MarkSelfRevealed()
		g.emit(Event{Kind: EventProofStatus, Peer: g.selfID, Message: "proof sent"})
		g.tryResolve()
	})
}

func (g *GameOrchestrator) tryResolve() {
	if g.resolved {
		return
	}
	res, ok := g.sm.Resolve()
	if !ok {
		return
	}
	g.resolved = true
	g.emit(Event{Kind: EventResult, Peer: res.Opponent, Result: &res, Message: res.Outcome.String()})
}

// NextRound advances locally and tells the peers.
func (g *GameOrchestrator) NextRound(ctx context.Context) error {
	return g.call(ctx, func() error {
		g.advance(false)
		return nil
	})
}

func (g *GameOrchestrator) advance(remote bool) {
	finished := g.sm.Round()
	round := g.sm.AdvanceRound()
	g.proving = false
	g.resolved = false
	if !remote {
		g.broadcast(communication.New(g.cfg.RoomID, finished, g.selfID, &communication.NextRoundPayload{}))
	}
	g.emit(Event{Kind: EventRoundAdvanced, Round: round, Message: fmt.Sprintf("round %d", round)})
}

func (g *GameOrchestrator) sign(env *communication.Envelope) bool {
	if err := env.Sign(g.id); err != nil {
		g.log.Error("sign envelope", "type", env.Type, "err", err)
		return false
	}
	return true
}

func (g *GameOrchestrator) broadcast(env *communication.Envelope) {
	if !g.sign(env) {
		return
	}
	n, err := g.net.Broadcast(env)
	if err != nil {
		g.log.Error("broadcast", "type", env.Type, "err", err)
		return
	}
	if err := g.ledger.Append(ledger.Sent, "", env); err != nil {
		g.log.Warn("ledger append failed", "err", err)
	}
	g.log.Debug("broadcast", "type", env.Type, "round", env.Round, "peers", n)
}

func (g *GameOrchestrator) sendTo(peer string, env *communication.Envelope) {
	if !g.sign(env) {
		return
	}
	if err := g.net.Send(peer, env); err != nil {
		g.log.Warn("send", "peer", peer, "type", env.Type, "err", err)
		return
	}
	if err := g.ledger.Append(ledger.Sent, peer, env); err != nil {
		g.log.Warn("ledger append failed", "err", err)
	}
}

// Close stops the event loop and tears down every connection.
func (g *GameOrchestrator) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		g.wg.Wait()
		err = g.net.Close()
	})
	return err
}
