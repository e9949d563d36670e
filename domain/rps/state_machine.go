package rps

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidMove      = errors.New("invalid move")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrPeerExists       = errors.New("peer already exists")
	ErrKeyMismatch      = errors.New("public key does not match pinned key")
	ErrAlreadyCommitted = errors.New("already committed this round")
	ErrNotCommitted     = errors.New("not committed")
	ErrAlreadyRevealed  = errors.New("move already revealed this round")
	ErrNotReady         = errors.New("not every connected peer has committed")
)

// FirstRound is the round a fresh session starts in.
const FirstRound uint64 = 1

// StateMachine owns the state of one session. It is not safe for concurrent
// use.
type StateMachine struct {
	round uint64
	self  SelfState
	peers map[string]*PeerState
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		round: FirstRound,
		peers: make(map[string]*PeerState),
	}
}

func (sm *StateMachine) Round() uint64 {
	return sm.round
}

func (sm *StateMachine) Self() SelfState {
	return sm.self
}

// Peer returns a copy of the state of id.
func (sm *StateMachine) Peer(id string) (PeerState, bool) {
	p, ok := sm.peers[id]
	if !ok {
		return PeerState{}, false
	}
	return *p, true
}

// Peers returns copies ordered by id.
func (sm *StateMachine) Peers() []PeerState {
	out := make([]PeerState, 0, len(sm.peers))
	for _, p := range sm.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddPeer creates the peer on first contact and is a no-op afterwards.
func (sm *StateMachine) AddPeer(id string) {
	if _, ok := sm.peers[id]; !ok {
		sm.peers[id] = &PeerState{ID: id}
	}
}

// RemovePeer forgets id and its round state.
func (sm *StateMachine) RemovePeer(id string) {
	delete(sm.peers, id)
}

func (sm *StateMachine) RenamePeer(oldID, newID string) error {
	p, ok := sm.peers[oldID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, oldID)
	}
	if _, exists := sm.peers[newID]; exists {
		return fmt.Errorf("%w: %s", ErrPeerExists, newID)
	}
	delete(sm.peers, oldID)
	p.ID = newID
	sm.peers[newID] = p
	return nil
}

func (sm *StateMachine) SetConnected(id string, connected bool) {
	sm.AddPeer(id)
	sm.peers[id].Connected = connected
}

func (sm *StateMachine) SetDescription(id, description string) error {
	p, ok := sm.peers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	p.Description = description
	return nil
}

// PinKey binds id to publicKey the first time and afterwards rejects any
// other key.
func (sm *StateMachine) PinKey(id, publicKey string) error {
	p, ok := sm.peers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	if p.PublicKey == "" {
		p.PublicKey = publicKey
		return nil
	}
	if p.PublicKey != publicKey {
		return fmt.Errorf("%w: %s", ErrKeyMismatch, id)
	}
	return nil
}

// CommitSelf records the local move for this round.
func (sm *StateMachine) CommitSelf(m Move, nonce, commitment string) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMove, m)
	}
	if sm.self.Commitment != "" {
		return ErrAlreadyCommitted
	}
	sm.self.Move = &m
	sm.self.Nonce = nonce
	sm.self.Commitment = commitment
	return nil
}

// RecordCommit stores a peer commitment. Repeating the same commitment is
// harmless; a different one in the same round is refused.
func (sm *StateMachine) RecordCommit(id, commitment string) error {
	p, ok := sm.peers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	if p.IsCommitted {
		if p.Commitment == commitment {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrAlreadyCommitted, id)
	}
	p.Commitment = commitment
	p.IsCommitted = true
	return nil
}

// CanReveal reports whether self and every connected peer have committed.
// With no connected peer there is nobody to reveal to.
func (sm *StateMachine) CanReveal() bool {
	if sm.self.Commitment == "" || sm.self.Revealed {
		return false
	}
	connected := 0
	for _, p := range sm.peers {
		if !p.Connected {
			continue
		}
		connected++
		if !p.IsCommitted {
			return false
		}
	}
	return connected > 0
}

// MarkSelfRevealed is called once the local proof has been produced and sent.
func (sm *StateMachine) MarkSelfRevealed() error {
	if sm.self.Commitment == "" {
		return ErrNotCommitted
	}
	sm.self.Revealed = true
	sm.self.Verified = true
	return nil
}

// RecordReveal applies a verified HAND_PROOF from id. A verified move is final
// for the round: repeating it is a no-op, a different one is refused.
func (sm *StateMachine) RecordReveal(id string, m Move) error {
	p, ok := sm.peers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMove, m)
	}
	if !p.IsCommitted {
		return fmt.Errorf("%w: %s", ErrNotCommitted, id)
	}
	if p.IsVerified && p.RevealedMove != nil {
		if *p.RevealedMove == m {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrAlreadyRevealed, id)
	}
	p.RevealedMove = &m
	p.IsVerified = true
	return nil
}

// Opponent returns the single connected peer of a two player match.
func (sm *StateMachine) Opponent() (PeerState, bool) {
	for _, p := range sm.Peers() {
		if p.Connected {
			return p, true
		}
	}
	return PeerState{}, false
}

// Resolve returns the round result once self and the opponent are verified.
func (sm *StateMachine) Resolve() (Result, bool) {
	if !sm.self.Verified || sm.self.Move == nil {
		return Result{}, false
	}
	opp, ok := sm.Opponent()
	if !ok || !opp.IsVerified || opp.RevealedMove == nil {
		return Result{}, false
	}
	return Result{
		Round:    sm.round,
		Opponent: opp.ID,
		Self:     *sm.self.Move,
		Other:    *opp.RevealedMove,
		Outcome:  Resolve(*sm.self.Move, *opp.RevealedMove),
	}, true
}

// AdvanceRound clears every round field and moves to the next round.
// Connections, descriptions and pinned keys persist.
func (sm *StateMachine) AdvanceRound() uint64 {
	sm.self = SelfState{}
	for _, p := range sm.peers {
		p.Commitment = ""
		p.IsCommitted = false
		p.RevealedMove = nil
		p.IsVerified = false
	}
	sm.round++
	return sm.round
}
