package rps

import (
	"errors"
	"testing"
)

func twoPlayer(t *testing.T) *StateMachine {
	t.Helper()
	sm := NewStateMachine()
	sm.SetConnected("bob", true)
	if err := sm.PinKey("bob", "aa"); err != nil {
		t.Fatal(err)
	}
	return sm
}

func playRound(t *testing.T, sm *StateMachine, self, other Move) Result {
	t.Helper()
	if err := sm.CommitSelf(self, "1", "100"); err != nil {
		t.Fatalf("CommitSelf: %v", err)
	}
	if sm.CanReveal() {
		t.Fatal("reveal allowed before the opponent committed")
	}
	if err := sm.RecordCommit("bob", "200"); err != nil {
		t.Fatalf("RecordCommit: %v", err)
	}
	if !sm.CanReveal() {
		t.Fatal("reveal refused after both committed")
	}
	if err := sm.MarkSelfRevealed(); err != nil {
		t.Fatal(err)
	}
	if _, ok := sm.Resolve(); ok {
		t.Fatal("resolved before the opponent was verified")
	}
	if err := sm.RecordReveal("bob", other); err != nil {
		t.Fatalf("RecordReveal: %v", err)
	}
	res, ok := sm.Resolve()
	if !ok {
		t.Fatal("round did not resolve")
	}
	return res
}

func TestRoundFlow(t *testing.T) {
	sm := twoPlayer(t)
	if sm.Round() != FirstRound {
		t.Fatalf("expected round %d, got %d", FirstRound, sm.Round())
	}
	res := playRound(t, sm, Paper, Rock)
	if res.Outcome != Win || res.Opponent != "bob" || res.Round != FirstRound {
		t.Fatalf("unexpected result %+v", res)
	}
	p, _ := sm.Peer("bob")
	if p.Phase() != Verified || sm.Self().Phase() != Verified {
		t.Fatalf("phases %s / %s", p.Phase(), sm.Self().Phase())
	}
}

func TestAdvanceRoundResets(t *testing.T) {
	sm := twoPlayer(t)
	_ = sm.SetDescription("bob", "Bob")
	playRound(t, sm, Rock, Scissors)

	before := sm.Round()
	if got := sm.AdvanceRound(); got != before+1 || sm.Round() != before+1 {
		t.Fatalf("round went from %d to %d", before, got)
	}
	if sm.Self() != (SelfState{}) {
		t.Fatalf("self not cleared: %+v", sm.Self())
	}
	p, _ := sm.Peer("bob")
	if p.IsCommitted || p.Commitment != "" || p.RevealedMove != nil || p.IsVerified {
		t.Fatalf("peer round fields not cleared: %+v", p)
	}
	if !p.Connected || p.PublicKey != "aa" || p.Description != "Bob" {
		t.Fatalf("peer identity lost: %+v", p)
	}
	if p.Phase() != Thinking {
		t.Fatalf("expected THINKING, got %s", p.Phase())
	}

	res := playRound(t, sm, Scissors, Scissors)
	if res.Outcome != Draw || res.Round != before+1 {
		t.Fatalf("unexpected second round %+v", res)
	}
}

func TestCommitRules(t *testing.T) {
	sm := twoPlayer(t)
	if err := sm.CommitSelf(Move(3), "1", "1"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
	if err := sm.CommitSelf(Rock, "1", "1"); err != nil {
		t.Fatal(err)
	}
	if err := sm.CommitSelf(Paper, "2", "2"); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}
	if err := sm.RecordCommit("bob", "5"); err != nil {
		t.Fatal(err)
	}
	if err := sm.RecordCommit("bob", "5"); err != nil {
		t.Fatalf("repeated identical commit: %v", err)
	}
	if err := sm.RecordCommit("bob", "6"); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}
	if err := sm.RecordCommit("carol", "5"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}

func TestRevealRequiresCommit(t *testing.T) {
	sm := twoPlayer(t)
	if err := sm.RecordReveal("bob", Rock); !errors.Is(err, ErrNotCommitted) {
		t.Fatalf("expected ErrNotCommitted, got %v", err)
	}
	if err := sm.MarkSelfRevealed(); !errors.Is(err, ErrNotCommitted) {
		t.Fatalf("expected ErrNotCommitted, got %v", err)
	}
}

func TestCanRevealIgnoresDisconnectedPeers(t *testing.T) {
	sm := twoPlayer(t)
	sm.SetConnected("ghost", false)
	_ = sm.CommitSelf(Rock, "1", "1")
	_ = sm.RecordCommit("bob", "2")
	if !sm.CanReveal() {
		t.Fatal("a disconnected peer blocked the reveal")
	}
	sm.SetConnected("bob", false)
	if sm.CanReveal() {
		t.Fatal("reveal allowed with no connected peer")
	}
}

func TestPinKey(t *testing.T) {
	sm := twoPlayer(t)
	if err := sm.PinKey("bob", "aa"); err != nil {
		t.Fatal(err)
	}
	if err := sm.PinKey("bob", "bb"); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}
}

func TestRenamePeer(t *testing.T) {
	sm := twoPlayer(t)
	sm.AddPeer("temp")
	if err := sm.RenamePeer("temp", "bob"); !errors.Is(err, ErrPeerExists) {
		t.Fatalf("expected ErrPeerExists, got %v", err)
	}
	if err := sm.RenamePeer("temp", "carol"); err != nil {
		t.Fatal(err)
	}
	if _, ok := sm.Peer("temp"); ok {
		t.Fatal("old id still present")
	}
	if p, ok := sm.Peer("carol"); !ok || p.ID != "carol" {
		t.Fatalf("renamed peer missing: %+v", p)
	}
}

func TestVerifiedRevealIsFinal(t *testing.T) {
	sm := twoPlayer(t)
	if err := sm.RecordCommit("bob", "123"); err != nil {
		t.Fatal(err)
	}
	if err := sm.RecordReveal("bob", Rock); err != nil {
		t.Fatal(err)
	}
	if err := sm.RecordReveal("bob", Rock); err != nil {
		t.Fatalf("repeating the same reveal: %v", err)
	}
	if err := sm.RecordReveal("bob", Paper); !errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("expected ErrAlreadyRevealed, got %v", err)
	}
	p, _ := sm.Peer("bob")
	if p.RevealedMove == nil || *p.RevealedMove != Rock {
		t.Fatalf("recorded move changed: %+v", p.RevealedMove)
	}
}

func TestRemovePeer(t *testing.T) {
	sm := twoPlayer(t)
	sm.RemovePeer("bob")
	if _, ok := sm.Peer("bob"); ok {
		t.Fatal("peer still present")
	}
	sm.RemovePeer("bob")
	if len(sm.Peers()) != 0 {
		t.Fatalf("unexpected peers %+v", sm.Peers())
	}
}
