// Package rps implements the domain logic of a rock/paper/scissors match
// played in commit-then-reveal rounds.
//
// # Core Types
//
// Move: Rock, Paper or Scissors, encoded 0, 1, 2 as in the commitment.
//
// PeerState: what is known about one remote player, including the pinned
// public key and the round fields (commitment, revealed move, verification).
//
// StateMachine: the single owner of all per-round state. It holds no locks;
// the application layer drives it from one goroutine.
//
// # Round Flow
//
// Each player moves THINKING → COMMITTED → REVEALED → VERIFIED. Reveal is
// allowed once every connected peer has committed, and the outcome is
// resolved once both sides are verified. AdvanceRound clears the round
// fields and increments the round counter by one.
package rps
