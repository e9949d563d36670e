// Package application wires identity, transport, commitments, proofs and the
// round state machine into a playable session.
//
// GameOrchestrator runs a single event loop that owns all game state.
// Transport callbacks, user operations and proof results are posted to that
// loop as closures, so nothing else mutates the state machine. Work that can
// block for long, ICE gathering, proof generation and verification, happens
// off the loop and posts its result back. A result that arrives after the
// round has moved on is discarded.
//
// Progress is reported as Events on the channel returned by Events.
package application
