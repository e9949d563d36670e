// Package network manages the WebRTC peer connections of a game session.
//
// # Core Components
//
// Manager: owns one PeerConnection and one "game-data" data channel per
// remote peer, keyed by peer id. It is the only mutator of its connection map.
//
// Blob: the copy/paste form of a Signal, base64 encoded JSON tagged with the
// sender and the intended target.
//
// # Signaling
//
// There is no signaling server. CreateConnection produces an offer and
// HandleSignal consumes offers and answers; both report the resulting local
// description through Handlers.OnSignal once ICE gathering completes, or once
// the gather timeout expires, in which case the partial description is used.
//
// A connection moves through NEW, OFFERED or INCOMING, ANSWERED, OPEN and
// finally CLOSED. A second answer for a connection that is already answered is
// ignored.
//
// # Routing
//
// Callbacks always carry the current id of a connection, so RenamePeer can
// replace a temporary id after the data channel is wired.
package network
