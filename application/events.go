package application

import "github.com/azuma-ya/zk-p2p-rock-paper-scissors/domain/rps"

type EventKind string

const (
	EventSignal        EventKind = "SIGNAL"
	EventPeerUpdate    EventKind = "PEER_UPDATE"
	EventProofStatus   EventKind = "PROOF_STATUS"
	EventAlert         EventKind = "ALERT"
	EventResult        EventKind = "RESULT"
	EventRoundAdvanced EventKind = "ROUND_ADVANCED"
)

type Event struct {
	Kind    EventKind
	Round   uint64
	Peer    string
	Message string
	// Blob is the encoded signal of an EventSignal.
	Blob   string
	Result *rps.Result
}

// View is a snapshot of the session for display.
type View struct {
	SelfID    string
	PublicKey string
	Round     uint64
	Self      rps.SelfState
	Peers     []rps.PeerState
}
