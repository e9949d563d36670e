package rps

type Phase string

const (
	Thinking  Phase = "THINKING"
	Committed Phase = "COMMITTED"
	Revealed  Phase = "REVEALED"
	Verified  Phase = "VERIFIED"
)

// PeerState describes one remote player. Commitment, RevealedMove and
// IsVerified belong to the current round.
type PeerState struct {
	ID           string
	Description  string
	PublicKey    string
	Connected    bool
	Commitment   string
	IsCommitted  bool
	RevealedMove *Move
	IsVerified   bool
}

func (p PeerState) Phase() Phase {
	switch {
	case p.IsVerified:
		return Verified
	case p.RevealedMove != nil:
		return Revealed
	case p.IsCommitted:
		return Committed
	default:
		return Thinking
	}
}

// SelfState is the local player's side of the round. Nonce is secret until
// the round is over.
type SelfState struct {
	Move       *Move
	Nonce      string
	Commitment string
	Revealed   bool
	Verified   bool
}

func (s SelfState) Phase() Phase {
	switch {
	case s.Verified:
		return Verified
	case s.Revealed:
		return Revealed
	case s.Commitment != "":
		return Committed
	default:
		return Thinking
	}
}

// Result is a resolved round.
type Result struct {
	Round    uint64
	Opponent string
	Self     Move
	Other    Move
	Outcome  Outcome
}
