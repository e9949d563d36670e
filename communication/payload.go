package communication

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/commitment"
)

// Payload is one of JoinPayload, SignalPayload, HandCommitPayload,
// HandProofPayload or NextRoundPayload.
type Payload interface {
	Type() MessageType
	Validate() error
}

// JoinPayload introduces the sender once its data channel opens.
type JoinPayload struct {
	Description string `json:"description"`
}

// SignalPayload carries an in-band signal blob addressed to Target.
type SignalPayload struct {
	Target string `json:"target"`
	Signal string `json:"signal"`
}

// HandCommitPayload publishes the commitment to this round's move.
type HandCommitPayload struct {
	HandCommit string `json:"handCommit"`
}

// HandProofPayload reveals the move together with a proof that it matches
// the earlier commitment. The proof does not bind Hand itself.
type HandProofPayload struct {
	Proof         []byte   `json:"proof"`
	PublicSignals []string `json:"publicSignals"`
	Hand          uint8    `json:"hand"`
}

// NextRoundPayload asks peers to leave the round stamped on the envelope.
type NextRoundPayload struct{}

func (*JoinPayload) Type() MessageType       { return TypeJoin }
func (*SignalPayload) Type() MessageType     { return TypeSignal }
func (*HandCommitPayload) Type() MessageType { return TypeHandCommit }
func (*HandProofPayload) Type() MessageType  { return TypeHandProof }
func (*NextRoundPayload) Type() MessageType  { return TypeNextRound }

func (p *JoinPayload) Validate() error {
	return validUTF8(p.Description)
}

func (p *SignalPayload) Validate() error {
	if p.Target == "" || p.Signal == "" {
		return errors.New("signal needs target and blob")
	}
	return validUTF8(p.Target, p.Signal)
}

func (p *HandCommitPayload) Validate() error {
	if _, err := commitment.ParseField(p.HandCommit); err != nil {
		return fmt.Errorf("hand commit: %w", err)
	}
	return nil
}

func (p *HandProofPayload) Validate() error {
	if p.Hand > commitment.MaxMove {
		return fmt.Errorf("hand %d out of range", p.Hand)
	}
	if len(p.Proof) == 0 {
		return errors.New("empty proof")
	}
	for _, s := range p.PublicSignals {
		if _, err := commitment.ParseField(s); err != nil {
			return fmt.Errorf("public signal: %w", err)
		}
	}
	return nil
}

func (*NextRoundPayload) Validate() error { return nil }

func validUTF8(ss ...string) error {
	for _, s := range ss {
		if !utf8.ValidString(s) {
			return errors.New("invalid UTF-8")
		}
	}
	return nil
}
