package communication

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/identity"
)

// MessageType names the payload an Envelope carries.
type MessageType string

const (
	TypeJoin       MessageType = "JOIN"
	TypeSignal     MessageType = "SIGNAL"
	TypeHandCommit MessageType = "HAND_COMMIT"
	TypeHandProof  MessageType = "HAND_PROOF"
	TypeNextRound  MessageType = "NEXT_ROUND"
)

var (
	ErrMalformed    = errors.New("malformed envelope")
	ErrBadSignature = errors.New("bad envelope signature")
)

// Envelope is the signed unit exchanged over data channels.
type Envelope struct {
	RoomID          string      `json:"roomId"`
	Round           uint64      `json:"round"`
	Timestamp       int64       `json:"timestamp"`
	SenderID        string      `json:"senderId"`
	SenderPublicKey string      `json:"senderPublicKey"`
	Signature       string      `json:"signature,omitempty"`
	Type            MessageType `json:"type"`
	Payload         Payload     `json:"payload"`
}

// New builds an unsigned envelope stamped with the current time.
func New(roomID string, round uint64, senderID string, payload Payload) *Envelope {
	return &Envelope{
		RoomID:    roomID,
		Round:     round,
		Timestamp: time.Now().UnixMilli(),
		SenderID:  senderID,
		Type:      payload.Type(),
		Payload:   payload,
	}
}

// Sign fills in the sender key and signs the canonical bytes.
func (e *Envelope) Sign(id *identity.Identity) error {
	e.SenderPublicKey = id.PublicKeyHex()
	if e.Payload != nil {
		e.Type = e.Payload.Type()
	}
	b, err := e.signingBytes()
	if err != nil {
		return err
	}
	sig, err := id.Sign(b)
	if err != nil {
		return err
	}
	e.Signature = hex.EncodeToString(sig)
	return nil
}

// VerifySignature checks the signature against SenderPublicKey.
func (e *Envelope) VerifySignature() bool {
	if e.Signature == "" {
		return false
	}
	sig, err := hex.DecodeString(e.Signature)
	if err != nil {
		return false
	}
	b, err := e.signingBytes()
	if err != nil {
		return false
	}
	return identity.Verify(e.SenderPublicKey, b, sig)
}

// signingBytes is the JSON encoding of the envelope with the signature
// cleared. encoding/json rewrites invalid UTF-8, so such strings are refused
// to keep the encoding injective.
func (e *Envelope) signingBytes() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	c := *e
	c.Signature = ""
	return json.Marshal(c)
}

func (e *Envelope) validate() error {
	for _, s := range []string{e.RoomID, e.SenderID, e.SenderPublicKey} {
		if !utf8.ValidString(s) {
			return fmt.Errorf("%w: invalid UTF-8", ErrMalformed)
		}
	}
	if _, err := uuid.Parse(e.SenderID); err != nil {
		return fmt.Errorf("%w: sender id: %v", ErrMalformed, err)
	}
	if _, err := identity.DecodePublicKey(e.SenderPublicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if e.Payload.Type() != e.Type {
		return fmt.Errorf("%w: payload %s under type %s", ErrMalformed, e.Payload.Type(), e.Type)
	}
	if err := e.Payload.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Marshal encodes the envelope, signature included, for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	type wire struct {
		RoomID          string          `json:"roomId"`
		Round           uint64          `json:"round"`
		Timestamp       int64           `json:"timestamp"`
		SenderID        string          `json:"senderId"`
		SenderPublicKey string          `json:"senderPublicKey"`
		Signature       string          `json:"signature,omitempty"`
		Type            MessageType     `json:"type"`
		Payload         json.RawMessage `json:"payload"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return err
	}
	*e = Envelope{
		RoomID:          w.RoomID,
		Round:           w.Round,
		Timestamp:       w.Timestamp,
		SenderID:        w.SenderID,
		SenderPublicKey: w.SenderPublicKey,
		Signature:       w.Signature,
		Type:            w.Type,
		Payload:         payload,
	}
	return nil
}

func decodePayload(t MessageType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case TypeJoin:
		p = &JoinPayload{}
	case TypeSignal:
		p = &SignalPayload{}
	case TypeHandCommit:
		p = &HandCommitPayload{}
	case TypeHandProof:
		p = &HandProofPayload{}
	case TypeNextRound:
		p = &NextRoundPayload{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, t)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, t, err)
	}
	return p, nil
}

// Decode parses, validates and authenticates a received envelope.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		if !errors.Is(err, ErrMalformed) {
			err = fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, err
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	if !e.VerifySignature() {
		return nil, ErrBadSignature
	}
	return &e, nil
}
