package ledger

import "encoding/json"

type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Block records one envelope.
type Block struct {
	Index     int             `json:"index"`
	Timestamp int64           `json:"timestamp"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
	Envelope  json.RawMessage `json:"envelope"`
	Metadata  Metadata        `json:"metadata"`
}

type Metadata struct {
	Direction Direction `json:"direction,omitempty"`
	Peer      string    `json:"peer,omitempty"`
	Round     uint64    `json:"round"`
	Type      string    `json:"type,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
}
