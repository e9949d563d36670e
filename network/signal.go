package network

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

type SignalType string

const (
	SignalOffer  SignalType = "offer"
	SignalAnswer SignalType = "answer"
)

var ErrInvalidSignal = errors.New("invalid signal")

// Signal is a session description produced after ICE gathering, so it
// already carries the gathered candidates.
type Signal struct {
	Type SignalType `json:"type"`
	SDP  string     `json:"sdp"`
}

func (s Signal) validate() error {
	if s.Type != SignalOffer && s.Type != SignalAnswer {
		return fmt.Errorf("%w: type %q", ErrInvalidSignal, s.Type)
	}
	if s.SDP == "" {
		return fmt.Errorf("%w: empty sdp", ErrInvalidSignal)
	}
	return nil
}

func (s Signal) description() webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if s.Type == SignalAnswer {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}
}

func signalFrom(desc *webrtc.SessionDescription) Signal {
	t := SignalOffer
	if desc.Type == webrtc.SDPTypeAnswer {
		t = SignalAnswer
	}
	return Signal{Type: t, SDP: desc.SDP}
}

// Blob is what users exchange out of band.
type Blob struct {
	Target   string `json:"target"`
	SenderID string `json:"senderId"`
	Signal   Signal `json:"signal"`
}

// EncodeBlob returns base64(JSON(b)).
func EncodeBlob(b Blob) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeBlob reverses EncodeBlob. Surrounding whitespace from copy/paste is
// ignored.
func DecodeBlob(s string) (Blob, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	var b Blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if b.SenderID == "" {
		return Blob{}, fmt.Errorf("%w: missing sender", ErrInvalidSignal)
	}
	if err := b.Signal.validate(); err != nil {
		return Blob{}, err
	}
	return b, nil
}
