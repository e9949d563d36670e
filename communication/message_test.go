package communication

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSignAndDecodeEveryPayload(t *testing.T) {
	id, sender := mustIdentity(t)
	payloads := []Payload{
		&JoinPayload{Description: "alice"},
		&SignalPayload{Target: "peer-2", Signal: "eyJ0YXJnZXQiOiJ4In0="},
		&HandCommitPayload{HandCommit: "123456789"},
		&HandProofPayload{Proof: []byte{1, 2, 3}, PublicSignals: []string{"1", "2", "3"}, Hand: 2},
		&NextRoundPayload{},
	}
	for _, p := range payloads {
		e := mustSigned(t, id, sender, p)
		if !e.VerifySignature() {
			t.Fatalf("%s: signature did not verify", p.Type())
		}
		b, err := e.Marshal()
		if err != nil {
			t.Fatalf("%s: marshal: %v", p.Type(), err)
		}
		got, err := Decode(b)
		if err != nil {
			t.Fatalf("%s: decode: %v", p.Type(), err)
		}
		if got.Type != p.Type() || got.Payload.Type() != p.Type() {
			t.Fatalf("decoded type %s, want %s", got.Type, p.Type())
		}
		if got.SenderID != sender || got.SenderPublicKey != id.PublicKeyHex() {
			t.Fatalf("sender fields lost in transit")
		}
	}
}

func TestDecodedHandProofKeepsFields(t *testing.T) {
	id, sender := mustIdentity(t)
	e := mustSigned(t, id, sender, &HandProofPayload{Proof: []byte("proof"), PublicSignals: []string{"7", "1", "42"}, Hand: 1})
	b, _ := e.Marshal()
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := got.Payload.(*HandProofPayload)
	if !ok {
		t.Fatalf("payload is %T", got.Payload)
	}
	if string(p.Proof) != "proof" || p.Hand != 1 || strings.Join(p.PublicSignals, ",") != "7,1,42" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestTamperedEnvelopeRejected(t *testing.T) {
	id, sender := mustIdentity(t)
	other, _ := mustIdentity(t)

	tampers := map[string]func(e *Envelope){
		"round":     func(e *Envelope) { e.Round++ },
		"room":      func(e *Envelope) { e.RoomID = "room-2" },
		"timestamp": func(e *Envelope) { e.Timestamp++ },
		"payload":   func(e *Envelope) { e.Payload = &HandCommitPayload{HandCommit: "99"} },
		"key":       func(e *Envelope) { e.SenderPublicKey = other.PublicKeyHex() },
		"signature": func(e *Envelope) { e.Signature = flipHex(e.Signature) },
		"unsigned":  func(e *Envelope) { e.Signature = "" },
	}
	for name, tamper := range tampers {
		e := mustSigned(t, id, sender, &HandCommitPayload{HandCommit: "12"})
		tamper(e)
		if e.VerifySignature() {
			t.Fatalf("%s: tampered envelope verified", name)
		}
		b, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		if _, err := Decode(b); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%s: expected ErrBadSignature, got %v", name, err)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	id, sender := mustIdentity(t)
	valid := mustSigned(t, id, sender, &HandCommitPayload{HandCommit: "12"})
	b, _ := valid.Marshal()
	var generic map[string]any
	if err := json.Unmarshal(b, &generic); err != nil {
		t.Fatal(err)
	}

	cases := map[string]func(m map[string]any){
		"unknown type":     func(m map[string]any) { m["type"] = "SURRENDER" },
		"type mismatch":    func(m map[string]any) { m["type"] = "HAND_PROOF" },
		"extra field":      func(m map[string]any) { m["payload"] = map[string]any{"handCommit": "12", "x": 1} },
		"bad commit":       func(m map[string]any) { m["payload"] = map[string]any{"handCommit": "abc"} },
		"missing payload":  func(m map[string]any) { delete(m, "payload") },
		"sender not uuid":  func(m map[string]any) { m["senderId"] = "bob" },
		"bad public key":   func(m map[string]any) { m["senderPublicKey"] = "zz" },
		"negative round":   func(m map[string]any) { m["round"] = -1 },
		"hand is a string": func(m map[string]any) { m["type"] = "HAND_PROOF"; m["payload"] = map[string]any{"hand": "rock"} },
	}
	for name, mutate := range cases {
		m := map[string]any{}
		for k, v := range generic {
			m[k] = v
		}
		mutate(m)
		raw, _ := json.Marshal(m)
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
	if _, err := Decode([]byte("not json")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for garbage, got %v", err)
	}
}

func TestPayloadValidation(t *testing.T) {
	bad := []Payload{
		&HandProofPayload{Proof: []byte{1}, Hand: 3},
		&HandProofPayload{Hand: 0},
		&HandProofPayload{Proof: []byte{1}, PublicSignals: []string{"-1"}},
		&SignalPayload{Target: "x"},
		&JoinPayload{Description: string([]byte{0xff, 0xfe})},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("%s payload %+v should not validate", p.Type(), p)
		}
	}
	id, sender := mustIdentity(t)
	e := New("room", 1, sender, &JoinPayload{Description: string([]byte{0xff})})
	if err := e.Sign(id); !errors.Is(err, ErrMalformed) {
		t.Fatalf("signing invalid UTF-8 should fail, got %v", err)
	}
}

func TestSigningBytesDeterministic(t *testing.T) {
	id, sender := mustIdentity(t)
	e := mustSigned(t, id, sender, &JoinPayload{Description: "carol"})
	b1, err := e.signingBytes()
	if err != nil {
		t.Fatalf("signingBytes err: %v", err)
	}
	e2 := *e
	e2.Signature = "ffff"
	b2, err := e2.signingBytes()
	if err != nil {
		t.Fatalf("signingBytes err: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatalf("signingBytes depends on signature: %s vs %s", b1, b2)
	}
	if strings.Contains(string(b1), "signature") {
		t.Fatalf("signature leaked into signed bytes: %s", b1)
	}
}

func flipHex(s string) string {
	if s[0] == '0' {
		return "1" + s[1:]
	}
	return "0" + s[1:]
}
