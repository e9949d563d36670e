// Package identity holds the per-session signing keypair. Keys live on the
// Ed25519 curve and sign with Schnorr, both provided by kyber.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/group/edwards25519"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/util/random"
)

// PublicKeySize is the length in bytes of a marshaled public key.
const PublicKeySize = 32

var suite = edwards25519.NewBlakeSHA256Ed25519()

// ErrInvalidPublicKey is returned for keys that are not valid hex encodings
// of a point on the curve.
var ErrInvalidPublicKey = errors.New("invalid public key")

// Identity is the keypair of the local player. The private scalar is never
// marshaled; only the public key is meant to leave the process.
type Identity struct {
	private   kyber.Scalar
	public    kyber.Point
	publicRaw []byte
}

// Generate draws a fresh private scalar from crypto/rand and derives the
// matching public key.
func Generate() (*Identity, error) {
	priv := suite.Scalar().Pick(random.New())
	pub := suite.Point().Mul(priv, nil)
	raw, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return &Identity{private: priv, public: pub, publicRaw: raw}, nil
}

// PublicKey returns a copy of the marshaled public key.
func (id *Identity) PublicKey() []byte {
	out := make([]byte, len(id.publicRaw))
	copy(out, id.publicRaw)
	return out
}

// PublicKeyHex returns the public key as it travels inside envelopes.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.publicRaw)
}

// Sign produces a Schnorr signature over msg.
func (id *Identity) Sign(msg []byte) ([]byte, error) {
	return schnorr.Sign(suite, id.private, msg)
}

// DecodePublicKey turns the hex form back into bytes and checks that they
// encode a point on the curve.
func DecodePublicKey(publicKeyHex string) ([]byte, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(raw))
	}
	if err := suite.Point().UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return raw, nil
}

// Verify reports whether sig is a valid signature of msg under the hex
// encoded public key. Any malformed input yields false.
func Verify(publicKeyHex string, msg, sig []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	raw, err := DecodePublicKey(publicKeyHex)
	if err != nil {
		return false
	}
	pub := suite.Point()
	if err := pub.UnmarshalBinary(raw); err != nil {
		return false
	}
	return schnorr.Verify(suite, pub, msg, sig) == nil
}
