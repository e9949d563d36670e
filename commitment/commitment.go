// Package commitment implements the hiding and binding hand commitment:
// a MiMC sponge over BN254 scalar-field elements, the same hash the
// hand-integrity circuit recomputes in zero knowledge.
package commitment

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

const (
	// KeyFieldBytes is how many leading bytes of a public key are kept when
	// mapping it into the scalar field. 248 bits always stay below the modulus.
	KeyFieldBytes = 31
	// NonceBytes is the amount of randomness drawn for each nonce.
	NonceBytes = 31
	// MaxMove is the highest valid move value (scissors).
	MaxMove = 2
)

var (
	ErrInvalidMove  = errors.New("move must be 0, 1 or 2")
	ErrInvalidField = errors.New("not a scalar field element")
	ErrShortKey     = errors.New("public key too short")
)

// FieldFromPublicKey maps a public key to the scalar field by taking its
// first KeyFieldBytes bytes as a big-endian integer.
func FieldFromPublicKey(publicKey []byte) (*big.Int, error) {
	if len(publicKey) < KeyFieldBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortKey, len(publicKey))
	}
	return new(big.Int).SetBytes(publicKey[:KeyFieldBytes]), nil
}

// NewNonce returns NonceBytes of crypto/rand output as a decimal string.
func NewNonce() (string, error) {
	return newNonce(rand.Read)
}

func newNonce(read func([]byte) (int, error)) (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := read(buf); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return new(big.Int).SetBytes(buf).String(), nil
}

// ParseField parses a decimal string and checks it is reduced modulo the
// scalar field.
func ParseField(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || !inField(v) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, s)
	}
	return v, nil
}

func inField(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(fr.Modulus()) < 0
}

// Hash absorbs the elements in order and returns the MiMC digest.
func Hash(elements ...*big.Int) (*big.Int, error) {
	h := mimc.NewMiMC()
	for _, e := range elements {
		if e == nil || !inField(e) {
			return nil, ErrInvalidField
		}
		var el fr.Element
		el.SetBigInt(e)
		b := el.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, fmt.Errorf("absorb: %w", err)
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

// Commit hashes (move, nonce, publicKeyField, round) in that order. Both the
// commit and the reveal path must go through this function.
func Commit(move uint8, nonce string, publicKeyField *big.Int, round uint64) (string, error) {
	if move > MaxMove {
		return "", ErrInvalidMove
	}
	n, err := ParseField(nonce)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	digest, err := Hash(
		big.NewInt(int64(move)),
		n,
		publicKeyField,
		new(big.Int).SetUint64(round),
	)
	if err != nil {
		return "", err
	}
	return digest.String(), nil
}

// NonceSource hands out nonces that never repeat within a round.
type NonceSource struct {
	mu    sync.Mutex
	read  func([]byte) (int, error)
	round uint64
	seen  map[string]struct{}
}

func NewNonceSource() *NonceSource {
	return &NonceSource{read: rand.Read, seen: make(map[string]struct{})}
}

// Next draws a nonce for round, redrawing when the value was already issued
// in that round. Moving to another round forgets the previous one.
func (s *NonceSource) Next(round uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if round != s.round {
		s.round = round
		s.seen = make(map[string]struct{})
	}
	for {
		n, err := newNonce(s.read)
		if err != nil {
			return "", err
		}
		if _, dup := s.seen[n]; dup {
			continue
		}
		s.seen[n] = struct{}{}
		return n, nil
	}
}
