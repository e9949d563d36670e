package zk

import (
	"bytes"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/commitment"
)

// Verifier checks proofs against a verifying key that is loaded on first use
// and then kept for the lifetime of the process.
type Verifier struct {
	load func() ([]byte, error)
	once sync.Once
	vk   groth16.VerifyingKey
	err  error
}

// NewVerifier defers loading the verifying key document until the first
// verification.
func NewVerifier(load func() ([]byte, error)) *Verifier {
	return &Verifier{load: load}
}

// NewVerifierFromDocument builds a verifier around an already fetched key.
func NewVerifierFromDocument(doc []byte) *Verifier {
	return NewVerifier(func() ([]byte, error) { return doc, nil })
}

func (v *Verifier) key() (groth16.VerifyingKey, error) {
	v.once.Do(func() {
		doc, err := v.load()
		if err != nil {
			v.err = err
			return
		}
		v.vk, v.err = ParseVerifyingKey(doc)
	})
	return v.vk, v.err
}

// Err reports why the verifying key could not be loaded, if it could not.
func (v *Verifier) Err() error {
	_, err := v.key()
	return err
}

// Verify reports whether p is valid under the cached verifying key.
func (v *Verifier) Verify(p *Proof) bool {
	vk, err := v.key()
	if err != nil {
		return false
	}
	return VerifyWithKey(vk, p)
}

// VerifyWithKey checks p against vk. It never panics and returns false for
// any malformed proof or public signal.
func VerifyWithKey(vk groth16.VerifyingKey, p *Proof) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if vk == nil || p == nil || len(p.PublicSignals) != NumPublicSignals {
		return false
	}
	signals := make([]*big.Int, NumPublicSignals)
	for i, s := range p.PublicSignals {
		f, err := commitment.ParseField(s)
		if err != nil {
			return false
		}
		signals[i] = f
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(p.Proof)); err != nil {
		return false
	}
	assignment := HandIntegrityCircuit{
		PublicKeyField: signals[0],
		Round:          signals[1],
		Commitment:     signals[2],
	}
	public, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false
	}
	return groth16.Verify(proof, vk, public) == nil
}
