package zk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/commitment"
)

var ErrProofGeneration = errors.New("proof generation failed")

// Proof is the wire form of a hand-integrity proof.
type Proof struct {
	Proof         []byte   `json:"proof"`
	PublicSignals []string `json:"publicSignals"`
}

// Inputs gathers the private (Move, Nonce) and public inputs of one proof.
type Inputs struct {
	Move           uint8
	Nonce          string
	PublicKeyField *big.Int
	Round          uint64
	Commitment     string
}

type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// NewProver decodes the circuit and proving key.
func NewProver(a *Artifacts) (*Prover, error) {
	ccs, err := parseCircuit(a.Circuit)
	if err != nil {
		return nil, err
	}
	pk, err := parseProvingKey(a.ProvingKey)
	if err != nil {
		return nil, err
	}
	return &Prover{ccs: ccs, pk: pk}, nil
}

// Prove runs Groth16 for in. Inputs that do not satisfy the circuit, such as
// a move outside {0,1,2} or a commitment that does not match, fail with
// ErrProofGeneration. Prove blocks; callers schedule it in the background.
func (p *Prover) Prove(ctx context.Context, in Inputs) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nonce, err := commitment.ParseField(in.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrProofGeneration, err)
	}
	commit, err := commitment.ParseField(in.Commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: commitment: %v", ErrProofGeneration, err)
	}
	if in.PublicKeyField == nil {
		return nil, fmt.Errorf("%w: missing key field", ErrProofGeneration)
	}
	round := new(big.Int).SetUint64(in.Round)

	assignment := HandIntegrityCircuit{
		PublicKeyField: in.PublicKeyField,
		Round:          round,
		Commitment:     commit,
		Move:           big.NewInt(int64(in.Move)),
		Nonce:          nonce,
	}
	w, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: witness: %v", ErrProofGeneration, err)
	}
	proof, err := groth16.Prove(p.ccs, p.pk, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrProofGeneration, err)
	}
	return &Proof{
		Proof:         buf.Bytes(),
		PublicSignals: []string{in.PublicKeyField.String(), round.String(), commit.String()},
	}, nil
}
