package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// NumPublicSignals is the length of the public witness:
// PublicKeyField, Round and Commitment, in that order.
const NumPublicSignals = 3

// HandIntegrityCircuit binds a hidden move and nonce to a public commitment.
type HandIntegrityCircuit struct {
	PublicKeyField frontend.Variable `gnark:",public"`
	Round          frontend.Variable `gnark:",public"`
	Commitment     frontend.Variable `gnark:",public"`

	Move  frontend.Variable
	Nonce frontend.Variable
}

// Define enforces Move ∈ {0,1,2} and MiMC(Move, Nonce, PublicKeyField, Round) == Commitment.
func (c *HandIntegrityCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.Move, api.Sub(c.Move, 1), api.Sub(c.Move, 2)), 0)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	// same absorption order as commitment.Commit
	h.Write(c.Move, c.Nonce, c.PublicKeyField, c.Round)
	api.AssertIsEqual(h.Sum(), c.Commitment)
	return nil
}
