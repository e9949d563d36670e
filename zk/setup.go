package zk

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Compile builds the R1CS of HandIntegrityCircuit over the BN254 scalar field.
func Compile() (constraint.ConstraintSystem, error) {
	var circuit HandIntegrityCircuit
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
}

// Setup compiles the circuit and runs a single-party Groth16 setup. Whoever
// runs it knows the toxic waste and can forge proofs, so the result is for
// development and tests only; real deployments load ceremony output.
func Setup() (*Artifacts, error) {
	ccs, err := Compile()
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	var circuitBuf, pkBuf bytes.Buffer
	if _, err := ccs.WriteTo(&circuitBuf); err != nil {
		return nil, err
	}
	if _, err := pk.WriteTo(&pkBuf); err != nil {
		return nil, err
	}
	vkDoc, err := encodeVerifyingKey(vk)
	if err != nil {
		return nil, err
	}
	return &Artifacts{
		Circuit:      circuitBuf.Bytes(),
		ProvingKey:   pkBuf.Bytes(),
		VerifyingKey: vkDoc,
	}, nil
}
