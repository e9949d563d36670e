package application

import (
	"context"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/zk"
)

// Prover produces hand-integrity proofs. It may take seconds and is never
// called on the event loop.
type Prover interface {
	Prove(ctx context.Context, in zk.Inputs) (*zk.Proof, error)
}

// Verifier checks hand-integrity proofs.
type Verifier interface {
	Verify(p *zk.Proof) bool
}
