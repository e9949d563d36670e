// Package zk proves and verifies hand integrity: knowledge of a move and a
// nonce that hash, together with the player's key field and the round, to a
// previously published commitment.
//
// # Circuit
//
// HandIntegrityCircuit keeps Move and Nonce secret and exposes PublicKeyField,
// Round and Commitment. It range checks the move to {0, 1, 2} and recomputes
// the MiMC commitment from the private inputs.
//
// # Artifacts
//
// Proving needs the compiled circuit and the proving key; verifying needs only
// the verifying key document. All three are produced ahead of time (see Setup
// for a development-only generator) and loaded read-only through Source.
//
// Proof generation takes seconds on slow machines and must be scheduled off
// the caller's event loop. Verification is cheap.
package zk
