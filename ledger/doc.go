// Package ledger keeps a hash-chained audit log of the signed envelopes a
// session exchanged.
//
// # Core Components
//
// Blockchain: an append-only list of blocks, each linking to the hash of the
// previous one.
//
// Block: one authenticated envelope, sent or received, stored as the exact
// bytes that travelled so its signature can be checked again later.
//
// # Security Properties
//
// Verify walks the whole chain and detects:
//   - a block whose contents no longer match its hash
//   - a broken link or index gap
//   - an envelope whose signature no longer verifies
//
// The log is local to one player. It records what that player saw and is
// meant for after-the-fact auditing of a round, not for agreement.
package ledger
