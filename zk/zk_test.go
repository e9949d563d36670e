package zk

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/commitment"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/identity"
)

var (
	setupOnce sync.Once
	artifacts *Artifacts
	setupErr  error
)

func testArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	setupOnce.Do(func() { artifacts, setupErr = Setup() })
	require.NoError(t, setupErr)
	return artifacts
}

type player struct {
	keyField *big.Int
	nonce    string
}

func newPlayer(t *testing.T) player {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	field, err := commitment.FieldFromPublicKey(id.PublicKey())
	require.NoError(t, err)
	nonce, err := commitment.NewNonce()
	require.NoError(t, err)
	return player{keyField: field, nonce: nonce}
}

func (p player) inputs(t *testing.T, move uint8, round uint64) Inputs {
	t.Helper()
	c, err := commitment.Commit(move, p.nonce, p.keyField, round)
	require.NoError(t, err)
	return Inputs{Move: move, Nonce: p.nonce, PublicKeyField: p.keyField, Round: round, Commitment: c}
}

func TestProveAndVerifyEveryMove(t *testing.T) {
	a := testArtifacts(t)
	prover, err := NewProver(a)
	require.NoError(t, err)
	verifier := NewVerifierFromDocument(a.VerifyingKey)
	p := newPlayer(t)

	for move := uint8(0); move <= commitment.MaxMove; move++ {
		in := p.inputs(t, move, 1)
		proof, err := prover.Prove(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, []string{p.keyField.String(), "1", in.Commitment}, proof.PublicSignals)
		require.True(t, verifier.Verify(proof), "move %d", move)
	}
}

func TestProveRejectsOutOfRangeMove(t *testing.T) {
	a := testArtifacts(t)
	prover, err := NewProver(a)
	require.NoError(t, err)
	p := newPlayer(t)

	// commitment.Commit refuses move 3, so build the matching commitment by hand
	nonce, err := commitment.ParseField(p.nonce)
	require.NoError(t, err)
	h, err := commitment.Hash(big.NewInt(3), nonce, p.keyField, big.NewInt(1))
	require.NoError(t, err)

	_, err = prover.Prove(context.Background(), Inputs{
		Move: 3, Nonce: p.nonce, PublicKeyField: p.keyField, Round: 1, Commitment: h.String(),
	})
	require.True(t, errors.Is(err, ErrProofGeneration), "got %v", err)
}

func TestProveRejectsMismatchedCommitment(t *testing.T) {
	a := testArtifacts(t)
	prover, err := NewProver(a)
	require.NoError(t, err)
	p := newPlayer(t)

	in := p.inputs(t, 1, 1)
	in.Move = 2
	_, err = prover.Prove(context.Background(), in)
	require.ErrorIs(t, err, ErrProofGeneration)
}

func TestVerifyRejectsAlteredSignals(t *testing.T) {
	a := testArtifacts(t)
	prover, err := NewProver(a)
	require.NoError(t, err)
	verifier := NewVerifierFromDocument(a.VerifyingKey)
	p := newPlayer(t)
	other := newPlayer(t)

	proof, err := prover.Prove(context.Background(), p.inputs(t, 0, 4))
	require.NoError(t, err)

	alter := func(i int, v string) *Proof {
		signals := append([]string(nil), proof.PublicSignals...)
		signals[i] = v
		return &Proof{Proof: proof.Proof, PublicSignals: signals}
	}

	require.False(t, verifier.Verify(alter(0, other.keyField.String())), "other key")
	require.False(t, verifier.Verify(alter(1, "5")), "replayed into another round")
	require.False(t, verifier.Verify(alter(2, "12345")), "other commitment")
	require.False(t, verifier.Verify(alter(2, "not a number")), "malformed signal")
	require.False(t, verifier.Verify(&Proof{Proof: proof.Proof, PublicSignals: proof.PublicSignals[:2]}))
	require.False(t, verifier.Verify(&Proof{Proof: []byte{1, 2, 3}, PublicSignals: proof.PublicSignals}))
	require.False(t, verifier.Verify(nil))
	require.True(t, verifier.Verify(proof))
}

func TestArtifactsFromFilesAndHTTP(t *testing.T) {
	a := testArtifacts(t)
	dir := t.TempDir()
	src := Source{
		Circuit:      filepath.Join(dir, "hand.ccs"),
		ProvingKey:   filepath.Join(dir, "hand.pk"),
		VerifyingKey: filepath.Join(dir, "hand.vk.json"),
	}
	require.NoError(t, a.WriteFiles(src))

	loaded, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, a.VerifyingKey, loaded.VerifyingKey)
	_, err = NewProver(loaded)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hand.vk.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(a.VerifyingKey)
	}))
	defer srv.Close()

	doc, err := Fetch(context.Background(), srv.URL+"/hand.vk.json")
	require.NoError(t, err)
	_, err = ParseVerifyingKey(doc)
	require.NoError(t, err)

	_, err = Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}

func TestVerifierLoadFailure(t *testing.T) {
	calls := 0
	v := NewVerifier(func() ([]byte, error) {
		calls++
		return nil, errors.New("unreachable")
	})
	require.False(t, v.Verify(&Proof{}))
	require.False(t, v.Verify(&Proof{}))
	require.Error(t, v.Err())
	require.Equal(t, 1, calls)

	v = NewVerifierFromDocument([]byte(`{"protocol":"plonk","curve":"bn254","nPublic":3}`))
	require.ErrorIs(t, v.Err(), ErrArtifact)
}
