package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustIdentity(t *testing.T) *Identity {
	t.Helper()
	id, err := Generate()
	require.NoError(t, err)
	return id
}

func TestGenerateProducesDistinctKeys(t *testing.T) {
	a := mustIdentity(t)
	b := mustIdentity(t)
	require.Len(t, a.PublicKey(), PublicKeySize)
	require.NotEqual(t, a.PublicKeyHex(), b.PublicKeyHex())
}

func TestPublicKeyIsCopied(t *testing.T) {
	id := mustIdentity(t)
	pk := id.PublicKey()
	pk[0] ^= 0xff
	require.NotEqual(t, pk, id.PublicKey())
}

func TestSignVerifyRoundTrip(t *testing.T) {
	id := mustIdentity(t)
	msg := []byte(`{"round":1,"type":"HAND_COMMIT"}`)
	sig, err := id.Sign(msg)
	require.NoError(t, err)
	require.True(t, Verify(id.PublicKeyHex(), msg, sig))
}

func TestVerifyRejectsTampering(t *testing.T) {
	id := mustIdentity(t)
	msg := []byte("rock paper scissors")
	sig, err := id.Sign(msg)
	require.NoError(t, err)

	for i := range sig {
		bad := append([]byte(nil), sig...)
		bad[i] ^= 0x01
		if Verify(id.PublicKeyHex(), msg, bad) {
			t.Fatalf("signature with byte %d flipped still verifies", i)
		}
	}
	for i := range msg {
		bad := append([]byte(nil), msg...)
		bad[i] ^= 0x01
		if Verify(id.PublicKeyHex(), bad, sig) {
			t.Fatalf("message with byte %d flipped still verifies", i)
		}
	}
}

func TestVerifyWrongKey(t *testing.T) {
	a := mustIdentity(t)
	b := mustIdentity(t)
	msg := []byte("hello")
	sig, err := a.Sign(msg)
	require.NoError(t, err)
	require.False(t, Verify(b.PublicKeyHex(), msg, sig))
}

func TestVerifyMalformedInput(t *testing.T) {
	id := mustIdentity(t)
	msg := []byte("hello")
	sig, err := id.Sign(msg)
	require.NoError(t, err)

	require.False(t, Verify("not-hex", msg, sig))
	require.False(t, Verify("abcd", msg, sig))
	require.False(t, Verify(id.PublicKeyHex(), msg, nil))
	require.False(t, Verify(id.PublicKeyHex(), msg, sig[:10]))
}

func TestDecodePublicKey(t *testing.T) {
	id := mustIdentity(t)
	raw, err := DecodePublicKey(id.PublicKeyHex())
	require.NoError(t, err)
	require.Equal(t, id.PublicKey(), raw)

	_, err = DecodePublicKey("zz")
	require.ErrorIs(t, err, ErrInvalidPublicKey)
	_, err = DecodePublicKey("00")
	require.ErrorIs(t, err, ErrInvalidPublicKey)
}
