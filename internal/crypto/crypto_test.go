package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
)

func TestDH_Symmetric(t *testing.T) {
	aPriv, aPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	bPriv, bPub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	ab, err := crypto.DH(aPriv, bPub)
	require.NoError(t, err)
	ba, err := crypto.DH(bPriv, aPub)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
}

func TestDH_RejectsLowOrderPoint(t *testing.T) {
	priv, _, err := crypto.GenerateX25519()
	require.NoError(t, err)

	_, err = crypto.DH(priv, domain.X25519Public{})
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	msg := []byte("signed pre-key bytes")
	sig := crypto.SignEd25519(priv, msg)
	require.True(t, crypto.VerifyEd25519(pub, msg, sig))
	require.False(t, crypto.VerifyEd25519(pub, []byte("other bytes"), sig))
	require.False(t, crypto.VerifyEd25519(pub, msg, sig[:10]))
}

func TestRandomIndex_InRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		n, err := crypto.RandomIndex(3)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 3)
	}
}

func TestSessionTag_StableAndShort(t *testing.T) {
	k, err := crypto.RandomKey()
	require.NoError(t, err)
	require.Equal(t, crypto.SessionTag(k), crypto.SessionTag(k))
	require.Len(t, crypto.SessionTag(k).String(), 20)
	require.Len(t, crypto.Fingerprint(k[:]).String(), 20)
}
