package x3dh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/x3dh"
)

type party struct {
	identity domain.Identity
	spkPriv  domain.X25519Private
	spkPub   domain.X25519Public
	spkSig   []byte
}

// makeParty creates fresh X25519/Ed25519 identity pairs and a signed pre-key.
func makeParty(t *testing.T) party {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	spkPriv, spkPub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	return party{
		identity: domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv},
		spkPriv:  spkPriv,
		spkPub:   spkPub,
		spkSig:   crypto.SignEd25519(edPriv, spkPub[:]),
	}
}

func (p party) bundle() domain.KeyBundle {
	return domain.KeyBundle{
		IdentityKey:  p.identity.XPub,
		SigningKey:   p.identity.EdPub,
		SignedPreKey: p.spkPub,
		Signature:    p.spkSig,
		Username:     "bob",
	}
}

func TestInitiatorAndResponderRoot_Match(t *testing.T) {
	// Alice is initiator, Bob is responder.
	alice := makeParty(t)
	bob := makeParty(t)

	require.NoError(t, x3dh.ValidateBundle(bob.bundle()))

	ephPriv, ephPub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	rootA, err := x3dh.InitiatorRoot(alice.identity.XPriv, ephPriv, bob.identity.XPub, bob.spkPub)
	require.NoError(t, err)

	rootB, err := x3dh.ResponderRoot(bob.identity.XPriv, bob.spkPriv, alice.identity.XPub, ephPub)
	require.NoError(t, err)

	require.Equal(t, rootA, rootB, "root keys differ")
	require.False(t, rootA.IsZero())
}

func TestRoot_SwappedOperandsDiffer(t *testing.T) {
	alice := makeParty(t)
	bob := makeParty(t)
	ephPriv, ephPub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	rootA, err := x3dh.InitiatorRoot(alice.identity.XPriv, ephPriv, bob.identity.XPub, bob.spkPub)
	require.NoError(t, err)

	// Responder mixing up identity and signed pre-key must not agree.
	wrong, err := x3dh.ResponderRoot(bob.spkPriv, bob.identity.XPriv, alice.identity.XPub, ephPub)
	require.NoError(t, err)
	require.NotEqual(t, rootA, wrong)
}

func TestRoot_FreshEphemeralGivesFreshRoot(t *testing.T) {
	alice := makeParty(t)
	bob := makeParty(t)

	eph1, _, err := crypto.GenerateX25519()
	require.NoError(t, err)
	eph2, _, err := crypto.GenerateX25519()
	require.NoError(t, err)

	r1, err := x3dh.InitiatorRoot(alice.identity.XPriv, eph1, bob.identity.XPub, bob.spkPub)
	require.NoError(t, err)
	r2, err := x3dh.InitiatorRoot(alice.identity.XPriv, eph2, bob.identity.XPub, bob.spkPub)
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)
}

func TestValidateBundle_SignatureOverOtherBytes(t *testing.T) {
	bob := makeParty(t)
	b := bob.bundle()

	_, otherPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	b.Signature = crypto.SignEd25519(bob.identity.EdPriv, otherPub[:])

	require.ErrorIs(t, x3dh.ValidateBundle(b), domain.ErrInvalidSignature)
}

func TestValidateBundle_TamperedPreKey(t *testing.T) {
	bob := makeParty(t)
	b := bob.bundle()
	b.SignedPreKey[0] ^= 0x01

	require.ErrorIs(t, x3dh.ValidateBundle(b), domain.ErrInvalidSignature)
}

func TestValidateBundle_MissingFields(t *testing.T) {
	bob := makeParty(t)

	cases := map[string]func(*domain.KeyBundle){
		"identity key":   func(b *domain.KeyBundle) { b.IdentityKey = domain.X25519Public{} },
		"signing key":    func(b *domain.KeyBundle) { b.SigningKey = domain.Ed25519Public{} },
		"signed pre-key": func(b *domain.KeyBundle) { b.SignedPreKey = domain.X25519Public{} },
		"signature":      func(b *domain.KeyBundle) { b.Signature = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := bob.bundle()
			mutate(&b)
			require.ErrorIs(t, x3dh.ValidateBundle(b), domain.ErrMalformedBundle)
		})
	}
}
