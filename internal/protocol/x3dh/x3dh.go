package x3dh

import (
	"golang.org/x/crypto/blake2b"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/util/memzero"
)

// InitiatorRoot derives the root key for the party that fetched the bundle.
//
//	DH1 = DH(IKa, SPKb)
//	DH2 = DH(EKa, IKb)
//	DH3 = DH(EKa, SPKb)
func InitiatorRoot(
	ourIdentityPriv domain.X25519Private,
	ourEphemeralPriv domain.X25519Private,
	peerIdentityPub domain.X25519Public,
	peerSignedPreKey domain.X25519Public,
) (domain.SymmetricKey, error) {
	dh1, err := crypto.DH(ourIdentityPriv, peerSignedPreKey)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	dh2, err := crypto.DH(ourEphemeralPriv, peerIdentityPub)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	dh3, err := crypto.DH(ourEphemeralPriv, peerSignedPreKey)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	return rootKey(dh1, dh2, dh3), nil
}

// ResponderRoot derives the same root key on the bundle owner's side.
//
//	DH1 = DH(SPKb, IKa)
//	DH2 = DH(IKb, EKa)
//	DH3 = DH(SPKb, EKa)
func ResponderRoot(
	ourIdentityPriv domain.X25519Private,
	ourSignedPreKeyPriv domain.X25519Private,
	peerIdentityPub domain.X25519Public,
	peerEphemeralPub domain.X25519Public,
) (domain.SymmetricKey, error) {
	dh1, err := crypto.DH(ourSignedPreKeyPriv, peerIdentityPub)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	dh2, err := crypto.DH(ourIdentityPriv, peerEphemeralPub)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	dh3, err := crypto.DH(ourSignedPreKeyPriv, peerEphemeralPub)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	return rootKey(dh1, dh2, dh3), nil
}

// VerifySPK checks the signed pre-key signature.
func VerifySPK(signingKey domain.Ed25519Public, spk domain.X25519Public, sig []byte) bool {
	return crypto.VerifyEd25519(signingKey, spk.Slice(), sig)
}

// ValidateBundle checks that every field the handshake needs is present and
// that the signature covers exactly the published signed pre-key.
func ValidateBundle(b domain.KeyBundle) error {
	if b.IdentityKey.IsZero() || b.SigningKey.IsZero() || b.SignedPreKey.IsZero() ||
		len(b.Signature) == 0 {
		return domain.ErrMalformedBundle
	}
	if !VerifySPK(b.SigningKey, b.SignedPreKey, b.Signature) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// rootKey hashes DH1 ‖ DH2 ‖ DH3 with BLAKE2b-256 and wipes the transcript.
func rootKey(dh1, dh2, dh3 [32]byte) domain.SymmetricKey {
	transcript := make([]byte, 0, 32*3)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	root := domain.SymmetricKey(blake2b.Sum256(transcript))
	memzero.Zero(transcript)
	memzero.Zero(dh1[:])
	memzero.Zero(dh2[:])
	memzero.Zero(dh3[:])
	return root
}
