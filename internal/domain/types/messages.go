package types

// HandshakeHeader carries the initiator's public handshake parameters so the
// responder can compute the mirrored agreement.
type HandshakeHeader struct {
	IdentityKey  X25519Public `json:"identityKey"`
	EphemeralKey X25519Public `json:"ephemeralKey"`
	// SignedPreKey is the responder's signed pre-key the initiator used.
	SignedPreKey X25519Public `json:"signedPreKey"`
}

// Frame is the unit exchanged over the relay transport.
// EncryptedMessage is the base64 envelope produced by the message cipher.
type Frame struct {
	ID               string           `json:"id,omitempty"`
	From             UserID           `json:"from"`
	To               UserID           `json:"to"`
	Strategy         Strategy         `json:"strategy"`
	EncryptedMessage string           `json:"encrypted_message"`
	Handshake        *HandshakeHeader `json:"handshake,omitempty"`
	Timestamp        int64            `json:"timestamp"`
}

// DecryptedMessage is what MessageService.ReceiveMessages returns. Err is set
// when the frame could not be opened; Plaintext is then nil.
type DecryptedMessage struct {
	ID        string `json:"id"`
	From      UserID `json:"from"`
	To        UserID `json:"to"`
	Plaintext []byte `json:"plaintext"`
	Timestamp int64  `json:"timestamp"`
	Err       error  `json:"-"`
}
