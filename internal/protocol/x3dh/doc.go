// Package x3dh implements the simplified X3DH key agreement that gives two
// peers a shared 32-byte root key without a prior exchange.
//
// # Overview
//
// The responder publishes a key bundle containing:
//   - Identity key (X25519)
//   - Signing key (Ed25519)
//   - Signed pre-key (X25519) and its Ed25519 signature
//
// There are no one-time pre-keys, so forward secrecy comes only from the
// initiator's ephemeral key.
//
// # Flows
//
// Initiator:
//  1. ValidateBundle: reject missing fields and bad signatures.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH(IKa, SPKb), DH(EKa, IKb), DH(EKa, SPKb) in that order.
//  4. BLAKE2b-256 over the concatenated transcript yields the root key.
//
// Responder:
//  1. Receive the initiator's identity and ephemeral public keys.
//  2. Compute DH(SPKb, IKa), DH(IKb, EKa), DH(SPKb, EKa).
//  3. Hash the same transcript to the identical root key.
//
// # Errors
//
// ValidateBundle returns domain.ErrMalformedBundle or
// domain.ErrInvalidSignature. The root functions return the error from
// X25519 when a peer key is a low-order point.
package x3dh
