// Package handshake turns the x3dh key math into stored sessions.
//
// The initiator fetches the responder's bundle and calls Establish. Its
// ephemeral public key travels in a HandshakeHeader on every frame it sends,
// and the responder calls Accept with that header to reach the same root key.
package handshake
