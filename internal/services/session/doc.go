// Package session is the root of the session layer.
//
// Manager ensures a per-peer session exists before a message is sealed,
// using either the handshake agreement or a peer's published key pool, and
// opens incoming frames with the matching key material. Establishing and
// accepting sessions share one gate per peer, so they never overlap and
// concurrent first messages run a single handshake. Handshake sessions are
// bound to the local identity key that made them and are ignored once the
// identity changes.
//
// A handshake initiator attaches its header to every frame until it hears
// back. The responder checks the header's identity key against the key
// directory, decrypts, and only then stores the session. If both sides
// initiate, the side with the lower user ID keeps its session and the other
// adopts it.
package session
