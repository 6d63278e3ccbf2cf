// Package main runs the cipherlink relay: a key directory for bundles and
// key pools plus a per-user queue of encrypted frames, with websocket push
// for connected clients.
//
// Usage
//
//	relay [--addr :8080] [--db ./relay.db] [--log-level info]
//
// Without --db all state is held in memory and lost on process exit. The
// HTTP API is documented in package relayserver. Each request is written to
// a JSON access log.
//
// The relay is an untrusted middleman. It never sees plaintext or private
// keys; it only stores ciphertext and public keys.
package main
