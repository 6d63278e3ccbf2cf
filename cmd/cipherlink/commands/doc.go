// Package commands defines the cipherlink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create the local identity and seal it with -p
//   - fingerprint    Print the identity fingerprint
//   - register       Publish your key bundle (and key pool) to a relay
//   - start-session  Establish a session with a peer
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages
//   - sessions       List sessions held under the current identity
//   - chat           Interactive chat with live delivery over websocket
//
// # Implementation
//
// The root command builds the dependency graph (stores, services, relay
// client) through app.NewWire before any subcommand runs. One-shot commands
// are bounded by --timeout; chat runs until stdin closes or it is
// interrupted.
package commands
