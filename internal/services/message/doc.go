// Package message sends and receives encrypted frames over the relay
// transport, delegating all key handling to the session manager.
package message
