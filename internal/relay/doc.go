// Package relay implements the client side of the key directory and the
// message queue.
//
// HTTP speaks JSON to a relay server:
//   - key bundles under /keys/upload/{user} and /keys/bundle/{user}
//   - one-time key pools under /keypool/upload/{user} and /keypool/download/{user}
//   - queued frames under /msg/{user}, acknowledged by ID via /msg/{user}/ack
//   - pushed frames over a websocket at /ws/{user}
//
// Directory failures surface as *domain.DirectoryError, which unwraps to
// domain.ErrPeerNotFound for a 404 and domain.ErrDirectoryUnavailable for
// anything else. Directory reads are retried with exponential backoff.
//
// Memory provides the same behaviour in process.
package relay
