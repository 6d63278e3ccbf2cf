// Package relayserver implements the development relay: the key directory
// and message queue HTTP API spoken by package relay, plus websocket push.
//
//	POST /keys/upload/{user}        store user's key bundle
//	GET  /keys/bundle/{user}        return it, 404 if absent
//	POST /keypool/upload/{user}     store user's one-time key pool {keys:[{id,key}]}
//	GET  /keypool/download/{user}   return it, 404 if absent
//	POST /msg/{user}                queue a frame, assigning id and timestamp
//	GET  /msg/{user}?limit=N        list queued frames, oldest first
//	POST /msg/{user}/ack            drop frames by id {ids:[...]}
//	GET  /ws/{user}                 websocket; each newly queued frame is pushed as JSON
//
// State lives in a Backend; LevelDB is the provided one, on disk or in
// memory. The relay never sees plaintext or private keys.
package relayserver
