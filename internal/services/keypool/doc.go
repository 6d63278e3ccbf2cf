// Package keypool manages one-time key pools on behalf of the session layer.
package keypool
