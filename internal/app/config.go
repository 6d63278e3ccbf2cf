package app

import (
	"net/http"

	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string          // state directory, e.g. $HOME/.cipherlink; empty keeps everything in memory
	RelayURL string          // relay base URL, e.g. http://127.0.0.1:8080; empty uses an in-process relay
	UserID   domain.UserID   // address on the relay
	Username domain.Username // display name published in the bundle
	Strategy domain.Strategy // session strategy for outgoing messages
	PoolSize int             // keys per published pool
	HTTP     *http.Client    // optional; defaults to http.DefaultClient
	Logger   *zap.Logger     // optional; defaults to a no-op logger
}
