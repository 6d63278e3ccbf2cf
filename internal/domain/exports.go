package domain

import (
	"github.com/pkg/errors"

	interfaces "cipherlink/internal/domain/interfaces"
	types "cipherlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID           = types.UserID
	Username         = types.Username
	Fingerprint      = types.Fingerprint
	KeyID            = types.KeyID
	Strategy         = types.Strategy
	Identity         = types.Identity
	SignedPreKey     = types.SignedPreKey
	IdentityMaterial = types.IdentityMaterial
	KeyBundle        = types.KeyBundle
	PoolEntry        = types.PoolEntry
	KeyPool          = types.KeyPool
	Session          = types.Session
	HandshakeSession = types.HandshakeSession
	PoolSession      = types.PoolSession
	HandshakeHeader  = types.HandshakeHeader
	Frame            = types.Frame
	DecryptedMessage = types.DecryptedMessage
	X25519Public     = types.X25519Public
	X25519Private    = types.X25519Private
	Ed25519Public    = types.Ed25519Public
	Ed25519Private   = types.Ed25519Private
	SymmetricKey     = types.SymmetricKey
)

// Strategy values re-exported for callers that only import domain.
const (
	StrategyHandshake = types.StrategyHandshake
	StrategyPool      = types.StrategyPool
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService  = interfaces.IdentityService
	PreKeyService    = interfaces.PreKeyService
	HandshakeService = interfaces.HandshakeService
	KeyPoolService   = interfaces.KeyPoolService
	SessionService   = interfaces.SessionService
	MessageService   = interfaces.MessageService
	KeyDirectory     = interfaces.KeyDirectory
	Transport        = interfaces.Transport
	Subscriber       = interfaces.Subscriber
	IdentityStore    = interfaces.IdentityStore
	PoolStore        = interfaces.PoolStore
	SessionStore     = interfaces.SessionStore
	BundleStore      = interfaces.BundleStore
)

// ParseStrategy maps a flag or wire value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if !st.Valid() {
		return "", errors.Wrapf(ErrUnknownStrategy, "%q", s)
	}
	return st, nil
}
