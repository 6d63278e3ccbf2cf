package handshake_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/envelope"
	"cipherlink/internal/services/handshake"
	"cipherlink/internal/services/identity"
	"cipherlink/internal/store"
)

type EngineSuite struct {
	suite.Suite

	alice, bob             domain.IdentityMaterial
	aliceStore, bobStore   *store.MemorySessionStore
	aliceEngine, bobEngine *handshake.Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	var err error
	s.alice, _, err = identity.New(nil, nil).Generate()
	s.Require().NoError(err)
	s.bob, _, err = identity.New(nil, nil).Generate()
	s.Require().NoError(err)

	s.aliceStore = store.NewMemorySessionStore()
	s.bobStore = store.NewMemorySessionStore()
	s.aliceEngine = handshake.New(s.aliceStore, nil)
	s.bobEngine = handshake.New(s.bobStore, nil)
}

func bundleOf(m domain.IdentityMaterial) domain.KeyBundle {
	return domain.KeyBundle{
		IdentityKey:  m.Identity.XPub,
		SigningKey:   m.Identity.EdPub,
		SignedPreKey: m.SignedPreKey.Pub,
		Signature:    append([]byte(nil), m.SignedPreKey.Signature...),
	}
}

func (s *EngineSuite) TestMirroredRootsMatch() {
	as, err := s.aliceEngine.Establish(s.alice, "bob", bundleOf(s.bob))
	s.Require().NoError(err)
	s.Require().Equal(domain.StrategyHandshake, as.Strategy)
	s.Require().True(as.Handshake.Initiator)
	s.Require().False(as.Handshake.RootKey.IsZero())

	hdr := handshake.HeaderFor(s.alice, as.Handshake)
	bs, err := s.bobEngine.Accept(s.bob, "alice", hdr)
	s.Require().NoError(err)
	s.Require().False(bs.Handshake.Initiator)
	s.Require().Equal(as.Handshake.RootKey, bs.Handshake.RootKey)
	s.Require().Equal(s.alice.Identity.XPub, as.Handshake.LocalIdentityKey)
	s.Require().Equal(s.bob.Identity.XPub, bs.Handshake.LocalIdentityKey)

	stored, ok, err := s.bobStore.LoadSession("alice")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(bs.Handshake.RootKey, stored.Handshake.RootKey)
}

func (s *EngineSuite) TestHelloScenario() {
	as, err := s.aliceEngine.Establish(s.alice, "bob", bundleOf(s.bob))
	s.Require().NoError(err)

	env, err := envelope.Seal([]byte("hi"), as.Handshake.RootKey)
	s.Require().NoError(err)

	bs, err := s.bobEngine.Accept(s.bob, "alice", handshake.HeaderFor(s.alice, as.Handshake))
	s.Require().NoError(err)
	pt, err := envelope.Open(env, bs.Handshake.RootKey)
	s.Require().NoError(err)
	s.Require().Equal("hi", string(pt))
}

func (s *EngineSuite) TestInvalidSignatureStoresNothing() {
	b := bundleOf(s.bob)
	b.Signature[0] ^= 0xff

	_, err := s.aliceEngine.Establish(s.alice, "bob", b)
	s.Require().ErrorIs(err, domain.ErrInvalidSignature)

	_, ok, err := s.aliceStore.LoadSession("bob")
	s.Require().NoError(err)
	s.Require().False(ok)
}

func (s *EngineSuite) TestSignatureFromOtherKeyRejected() {
	b := bundleOf(s.bob)
	b.SigningKey = s.alice.Identity.EdPub

	_, err := s.aliceEngine.Establish(s.alice, "bob", b)
	s.Require().ErrorIs(err, domain.ErrInvalidSignature)
}

func (s *EngineSuite) TestMalformedBundle() {
	b := bundleOf(s.bob)
	b.SignedPreKey = domain.X25519Public{}

	_, err := s.aliceEngine.Establish(s.alice, "bob", b)
	s.Require().ErrorIs(err, domain.ErrMalformedBundle)
}

func (s *EngineSuite) TestEstablishTwiceReplacesSession() {
	first, err := s.aliceEngine.Establish(s.alice, "bob", bundleOf(s.bob))
	s.Require().NoError(err)
	second, err := s.aliceEngine.Establish(s.alice, "bob", bundleOf(s.bob))
	s.Require().NoError(err)

	s.Require().NotEqual(first.Handshake.EphemeralPublic, second.Handshake.EphemeralPublic)
	s.Require().NotEqual(first.Handshake.RootKey, second.Handshake.RootKey)

	stored, ok, err := s.aliceStore.LoadSession("bob")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(second.Handshake.RootKey, stored.Handshake.RootKey)
}

func (s *EngineSuite) TestAcceptRejectsForeignPreKey() {
	as, err := s.aliceEngine.Establish(s.alice, "bob", bundleOf(s.bob))
	s.Require().NoError(err)

	hdr := handshake.HeaderFor(s.alice, as.Handshake)
	hdr.SignedPreKey = domain.X25519Public{42}
	_, err = s.bobEngine.Accept(s.bob, "alice", hdr)
	s.Require().ErrorIs(err, domain.ErrMalformedHandshake)

	_, err = s.bobEngine.Accept(s.bob, "alice", domain.HandshakeHeader{SignedPreKey: s.bob.SignedPreKey.Pub})
	s.Require().ErrorIs(err, domain.ErrMalformedHandshake)

	_, ok, err := s.bobStore.LoadSession("alice")
	s.Require().NoError(err)
	s.Require().False(ok)
}

func (s *EngineSuite) TestDeriveDoesNotStore() {
	as, err := s.aliceEngine.Establish(s.alice, "bob", bundleOf(s.bob))
	s.Require().NoError(err)

	root, err := s.bobEngine.Derive(s.bob, handshake.HeaderFor(s.alice, as.Handshake))
	s.Require().NoError(err)
	s.Require().Equal(as.Handshake.RootKey, root)

	peers, err := s.bobStore.Peers()
	s.Require().NoError(err)
	s.Require().Empty(peers)
}
