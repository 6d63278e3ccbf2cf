package message

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

// Service moves encrypted frames between the session layer and the relay.
//
// Send seals through the session manager and queues the frame for the peer.
// Receive fetches queued frames, opens them in order and acknowledges the
// ones it is done with: those it opened and those that can never be opened.
// On a retryable failure it stops and leaves the rest queued.
type Service struct {
	local     domain.UserID
	sessions  domain.SessionService
	transport domain.Transport
	logger    *zap.Logger
}

// New returns a message service for the local user.
func New(
	local domain.UserID,
	sessions domain.SessionService,
	transport domain.Transport,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		local:     local,
		sessions:  sessions,
		transport: transport,
		logger:    logger.With(zap.Namespace("message")),
	}
}

// SendMessage encrypts plaintext for to and posts it to the relay.
func (s *Service) SendMessage(ctx context.Context, to domain.UserID, plaintext []byte) (domain.Frame, error) {
	f, err := s.sessions.EncryptFor(ctx, to, plaintext)
	if err != nil {
		return domain.Frame{}, errors.Wrapf(err, "encrypt for %s", to)
	}
	if err := s.transport.SendFrame(ctx, f); err != nil {
		return domain.Frame{}, errors.Wrapf(err, "send to %s", to)
	}
	return f, nil
}

// ReceiveMessages fetches up to limit frames and decrypts them in order.
//
// Frames that cannot ever be opened are returned with Err set and
// acknowledged. A retryable failure stops processing; the frames handled
// before it are still acknowledged and returned along with the error.
func (s *Service) ReceiveMessages(ctx context.Context, limit int) ([]domain.DecryptedMessage, error) {
	frames, err := s.transport.FetchFrames(ctx, s.local, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch frames")
	}

	out := make([]domain.DecryptedMessage, 0, len(frames))
	done := make([]string, 0, len(frames))
	var stop error
	for _, f := range frames {
		msg := s.HandleFrame(ctx, f)
		if msg.Err != nil && !Permanent(msg.Err) {
			stop = errors.Wrapf(msg.Err, "frame %s from %s", f.ID, f.From)
			break
		}
		out = append(out, msg)
		done = append(done, f.ID)
	}

	if len(done) > 0 {
		if err := s.transport.AckFrames(ctx, s.local, done); err != nil {
			return out, errors.Wrapf(err, "ack %d frames", len(done))
		}
	}
	return out, stop
}

// HandleFrame decrypts a single frame. Failures are reported in Err.
func (s *Service) HandleFrame(ctx context.Context, f domain.Frame) domain.DecryptedMessage {
	msg := domain.DecryptedMessage{ID: f.ID, From: f.From, To: f.To, Timestamp: f.Timestamp}
	pt, err := s.sessions.DecryptFrom(ctx, f.From, f)
	if err != nil {
		s.logger.Warn("failed to open frame",
			zap.String("id", f.ID),
			zap.Stringer("from", f.From),
			zap.Error(err),
		)
		msg.Err = err
		return msg
	}
	msg.Plaintext = pt
	return msg
}

// Listen handles frames pushed by sub until ctx is done, calling handle for
// each one and acknowledging it unless it failed with a retryable error.
// Those stay queued for the next ReceiveMessages.
func (s *Service) Listen(
	ctx context.Context,
	sub domain.Subscriber,
	handle func(domain.DecryptedMessage),
) error {
	return sub.Subscribe(ctx, s.local, func(f domain.Frame) {
		msg := s.HandleFrame(ctx, f)
		if msg.Err != nil && !Permanent(msg.Err) {
			return
		}
		handle(msg)
		if err := s.transport.AckFrames(ctx, s.local, []string{f.ID}); err != nil {
			s.logger.Warn("failed to ack pushed frame", zap.String("id", f.ID), zap.Error(err))
		}
	})
}

// Permanent reports whether err means the frame can never be opened, so
// keeping it queued is pointless.
func Permanent(err error) bool {
	for _, kind := range []error{
		domain.ErrDecryptionFailed,
		domain.ErrMalformedEnvelope,
		domain.ErrMalformedHandshake,
		domain.ErrInvalidSignature,
		domain.ErrMalformedBundle,
		domain.ErrUnknownStrategy,
		domain.ErrKeyNotFound,
		domain.ErrPeerNotFound,
		domain.ErrNoSession,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

var _ domain.MessageService = (*Service)(nil)
