package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

// HTTP talks to a relay that hosts the key directory and the message queue.
type HTTP struct {
	Base   string
	HTTP   *http.Client
	Dialer *websocket.Dialer

	// Backoff returns the retry policy for directory reads. Nil disables
	// retries.
	Backoff func() backoff.BackOff

	logger *zap.Logger
}

// NewHTTP returns a client for the relay at base. logger may be nil.
func NewHTTP(base string, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{
		Base:    strings.TrimRight(base, "/"),
		HTTP:    http.DefaultClient,
		Dialer:  websocket.DefaultDialer,
		Backoff: DefaultBackoff,
		logger:  logger.With(zap.Namespace("relay")),
	}
}

// DefaultBackoff retries a few times over roughly two seconds.
func DefaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 3 * time.Second
	return backoff.WithMaxRetries(b, 4)
}

// statusError is a non-2xx relay response.
type statusError struct {
	Method string
	Path   string
	Code   int
	Status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("relay %s %s: %s", e.Method, e.Path, e.Status)
}

// PublishBundle uploads b under user, replacing any previous bundle.
func (c *HTTP) PublishBundle(ctx context.Context, user domain.UserID, b domain.KeyBundle) error {
	err := c.post(ctx, "/keys/upload/"+url.PathEscape(user.String()), b, nil)
	return directoryError("publish bundle", user, err)
}

// FetchBundle downloads the bundle for user.
func (c *HTTP) FetchBundle(ctx context.Context, user domain.UserID) (domain.KeyBundle, error) {
	var out domain.KeyBundle
	err := c.retry(ctx, func() error {
		return c.getJSON(ctx, "/keys/bundle/"+url.PathEscape(user.String()), &out)
	})
	if err != nil {
		return domain.KeyBundle{}, directoryError("fetch bundle", user, err)
	}
	return out, nil
}

// PublishKeyPool uploads the public wire form of entries under user.
func (c *HTTP) PublishKeyPool(ctx context.Context, user domain.UserID, entries []domain.PoolEntry) error {
	err := c.post(ctx, "/keypool/upload/"+url.PathEscape(user.String()), domain.KeyPool{Keys: entries}, nil)
	return directoryError("publish pool", user, err)
}

// FetchKeyPool downloads the pool published by user.
func (c *HTTP) FetchKeyPool(ctx context.Context, user domain.UserID) ([]domain.PoolEntry, error) {
	var out domain.KeyPool
	err := c.retry(ctx, func() error {
		return c.getJSON(ctx, "/keypool/download/"+url.PathEscape(user.String()), &out)
	})
	if err != nil {
		return nil, directoryError("fetch pool", user, err)
	}
	return out.Keys, nil
}

// SendFrame queues f for f.To.
func (c *HTTP) SendFrame(ctx context.Context, f domain.Frame) error {
	return c.post(ctx, "/msg/"+url.PathEscape(f.To.String()), f, nil)
}

// FetchFrames returns up to limit queued frames for user. limit <= 0 asks
// for all of them.
func (c *HTTP) FetchFrames(ctx context.Context, user domain.UserID, limit int) ([]domain.Frame, error) {
	path := "/msg/" + url.PathEscape(user.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var frames []domain.Frame
	if err := c.getJSON(ctx, path, &frames); err != nil {
		return nil, err
	}
	return frames, nil
}

// AckFrames removes the frames with the given IDs from user's queue.
func (c *HTTP) AckFrames(ctx context.Context, user domain.UserID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.post(ctx, "/msg/"+url.PathEscape(user.String())+"/ack", struct {
		IDs []string `json:"ids"`
	}{IDs: ids}, nil)
}

// retry runs fn under the backoff policy. 4xx responses are not retried.
func (c *HTTP) retry(ctx context.Context, fn func() error) error {
	if c.Backoff == nil {
		return fn()
	}
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Debug("retrying directory read", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, backoff.WithContext(c.Backoff(), ctx))
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *HTTP) do(req *http.Request, path string, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &statusError{Method: req.Method, Path: path, Code: resp.StatusCode, Status: resp.Status}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

// directoryError maps a failed call onto the directory error kinds.
func directoryError(op string, user domain.UserID, err error) error {
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) {
		if se.Code == http.StatusNotFound {
			return &domain.DirectoryError{Op: op, UserID: user, Status: se.Code, Err: domain.ErrPeerNotFound}
		}
		return &domain.DirectoryError{Op: op, UserID: user, Status: se.Code, Err: wrapUnavailable(se)}
	}
	return &domain.DirectoryError{Op: op, UserID: user, Err: wrapUnavailable(err)}
}

// wrapUnavailable marks cause as ErrDirectoryUnavailable while keeping it
// reachable through errors.Is.
func wrapUnavailable(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, cause)
}

var (
	_ domain.KeyDirectory = (*HTTP)(nil)
	_ domain.Transport    = (*HTTP)(nil)
	_ domain.Subscriber   = (*HTTP)(nil)
)
