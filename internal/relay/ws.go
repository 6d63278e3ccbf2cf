package relay

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

// Subscribe opens the relay's push channel for user and calls handle for
// each frame it delivers. It returns when ctx is done or the connection
// drops; reconnecting is left to the caller.
func (c *HTTP) Subscribe(ctx context.Context, user domain.UserID, handle func(domain.Frame)) error {
	u, err := pushURL(c.Base, "/ws/"+url.PathEscape(user.String()))
	if err != nil {
		return err
	}
	conn, _, err := c.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return errors.Wrap(err, "dial push channel")
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	c.logger.Debug("subscribed", zap.Stringer("user", user))
	for {
		var f domain.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read pushed frame")
		}
		handle(f)
	}
}

// pushURL turns an http(s) base URL into the ws(s) URL for path, which must
// already be escaped.
func pushURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse relay url")
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/") + path, nil
}
