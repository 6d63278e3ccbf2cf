package relayserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// hub fans frames out to the websocket subscribers of their recipient.
// Pushing is best effort; frames stay queued until acknowledged.
type hub struct {
	logger *zap.Logger

	mu   sync.Mutex
	subs map[domain.UserID]map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger: logger.With(zap.Namespace("push")),
		subs:   make(map[domain.UserID]map[*subscriber]struct{}),
	}
}

// serve registers conn for user and pumps frames to it until it closes.
func (h *hub) serve(user domain.UserID, conn *websocket.Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.subs[user] == nil {
		h.subs[user] = make(map[*subscriber]struct{})
	}
	h.subs[user][sub] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", zap.Stringer("user", user))

	go h.writePump(sub)
	h.readPump(sub)

	h.mu.Lock()
	delete(h.subs[user], sub)
	if len(h.subs[user]) == 0 {
		delete(h.subs, user)
	}
	h.mu.Unlock()
	sub.close()
	h.logger.Debug("subscriber gone", zap.Stringer("user", user))
}

// publish pushes f to every subscriber of f.To. Slow subscribers miss it.
func (h *hub) publish(f domain.Frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[f.To] {
		select {
		case sub.send <- raw:
		default:
			h.logger.Warn("subscriber too slow, dropping push", zap.Stringer("user", f.To))
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for sub := range set {
			_ = sub.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			_ = sub.conn.Close()
		}
	}
}

// readPump discards client messages and returns when the connection drops.
func (h *hub) readPump(sub *subscriber) {
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *subscriber) close() { s.once.Do(func() { close(s.send) }) }
