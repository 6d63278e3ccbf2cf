package relayserver

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

// maxBody bounds request bodies; a full default key pool is well under it.
const maxBody = 4 << 20

// Server is the development relay: a key directory, a per-user frame queue
// and a websocket push channel. It only ever sees public keys and
// ciphertext.
type Server struct {
	backend  Backend
	hub      *hub
	logger   *zap.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	now      func() time.Time
}

// New returns a Server storing its state in backend.
func New(backend Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		hub:     newHub(logger),
		logger:  logger,
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}

	s.mux.HandleFunc("POST /keys/upload/{user}", s.putBundle)
	s.mux.HandleFunc("GET /keys/bundle/{user}", s.getBundle)
	s.mux.HandleFunc("POST /keypool/upload/{user}", s.putPool)
	s.mux.HandleFunc("GET /keypool/download/{user}", s.getPool)
	s.mux.HandleFunc("POST /msg/{user}", s.enqueue)
	s.mux.HandleFunc("GET /msg/{user}", s.fetch)
	s.mux.HandleFunc("POST /msg/{user}/ack", s.ack)
	s.mux.HandleFunc("GET /ws/{user}", s.push)
	return s
}

// ServeHTTP routes the request and writes one access log line for it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
		zap.Int("status", rec.status),
		zap.Int("bytes", rec.bytes),
		zap.Duration("took", s.now().Sub(start)),
	)
}

// Close disconnects push subscribers.
func (s *Server) Close() { s.hub.closeAll() }

func user(r *http.Request) domain.UserID { return domain.UserID(r.PathValue("user")) }

func (s *Server) putBundle(w http.ResponseWriter, r *http.Request) {
	var b domain.KeyBundle
	if !s.decode(w, r, &b) {
		return
	}
	if b.IdentityKey.IsZero() || b.SigningKey.IsZero() || b.SignedPreKey.IsZero() || len(b.Signature) == 0 {
		http.Error(w, "bundle is missing keys", http.StatusBadRequest)
		return
	}
	s.store(w, func(raw []byte) error { return s.backend.PutBundle(user(r), raw) }, b)
}

func (s *Server) getBundle(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := s.backend.GetBundle(user(r))
	s.writeRaw(w, raw, ok, err)
}

func (s *Server) putPool(w http.ResponseWriter, r *http.Request) {
	var p domain.KeyPool
	if !s.decode(w, r, &p) {
		return
	}
	if len(p.Keys) == 0 {
		http.Error(w, "empty key pool", http.StatusBadRequest)
		return
	}
	s.store(w, func(raw []byte) error { return s.backend.PutPool(user(r), raw) }, p)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := s.backend.GetPool(user(r))
	s.writeRaw(w, raw, ok, err)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	var f domain.Frame
	if !s.decode(w, r, &f) {
		return
	}
	if f.EncryptedMessage == "" {
		http.Error(w, "empty frame", http.StatusBadRequest)
		return
	}
	f.To = user(r)
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp == 0 {
		f.Timestamp = s.now().Unix()
	}
	if err := s.backend.Enqueue(f); err != nil {
		s.fail(w, err)
		return
	}
	s.hub.publish(f)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": f.ID})
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	frames, err := s.backend.Fetch(user(r), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if frames == nil {
		frames = []domain.Frame{}
	}
	s.writeJSON(w, http.StatusOK, frames)
}

func (s *Server) ack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	n, err := s.backend.Ack(user(r), body.IDs)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	s.hub.serve(user(r), conn)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBody)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) store(w http.ResponseWriter, put func([]byte) error, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := put(raw); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeRaw(w http.ResponseWriter, raw []byte, ok bool, err error) {
	switch {
	case err != nil:
		s.fail(w, err)
	case !ok:
		http.Error(w, "not found", http.StatusNotFound)
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("backend failure", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// statusRecorder captures the status code and size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
