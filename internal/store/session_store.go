package store

import (
	"path/filepath"
	"sort"
	"sync"

	"cipherlink/internal/domain"
)

const sessionsFilename = "sessions.json"

// MemorySessionStore keeps sessions for the lifetime of the process.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]domain.Session
}

// NewMemorySessionStore returns an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[domain.UserID]domain.Session)}
}

// SaveSession stores session for peer, replacing any previous one.
func (s *MemorySessionStore) SaveSession(peer domain.UserID, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[peer] = session
	return nil
}

// LoadSession returns the session for peer.
func (s *MemorySessionStore) LoadSession(peer domain.UserID) (domain.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[peer]
	return sess, ok, nil
}

// DeleteSession removes the session for peer, if any.
func (s *MemorySessionStore) DeleteSession(peer domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, peer)
	return nil
}

// Peers lists peers with a session, sorted.
func (s *MemorySessionStore) Peers() ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPeers(s.sessions), nil
}

// SessionFileStore persists sessions as JSON so one-shot commands can reuse
// them. Root keys are written unencrypted with mode 0600.
type SessionFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore rooted at dir.
func NewSessionFileStore(dir string) *SessionFileStore {
	return &SessionFileStore{dir: dir}
}

// SaveSession writes a session record for peer.
func (s *SessionFileStore) SaveSession(peer domain.UserID, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	sessions[peer] = session
	return writeJSON(s.path(), sessions, 0o600)
}

// LoadSession retrieves a stored session for peer.
func (s *SessionFileStore) LoadSession(peer domain.UserID) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return domain.Session{}, false, err
	}
	sess, ok := sessions[peer]
	return sess, ok, nil
}

// DeleteSession removes the session for peer, if any.
func (s *SessionFileStore) DeleteSession(peer domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := sessions[peer]; !ok {
		return nil
	}
	delete(sessions, peer)
	return writeJSON(s.path(), sessions, 0o600)
}

// Peers lists peers with a stored session, sorted.
func (s *SessionFileStore) Peers() ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedPeers(sessions), nil
}

func (s *SessionFileStore) load() (map[domain.UserID]domain.Session, error) {
	sessions := map[domain.UserID]domain.Session{}
	if _, err := readJSON(s.path(), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionFileStore) path() string { return filepath.Join(s.dir, sessionsFilename) }

func sortedPeers(m map[domain.UserID]domain.Session) []domain.UserID {
	out := make([]domain.UserID, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	_ domain.SessionStore = (*MemorySessionStore)(nil)
	_ domain.SessionStore = (*SessionFileStore)(nil)
)
