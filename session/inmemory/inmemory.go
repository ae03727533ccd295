package inmemory

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/newsgpt/session"
	"github.com/mohammad-safakhou/newsgpt/session/session_object"
)

type Store struct {
	sessions map[string]*session_object.Session
	mu       sync.RWMutex
	now      func() time.Time
	logger   *log.Logger
}

func NewInMemorySessionStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[SESSION] ", log.LstdFlags)
	}
	return &Store{
		sessions: make(map[string]*session_object.Session),
		now:      time.Now,
		logger:   logger,
	}
}

// EnsureSession returns the live session for id, or a fresh one with a new id.
func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sweepLocked()
	if id != "" {
		if sess, ok := store.sessions[id]; ok {
			sess.Expire(ttl)
			return sess, nil
		}
	}

	sess, err := session_object.NewSession(uuid.NewString(), ttl)
	if err != nil {
		return nil, err
	}

	store.sessions[sess.ID()] = sess
	store.logger.Printf("session %s created", sess.ID())
	return sess, nil
}

// GetSession returns nil, nil when the id is unknown or expired.
func (store *Store) GetSession(id string) (session.Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	sess, ok := store.sessions[id]
	if !ok || sess.Expired(store.now()) {
		return nil, nil
	}
	return sess, nil
}

func (store *Store) sweepLocked() {
	now := store.now()
	for id, sess := range store.sessions {
		if sess.Expired(now) {
			delete(store.sessions, id)
			_ = sess.Close()
			store.logger.Printf("session %s expired", id)
		}
	}
}
