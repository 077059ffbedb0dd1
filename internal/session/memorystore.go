package session

import (
	"sync"
	"time"
)

// MemoryStore keeps session records in a mutex-guarded map. It is the
// default store for single-process deployments and for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

func (s *MemoryStore) Put(id string, record *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = record.Clone()
	return nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) Sweep() error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, record := range s.sessions {
		if now.After(record.ExpiresAt.Add(sweepGrace)) {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*Session)
	return nil
}

// Len reports the number of live records, used by diagnostics and tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
