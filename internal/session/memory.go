package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryStore keeps sessions in a process-local map. Expiry is checked on
// read and enforced in bulk by SweepExpired.
type MemoryStore struct {
	timeout time.Duration

	mu       sync.Mutex
	sessions map[int64]*Session

	now func() time.Time
}

func NewMemoryStore(timeout time.Duration) *MemoryStore {
	return &MemoryStore{
		timeout:  timeout,
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if ok {
		if m.now().Unix()-s.LastAccess < int64(m.timeout.Seconds()) {
			s.LastAccess = m.now().Unix()
			return s, nil
		}
		delete(m.sessions, chatID)
	}
	return New(), nil
}

func (m *MemoryStore) Save(ctx context.Context, chatID int64, s *Session) error {
	s.LastAccess = m.now().Unix()
	m.mu.Lock()
	m.sessions[chatID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.sessions, chatID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SweepExpired(ctx context.Context) (int, error) {
	cutoff := m.now().Unix() - int64(m.timeout.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for chatID, s := range m.sessions {
		if s.LastAccess < cutoff {
			delete(m.sessions, chatID)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Cleaned up expired sessions")
	}
	return removed, nil
}
