package memory

import (
	"context"
	"sync"

	"balance-game-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.GameSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.GameSession),
	}
}

func (s *SessionStore) GetCurrentSession(_ context.Context, clientID string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[clientID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) SetCurrentSession(_ context.Context, clientID string, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[clientID] = session
	return nil
}

func (s *SessionStore) ClearCurrentSession(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, clientID)
	return nil
}
