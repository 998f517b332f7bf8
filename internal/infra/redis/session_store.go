package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"balance-game-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps each client's current game session as a JSON value:
//
//	SET balance:session:{clientID} <json> EX ttl
//
// The TTL is refreshed on every write, so idle sessions fade out on their own.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) GetCurrentSession(ctx context.Context, clientID string) (domain.GameSession, error) {
	raw, err := s.client.Get(ctx, s.key(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("%w: get session: %v", domain.ErrPersistence, err)
	}
	var session domain.GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.GameSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) SetCurrentSession(ctx context.Context, clientID string, session domain.GameSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(clientID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set session: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *SessionStore) ClearCurrentSession(ctx context.Context, clientID string) error {
	if err := s.client.Del(ctx, s.key(clientID)).Err(); err != nil {
		return fmt.Errorf("%w: clear session: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *SessionStore) key(clientID string) string {
	return "balance:session:" + clientID
}
