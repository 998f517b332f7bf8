package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"balance-game-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuestionSetStore keeps the local copy of custom question sets in one hash:
//
//	HSET balance:questionsets {setID} <json>
//
// Create overwrites, so the store can mirror a remote one.
type QuestionSetStore struct {
	client *redis.Client
}

func NewQuestionSetStore(client *redis.Client) *QuestionSetStore {
	return &QuestionSetStore{client: client}
}

const questionSetsKey = "balance:questionsets"

func (s *QuestionSetStore) CreateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error {
	return s.put(ctx, set)
}

func (s *QuestionSetStore) UpdateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error {
	exists, err := s.client.HExists(ctx, questionSetsKey, set.ID).Result()
	if err != nil {
		return fmt.Errorf("%w: check question set: %v", domain.ErrPersistence, err)
	}
	if !exists {
		return domain.ErrQuestionSetNotFound
	}
	return s.put(ctx, set)
}

func (s *QuestionSetStore) GetQuestionSet(ctx context.Context, id string) (domain.CustomQuestionSet, error) {
	raw, err := s.client.HGet(ctx, questionSetsKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CustomQuestionSet{}, domain.ErrQuestionSetNotFound
	}
	if err != nil {
		return domain.CustomQuestionSet{}, fmt.Errorf("%w: get question set: %v", domain.ErrPersistence, err)
	}
	return decodeSet(raw)
}

func (s *QuestionSetStore) DeleteQuestionSet(ctx context.Context, id string) error {
	n, err := s.client.HDel(ctx, questionSetsKey, id).Result()
	if err != nil {
		return fmt.Errorf("%w: delete question set: %v", domain.ErrPersistence, err)
	}
	if n == 0 {
		return domain.ErrQuestionSetNotFound
	}
	return nil
}

func (s *QuestionSetStore) ListQuestionSets(ctx context.Context) ([]domain.CustomQuestionSet, error) {
	all, err := s.client.HGetAll(ctx, questionSetsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list question sets: %v", domain.ErrPersistence, err)
	}
	sets := make([]domain.CustomQuestionSet, 0, len(all))
	for _, raw := range all {
		set, err := decodeSet([]byte(raw))
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	domain.SortNewestFirst(sets)
	return sets, nil
}

func (s *QuestionSetStore) FindByShareCode(ctx context.Context, code string) (domain.CustomQuestionSet, error) {
	sets, err := s.ListQuestionSets(ctx)
	if err != nil {
		return domain.CustomQuestionSet{}, err
	}
	for _, set := range sets {
		if set.ShareCode != "" && set.ShareCode == code {
			return set, nil
		}
	}
	return domain.CustomQuestionSet{}, domain.ErrQuestionSetNotFound
}

func (s *QuestionSetStore) put(ctx context.Context, set domain.CustomQuestionSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal question set: %w", err)
	}
	if err := s.client.HSet(ctx, questionSetsKey, set.ID, raw).Err(); err != nil {
		return fmt.Errorf("%w: save question set: %v", domain.ErrPersistence, err)
	}
	return nil
}

func decodeSet(raw []byte) (domain.CustomQuestionSet, error) {
	var set domain.CustomQuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.CustomQuestionSet{}, fmt.Errorf("unmarshal question set: %w", err)
	}
	return set, nil
}
