package memory

import (
	"context"
	"sync"

	"balance-game-service/internal/domain"
)

// QuestionSetStore keeps custom question sets in process memory. Create
// overwrites an existing set with the same id, which lets it act as the
// local mirror behind a remote store.
type QuestionSetStore struct {
	mu   sync.RWMutex
	sets map[string]domain.CustomQuestionSet
}

func NewQuestionSetStore() *QuestionSetStore {
	return &QuestionSetStore{sets: make(map[string]domain.CustomQuestionSet)}
}

func (s *QuestionSetStore) CreateQuestionSet(_ context.Context, set domain.CustomQuestionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.ID] = cloneSet(set)
	return nil
}

func (s *QuestionSetStore) UpdateQuestionSet(_ context.Context, set domain.CustomQuestionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[set.ID]; !ok {
		return domain.ErrQuestionSetNotFound
	}
	s.sets[set.ID] = cloneSet(set)
	return nil
}

func (s *QuestionSetStore) GetQuestionSet(_ context.Context, id string) (domain.CustomQuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[id]
	if !ok {
		return domain.CustomQuestionSet{}, domain.ErrQuestionSetNotFound
	}
	return cloneSet(set), nil
}

func (s *QuestionSetStore) DeleteQuestionSet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[id]; !ok {
		return domain.ErrQuestionSetNotFound
	}
	delete(s.sets, id)
	return nil
}

func (s *QuestionSetStore) ListQuestionSets(_ context.Context) ([]domain.CustomQuestionSet, error) {
	s.mu.RLock()
	out := make([]domain.CustomQuestionSet, 0, len(s.sets))
	for _, set := range s.sets {
		out = append(out, cloneSet(set))
	}
	s.mu.RUnlock()
	domain.SortNewestFirst(out)
	return out, nil
}

func (s *QuestionSetStore) FindByShareCode(_ context.Context, code string) (domain.CustomQuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, set := range s.sets {
		if set.ShareCode != "" && set.ShareCode == code {
			return cloneSet(set), nil
		}
	}
	return domain.CustomQuestionSet{}, domain.ErrQuestionSetNotFound
}

func cloneSet(set domain.CustomQuestionSet) domain.CustomQuestionSet {
	set.Questions = append([]domain.Question(nil), set.Questions...)
	return set
}
