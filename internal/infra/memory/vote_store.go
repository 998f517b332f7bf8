package memory

import (
	"context"
	"strings"
	"sync"

	"balance-game-service/internal/domain"
)

type voteKey struct {
	questionID    string
	questionSetID string
}

// VoteStore is an in-process counter map. Increments are serialised by a
// mutex, so it never loses votes.
type VoteStore struct {
	mu     sync.RWMutex
	counts map[voteKey]domain.VoteTally
}

func NewVoteStore() *VoteStore {
	return &VoteStore{counts: make(map[voteKey]domain.VoteTally)}
}

func (s *VoteStore) GetVoteTally(_ context.Context, questionID, questionSetID string) (domain.VoteTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[voteKey{questionID, questionSetID}], nil
}

func (s *VoteStore) UpsertVoteTally(_ context.Context, questionID, questionSetID string, choice domain.Choice) error {
	if !choice.Valid() {
		return domain.ErrInvalidChoice
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey{questionID, questionSetID}
	s.counts[key] = s.counts[key].Add(choice)
	return nil
}

func (s *VoteStore) GetVoteTalliesForSet(_ context.Context, questionSetID string) (map[string]domain.VoteTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.VoteTally)
	for key, tally := range s.counts {
		if key.questionSetID == questionSetID {
			out[key.questionID] = tally
		}
	}
	return out, nil
}

func (s *VoteStore) GetVoteTalliesForPrefix(_ context.Context, questionIDs []string, groupPrefix string) (map[string]domain.VoteTally, error) {
	wanted := make(map[string]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.VoteTally, len(questionIDs))
	for key, tally := range s.counts {
		if _, ok := wanted[key.questionID]; !ok || !strings.HasPrefix(key.questionSetID, groupPrefix) {
			continue
		}
		sum := out[key.questionID]
		sum.VotesA += tally.VotesA
		sum.VotesB += tally.VotesB
		out[key.questionID] = sum
	}
	return out, nil
}
