package app

import (
	"context"
	"log/slog"
	"sync"

	"balance-game-service/internal/domain"
)

// Percentages converts a tally into whole percentages. Each side is rounded
// on its own, so the pair may sum to 99 or 101.
func Percentages(votesA, votesB int) (int, int) {
	total := votesA + votesB
	if total <= 0 {
		return 0, 0
	}
	return roundPercent(votesA, total), roundPercent(votesB, total)
}

// roundPercent is round-half-up of 100*n/total in integer arithmetic.
func roundPercent(n, total int) int {
	return (200*n + total) / (2 * total)
}

// TallyUpdate is published to subscribers after every recorded vote.
type TallyUpdate struct {
	QuestionID    string           `json:"questionId"`
	QuestionSetID string           `json:"questionSetId"`
	Tally         domain.VoteTally `json:"tally"`
	PercentA      int              `json:"percentA"`
	PercentB      int              `json:"percentB"`
}

// TallyService records votes and reads aggregate percentages. Reads never
// fail: when the store errors the service logs and answers with zeros.
type TallyService struct {
	votes  VoteRepository
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[chan TallyUpdate]struct{}
}

func NewTallyService(votes VoteRepository, logger *slog.Logger) *TallyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TallyService{
		votes:       votes,
		logger:      logger,
		subscribers: make(map[string]map[chan TallyUpdate]struct{}),
	}
}

// RecordVote counts one vote. A store failure is logged and returned but
// must not stop gameplay.
func (s *TallyService) RecordVote(ctx context.Context, questionID, questionSetID string, choice domain.Choice) error {
	if !choice.Valid() {
		return domain.ErrInvalidChoice
	}
	err := s.votes.UpsertVoteTally(ctx, questionID, questionSetID, choice)
	if err != nil {
		s.logger.Warn("record vote failed",
			"questionId", questionID, "questionSetId", questionSetID, "choice", choice, "err", err)
	}
	s.publish(ctx, questionID, questionSetID)
	return err
}

// Tally reads one key, degrading to zeros.
func (s *TallyService) Tally(ctx context.Context, questionID, questionSetID string) domain.VoteTally {
	tally, err := s.votes.GetVoteTally(ctx, questionID, questionSetID)
	if err != nil {
		s.logger.Warn("read vote tally failed", "questionId", questionID, "questionSetId", questionSetID, "err", err)
		return domain.VoteTally{}
	}
	return tally
}

// ForSet returns one tally per question id of a custom set. Missing questions get zeros.
func (s *TallyService) ForSet(ctx context.Context, questionSetID string, questionIDs []string) map[string]domain.VoteTally {
	tallies, err := s.votes.GetVoteTalliesForSet(ctx, questionSetID)
	if err != nil {
		s.logger.Warn("read set tallies failed", "questionSetId", questionSetID, "err", err)
		tallies = nil
	}
	return fillMissing(tallies, questionIDs)
}

// Group returns every tally stored under one question set id.
func (s *TallyService) Group(ctx context.Context, questionSetID string) map[string]domain.VoteTally {
	tallies, err := s.votes.GetVoteTalliesForSet(ctx, questionSetID)
	if err != nil {
		s.logger.Warn("read set tallies failed", "questionSetId", questionSetID, "err", err)
		return map[string]domain.VoteTally{}
	}
	return tallies
}

// ForPrefix merges the tallies of every group starting with prefix.
func (s *TallyService) ForPrefix(ctx context.Context, questionIDs []string, prefix string) map[string]domain.VoteTally {
	tallies, err := s.votes.GetVoteTalliesForPrefix(ctx, questionIDs, prefix)
	if err != nil {
		s.logger.Warn("read pooled tallies failed", "prefix", prefix, "err", err)
		tallies = nil
	}
	return fillMissing(tallies, questionIDs)
}

func fillMissing(tallies map[string]domain.VoteTally, questionIDs []string) map[string]domain.VoteTally {
	out := make(map[string]domain.VoteTally, len(questionIDs))
	for _, id := range questionIDs {
		out[id] = tallies[id]
	}
	return out
}

// Subscribe streams updates for one question set. The caller must invoke
// the returned cancel function to avoid leaks.
func (s *TallyService) Subscribe(questionSetID string) (<-chan TallyUpdate, func()) {
	ch := make(chan TallyUpdate, 8)

	s.mu.Lock()
	subs, ok := s.subscribers[questionSetID]
	if !ok {
		subs = make(map[chan TallyUpdate]struct{})
		s.subscribers[questionSetID] = subs
	}
	subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.subscribers[questionSetID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.subscribers, questionSetID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *TallyService) publish(ctx context.Context, questionID, questionSetID string) {
	s.mu.RLock()
	n := len(s.subscribers[questionSetID])
	s.mu.RUnlock()
	if n == 0 {
		return
	}

	tally := s.Tally(ctx, questionID, questionSetID)
	pctA, pctB := Percentages(tally.VotesA, tally.VotesB)
	update := TallyUpdate{
		QuestionID:    questionID,
		QuestionSetID: questionSetID,
		Tally:         tally,
		PercentA:      pctA,
		PercentB:      pctB,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers[questionSetID] {
		select {
		case ch <- update:
		default:
			// slow subscriber: drop its oldest update
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}
