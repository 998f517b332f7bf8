package hybrid

import (
	"context"
	"log/slog"

	"balance-game-service/internal/app"
	"balance-game-service/internal/domain"
)

// VoteStore counts every vote locally first, then remotely. Reads prefer the
// remote totals and fall back to the local counters.
type VoteStore struct {
	remote app.VoteRepository
	local  app.VoteRepository
	logger *slog.Logger
}

func NewVoteStore(remote, local app.VoteRepository, logger *slog.Logger) *VoteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoteStore{remote: remote, local: local, logger: logger}
}

// UpsertVoteTally returns the remote error, if any, after the local counter
// has been incremented.
func (s *VoteStore) UpsertVoteTally(ctx context.Context, questionID, questionSetID string, choice domain.Choice) error {
	if err := s.local.UpsertVoteTally(ctx, questionID, questionSetID, choice); err != nil {
		s.logger.Warn("local vote increment failed", "questionId", questionID, "err", err)
	}
	return s.remote.UpsertVoteTally(ctx, questionID, questionSetID, choice)
}

func (s *VoteStore) GetVoteTally(ctx context.Context, questionID, questionSetID string) (domain.VoteTally, error) {
	tally, err := s.remote.GetVoteTally(ctx, questionID, questionSetID)
	if err != nil {
		s.logger.Warn("remote tally read failed, using local counters", "questionId", questionID, "err", err)
		return s.local.GetVoteTally(ctx, questionID, questionSetID)
	}
	return tally, nil
}

func (s *VoteStore) GetVoteTalliesForSet(ctx context.Context, questionSetID string) (map[string]domain.VoteTally, error) {
	tallies, err := s.remote.GetVoteTalliesForSet(ctx, questionSetID)
	if err != nil {
		s.logger.Warn("remote set tallies failed, using local counters", "questionSetId", questionSetID, "err", err)
		return s.local.GetVoteTalliesForSet(ctx, questionSetID)
	}
	return tallies, nil
}

func (s *VoteStore) GetVoteTalliesForPrefix(ctx context.Context, questionIDs []string, groupPrefix string) (map[string]domain.VoteTally, error) {
	tallies, err := s.remote.GetVoteTalliesForPrefix(ctx, questionIDs, groupPrefix)
	if err != nil {
		s.logger.Warn("remote pooled tallies failed, using local counters", "prefix", groupPrefix, "err", err)
		return s.local.GetVoteTalliesForPrefix(ctx, questionIDs, groupPrefix)
	}
	return tallies, nil
}
