// Package hybrid composes a remote and a local store: the remote one is
// authoritative, the local one mirrors it and takes over while the remote
// is unreachable.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"balance-game-service/internal/app"
	"balance-game-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionSetStore implements app.QuestionSetRepository over a remote and a local store.
//
// Sets created while the remote store is down are kept locally and marked
// pending; only pending sets are ever pushed to the remote store. Every other
// local copy is a mirror and is dropped once the remote store no longer has it.
type QuestionSetStore struct {
	remote app.QuestionSetRepository
	local  app.QuestionSetRepository
	logger *slog.Logger
	sf     singleflight.Group

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewQuestionSetStore(remote, local app.QuestionSetRepository, logger *slog.Logger) *QuestionSetStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionSetStore{remote: remote, local: local, logger: logger, pending: make(map[string]struct{})}
}

// CreateQuestionSet saves to the remote store and mirrors locally. If the
// remote store fails the set is kept locally and pushed on a later List.
func (s *QuestionSetStore) CreateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error {
	if err := s.remote.CreateQuestionSet(ctx, set); err != nil {
		s.logger.Warn("remote create failed, keeping question set locally", "id", set.ID, "err", err)
		if err := s.local.CreateQuestionSet(ctx, set); err != nil {
			return err
		}
		s.markPending(set.ID)
		return nil
	}
	s.mirror(ctx, set)
	return nil
}

// UpdateQuestionSet edits pending sets locally. Sets the remote store already
// holds are updated there first; a remote failure is returned so the caller
// can retry, and the local mirror is left untouched.
func (s *QuestionSetStore) UpdateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error {
	if s.isPending(set.ID) {
		return s.local.UpdateQuestionSet(ctx, set)
	}
	err := s.remote.UpdateQuestionSet(ctx, set)
	switch {
	case err == nil:
		s.mirror(ctx, set)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		s.dropMirror(ctx, set.ID)
		return err
	default:
		s.logger.Warn("remote update failed", "id", set.ID, "err", err)
		return err
	}
}

func (s *QuestionSetStore) GetQuestionSet(ctx context.Context, id string) (domain.CustomQuestionSet, error) {
	if s.isPending(id) {
		return s.local.GetQuestionSet(ctx, id)
	}
	set, err := s.remote.GetQuestionSet(ctx, id)
	switch {
	case err == nil:
		return set, nil
	case errors.Is(err, domain.ErrNotFound):
		s.dropMirror(ctx, id)
		return domain.CustomQuestionSet{}, err
	default:
		s.logger.Warn("remote get failed, reading local copy", "id", id, "err", err)
		return s.local.GetQuestionSet(ctx, id)
	}
}

func (s *QuestionSetStore) FindByShareCode(ctx context.Context, code string) (domain.CustomQuestionSet, error) {
	set, err := s.remote.FindByShareCode(ctx, code)
	switch {
	case err == nil:
		return set, nil
	case errors.Is(err, domain.ErrNotFound):
		local, lerr := s.local.FindByShareCode(ctx, code)
		if lerr == nil && s.isPending(local.ID) {
			return local, nil
		}
		return domain.CustomQuestionSet{}, err
	default:
		s.logger.Warn("remote share code lookup failed, reading local copy", "code", code, "err", err)
		return s.local.FindByShareCode(ctx, code)
	}
}

// DeleteQuestionSet removes the set remotely, then locally. A remote failure
// is returned so the user can retry, and the local copy is kept until then.
func (s *QuestionSetStore) DeleteQuestionSet(ctx context.Context, id string) error {
	if s.isPending(id) {
		s.clearPending(id)
		return s.local.DeleteQuestionSet(ctx, id)
	}
	remoteErr := s.remote.DeleteQuestionSet(ctx, id)
	if remoteErr != nil && !errors.Is(remoteErr, domain.ErrNotFound) {
		return remoteErr
	}
	localErr := s.local.DeleteQuestionSet(ctx, id)
	if remoteErr == nil {
		return nil
	}
	return localErr
}

// ListQuestionSets returns the remote sets. Pending sets are pushed to the
// remote store on the way and listed even if the push fails; mirror copies
// the remote store no longer holds are dropped.
func (s *QuestionSetStore) ListQuestionSets(ctx context.Context) ([]domain.CustomQuestionSet, error) {
	remoteSets, err := s.remote.ListQuestionSets(ctx)
	if err != nil {
		s.logger.Warn("remote list failed, serving local question sets", "err", err)
		return s.local.ListQuestionSets(ctx)
	}

	if s.pendingCount() > 0 {
		pushed, err, _ := s.sf.Do("migrate", func() (interface{}, error) {
			return s.migrate(ctx)
		})
		if err != nil {
			s.logger.Warn("migrating local question sets failed", "err", err)
		}
		if n, _ := pushed.(int); n > 0 {
			if remoteSets, err = s.remote.ListQuestionSets(ctx); err != nil {
				s.logger.Warn("remote list failed after migration, serving local question sets", "err", err)
				return s.local.ListQuestionSets(ctx)
			}
		}
	}

	localSets, err := s.local.ListQuestionSets(ctx)
	if err != nil {
		s.logger.Warn("local list failed", "err", err)
		return remoteSets, nil
	}

	known := make(map[string]struct{}, len(remoteSets))
	for _, set := range remoteSets {
		known[set.ID] = struct{}{}
	}
	extra := make([]domain.CustomQuestionSet, 0)
	for _, set := range localSets {
		if _, ok := known[set.ID]; ok {
			continue
		}
		if s.isPending(set.ID) {
			extra = append(extra, set)
			continue
		}
		s.dropMirror(ctx, set.ID)
	}
	if len(extra) == 0 {
		return remoteSets, nil
	}
	return mergeNewestFirst(remoteSets, extra), nil
}

// migrate pushes pending sets to the remote store, stopping at the first
// failure, and reports how many were pushed. Pushed sets stay in the local
// store as mirrors.
func (s *QuestionSetStore) migrate(ctx context.Context) (int, error) {
	pushed := 0
	for _, id := range s.pendingIDs() {
		set, err := s.local.GetQuestionSet(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			s.clearPending(id)
			continue
		}
		if err != nil {
			return pushed, fmt.Errorf("read pending question set %s: %w", id, err)
		}
		if err := s.remote.CreateQuestionSet(ctx, set); err != nil {
			return pushed, fmt.Errorf("migrate question set %s: %w", id, err)
		}
		s.clearPending(id)
		pushed++
		s.logger.Info("migrated local question set", "id", id)
	}
	return pushed, nil
}

func (s *QuestionSetStore) mirror(ctx context.Context, set domain.CustomQuestionSet) {
	if err := s.local.CreateQuestionSet(ctx, set); err != nil {
		s.logger.Warn("mirror question set locally failed", "id", set.ID, "err", err)
	}
}

func (s *QuestionSetStore) dropMirror(ctx context.Context, id string) {
	err := s.local.DeleteQuestionSet(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("drop stale local question set failed", "id", id, "err", err)
	}
}

func (s *QuestionSetStore) markPending(id string) {
	s.mu.Lock()
	s.pending[id] = struct{}{}
	s.mu.Unlock()
}

func (s *QuestionSetStore) clearPending(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *QuestionSetStore) isPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

func (s *QuestionSetStore) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *QuestionSetStore) pendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

func mergeNewestFirst(a, b []domain.CustomQuestionSet) []domain.CustomQuestionSet {
	out := make([]domain.CustomQuestionSet, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	domain.SortNewestFirst(out)
	return out
}
