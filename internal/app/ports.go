package app

import (
	"context"

	"balance-game-service/internal/domain"
)

// SessionRepository keeps the single current game session of each client.
type SessionRepository interface {
	GetCurrentSession(ctx context.Context, clientID string) (domain.GameSession, error)
	SetCurrentSession(ctx context.Context, clientID string, session domain.GameSession) error
	ClearCurrentSession(ctx context.Context, clientID string) error
}

// QuestionSetRepository stores custom question sets (Postgres, Redis, memory or a hybrid).
type QuestionSetRepository interface {
	CreateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error
	UpdateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error
	GetQuestionSet(ctx context.Context, id string) (domain.CustomQuestionSet, error)
	DeleteQuestionSet(ctx context.Context, id string) error
	// ListQuestionSets returns sets newest first.
	ListQuestionSets(ctx context.Context) ([]domain.CustomQuestionSet, error)
	FindByShareCode(ctx context.Context, code string) (domain.CustomQuestionSet, error)
}

// VoteRepository stores vote tallies keyed by (questionID, questionSetID).
type VoteRepository interface {
	GetVoteTally(ctx context.Context, questionID, questionSetID string) (domain.VoteTally, error)
	UpsertVoteTally(ctx context.Context, questionID, questionSetID string, choice domain.Choice) error
	GetVoteTalliesForSet(ctx context.Context, questionSetID string) (map[string]domain.VoteTally, error)
	// GetVoteTalliesForPrefix sums, per question, every group whose id starts with groupPrefix.
	GetVoteTalliesForPrefix(ctx context.Context, questionIDs []string, groupPrefix string) (map[string]domain.VoteTally, error)
}

// QuestionSource draws questions from the built-in catalog.
type QuestionSource interface {
	RandomQuestion(excludeID string) (domain.Question, error)
	QuestionsByCategory(category string, count int) []domain.Question
}
