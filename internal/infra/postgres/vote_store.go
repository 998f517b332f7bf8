package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"balance-game-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// VoteStore is the shared, multi-writer tally store. Each vote is a single
// INSERT ... ON CONFLICT statement, so concurrent increments are not lost.
type VoteStore struct {
	pool *pgxpool.Pool
}

func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

func (s *VoteStore) GetVoteTally(ctx context.Context, questionID, questionSetID string) (domain.VoteTally, error) {
	var tally domain.VoteTally
	err := s.pool.QueryRow(ctx,
		`SELECT votes_a, votes_b FROM question_votes WHERE question_id=$1 AND question_set_id=$2`,
		questionID, questionSetID).Scan(&tally.VotesA, &tally.VotesB)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VoteTally{}, nil
	}
	if err != nil {
		return domain.VoteTally{}, fmt.Errorf("%w: get vote tally: %v", domain.ErrPersistence, err)
	}
	return tally, nil
}

func (s *VoteStore) UpsertVoteTally(ctx context.Context, questionID, questionSetID string, choice domain.Choice) error {
	if !choice.Valid() {
		return domain.ErrInvalidChoice
	}
	delta := domain.VoteTally{}.Add(choice)
	_, err := s.pool.Exec(ctx, `INSERT INTO question_votes (question_id, question_set_id, votes_a, votes_b)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (question_id, question_set_id) DO UPDATE
		SET votes_a = question_votes.votes_a + EXCLUDED.votes_a,
		    votes_b = question_votes.votes_b + EXCLUDED.votes_b,
		    updated_at = now()`,
		questionID, questionSetID, delta.VotesA, delta.VotesB)
	if err != nil {
		return fmt.Errorf("%w: upsert vote tally: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *VoteStore) GetVoteTalliesForSet(ctx context.Context, questionSetID string) (map[string]domain.VoteTally, error) {
	return s.collect(ctx,
		`SELECT question_id, votes_a::bigint, votes_b::bigint FROM question_votes WHERE question_set_id=$1`,
		questionSetID)
}

func (s *VoteStore) GetVoteTalliesForPrefix(ctx context.Context, questionIDs []string, groupPrefix string) (map[string]domain.VoteTally, error) {
	if len(questionIDs) == 0 {
		return map[string]domain.VoteTally{}, nil
	}
	return s.collect(ctx, `SELECT question_id, SUM(votes_a)::bigint, SUM(votes_b)::bigint
		FROM question_votes
		WHERE question_id = ANY($1) AND question_set_id LIKE $2
		GROUP BY question_id`,
		questionIDs, escapeLike(groupPrefix)+"%")
}

func (s *VoteStore) collect(ctx context.Context, query string, args ...interface{}) (map[string]domain.VoteTally, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query tallies: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	out := make(map[string]domain.VoteTally)
	for rows.Next() {
		var (
			questionID string
			a, b       int64
		)
		if err := rows.Scan(&questionID, &a, &b); err != nil {
			return nil, fmt.Errorf("%w: scan tally: %v", domain.ErrPersistence, err)
		}
		out[questionID] = domain.VoteTally{VotesA: int(a), VotesB: int(b)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query tallies: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
