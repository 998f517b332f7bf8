package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"balance-game-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionSetStore is the remote store for custom question sets. Questions
// are kept as JSONB next to the set row.
type QuestionSetStore struct {
	pool *pgxpool.Pool
}

func NewQuestionSetStore(pool *pgxpool.Pool) *QuestionSetStore {
	return &QuestionSetStore{pool: pool}
}

const selectSetColumns = `SELECT id, title, category, questions, is_world_cup,
	COALESCE(world_cup_rounds, 0), created_at, share_code FROM custom_question_sets`

func (s *QuestionSetStore) CreateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error {
	questions, err := json.Marshal(set.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO custom_question_sets
		(id, title, category, questions, is_world_cup, world_cup_rounds, created_at, share_code)
		VALUES ($1, $2, $3, $4::jsonb, $5, NULLIF($6, 0), $7, $8)`,
		set.ID, set.Title, set.Category, string(questions), set.IsWorldCup, set.WorldCupRounds, set.CreatedAt, set.ShareCode)
	if err != nil {
		return fmt.Errorf("%w: insert question set: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *QuestionSetStore) UpdateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error {
	questions, err := json.Marshal(set.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE custom_question_sets
		SET title=$2, category=$3, questions=$4::jsonb, is_world_cup=$5, world_cup_rounds=NULLIF($6, 0)
		WHERE id=$1`,
		set.ID, set.Title, set.Category, string(questions), set.IsWorldCup, set.WorldCupRounds)
	if err != nil {
		return fmt.Errorf("%w: update question set: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionSetNotFound
	}
	return nil
}

func (s *QuestionSetStore) GetQuestionSet(ctx context.Context, id string) (domain.CustomQuestionSet, error) {
	return scanSet(s.pool.QueryRow(ctx, selectSetColumns+` WHERE id=$1`, id))
}

func (s *QuestionSetStore) FindByShareCode(ctx context.Context, code string) (domain.CustomQuestionSet, error) {
	return scanSet(s.pool.QueryRow(ctx, selectSetColumns+` WHERE share_code=$1 AND share_code <> '' LIMIT 1`, code))
}

func (s *QuestionSetStore) DeleteQuestionSet(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM custom_question_sets WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete question set: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionSetNotFound
	}
	return nil
}

func (s *QuestionSetStore) ListQuestionSets(ctx context.Context) ([]domain.CustomQuestionSet, error) {
	rows, err := s.pool.Query(ctx, selectSetColumns+` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list question sets: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	sets := make([]domain.CustomQuestionSet, 0)
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list question sets: %v", domain.ErrPersistence, err)
	}
	return sets, nil
}

func scanSet(row pgx.Row) (domain.CustomQuestionSet, error) {
	var (
		set    domain.CustomQuestionSet
		raw    []byte
		rounds int32
	)
	err := row.Scan(&set.ID, &set.Title, &set.Category, &raw, &set.IsWorldCup, &rounds, &set.CreatedAt, &set.ShareCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CustomQuestionSet{}, domain.ErrQuestionSetNotFound
	}
	if err != nil {
		return domain.CustomQuestionSet{}, fmt.Errorf("%w: scan question set: %v", domain.ErrPersistence, err)
	}
	if err := json.Unmarshal(raw, &set.Questions); err != nil {
		return domain.CustomQuestionSet{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	set.WorldCupRounds = int(rounds)
	set.CreatedAt = set.CreatedAt.UTC()
	return set, nil
}
