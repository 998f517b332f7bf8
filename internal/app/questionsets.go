package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"balance-game-service/internal/domain"
	"github.com/google/uuid"
)

const (
	MinQuestions    = 3
	MaxQuestions    = 50
	DefaultCategory = "other"

	shareCodeLength   = 6
	shareCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	shareCodeAttempts = 5
)

var shareCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// NormalizeShareCode trims and upper-cases code and checks its shape.
func NormalizeShareCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !shareCodePattern.MatchString(code) {
		return "", domain.ErrInvalidShareCode
	}
	return code, nil
}

// QuestionDraft is one authored question before ids are assigned.
type QuestionDraft struct {
	Question string `json:"question"`
	OptionA  string `json:"optionA"`
	OptionB  string `json:"optionB"`
}

// QuestionSetDraft is the editable part of a custom question set.
type QuestionSetDraft struct {
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	Questions      []QuestionDraft `json:"questions"`
	IsWorldCup     bool            `json:"isWorldCup"`
	WorldCupRounds int             `json:"worldCupRounds,omitempty"`
}

// Validate checks a draft the way the set builder does before saving.
func (d QuestionSetDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidQuestionSet)
	}
	if d.IsWorldCup {
		if !ValidRounds(d.WorldCupRounds) {
			return domain.ErrInvalidRounds
		}
		if len(d.Questions) != d.WorldCupRounds {
			return fmt.Errorf("%w: a %d-round world cup needs %d questions, got %d",
				domain.ErrInvalidQuestionSet, d.WorldCupRounds, d.WorldCupRounds, len(d.Questions))
		}
	} else if len(d.Questions) < MinQuestions || len(d.Questions) > MaxQuestions {
		return fmt.Errorf("%w: need between %d and %d questions, got %d",
			domain.ErrInvalidQuestionSet, MinQuestions, MaxQuestions, len(d.Questions))
	}
	for i, q := range d.Questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.OptionA) == "" || strings.TrimSpace(q.OptionB) == "" {
			return fmt.Errorf("%w: question %d is incomplete", domain.ErrInvalidQuestionSet, i+1)
		}
	}
	return nil
}

// QuestionSetService manages custom question sets.
type QuestionSetService struct {
	store  QuestionSetRepository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionSetService(store QuestionSetRepository, logger *slog.Logger) *QuestionSetService {
	return NewQuestionSetServiceWithClock(store, logger, time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionSetServiceWithClock is used by tests for deterministic timestamps and codes.
func NewQuestionSetServiceWithClock(store QuestionSetRepository, logger *slog.Logger, now func() time.Time, rnd *rand.Rand) *QuestionSetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionSetService{
		store:  store,
		logger: logger,
		now:    now,
		newID:  func() string { return uuid.NewString() },
		rnd:    rnd,
	}
}

// Create validates draft, assigns ids and a share code, and stores it.
func (s *QuestionSetService) Create(ctx context.Context, draft QuestionSetDraft) (domain.CustomQuestionSet, error) {
	if err := draft.Validate(); err != nil {
		return domain.CustomQuestionSet{}, err
	}
	code, err := s.uniqueShareCode(ctx)
	if err != nil {
		return domain.CustomQuestionSet{}, err
	}

	id := s.newID()
	set := buildSet(id, draft, nil)
	set.CreatedAt = s.now().UTC()
	set.ShareCode = code

	if err := s.store.CreateQuestionSet(ctx, set); err != nil {
		s.logger.Error("create question set failed", "id", id, "err", err)
		return domain.CustomQuestionSet{}, err
	}
	s.logger.Info("question set created", "id", id, "shareCode", code, "worldCup", set.IsWorldCup)
	return set, nil
}

// Update replaces the editable fields of set id. The id, creation time and
// share code never change.
func (s *QuestionSetService) Update(ctx context.Context, id string, draft QuestionSetDraft) (domain.CustomQuestionSet, error) {
	if err := draft.Validate(); err != nil {
		return domain.CustomQuestionSet{}, err
	}
	existing, err := s.store.GetQuestionSet(ctx, id)
	if err != nil {
		return domain.CustomQuestionSet{}, err
	}

	set := buildSet(existing.ID, draft, existing.Questions)
	set.CreatedAt = existing.CreatedAt
	set.ShareCode = existing.ShareCode

	if err := s.store.UpdateQuestionSet(ctx, set); err != nil {
		s.logger.Error("update question set failed", "id", id, "err", err)
		return domain.CustomQuestionSet{}, err
	}
	return set, nil
}

func (s *QuestionSetService) Get(ctx context.Context, id string) (domain.CustomQuestionSet, error) {
	return s.store.GetQuestionSet(ctx, id)
}

func (s *QuestionSetService) List(ctx context.Context) ([]domain.CustomQuestionSet, error) {
	return s.store.ListQuestionSets(ctx)
}

func (s *QuestionSetService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteQuestionSet(ctx, id); err != nil {
		s.logger.Error("delete question set failed", "id", id, "err", err)
		return err
	}
	return nil
}

// FindByShareCode looks a set up by its human-shareable code.
func (s *QuestionSetService) FindByShareCode(ctx context.Context, code string) (domain.CustomQuestionSet, error) {
	normalized, err := NormalizeShareCode(code)
	if err != nil {
		return domain.CustomQuestionSet{}, err
	}
	return s.store.FindByShareCode(ctx, normalized)
}

func (s *QuestionSetService) uniqueShareCode(ctx context.Context) (string, error) {
	for i := 0; i < shareCodeAttempts; i++ {
		code := s.shareCode()
		_, err := s.store.FindByShareCode(ctx, code)
		if errors.Is(err, domain.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			// Lookup trouble is not a reason to refuse the save.
			s.logger.Warn("share code lookup failed", "err", err)
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique share code", domain.ErrPersistence)
}

func (s *QuestionSetService) shareCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, shareCodeLength)
	for i := range b {
		b[i] = shareCodeAlphabet[s.rnd.Intn(len(shareCodeAlphabet))]
	}
	return string(b)
}

// buildSet turns a draft into a set. Questions keep the vote counters they
// had under the same id in previous.
func buildSet(id string, draft QuestionSetDraft, previous []domain.Question) domain.CustomQuestionSet {
	category := strings.TrimSpace(draft.Category)
	if category == "" {
		category = DefaultCategory
	}
	prior := make(map[string]domain.Question, len(previous))
	for _, q := range previous {
		prior[q.ID] = q
	}

	questions := make([]domain.Question, len(draft.Questions))
	for i, d := range draft.Questions {
		qid := fmt.Sprintf("%s_%d", id, i)
		questions[i] = domain.Question{
			ID:       qid,
			Category: category,
			Question: strings.TrimSpace(d.Question),
			OptionA:  strings.TrimSpace(d.OptionA),
			OptionB:  strings.TrimSpace(d.OptionB),
			VotesA:   prior[qid].VotesA,
			VotesB:   prior[qid].VotesB,
		}
	}

	set := domain.CustomQuestionSet{
		ID:         id,
		Title:      strings.TrimSpace(draft.Title),
		Category:   category,
		Questions:  questions,
		IsWorldCup: draft.IsWorldCup,
	}
	if draft.IsWorldCup {
		set.WorldCupRounds = draft.WorldCupRounds
	}
	return set
}
