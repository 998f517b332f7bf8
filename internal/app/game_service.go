package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"balance-game-service/internal/domain"
)

// GameConfig tunes defaults of the game flows.
type GameConfig struct {
	CategoryQuestionCount int
	// DefaultWorldCupRounds applies to world cup sets saved without a round count.
	DefaultWorldCupRounds int
}

// SubmitResult is the outcome of one choice.
type SubmitResult struct {
	Session      domain.GameSession `json:"session"`
	Question     domain.Question    `json:"question"`
	Choice       domain.Choice      `json:"choice"`
	VoteRecorded bool               `json:"voteRecorded"`
}

// QuestionResult is one answered question with its aggregate percentages.
type QuestionResult struct {
	Question domain.Question  `json:"question"`
	Choice   domain.Choice    `json:"choice"`
	Tally    domain.VoteTally `json:"tally"`
	PercentA int              `json:"percentA"`
	PercentB int              `json:"percentB"`
}

// SessionResults summarises a completed session.
type SessionResults struct {
	Type        domain.GameMode  `json:"type"`
	CustomSetID string           `json:"customSetId,omitempty"`
	Results     []QuestionResult `json:"results"`
	ChoseA      int              `json:"choseA"`
	ChoseB      int              `json:"choseB"`
}

// GameService contains the game use cases for all three modes.
type GameService struct {
	questions QuestionSource
	sets      QuestionSetRepository
	sessions  SessionRepository
	tallies   *TallyService
	logger    *slog.Logger
	cfg       GameConfig

	mu       sync.Mutex
	inFlight map[string]*InFlight
	rnd      *rand.Rand
}

func NewGameService(questions QuestionSource, sets QuestionSetRepository, sessions SessionRepository, tallies *TallyService, logger *slog.Logger, cfg GameConfig) *GameService {
	return NewGameServiceWithRand(questions, sets, sessions, tallies, logger, cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGameServiceWithRand is used by tests for deterministic brackets.
func NewGameServiceWithRand(questions QuestionSource, sets QuestionSetRepository, sessions SessionRepository, tallies *TallyService, logger *slog.Logger, cfg GameConfig, rnd *rand.Rand) *GameService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CategoryQuestionCount <= 0 {
		cfg.CategoryQuestionCount = 10
	}
	if !ValidRounds(cfg.DefaultWorldCupRounds) {
		cfg.DefaultWorldCupRounds = DefaultWorldCupRounds
	}
	return &GameService{
		questions: questions,
		sets:      sets,
		sessions:  sessions,
		tallies:   tallies,
		logger:    logger,
		cfg:       cfg,
		inFlight:  make(map[string]*InFlight),
		rnd:       rnd,
	}
}

// StartRandom begins a one-question session with a random catalog question.
func (s *GameService) StartRandom(ctx context.Context, clientID, excludeID string) (domain.GameSession, error) {
	q, err := s.questions.RandomQuestion(excludeID)
	if err != nil {
		return domain.GameSession{}, err
	}
	return s.start(ctx, clientID, domain.ModeRandom, []domain.Question{q}, SessionOptions{})
}

// StartCategory begins a run over shuffled questions of one category.
func (s *GameService) StartCategory(ctx context.Context, clientID, category string, count int) (domain.GameSession, error) {
	if count <= 0 {
		count = s.cfg.CategoryQuestionCount
	}
	questions := s.questions.QuestionsByCategory(category, count)
	return s.start(ctx, clientID, domain.ModeRandom, questions, SessionOptions{Category: category})
}

// StartCustom begins a run over every question of a custom set, in order.
func (s *GameService) StartCustom(ctx context.Context, clientID, setID string) (domain.GameSession, error) {
	set, err := s.sets.GetQuestionSet(ctx, setID)
	if err != nil {
		return domain.GameSession{}, err
	}
	return s.start(ctx, clientID, domain.ModeCustom, set.Questions, SessionOptions{
		Category:    set.Category,
		CustomSetID: set.ID,
	})
}

func (s *GameService) start(ctx context.Context, clientID string, mode domain.GameMode, questions []domain.Question, opts SessionOptions) (domain.GameSession, error) {
	if clientID == "" {
		return domain.GameSession{}, fmt.Errorf("%w: client id is required", domain.ErrInvalidInput)
	}
	session, err := StartSession(mode, questions, opts)
	if err != nil {
		return domain.GameSession{}, err
	}
	if err := s.sessions.SetCurrentSession(ctx, clientID, session); err != nil {
		// The caller still gets a playable session back.
		s.logger.Warn("persist new session failed", "clientId", clientID, "err", err)
	}
	s.logger.Debug("session started", "clientId", clientID, "mode", mode, "questions", len(questions))
	return session, nil
}

// SubmitChoice answers the current question of the client's session.
// Vote and persistence failures are logged; the session still advances.
func (s *GameService) SubmitChoice(ctx context.Context, clientID string, choice domain.Choice) (SubmitResult, error) {
	if !choice.Valid() {
		return SubmitResult{}, domain.ErrInvalidChoice
	}
	release, err := s.acquire(clientID)
	if err != nil {
		return SubmitResult{}, err
	}
	defer release()

	session, err := s.sessions.GetCurrentSession(ctx, clientID)
	if err != nil {
		return SubmitResult{}, err
	}
	question, ok := CurrentQuestion(session)
	if !ok {
		return SubmitResult{}, domain.ErrSessionCompleted
	}
	next, err := Advance(session, choice)
	if err != nil {
		return SubmitResult{}, err
	}

	voteErr := s.tallies.RecordVote(ctx, question.ID, voteGroup(session), choice)
	if err := s.sessions.SetCurrentSession(ctx, clientID, next); err != nil {
		s.logger.Warn("persist session failed", "clientId", clientID, "err", err)
	}

	return SubmitResult{
		Session:      next,
		Question:     question,
		Choice:       choice,
		VoteRecorded: voteErr == nil,
	}, nil
}

// CurrentSession returns the client's session or ErrSessionNotFound.
func (s *GameService) CurrentSession(ctx context.Context, clientID string) (domain.GameSession, error) {
	return s.sessions.GetCurrentSession(ctx, clientID)
}

// ClearSession drops the client's session, e.g. when returning home.
func (s *GameService) ClearSession(ctx context.Context, clientID string) error {
	return s.sessions.ClearCurrentSession(ctx, clientID)
}

// StartWorldCup loads a world cup set and seeds its bracket.
func (s *GameService) StartWorldCup(ctx context.Context, setID string) (*Tournament, domain.CustomQuestionSet, error) {
	set, err := s.sets.GetQuestionSet(ctx, setID)
	if err != nil {
		return nil, domain.CustomQuestionSet{}, err
	}
	if !set.IsWorldCup {
		return nil, domain.CustomQuestionSet{}, fmt.Errorf("%w: %s is not a world cup", domain.ErrQuestionSetNotFound, setID)
	}
	if set.WorldCupRounds == 0 {
		set.WorldCupRounds = s.cfg.DefaultWorldCupRounds
	}
	s.mu.Lock()
	t, err := NewTournament(set, s.rnd)
	s.mu.Unlock()
	if err != nil {
		return nil, domain.CustomQuestionSet{}, err
	}
	return t, set, nil
}

// WorldCupResult is the outcome of a finished tournament.
type WorldCupResult struct {
	Session      domain.GameSession `json:"session"`
	Champion     domain.Contestant  `json:"champion"`
	VoteRecorded bool               `json:"voteRecorded"`
}

// FinishWorldCup stores the terminal session of a completed tournament and
// counts the champion pick. A failed count is reported, not returned.
func (s *GameService) FinishWorldCup(ctx context.Context, clientID string, t *Tournament) (WorldCupResult, error) {
	session, err := t.TerminalSession()
	if err != nil {
		return WorldCupResult{}, err
	}
	champion, _ := t.Champion()
	voteErr := s.tallies.RecordVote(ctx, champion.ID, domain.WorldCupGroup(t.SetID()), domain.ChoiceA)
	if clientID != "" {
		if err := s.sessions.SetCurrentSession(ctx, clientID, session); err != nil {
			s.logger.Warn("persist world cup session failed", "clientId", clientID, "err", err)
		}
	}
	s.logger.Info("world cup finished", "setId", t.SetID(), "champion", champion.ID, "voteRecorded", voteErr == nil)
	return WorldCupResult{Session: session, Champion: champion, VoteRecorded: voteErr == nil}, nil
}

// Results returns aggregate percentages for every answer of a completed session.
func (s *GameService) Results(ctx context.Context, clientID string) (SessionResults, error) {
	session, err := s.sessions.GetCurrentSession(ctx, clientID)
	if err != nil {
		return SessionResults{}, err
	}
	if !session.IsCompleted {
		return SessionResults{}, fmt.Errorf("%w: session is not completed", domain.ErrSessionNotFound)
	}

	ids := make([]string, len(session.Answers))
	for i, a := range session.Answers {
		ids[i] = a.QuestionID
	}

	var tallies map[string]domain.VoteTally
	switch session.Type {
	case domain.ModeCustom:
		tallies = s.tallies.ForSet(ctx, session.CustomSetID, ids)
	case domain.ModeWorldCup:
		tallies = championShares(s.tallies.Group(ctx, domain.WorldCupGroup(session.CustomSetID)), ids)
	default:
		tallies = s.tallies.ForPrefix(ctx, ids, domain.MultiplayerPool)
	}

	byID := make(map[string]domain.Question, len(session.Questions))
	for _, q := range session.Questions {
		byID[q.ID] = q
	}

	out := SessionResults{
		Type:        session.Type,
		CustomSetID: session.CustomSetID,
		Results:     make([]QuestionResult, 0, len(session.Answers)),
	}
	for _, a := range session.Answers {
		tally := tallies[a.QuestionID]
		pctA, pctB := Percentages(tally.VotesA, tally.VotesB)
		q := byID[a.QuestionID]
		q.VotesA, q.VotesB = tally.VotesA, tally.VotesB
		out.Results = append(out.Results, QuestionResult{
			Question: q,
			Choice:   a.Choice,
			Tally:    tally,
			PercentA: pctA,
			PercentB: pctB,
		})
		if a.Choice == domain.ChoiceA {
			out.ChoseA++
		} else {
			out.ChoseB++
		}
	}
	return out, nil
}

// championShares re-expresses champion counts as "won" (A) against every
// other finished tournament of the set (B).
func championShares(group map[string]domain.VoteTally, ids []string) map[string]domain.VoteTally {
	total := 0
	for _, t := range group {
		total += t.VotesA
	}
	out := make(map[string]domain.VoteTally, len(ids))
	for _, id := range ids {
		won := group[id].VotesA
		out[id] = domain.VoteTally{VotesA: won, VotesB: total - won}
	}
	return out
}

// acquire takes the client's submission token. Tokens only live in the map
// while held, so idle clients leave nothing behind.
func (s *GameService) acquire(clientID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.inFlight[clientID]
	if !ok {
		t = &InFlight{}
	}
	if err := t.Acquire(); err != nil {
		return nil, err
	}
	s.inFlight[clientID] = t
	return func() {
		s.mu.Lock()
		t.Release()
		delete(s.inFlight, clientID)
		s.mu.Unlock()
	}, nil
}

// voteGroup is the question set id a session's votes are counted under.
func voteGroup(session domain.GameSession) string {
	switch session.Type {
	case domain.ModeCustom:
		return session.CustomSetID
	case domain.ModeWorldCup:
		return domain.WorldCupGroup(session.CustomSetID)
	default:
		return domain.MultiplayerPool
	}
}
