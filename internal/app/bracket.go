package app

import (
	"fmt"
	"math/rand"

	"balance-game-service/internal/domain"
)

// DefaultWorldCupRounds is used when a world cup set carries no round count.
const DefaultWorldCupRounds = 8

// ValidRounds reports whether n is an allowed world cup bracket size.
func ValidRounds(n int) bool {
	switch n {
	case 4, 8, 16, 32:
		return true
	}
	return false
}

// Contestants splits every question into its two options.
func Contestants(questions []domain.Question) []domain.Contestant {
	out := make([]domain.Contestant, 0, len(questions)*2)
	for _, q := range questions {
		out = append(out,
			domain.Contestant{ID: q.ID + "_A", SourceQuestionID: q.ID, Side: domain.SideA, Text: q.OptionA, Category: q.Category},
			domain.Contestant{ID: q.ID + "_B", SourceQuestionID: q.ID, Side: domain.SideB, Text: q.OptionB, Category: q.Category},
		)
	}
	return out
}

// BuildBracket shuffles the contestants of questions and keeps the first rounds.
// A pool smaller than rounds is padded by repeating the shuffled pool from the
// start, so a contestant may meet itself.
func BuildBracket(questions []domain.Question, rounds int, rnd *rand.Rand) ([]domain.Contestant, error) {
	if !ValidRounds(rounds) {
		return nil, domain.ErrInvalidRounds
	}
	pool := Contestants(questions)
	if len(pool) == 0 {
		return nil, domain.ErrEmptyQuestionList
	}

	// Fisher–Yates
	for i := len(pool) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}

	bracket := make([]domain.Contestant, rounds)
	for i := range bracket {
		bracket[i] = pool[i%len(pool)]
	}
	return bracket, nil
}

// PlayMatch returns the winner of match matchIndex: the left entrant for A.
func PlayMatch(bracket []domain.Contestant, matchIndex int, choice domain.Choice) (domain.Contestant, error) {
	if !choice.Valid() {
		return domain.Contestant{}, domain.ErrInvalidChoice
	}
	if matchIndex < 0 || 2*matchIndex+1 >= len(bracket) {
		return domain.Contestant{}, fmt.Errorf("%w: match %d out of range", domain.ErrInvalidInput, matchIndex)
	}
	if choice == domain.ChoiceA {
		return bracket[2*matchIndex], nil
	}
	return bracket[2*matchIndex+1], nil
}

// AdvanceRound turns a round's winners into the next round, keeping seed order.
func AdvanceRound(winners []domain.Contestant) []domain.Contestant {
	next := make([]domain.Contestant, len(winners))
	copy(next, winners)
	return next
}

// RoundLabel names a round by how many contestants it starts with.
func RoundLabel(contestants int) string {
	switch contestants {
	case 2:
		return "final"
	case 4:
		return "semifinal"
	case 8:
		return "quarterfinal"
	default:
		return fmt.Sprintf("round of %d", contestants)
	}
}

// Match is one pairing presented to the player.
type Match struct {
	Round          int               `json:"round"`
	Index          int               `json:"index"`
	MatchesInRound int               `json:"matchesInRound"`
	Label          string            `json:"label"`
	Left           domain.Contestant `json:"left"`
	Right          domain.Contestant `json:"right"`
}

// TournamentStep describes what one choice changed.
type TournamentStep struct {
	Winner        domain.Contestant `json:"winner"`
	RoundComplete bool              `json:"roundComplete"`
	Completed     bool              `json:"completed"`
	Next          *Match            `json:"next,omitempty"`
}

// Tournament runs a single-elimination bracket for one world cup set.
// It is not safe for concurrent use; callers serialise choices.
type Tournament struct {
	setID    string
	rounds   int
	state    domain.BracketState
	champion *domain.Contestant
}

// NewTournament builds a bracket from a world cup set.
func NewTournament(set domain.CustomQuestionSet, rnd *rand.Rand) (*Tournament, error) {
	rounds := set.WorldCupRounds
	if rounds == 0 {
		rounds = DefaultWorldCupRounds
	}
	bracket, err := BuildBracket(set.Questions, rounds, rnd)
	if err != nil {
		return nil, err
	}
	return &Tournament{
		setID:  set.ID,
		rounds: rounds,
		state: domain.BracketState{
			RoundQuestions: bracket,
			Winners:        []domain.Contestant{},
			CurrentRound:   1,
		},
	}, nil
}

func (t *Tournament) SetID() string { return t.setID }

func (t *Tournament) Rounds() int { return t.rounds }

// State returns a copy of the bracket state.
func (t *Tournament) State() domain.BracketState {
	s := t.state
	s.RoundQuestions = append([]domain.Contestant(nil), t.state.RoundQuestions...)
	s.Winners = append([]domain.Contestant(nil), t.state.Winners...)
	return s
}

func (t *Tournament) Completed() bool {
	return t.champion != nil
}

func (t *Tournament) Champion() (domain.Contestant, bool) {
	if t.champion == nil {
		return domain.Contestant{}, false
	}
	return *t.champion, true
}

// CurrentMatch returns the pairing awaiting a choice.
func (t *Tournament) CurrentMatch() (Match, error) {
	if t.Completed() {
		return Match{}, domain.ErrSessionCompleted
	}
	i := t.state.CurrentMatchIndex
	return Match{
		Round:          t.state.CurrentRound,
		Index:          i,
		MatchesInRound: len(t.state.RoundQuestions) / 2,
		Label:          RoundLabel(len(t.state.RoundQuestions)),
		Left:           t.state.RoundQuestions[2*i],
		Right:          t.state.RoundQuestions[2*i+1],
	}, nil
}

// Choose settles the current match and moves the bracket forward.
func (t *Tournament) Choose(choice domain.Choice) (TournamentStep, error) {
	if t.Completed() {
		return TournamentStep{}, domain.ErrSessionCompleted
	}
	winner, err := PlayMatch(t.state.RoundQuestions, t.state.CurrentMatchIndex, choice)
	if err != nil {
		return TournamentStep{}, err
	}
	t.state.Winners = append(t.state.Winners, winner)
	step := TournamentStep{Winner: winner}

	if len(t.state.Winners) < len(t.state.RoundQuestions)/2 {
		t.state.CurrentMatchIndex++
	} else {
		step.RoundComplete = true
		if len(t.state.Winners) == 1 {
			champion := winner
			t.champion = &champion
			step.Completed = true
			return step, nil
		}
		t.state.RoundQuestions = AdvanceRound(t.state.Winners)
		t.state.Winners = []domain.Contestant{}
		t.state.CurrentMatchIndex = 0
		t.state.CurrentRound++
	}

	next, err := t.CurrentMatch()
	if err != nil {
		return TournamentStep{}, err
	}
	step.Next = &next
	return step, nil
}

// TerminalSession is the completed world cup session recording the champion.
func (t *Tournament) TerminalSession() (domain.GameSession, error) {
	champion, ok := t.Champion()
	if !ok {
		return domain.GameSession{}, fmt.Errorf("%w: tournament has no champion yet", domain.ErrInvalidInput)
	}
	return domain.GameSession{
		Type:           domain.ModeWorldCup,
		Questions:      []domain.Question{champion.AsQuestion()},
		CurrentIndex:   1,
		Answers:        []domain.Answer{{QuestionID: champion.ID, Choice: domain.ChoiceA}},
		IsCompleted:    true,
		CustomSetID:    t.setID,
		WorldCupRounds: t.rounds,
	}, nil
}
