package app

import (
	"sync/atomic"

	"balance-game-service/internal/domain"
)

// SessionOptions carries the mode-specific fields of a new session.
type SessionOptions struct {
	Category       string
	CustomSetID    string
	WorldCupRounds int
}

// StartSession creates an in-progress session over questions.
func StartSession(mode domain.GameMode, questions []domain.Question, opts SessionOptions) (domain.GameSession, error) {
	if !mode.Valid() {
		return domain.GameSession{}, domain.ErrInvalidGameMode
	}
	if len(questions) == 0 {
		return domain.GameSession{}, domain.ErrEmptyQuestionList
	}
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	return domain.GameSession{
		Type:           mode,
		Category:       opts.Category,
		Questions:      qs,
		CurrentIndex:   0,
		Answers:        []domain.Answer{},
		IsCompleted:    false,
		CustomSetID:    opts.CustomSetID,
		WorldCupRounds: opts.WorldCupRounds,
	}, nil
}

// Advance records choice for the current question and returns the next state.
// The input session is left untouched.
func Advance(session domain.GameSession, choice domain.Choice) (domain.GameSession, error) {
	if !choice.Valid() {
		return session, domain.ErrInvalidChoice
	}
	if session.IsCompleted || session.CurrentIndex >= len(session.Questions) {
		return session, domain.ErrSessionCompleted
	}

	next := session
	next.Answers = make([]domain.Answer, len(session.Answers), len(session.Answers)+1)
	copy(next.Answers, session.Answers)
	next.Answers = append(next.Answers, domain.Answer{
		QuestionID: session.Questions[session.CurrentIndex].ID,
		Choice:     choice,
	})
	next.CurrentIndex++
	next.IsCompleted = next.CurrentIndex >= len(next.Questions)
	return next, nil
}

// CurrentQuestion returns the question awaiting an answer.
func CurrentQuestion(session domain.GameSession) (domain.Question, bool) {
	if session.IsCompleted || session.CurrentIndex >= len(session.Questions) {
		return domain.Question{}, false
	}
	return session.Questions[session.CurrentIndex], true
}

// InFlight is a single-slot token guarding one submission at a time.
type InFlight struct {
	held atomic.Bool
}

// Acquire takes the token or fails with ErrSubmissionInFlight.
func (f *InFlight) Acquire() error {
	if !f.held.CompareAndSwap(false, true) {
		return domain.ErrSubmissionInFlight
	}
	return nil
}

func (f *InFlight) Release() {
	f.held.Store(false)
}

func (f *InFlight) Held() bool {
	return f.held.Load()
}
