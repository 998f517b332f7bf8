package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every "absent when required" error. Callers
	// usually treat it as a redirect to the start view rather than a failure.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is the root of every validation error. It is always
	// returned before any state is mutated.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistence indicates a store was unreachable or rejected a write.
	ErrPersistence = errors.New("persistence failure")

	ErrQuestionNotFound    = fmt.Errorf("question %w", ErrNotFound)
	ErrQuestionSetNotFound = fmt.Errorf("question set %w", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("game session %w", ErrNotFound)

	ErrEmptyQuestionList  = fmt.Errorf("%w: question list is empty", ErrInvalidInput)
	ErrInvalidChoice      = fmt.Errorf("%w: choice must be A or B", ErrInvalidInput)
	ErrInvalidRounds      = fmt.Errorf("%w: world cup rounds must be one of 4, 8, 16, 32", ErrInvalidInput)
	ErrInvalidShareCode   = fmt.Errorf("%w: share code must be 6 letters or digits", ErrInvalidInput)
	ErrInvalidQuestionSet = fmt.Errorf("%w: question set", ErrInvalidInput)
	ErrInvalidGameMode    = fmt.Errorf("%w: unknown game mode", ErrInvalidInput)

	// ErrSubmissionInFlight is returned while a previous choice for the same
	// client is still being persisted.
	ErrSubmissionInFlight = errors.New("a choice is already being submitted")
	// ErrSessionCompleted is returned when a choice arrives after the last question.
	ErrSessionCompleted = errors.New("game session already completed")
)
