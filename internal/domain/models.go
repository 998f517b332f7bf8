package domain

import (
	"sort"
	"time"
)

// Choice is one side of a binary question.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
)

func (c Choice) Valid() bool {
	return c == ChoiceA || c == ChoiceB
}

// GameMode selects how a session's question list was produced.
type GameMode string

const (
	ModeRandom   GameMode = "random"
	ModeCustom   GameMode = "custom"
	ModeWorldCup GameMode = "worldcup"
)

func (m GameMode) Valid() bool {
	switch m {
	case ModeRandom, ModeCustom, ModeWorldCup:
		return true
	}
	return false
}

// MultiplayerPool is the question set id under which casual random and
// category plays are tallied.
const MultiplayerPool = "multi"

// WorldCupGroup returns the tally group for champions of a world cup set.
func WorldCupGroup(setID string) string {
	return "worldcup:" + setID
}

// Question is a single would-you-rather prompt.
type Question struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Question string `json:"question"`
	OptionA  string `json:"optionA"`
	OptionB  string `json:"optionB"`
	VotesA   int    `json:"votesA"`
	VotesB   int    `json:"votesB"`
}

// Side names which option of a source question a contestant came from.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Contestant is one option lifted out of a question to act as a bracket leaf.
type Contestant struct {
	ID               string `json:"id"`
	SourceQuestionID string `json:"sourceQuestionId"`
	Side             Side   `json:"side"`
	Text             string `json:"text"`
	Category         string `json:"category"`
}

// AsQuestion renders the contestant in the shape result views expect.
func (c Contestant) AsQuestion() Question {
	return Question{
		ID:       c.ID,
		Category: c.Category,
		Question: c.Text,
		OptionA:  c.Text,
		OptionB:  c.Text,
	}
}

// CustomQuestionSet is a user-authored list of questions, optionally played
// as a world cup tournament.
type CustomQuestionSet struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Category       string     `json:"category"`
	Questions      []Question `json:"questions"`
	IsWorldCup     bool       `json:"isWorldCup"`
	WorldCupRounds int        `json:"worldCupRounds,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ShareCode      string     `json:"shareCode,omitempty"`
}

// SortNewestFirst orders sets by creation time, newest first, ties by id.
func SortNewestFirst(sets []CustomQuestionSet) {
	sort.Slice(sets, func(i, j int) bool {
		if !sets[i].CreatedAt.Equal(sets[j].CreatedAt) {
			return sets[i].CreatedAt.After(sets[j].CreatedAt)
		}
		return sets[i].ID < sets[j].ID
	})
}

// Answer records the choice made for one question of a session.
type Answer struct {
	QuestionID string `json:"questionId"`
	Choice     Choice `json:"choice"`
}

// GameSession is the progress of one client through a list of questions.
// len(Answers) == CurrentIndex and IsCompleted == (CurrentIndex >= len(Questions)).
type GameSession struct {
	Type           GameMode   `json:"type"`
	Category       string     `json:"category,omitempty"`
	Questions      []Question `json:"questions"`
	CurrentIndex   int        `json:"currentIndex"`
	Answers        []Answer   `json:"answers"`
	IsCompleted    bool       `json:"isCompleted"`
	CustomSetID    string     `json:"customSetId,omitempty"`
	WorldCupRounds int        `json:"worldCupRounds,omitempty"`
}

// IsTerminal reports whether every question has been answered.
func (s GameSession) IsTerminal() bool {
	return s.IsCompleted
}

// BracketState is the in-progress state of a world cup tournament.
type BracketState struct {
	RoundQuestions    []Contestant `json:"roundQuestions"`
	Winners           []Contestant `json:"winners"`
	CurrentRound      int          `json:"currentRound"`
	CurrentMatchIndex int          `json:"currentMatchIndex"`
}

// VoteTally holds cumulative counters for one (question, question set) key.
type VoteTally struct {
	VotesA int `json:"votesA"`
	VotesB int `json:"votesB"`
}

func (t VoteTally) Total() int {
	return t.VotesA + t.VotesB
}

// Add returns the tally with one more vote for choice.
func (t VoteTally) Add(choice Choice) VoteTally {
	if choice == ChoiceA {
		t.VotesA++
	} else {
		t.VotesB++
	}
	return t
}
