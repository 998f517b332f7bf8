// Package catalog holds the built-in balance game questions.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"balance-game-service/internal/domain"
)

//go:embed data/questions.json
var questionsJSON []byte

//go:embed data/categories.json
var categoriesJSON []byte

// OtherCategory collects questions that are not offered for category play.
const OtherCategory = "other"

// Category describes a group of catalog questions.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Catalog is a read-only question repository. Draws are safe for concurrent use.
type Catalog struct {
	questions  []domain.Question
	categories []Category
	byID       map[string]int

	mu  sync.Mutex
	rnd *rand.Rand
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	var questions []domain.Question
	if err := json.Unmarshal(questionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	var categories []Category
	if err := json.Unmarshal(categoriesJSON, &categories); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	return New(questions, categories, rand.New(rand.NewSource(time.Now().UnixNano()))), nil
}

// New builds a catalog from explicit data; rnd drives every random draw.
func New(questions []domain.Question, categories []Category, rnd *rand.Rand) *Catalog {
	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		byID[q.ID] = i
	}
	return &Catalog{
		questions:  questions,
		categories: categories,
		byID:       byID,
		rnd:        rnd,
	}
}

// All returns a copy of every catalog question.
func (c *Catalog) All() []domain.Question {
	out := make([]domain.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// PlayableCategories is Categories without the catch-all "other" group.
func (c *Catalog) PlayableCategories() []Category {
	out := make([]Category, 0, len(c.categories))
	for _, cat := range c.categories {
		if cat.ID != OtherCategory {
			out = append(out, cat)
		}
	}
	return out
}

func (c *Catalog) QuestionByID(id string) (domain.Question, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return c.questions[i], nil
}

// RandomQuestion draws uniformly among all questions except excludeID.
func (c *Catalog) RandomQuestion(excludeID string) (domain.Question, error) {
	available := make([]domain.Question, 0, len(c.questions))
	for _, q := range c.questions {
		if q.ID != excludeID {
			available = append(available, q)
		}
	}
	if len(available) == 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	c.mu.Lock()
	i := c.rnd.Intn(len(available))
	c.mu.Unlock()
	return available[i], nil
}

// QuestionsByCategory returns up to count shuffled questions of category.
func (c *Catalog) QuestionsByCategory(category string, count int) []domain.Question {
	matching := make([]domain.Question, 0)
	for _, q := range c.questions {
		if q.Category == category {
			matching = append(matching, q)
		}
	}
	c.mu.Lock()
	c.rnd.Shuffle(len(matching), func(i, j int) {
		matching[i], matching[j] = matching[j], matching[i]
	})
	c.mu.Unlock()
	if count < 0 {
		count = 0
	}
	if count < len(matching) {
		matching = matching[:count]
	}
	return matching
}

// CountByCategory reports how many questions each category holds.
func (c *Catalog) CountByCategory() map[string]int {
	counts := make(map[string]int, len(c.categories))
	for _, q := range c.questions {
		counts[q.Category]++
	}
	return counts
}
