package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"balance-game-service/internal/app"
	"balance-game-service/internal/domain"
	"balance-game-service/internal/infra/memory"
)

func draft(n int) app.QuestionSetDraft {
	qs := make([]app.QuestionDraft, n)
	for i := range qs {
		qs[i] = app.QuestionDraft{Question: "Which?", OptionA: "Left", OptionB: "Right"}
	}
	return app.QuestionSetDraft{Title: "Friday night", Category: "food", Questions: qs}
}

func newSetService(now time.Time) (*app.QuestionSetService, *memory.QuestionSetStore) {
	store := memory.NewQuestionSetStore()
	svc := app.NewQuestionSetServiceWithClock(store, nil, func() time.Time { return now }, rand.New(rand.NewSource(5)))
	return svc, store
}

func TestDraftValidation(t *testing.T) {
	cases := map[string]app.QuestionSetDraft{
		"too few":   draft(2),
		"too many":  draft(51),
		"no title":  {Questions: draft(3).Questions},
		"bad round": {Title: "Cup", Questions: draft(6).Questions, IsWorldCup: true, WorldCupRounds: 6},
		"wrong cup": {Title: "Cup", Questions: draft(4).Questions, IsWorldCup: true, WorldCupRounds: 8},
	}
	for name, d := range cases {
		if err := d.Validate(); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}

	blank := draft(3)
	blank.Questions[1].OptionB = "  "
	if err := blank.Validate(); !errors.Is(err, domain.ErrInvalidQuestionSet) {
		t.Fatalf("expected incomplete question rejected, got %v", err)
	}
	if err := draft(3).Validate(); err != nil {
		t.Fatalf("expected minimal draft valid: %v", err)
	}
	cup := app.QuestionSetDraft{Title: "Cup", Questions: draft(16).Questions, IsWorldCup: true, WorldCupRounds: 16}
	if err := cup.Validate(); err != nil {
		t.Fatalf("expected 16-round cup valid: %v", err)
	}
}

func TestCreateAssignsIdsAndShareCode(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newSetService(now)

	d := draft(3)
	d.Category = ""
	set, err := svc.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if set.ID == "" || !set.CreatedAt.Equal(now) {
		t.Fatalf("unexpected identity %q %v", set.ID, set.CreatedAt)
	}
	if !regexp.MustCompile(`^[A-Z0-9]{6}$`).MatchString(set.ShareCode) {
		t.Fatalf("bad share code %q", set.ShareCode)
	}
	if set.Category != app.DefaultCategory {
		t.Fatalf("expected default category, got %q", set.Category)
	}
	for i, q := range set.Questions {
		if want := fmt.Sprintf("%s_%d", set.ID, i); q.ID != want {
			t.Fatalf("question %d id %q, want %q", i, q.ID, want)
		}
	}
}

func TestUpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc, store := newSetService(created)

	set, err := svc.Create(ctx, draft(3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// simulate votes mirrored onto the stored questions
	stored, _ := store.GetQuestionSet(ctx, set.ID)
	stored.Questions[0].VotesA = 4
	_ = store.UpdateQuestionSet(ctx, stored)

	edit := draft(4)
	edit.Title = "Renamed"
	updated, err := svc.Update(ctx, set.ID, edit)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != set.ID || updated.ShareCode != set.ShareCode || !updated.CreatedAt.Equal(created) {
		t.Fatalf("identity changed: %+v", updated)
	}
	if updated.Title != "Renamed" || len(updated.Questions) != 4 {
		t.Fatalf("edit not applied: %+v", updated)
	}
	if updated.Questions[0].VotesA != 4 {
		t.Fatalf("expected prior votes kept, got %+v", updated.Questions[0])
	}

	if _, err := svc.Update(ctx, "missing", draft(3)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFindByShareCodeNormalizes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSetService(time.Now())

	set, err := svc.Create(ctx, draft(3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	lower := "  " + strings.ToLower(set.ShareCode) + " "
	found, err := svc.FindByShareCode(ctx, lower)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != set.ID {
		t.Fatalf("found %q, want %q", found.ID, set.ID)
	}

	for _, bad := range []string{"", "ABC", "ABCDEFG", "AB-DEF"} {
		if _, err := svc.FindByShareCode(ctx, bad); !errors.Is(err, domain.ErrInvalidShareCode) {
			t.Fatalf("%q: expected invalid share code, got %v", bad, err)
		}
	}
	if _, err := svc.FindByShareCode(ctx, "ZZZZZZ"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSetService(time.Now())

	first, _ := svc.Create(ctx, draft(3))
	second, _ := svc.Create(ctx, draft(5))
	sets, err := svc.List(ctx)
	if err != nil || len(sets) != 2 {
		t.Fatalf("list: %v %d", err, len(sets))
	}
	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, first.ID); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected deleted set gone, got %v", err)
	}
	if _, err := svc.Get(ctx, second.ID); err != nil {
		t.Fatalf("other set affected: %v", err)
	}
}
