package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"balance-game-service/internal/app"
	"balance-game-service/internal/catalog"
	"balance-game-service/internal/domain"
	"balance-game-service/internal/infra/memory"
)

type gameFixture struct {
	svc      *app.GameService
	sets     *memory.QuestionSetStore
	sessions *memory.SessionStore
	votes    *memory.VoteStore
}

func newGameFixture(votes app.VoteRepository) gameFixture {
	local := memory.NewVoteStore()
	if votes == nil {
		votes = local
	}
	questions := makeQuestions(12)
	for i := range questions {
		if i%2 == 0 {
			questions[i].Category = "food"
		}
	}
	cat := catalog.New(questions, nil, rand.New(rand.NewSource(1)))
	f := gameFixture{
		sets:     memory.NewQuestionSetStore(),
		sessions: memory.NewSessionStore(),
		votes:    local,
	}
	tallies := app.NewTallyService(votes, nil)
	f.svc = app.NewGameServiceWithRand(cat, f.sets, f.sessions, tallies, nil, app.GameConfig{CategoryQuestionCount: 4}, rand.New(rand.NewSource(2)))
	return f
}

func TestCategoryRunAndResults(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(nil)

	session, err := f.svc.StartCategory(ctx, "client-1", "food", 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(session.Questions) != 4 || session.Category != "food" {
		t.Fatalf("unexpected session %+v", session)
	}
	if _, err := f.svc.Results(ctx, "client-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no results before completion, got %v", err)
	}

	var last app.SubmitResult
	for i := 0; i < 4; i++ {
		choice := domain.ChoiceA
		if i == 3 {
			choice = domain.ChoiceB
		}
		last, err = f.svc.SubmitChoice(ctx, "client-1", choice)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if !last.VoteRecorded {
			t.Fatalf("expected vote recorded")
		}
	}
	if !last.Session.IsCompleted {
		t.Fatalf("expected completed session")
	}
	if _, err := f.svc.SubmitChoice(ctx, "client-1", domain.ChoiceA); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error, got %v", err)
	}

	results, err := f.svc.Results(ctx, "client-1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results.Results) != 4 || results.ChoseA != 3 || results.ChoseB != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	first := results.Results[0]
	if first.PercentA != 100 || first.Tally.VotesA != 1 {
		t.Fatalf("unexpected first result %+v", first)
	}
	tally, _ := f.votes.GetVoteTally(ctx, first.Question.ID, domain.MultiplayerPool)
	if tally.VotesA != 1 {
		t.Fatalf("expected vote under the multiplayer pool, got %+v", tally)
	}
}

func TestRandomRequiresClient(t *testing.T) {
	f := newGameFixture(nil)
	if _, err := f.svc.StartRandom(context.Background(), "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	session, err := f.svc.StartRandom(context.Background(), "c", "q0")
	if err != nil {
		t.Fatalf("start random: %v", err)
	}
	if len(session.Questions) != 1 || session.Questions[0].ID == "q0" {
		t.Fatalf("unexpected random session %+v", session.Questions)
	}
}

func TestCustomRunCountsUnderSet(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(nil)
	set := domain.CustomQuestionSet{ID: "set-9", Title: "Mine", Category: "food", Questions: makeQuestions(3), CreatedAt: time.Now()}
	if err := f.sets.CreateQuestionSet(ctx, set); err != nil {
		t.Fatalf("seed: %v", err)
	}

	session, err := f.svc.StartCustom(ctx, "c", "set-9")
	if err != nil {
		t.Fatalf("start custom: %v", err)
	}
	if session.Type != domain.ModeCustom || session.CustomSetID != "set-9" || session.Questions[0].ID != "q0" {
		t.Fatalf("unexpected session %+v", session)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.svc.SubmitChoice(ctx, "c", domain.ChoiceB); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	tally, _ := f.votes.GetVoteTally(ctx, "q2", "set-9")
	if tally.VotesB != 1 {
		t.Fatalf("expected vote under set id, got %+v", tally)
	}
	results, err := f.svc.Results(ctx, "c")
	if err != nil || results.CustomSetID != "set-9" || results.Results[2].PercentB != 100 {
		t.Fatalf("unexpected results %+v %v", results, err)
	}

	if _, err := f.svc.StartCustom(ctx, "c", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWorldCupFlow(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(nil)
	if err := f.sets.CreateQuestionSet(ctx, worldCupSet(4)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	plain := domain.CustomQuestionSet{ID: "plain", Title: "p", Questions: makeQuestions(3)}
	_ = f.sets.CreateQuestionSet(ctx, plain)
	if _, _, err := f.svc.StartWorldCup(ctx, "plain"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected non-cup set rejected, got %v", err)
	}

	tour, _, err := f.svc.StartWorldCup(ctx, "wc")
	if err != nil {
		t.Fatalf("start world cup: %v", err)
	}
	if _, err := f.svc.FinishWorldCup(ctx, "c", tour); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected unfinished tournament rejected, got %v", err)
	}
	for !tour.Completed() {
		if _, err := tour.Choose(domain.ChoiceA); err != nil {
			t.Fatalf("choose: %v", err)
		}
	}
	champion, _ := tour.Champion()

	res, err := f.svc.FinishWorldCup(ctx, "c", tour)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	session := res.Session
	if !res.VoteRecorded || res.Champion.ID != champion.ID {
		t.Fatalf("expected champion vote recorded, got %+v", res)
	}
	if !session.IsCompleted || session.CurrentIndex != len(session.Answers) || session.Answers[0].QuestionID != champion.ID {
		t.Fatalf("unexpected terminal session %+v", session)
	}

	results, err := f.svc.Results(ctx, "c")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Type != domain.ModeWorldCup || results.Results[0].PercentA != 100 {
		t.Fatalf("unexpected world cup results %+v", results)
	}
}

func TestWorldCupReportsUnrecordedChampion(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(failingVotes{})
	_ = f.sets.CreateQuestionSet(ctx, worldCupSet(4))

	tour, _, err := f.svc.StartWorldCup(ctx, "wc")
	if err != nil {
		t.Fatalf("start world cup: %v", err)
	}
	for !tour.Completed() {
		_, _ = tour.Choose(domain.ChoiceB)
	}
	res, err := f.svc.FinishWorldCup(ctx, "c", tour)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if res.VoteRecorded {
		t.Fatalf("expected champion vote reported as not recorded")
	}
	if !res.Session.IsCompleted {
		t.Fatalf("expected terminal session despite vote failure, got %+v", res.Session)
	}
}

func TestSubmitRejectsConcurrentChoice(t *testing.T) {
	ctx := context.Background()
	votes := &blockingVotes{VoteStore: memory.NewVoteStore(), entered: make(chan struct{}), release: make(chan struct{})}
	f := newGameFixture(votes)

	if _, err := f.svc.StartCategory(ctx, "c", "food", 2); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitChoice(ctx, "c", domain.ChoiceA)
		done <- err
	}()
	<-votes.entered
	if n := f.svc.HeldSubmissions(); n != 1 {
		t.Fatalf("expected one held submission token, got %d", n)
	}

	if _, err := f.svc.SubmitChoice(ctx, "c", domain.ChoiceB); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
	if _, err := f.svc.SubmitChoice(ctx, "other-client", domain.ChoiceB); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected other clients unaffected, got %v", err)
	}

	close(votes.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if n := f.svc.HeldSubmissions(); n != 0 {
		t.Fatalf("expected submission tokens released, %d left", n)
	}
	session, _ := f.svc.CurrentSession(ctx, "c")
	if session.CurrentIndex != 1 || len(session.Answers) != 1 {
		t.Fatalf("expected exactly one answer, got %+v", session)
	}
}

func TestSubmitAdvancesWhenVoteFails(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(failingVotes{})

	if _, err := f.svc.StartCategory(ctx, "c", "food", 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := f.svc.SubmitChoice(ctx, "c", domain.ChoiceA)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.VoteRecorded || res.Session.CurrentIndex != 1 {
		t.Fatalf("expected advance without vote, got %+v", res)
	}
	if err := f.svc.ClearSession(ctx, "c"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := f.svc.CurrentSession(ctx, "c"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected cleared session, got %v", err)
	}
}

type blockingVotes struct {
	*memory.VoteStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingVotes) UpsertVoteTally(ctx context.Context, questionID, questionSetID string, choice domain.Choice) error {
	b.entered <- struct{}{}
	<-b.release
	return b.VoteStore.UpsertVoteTally(ctx, questionID, questionSetID, choice)
}
