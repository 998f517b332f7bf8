package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"balance-game-service/internal/app"
	"balance-game-service/internal/domain"
	"balance-game-service/internal/infra/hybrid"
	"balance-game-service/internal/infra/memory"
)

func TestPercentages(t *testing.T) {
	cases := []struct {
		a, b, pa, pb int
	}{
		{0, 0, 0, 0},
		{3, 1, 75, 25},
		{1, 0, 100, 0},
		{1, 2, 33, 67},
		{1, 7, 13, 88},
	}
	for _, c := range cases {
		pa, pb := app.Percentages(c.a, c.b)
		if pa != c.pa || pb != c.pb {
			t.Fatalf("Percentages(%d,%d) = (%d,%d), want (%d,%d)", c.a, c.b, pa, pb, c.pa, c.pb)
		}
	}
}

func TestPercentagesBounds(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		a, b := rnd.Intn(500), rnd.Intn(500)
		pa, pb := app.Percentages(a, b)
		if a+b == 0 {
			if pa != 0 || pb != 0 {
				t.Fatalf("expected (0,0) for empty tally")
			}
			continue
		}
		if pa < 0 || pa > 100 || pb < 0 || pb > 100 {
			t.Fatalf("Percentages(%d,%d) out of range: %d %d", a, b, pa, pb)
		}
		if pa == 0 && pb == 0 {
			t.Fatalf("Percentages(%d,%d) must not be (0,0)", a, b)
		}
	}
}

func TestRecordVoteCommutes(t *testing.T) {
	ctx := context.Background()
	choices := make([]domain.Choice, 0, 12)
	for i := 0; i < 7; i++ {
		choices = append(choices, domain.ChoiceA)
	}
	for i := 0; i < 5; i++ {
		choices = append(choices, domain.ChoiceB)
	}

	rnd := rand.New(rand.NewSource(9))
	for trial := 0; trial < 10; trial++ {
		rnd.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
		tallies := app.NewTallyService(memory.NewVoteStore(), nil)
		for _, c := range choices {
			if err := tallies.RecordVote(ctx, "q1", "set-1", c); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
		if got := tallies.Tally(ctx, "q1", "set-1"); got != (domain.VoteTally{VotesA: 7, VotesB: 5}) {
			t.Fatalf("unexpected tally %+v", got)
		}
	}
}

func TestRecordVoteRemoteFailureKeepsLocalCount(t *testing.T) {
	ctx := context.Background()
	local := memory.NewVoteStore()
	tallies := app.NewTallyService(hybrid.NewVoteStore(failingVotes{}, local, nil), nil)

	err := tallies.RecordVote(ctx, "q1", domain.MultiplayerPool, domain.ChoiceA)
	if err == nil {
		t.Fatalf("expected remote failure to be reported")
	}
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	got, _ := local.GetVoteTally(ctx, "q1", domain.MultiplayerPool)
	if got.VotesA != 1 {
		t.Fatalf("expected local counter incremented, got %+v", got)
	}
	if shown := tallies.Tally(ctx, "q1", domain.MultiplayerPool); shown.VotesA != 1 {
		t.Fatalf("expected reads to degrade to local counts, got %+v", shown)
	}
}

func TestReadsDegradeToZeros(t *testing.T) {
	ctx := context.Background()
	tallies := app.NewTallyService(failingVotes{}, nil)

	set := tallies.ForSet(ctx, "set-1", []string{"q1", "q2"})
	if len(set) != 2 || set["q1"] != (domain.VoteTally{}) {
		t.Fatalf("expected zero tallies, got %+v", set)
	}
	pooled := tallies.ForPrefix(ctx, []string{"q1"}, domain.MultiplayerPool)
	if pooled["q1"] != (domain.VoteTally{}) {
		t.Fatalf("expected zero tallies, got %+v", pooled)
	}
}

func TestSubscribeReceivesTallyUpdates(t *testing.T) {
	ctx := context.Background()
	tallies := app.NewTallyService(memory.NewVoteStore(), nil)

	updates, cancel := tallies.Subscribe("set-1")
	defer cancel()

	_ = tallies.RecordVote(ctx, "q1", "set-1", domain.ChoiceA)
	_ = tallies.RecordVote(ctx, "q1", "other-set", domain.ChoiceA)
	_ = tallies.RecordVote(ctx, "q1", "set-1", domain.ChoiceB)

	first := <-updates
	if first.QuestionID != "q1" || first.Tally.VotesA != 1 || first.PercentA != 100 {
		t.Fatalf("unexpected first update %+v", first)
	}
	select {
	case second := <-updates:
		if second.Tally != (domain.VoteTally{VotesA: 1, VotesB: 1}) || second.PercentB != 50 {
			t.Fatalf("unexpected second update %+v", second)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a second update")
	}
	select {
	case extra := <-updates:
		t.Fatalf("did not expect updates for other sets, got %+v", extra)
	default:
	}
}

type failingVotes struct{}

var errStoreDown = errors.New("store down")

func (failingVotes) GetVoteTally(context.Context, string, string) (domain.VoteTally, error) {
	return domain.VoteTally{}, errStoreDown
}

func (failingVotes) UpsertVoteTally(context.Context, string, string, domain.Choice) error {
	return errors.Join(domain.ErrPersistence, errStoreDown)
}

func (failingVotes) GetVoteTalliesForSet(context.Context, string) (map[string]domain.VoteTally, error) {
	return nil, errStoreDown
}

func (failingVotes) GetVoteTalliesForPrefix(context.Context, []string, string) (map[string]domain.VoteTally, error) {
	return nil, errStoreDown
}
