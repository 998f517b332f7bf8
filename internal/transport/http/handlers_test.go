package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"balance-game-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrQuestionSetNotFound), http.StatusNotFound},
		{domain.ErrInvalidChoice, http.StatusBadRequest},
		{domain.ErrSubmissionInFlight, http.StatusConflict},
		{domain.ErrSessionCompleted, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := errorStatus(c.err); got != c.want {
			t.Fatalf("errorStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestHealthAndCategories(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", err, resp)
	}
	resp.Body.Close()

	var cats []categoryView
	if code := doJSON(t, http.MethodGet, env.server.URL+"/api/categories", nil, &cats); code != http.StatusOK {
		t.Fatalf("categories status %d", code)
	}
	if len(cats) == 0 {
		t.Fatalf("expected categories")
	}
	for _, c := range cats {
		if c.ID == "other" {
			t.Fatalf("other must not be offered for play")
		}
		if c.Count == 0 {
			t.Fatalf("category %s has no questions", c.ID)
		}
	}
}

func TestCategoryGameOverREST(t *testing.T) {
	env := newTestEnv(t)
	base := env.server.URL + "/api/clients/browser-1"

	var session domain.GameSession
	if code := doJSON(t, http.MethodPost, base+"/games", map[string]any{"mode": "random", "category": "food"}, &session); code != http.StatusCreated {
		t.Fatalf("start status %d", code)
	}
	if len(session.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(session.Questions))
	}

	if code := doJSON(t, http.MethodGet, base+"/results", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unfinished results, got %d", code)
	}
	if code := doJSON(t, http.MethodPost, base+"/choices", map[string]any{"choice": "X"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad choice, got %d", code)
	}

	for i := 0; i < 3; i++ {
		var res struct {
			Session      domain.GameSession `json:"session"`
			VoteRecorded bool               `json:"voteRecorded"`
		}
		if code := doJSON(t, http.MethodPost, base+"/choices", map[string]any{"choice": "B"}, &res); code != http.StatusOK {
			t.Fatalf("choice %d status %d", i, code)
		}
		if res.Session.CurrentIndex != i+1 || !res.VoteRecorded {
			t.Fatalf("unexpected choice result %+v", res)
		}
	}
	if code := doJSON(t, http.MethodPost, base+"/choices", map[string]any{"choice": "B"}, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 after completion, got %d", code)
	}

	var results struct {
		Results []struct {
			PercentB int `json:"percentB"`
		} `json:"results"`
		ChoseB int `json:"choseB"`
	}
	if code := doJSON(t, http.MethodGet, base+"/results", nil, &results); code != http.StatusOK {
		t.Fatalf("results status %d", code)
	}
	if len(results.Results) != 3 || results.ChoseB != 3 || results.Results[0].PercentB != 100 {
		t.Fatalf("unexpected results %+v", results)
	}

	if code := doJSON(t, http.MethodDelete, base+"/session", nil, nil); code != http.StatusNoContent {
		t.Fatalf("clear status %d", code)
	}
	if code := doJSON(t, http.MethodGet, base+"/session", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", code)
	}
}

func TestQuestionSetLifecycleOverREST(t *testing.T) {
	env := newTestEnv(t)
	base := env.server.URL + "/api/questionsets"

	draft := map[string]any{
		"title":    "Office",
		"category": "work",
		"questions": []map[string]string{
			{"question": "Lunch?", "optionA": "Early", "optionB": "Late"},
			{"question": "Meetings?", "optionA": "Morning", "optionB": "Afternoon"},
			{"question": "Desk?", "optionA": "Standing", "optionB": "Sitting"},
		},
	}
	var created domain.CustomQuestionSet
	if code := doJSON(t, http.MethodPost, base, draft, &created); code != http.StatusCreated {
		t.Fatalf("create status %d", code)
	}
	if created.ID == "" || len(created.ShareCode) != 6 {
		t.Fatalf("unexpected set %+v", created)
	}

	var shared domain.CustomQuestionSet
	if code := doJSON(t, http.MethodGet, env.server.URL+"/api/share/"+created.ShareCode, nil, &shared); code != http.StatusOK || shared.ID != created.ID {
		t.Fatalf("share lookup failed: %d %+v", code, shared)
	}
	if code := doJSON(t, http.MethodGet, env.server.URL+"/api/share/bad", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed code, got %d", code)
	}

	draft["title"] = "Office v2"
	var updated domain.CustomQuestionSet
	if code := doJSON(t, http.MethodPut, base+"/"+created.ID, draft, &updated); code != http.StatusOK {
		t.Fatalf("update status %d", code)
	}
	if updated.Title != "Office v2" || updated.ShareCode != created.ShareCode {
		t.Fatalf("unexpected update %+v", updated)
	}

	var sets []domain.CustomQuestionSet
	if code := doJSON(t, http.MethodGet, base, nil, &sets); code != http.StatusOK || len(sets) != 1 {
		t.Fatalf("list failed: %d %d", code, len(sets))
	}

	var session domain.GameSession
	if code := doJSON(t, http.MethodPost, env.server.URL+"/api/clients/c9/games", map[string]any{"mode": "custom", "setId": created.ID}, &session); code != http.StatusCreated {
		t.Fatalf("start custom status %d", code)
	}
	if session.CustomSetID != created.ID {
		t.Fatalf("unexpected custom session %+v", session)
	}
	if code := doJSON(t, http.MethodPost, env.server.URL+"/api/clients/c9/games", map[string]any{"mode": "worldcup", "setId": created.ID}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for world cup over REST, got %d", code)
	}

	if code := doJSON(t, http.MethodDelete, base+"/"+created.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete status %d", code)
	}
	if code := doJSON(t, http.MethodGet, base+"/"+created.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
	if code := doJSON(t, http.MethodPost, base, map[string]any{"title": "Short"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid draft, got %d", code)
	}
}

func TestTalliesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	if code := doJSON(t, http.MethodGet, env.server.URL+"/api/tallies", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without set id, got %d", code)
	}

	for i := 0; i < 3; i++ {
		_ = env.votes.UpsertVoteTally(context.Background(), "5", "set-1", domain.ChoiceA)
	}
	_ = env.votes.UpsertVoteTally(context.Background(), "5", "set-1", domain.ChoiceB)

	var one tallyView
	if code := doJSON(t, http.MethodGet, env.server.URL+"/api/tallies?questionSetId=set-1&questionId=5", nil, &one); code != http.StatusOK {
		t.Fatalf("tally status %d", code)
	}
	if one.PercentA != 75 || one.PercentB != 25 {
		t.Fatalf("unexpected tally %+v", one)
	}

	var all []tallyView
	doJSON(t, http.MethodGet, env.server.URL+"/api/tallies?questionSetId=set-1", nil, &all)
	if len(all) != 1 || all[0].VotesA != 3 {
		t.Fatalf("unexpected group %+v", all)
	}
}
