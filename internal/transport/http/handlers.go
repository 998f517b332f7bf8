package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"balance-game-service/internal/app"
	"balance-game-service/internal/catalog"
	"balance-game-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// API serves the REST endpoints.
type API struct {
	games   *app.GameService
	sets    *app.QuestionSetService
	tallies *app.TallyService
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewAPI(games *app.GameService, sets *app.QuestionSetService, tallies *app.TallyService, cat *catalog.Catalog, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{games: games, sets: sets, tallies: tallies, catalog: cat, logger: logger}
}

type categoryView struct {
	catalog.Category
	Count int `json:"count"`
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	counts := a.catalog.CountByCategory()
	cats := a.catalog.PlayableCategories()
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{Category: c, Count: counts[c.ID]})
	}
	writeJSON(w, http.StatusOK, out)
}

type tallyView struct {
	QuestionID string `json:"questionId"`
	VotesA     int    `json:"votesA"`
	VotesB     int    `json:"votesB"`
	PercentA   int    `json:"percentA"`
	PercentB   int    `json:"percentB"`
}

func newTallyView(questionID string, t domain.VoteTally) tallyView {
	pctA, pctB := app.Percentages(t.VotesA, t.VotesB)
	return tallyView{QuestionID: questionID, VotesA: t.VotesA, VotesB: t.VotesB, PercentA: pctA, PercentB: pctB}
}

// getTallies answers one key when questionId is given, otherwise the whole group.
func (a *API) getTallies(w http.ResponseWriter, r *http.Request) {
	setID := r.URL.Query().Get("questionSetId")
	if setID == "" {
		writeError(w, http.StatusBadRequest, "missing questionSetId")
		return
	}
	if qid := r.URL.Query().Get("questionId"); qid != "" {
		writeJSON(w, http.StatusOK, newTallyView(qid, a.tallies.Tally(r.Context(), qid, setID)))
		return
	}
	group := a.tallies.Group(r.Context(), setID)
	out := make([]tallyView, 0, len(group))
	for qid, t := range group {
		out = append(out, newTallyView(qid, t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listQuestionSets(w http.ResponseWriter, r *http.Request) {
	sets, err := a.sets.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (a *API) createQuestionSet(w http.ResponseWriter, r *http.Request) {
	var draft app.QuestionSetDraft
	if err := readJSON(r, &draft); err != nil {
		a.fail(w, r, err)
		return
	}
	set, err := a.sets.Create(r.Context(), draft)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (a *API) getQuestionSet(w http.ResponseWriter, r *http.Request) {
	set, err := a.sets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (a *API) updateQuestionSet(w http.ResponseWriter, r *http.Request) {
	var draft app.QuestionSetDraft
	if err := readJSON(r, &draft); err != nil {
		a.fail(w, r, err)
		return
	}
	set, err := a.sets.Update(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (a *API) deleteQuestionSet(w http.ResponseWriter, r *http.Request) {
	if err := a.sets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) findByShareCode(w http.ResponseWriter, r *http.Request) {
	set, err := a.sets.FindByShareCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type startGameRequest struct {
	Mode      domain.GameMode `json:"mode"`
	Category  string          `json:"category"`
	Count     int             `json:"count"`
	SetID     string          `json:"setId"`
	ExcludeID string          `json:"excludeId"`
}

func (a *API) startGame(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")
	var req startGameRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	var (
		session domain.GameSession
		err     error
	)
	switch req.Mode {
	case domain.ModeRandom, "":
		if req.Category != "" {
			session, err = a.games.StartCategory(r.Context(), clientID, req.Category, req.Count)
		} else {
			session, err = a.games.StartRandom(r.Context(), clientID, req.ExcludeID)
		}
	case domain.ModeCustom:
		session, err = a.games.StartCustom(r.Context(), clientID, req.SetID)
	case domain.ModeWorldCup:
		err = fmt.Errorf("%w: world cups are played over /ws/worldcup", domain.ErrInvalidInput)
	default:
		err = domain.ErrInvalidGameMode
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.games.CurrentSession(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) clearSession(w http.ResponseWriter, r *http.Request) {
	if err := a.games.ClearSession(r.Context(), chi.URLParam(r, "clientId")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type choiceRequest struct {
	Choice domain.Choice `json:"choice"`
}

func (a *API) submitChoice(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.games.SubmitChoice(r.Context(), chi.URLParam(r, "clientId"), req.Choice)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getResults(w http.ResponseWriter, r *http.Request) {
	res, err := a.games.Results(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
