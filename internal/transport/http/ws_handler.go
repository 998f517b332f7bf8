package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"balance-game-service/internal/app"
	"balance-game-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler serves live world cup play and the tally feed.
type WSHandler struct {
	games    *app.GameService
	tallies  *app.TallyService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(games *app.GameService, tallies *app.TallyService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		games:   games,
		tallies: tallies,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type choicePayload struct {
	Choice domain.Choice `json:"choice"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type matchPayload struct {
	SetID string    `json:"setId"`
	Title string    `json:"title"`
	Match app.Match `json:"match"`
}

type roundCompletePayload struct {
	Round   int                 `json:"round"`
	Winners []domain.Contestant `json:"winners"`
}

type tallySnapshot struct {
	QuestionSetID string      `json:"questionSetId"`
	Tallies       []tallyView `json:"tallies"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// writer owns all writes to conn. Messages queued on send are written in order.
func (h *WSHandler) writer(conn *websocket.Conn, send <-chan outboundMessage[any], done chan<- struct{}) {
	defer close(done)
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("ws write error", "err", err)
			return
		}
	}
}

// ServeWorldCup plays one tournament of a world cup set over a websocket.
// The bracket lives only for the connection; the champion is persisted when
// the final is decided.
func (h *WSHandler) ServeWorldCup(w http.ResponseWriter, r *http.Request) {
	setID := r.URL.Query().Get("setId")
	clientID := r.URL.Query().Get("clientId")
	if setID == "" || clientID == "" {
		http.Error(w, "missing setId or clientId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	tournament, set, err := h.games.StartWorldCup(r.Context(), setID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go h.writer(conn, send, writerDone)

	first, _ := tournament.CurrentMatch()
	send <- outboundMessage[any]{Type: "match", Payload: matchPayload{SetID: set.ID, Title: set.Title, Match: first}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type != "choice" {
			send <- errorMessage("unsupported message type")
			continue
		}
		var payload choicePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid choice payload")
			continue
		}

		round := tournament.State().CurrentRound
		winners := tournament.State().Winners
		step, err := tournament.Choose(payload.Choice)
		if err != nil {
			send <- errorMessage(err.Error())
			continue
		}
		if step.RoundComplete {
			send <- outboundMessage[any]{Type: "roundComplete", Payload: roundCompletePayload{
				Round:   round,
				Winners: append(winners, step.Winner),
			}}
		}
		if step.Completed {
			result, err := h.games.FinishWorldCup(r.Context(), clientID, tournament)
			if err != nil {
				send <- errorMessage(err.Error())
				break
			}
			send <- outboundMessage[any]{Type: "champion", Payload: result}
			break
		}
		send <- outboundMessage[any]{Type: "match", Payload: matchPayload{SetID: set.ID, Title: set.Title, Match: *step.Next}}
	}

	close(send)
	<-writerDone
}

// ServeTallies streams tally updates for one question set id, starting with
// a snapshot of the current group.
func (h *WSHandler) ServeTallies(w http.ResponseWriter, r *http.Request) {
	setID := r.URL.Query().Get("questionSetId")
	if setID == "" {
		http.Error(w, "missing questionSetId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.tallies.Subscribe(setID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go h.writer(conn, send, writerDone)

	group := h.tallies.Group(r.Context(), setID)
	snapshot := tallySnapshot{QuestionSetID: setID, Tallies: make([]tallyView, 0, len(group))}
	for qid, t := range group {
		snapshot.Tallies = append(snapshot.Tallies, newTallyView(qid, t))
	}
	send <- outboundMessage[any]{Type: "snapshot", Payload: snapshot}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "tally", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// The feed is read-only; reading only detects the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
