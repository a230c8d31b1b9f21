package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// WSHandler upgrades player connections and wires them into the room
// coordinator for the code in the path. Identity is per connection: the
// coordinator authorizes actions against the player that joined on this
// socket, never against ids claimed in payloads. Note that host powers are
// granted to whatever the join payload claims (co-hosting is allowed); a
// deployment fronted by real auth should corroborate that claim upstream.
type WSHandler struct {
	directory *app.Directory
	upgrader  websocket.Upgrader
}

func NewWSHandler(directory *app.Directory) *WSHandler {
	return &WSHandler{
		directory: directory,
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

type joinPayload struct {
	Name     string `json:"name"`
	IsAdmin  bool   `json:"isAdmin"`
	RoomCode string `json:"roomCode"`
}

type answerPayload struct {
	AnswerIndex *int `json:"answerIndex"`
}

// ServeWS handles the /ws/:code path. Non-upgrade requests get the current
// public projection as a one-shot read (diagnostics, not gameplay).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	code := p.ByName("code")

	if !websocket.IsWebSocketUpgrade(r) {
		h.serveSnapshot(w, r, code)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := newWSConn()
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	ctx := r.Context()
	var room *app.Room

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case app.ActionJoinGame:
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Name == "" {
				c.sendError(domain.ErrInvalidPayload.Error())
				continue
			}
			if payload.RoomCode != "" && !strings.EqualFold(payload.RoomCode, code) {
				c.sendError(domain.ErrInvalidPayload.Error())
				continue
			}
			joined, err := h.directory.GetOrCreate(ctx, code)
			if err != nil {
				c.sendError(err.Error())
				continue
			}
			if _, err := joined.Join(ctx, c, payload.Name, payload.IsAdmin); err != nil {
				c.sendError(err.Error())
				continue
			}
			room = joined

		case app.ActionStartQuiz, app.ActionSubmitAnswer, app.ActionRevealAnswers, app.ActionNextQuestion, app.ActionResetGame:
			if room == nil {
				c.sendError("join-game required before other actions")
				continue
			}
			if err := h.dispatch(ctx, room, c, inbound); err != nil {
				c.sendError(err.Error())
			}

		default:
			c.sendError(domain.ErrUnknownAction.Error())
		}
	}

	if room != nil {
		// The request context is done once the read loop exits; disconnect
		// bookkeeping still has to run.
		room.Disconnect(context.Background(), c)
		h.directory.EvictIfEmpty(code)
	}
	c.close()
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, room *app.Room, c *wsConn, inbound inboundMessage) error {
	switch inbound.Type {
	case app.ActionStartQuiz:
		return room.Start(ctx, c)
	case app.ActionSubmitAnswer:
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.AnswerIndex == nil {
			return domain.ErrInvalidPayload
		}
		return room.SubmitAnswer(ctx, c, *payload.AnswerIndex)
	case app.ActionRevealAnswers:
		return room.Reveal(ctx, c)
	case app.ActionNextQuestion:
		return room.Next(ctx, c)
	case app.ActionResetGame:
		return room.Reset(ctx, c)
	}
	return domain.ErrUnknownAction
}

func (h *WSHandler) serveSnapshot(w http.ResponseWriter, r *http.Request, code string) {
	snapshot, err := h.directory.Snapshot(r.Context(), code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("room %s: snapshot read failed: %v", code, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// wsConn adapts a websocket connection to app.Conn. Sends go through a
// buffered channel drained by the writer goroutine, so a broadcast never
// performs a concurrent write on the socket.
type wsConn struct {
	mu     sync.Mutex
	closed bool
	send   chan app.Envelope
}

func newWSConn() *wsConn {
	return &wsConn{send: make(chan app.Envelope, 16)}
}

func (c *wsConn) Send(msg app.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- msg:
	default:
		// Slow client: drop the oldest queued message rather than block the
		// room's broadcast. Delivered messages stay in order.
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- msg:
		default:
		}
	}
	return nil
}

func (c *wsConn) sendError(message string) {
	_ = c.Send(app.Envelope{Type: app.MsgError, Payload: app.ErrorPayload{Message: message}})
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
