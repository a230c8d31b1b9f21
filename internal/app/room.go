package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-room-service/internal/domain"
)

// Room is the coordinator for one live game room. It owns the authoritative
// GameState, serializes every action under a single mutex, persists a
// snapshot after each accepted mutation, and broadcasts the public
// projection to every registered connection.
//
// Multiple goroutines may invoke methods on a Room simultaneously; the mutex
// upholds the single-writer invariant, so the resulting state always matches
// some sequential application of the inbound actions.
type Room struct {
	mu    sync.Mutex
	state *domain.GameState
	conns map[Conn]string // connection registry: conn -> player id
	store StateStore

	questionTime time.Duration
	revealTimer  *time.Timer
	stopped      bool

	now   func() time.Time
	newID func() string
}

func newRoom(state *domain.GameState, store StateStore, questionTime time.Duration) *Room {
	return &Room{
		state:        state,
		conns:        make(map[Conn]string),
		store:        store,
		questionTime: questionTime,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// newRoomWithClock allows deterministic timestamps and ids in tests.
func newRoomWithClock(state *domain.GameState, store StateStore, questionTime time.Duration, now func() time.Time, newID func() string) *Room {
	r := newRoom(state, store, questionTime)
	r.now = now
	r.newID = newID
	return r
}

// Code returns the room's human-shareable code.
func (r *Room) Code() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.RoomCode
}

// Join registers the connection as a new player and broadcasts the updated
// state. A connection that already joined keeps its player; the duplicate
// join is a no-op returning the existing id.
func (r *Room) Join(ctx context.Context, conn Conn, name string, isHost bool) (string, error) {
	if name == "" {
		return "", domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.conns[conn]; ok {
		// Duplicate join on the same connection: keep the player, but re-ack
		// so a client retrying its join still learns its id.
		if player, exists := r.state.Players[id]; exists {
			if err := conn.Send(Envelope{Type: MsgJoinSuccess, Payload: JoinSuccess{PlayerID: id, IsAdmin: player.IsHost}}); err != nil {
				log.Printf("room %s: join ack failed: %v", r.state.RoomCode, err)
			}
		}
		return id, nil
	}

	player := &domain.Player{
		ID:       r.newID(),
		Name:     name,
		IsHost:   isHost,
		JoinedAt: r.now(),
	}
	r.state.Players[player.ID] = player
	if isHost && r.state.HostName == "" {
		r.state.HostName = name
	}
	r.conns[conn] = player.ID

	// Ack before the state broadcast so the joiner learns its id first.
	if err := conn.Send(Envelope{Type: MsgJoinSuccess, Payload: JoinSuccess{PlayerID: player.ID, IsAdmin: player.IsHost}}); err != nil {
		log.Printf("room %s: join ack failed: %v", r.state.RoomCode, err)
	}
	r.commitLocked(ctx)
	return player.ID, nil
}

// Start begins the quiz. Host-only; starting an already started quiz is a
// stale action and ignored.
func (r *Room) Start(ctx context.Context, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHostLocked(conn); err != nil {
		return err
	}
	if !r.state.InLobby() {
		return nil
	}

	now := r.now()
	st := r.state
	st.Status = domain.StatusActive
	st.CurrentQuestionIndex = 0
	st.ShowResults = false
	st.Answers = make(map[string]int)
	for _, p := range st.Players {
		p.HasAnswered = false
		p.Score = 0
	}
	st.StartedAt = &now
	st.EndedAt = nil

	r.broadcastLocked(Envelope{Type: MsgQuizStarted, Payload: struct{}{}})
	r.commitLocked(ctx)
	r.armRevealTimerLocked()
	return nil
}

// SubmitAnswer records the acting player's choice for the current question.
// Late, duplicate, and post-reveal submissions are silently ignored; the
// first accepted submission per player per question is the one that counts.
func (r *Room) SubmitAnswer(ctx context.Context, conn Conn, optionIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	playerID, ok := r.conns[conn]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	player, ok := r.state.Players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}

	if !r.state.IsActive() || r.state.ShowResults {
		return nil
	}
	if _, answered := r.state.Answers[playerID]; answered {
		return nil
	}

	question := r.state.CurrentQuestion()
	if question == nil {
		return nil
	}
	if optionIndex < 0 || optionIndex >= len(question.Options) {
		return domain.ErrInvalidPayload
	}

	r.state.Answers[playerID] = optionIndex
	player.HasAnswered = true
	r.commitLocked(ctx)
	return nil
}

// Reveal exposes the correct answer and scores all recorded submissions.
// Host-only. Scoring runs exactly once per question: a second reveal is a
// stale action guarded by ShowResults.
func (r *Room) Reveal(ctx context.Context, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHostLocked(conn); err != nil {
		return err
	}
	if !r.state.IsActive() || r.state.ShowResults {
		return nil
	}

	r.revealLocked(ctx)
	return nil
}

func (r *Room) revealLocked(ctx context.Context) {
	question := r.state.CurrentQuestion()
	if question == nil {
		return
	}

	r.cancelRevealTimerLocked()
	r.state.ShowResults = true
	for playerID, optionIndex := range r.state.Answers {
		if optionIndex != question.CorrectOptionIndex {
			continue
		}
		if player, ok := r.state.Players[playerID]; ok {
			player.Score += domain.PointsPerCorrectAnswer
		}
	}
	r.commitLocked(ctx)
}

// Next advances to the following question, or completes the quiz when none
// remain. Host-only; ignored outside active play.
func (r *Room) Next(ctx context.Context, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHostLocked(conn); err != nil {
		return err
	}
	if !r.state.IsActive() {
		return nil
	}

	st := r.state
	if st.CurrentQuestionIndex+1 < len(st.Questions) {
		st.CurrentQuestionIndex++
		st.ShowResults = false
		st.Answers = make(map[string]int)
		for _, p := range st.Players {
			p.HasAnswered = false
		}
		r.commitLocked(ctx)
		r.armRevealTimerLocked()
		return nil
	}

	now := r.now()
	st.Status = domain.StatusCompleted
	st.EndedAt = &now
	r.cancelRevealTimerLocked()
	r.broadcastLocked(Envelope{Type: MsgQuizEnded, Payload: struct{}{}})
	r.commitLocked(ctx)
	return nil
}

// Reset returns an active or completed room to the lobby, keeping the player
// set and questions but clearing scores and progress. Host-only.
func (r *Room) Reset(ctx context.Context, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHostLocked(conn); err != nil {
		return err
	}
	if r.state.InLobby() {
		return nil
	}

	st := r.state
	st.Status = domain.StatusLobby
	st.CurrentQuestionIndex = -1
	st.ShowResults = false
	st.Answers = make(map[string]int)
	for _, p := range st.Players {
		p.HasAnswered = false
		p.Score = 0
	}
	st.StartedAt = nil
	st.EndedAt = nil
	r.cancelRevealTimerLocked()
	r.commitLocked(ctx)
	return nil
}

// Disconnect unregisters the connection and removes its player from the
// game. An emptied room keeps its state as-is; there is no auto-reset.
func (r *Room) Disconnect(ctx context.Context, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	playerID, ok := r.conns[conn]
	if !ok {
		return
	}
	delete(r.conns, conn)
	delete(r.state.Players, playerID)
	delete(r.state.Answers, playerID)
	r.commitLocked(ctx)
}

// stop cancels any armed reveal timer and marks the coordinator defunct.
// Called on eviction: a recovered coordinator for the same code becomes the
// sole writer of the snapshot, so a timer this instance already armed must
// never fire into the store behind it.
func (r *Room) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelRevealTimerLocked()
	r.stopped = true
}

// resume re-arms the timed reveal after a snapshot recovery, so a question
// deadline that was pending before eviction applies again. The deadline
// restarts from recovery time.
func (r *Room) resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.IsActive() && !r.state.ShowResults {
		r.armRevealTimerLocked()
	}
}

// IsEmpty reports whether no connections remain registered.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns) == 0
}

// Snapshot returns the current public projection for diagnostic reads.
func (r *Room) Snapshot() domain.PublicState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Public()
}

// requireHostLocked authorizes host-only actions against the player the
// connection registered as; ids claimed in payloads are never trusted.
func (r *Room) requireHostLocked(conn Conn) error {
	playerID, ok := r.conns[conn]
	if !ok {
		return domain.ErrHostRequired
	}
	player, ok := r.state.Players[playerID]
	if !ok || !player.IsHost {
		return domain.ErrHostRequired
	}
	return nil
}

// commitLocked persists the snapshot and broadcasts the public projection.
// A persist failure is logged and the in-memory mutation stands: the running
// process is authoritative, and a restart before a successful write may lose
// the most recent mutation. That at-most-once durability is accepted.
func (r *Room) commitLocked(ctx context.Context) {
	if err := r.store.Put(ctx, r.state.RoomCode, *r.state.Clone()); err != nil {
		log.Printf("room %s: snapshot persist failed: %v", r.state.RoomCode, err)
	}
	r.broadcastLocked(Envelope{Type: MsgGameStateUpdate, Payload: r.state.Public()})
}

// broadcastLocked sends to a copied connection list so a disconnect during
// the send cannot corrupt iteration. Per-connection send failures are
// ignored; a broken socket must not abort the broadcast to the rest.
func (r *Room) broadcastLocked(msg Envelope) {
	conns := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			log.Printf("room %s: send failed: %v", r.state.RoomCode, err)
		}
	}
}

// armRevealTimerLocked schedules the timed reveal for the current question
// when the room is configured with a question time. The fired reveal runs
// through the same ShowResults guard as a host reveal, so a race between the
// two is idempotent.
func (r *Room) armRevealTimerLocked() {
	if r.questionTime <= 0 {
		return
	}
	r.cancelRevealTimerLocked()
	index := r.state.CurrentQuestionIndex
	r.revealTimer = time.AfterFunc(r.questionTime, func() {
		r.autoReveal(index)
	})
}

func (r *Room) cancelRevealTimerLocked() {
	if r.revealTimer != nil {
		r.revealTimer.Stop()
		r.revealTimer = nil
	}
}

func (r *Room) autoReveal(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || !r.state.IsActive() || r.state.ShowResults || r.state.CurrentQuestionIndex != index {
		return
	}
	r.revealLocked(context.Background())
}
