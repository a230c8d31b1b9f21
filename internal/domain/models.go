package domain

import "time"

// GameStatus tracks where a room is in its quiz lifecycle.
type GameStatus string

const (
	StatusLobby     GameStatus = "lobby"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
)

// PointsPerCorrectAnswer is awarded once per question, at reveal time.
const PointsPerCorrectAnswer = 100

// Player is a connected participant in a room. Players are ephemeral:
// disconnecting removes them, and rejoining creates a new Player.
type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Score       int       `json:"score"`
	IsHost      bool      `json:"isHost"`
	HasAnswered bool      `json:"hasAnswered"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Question is a single multiple-choice question. Immutable once the room
// holding it has been created.
type Question struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Order              int      `json:"order"`
}

// QuestionSet is the ordered question list loaded for a room at creation.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// GameState is the aggregate root for one room. It is owned and mutated
// exclusively by that room's coordinator and snapshotted to the state store
// after every accepted mutation.
type GameState struct {
	RoomID               string             `json:"roomId"`
	RoomCode             string             `json:"roomCode"`
	HostName             string             `json:"hostName"`
	Players              map[string]*Player `json:"players"`
	Questions            []Question         `json:"questions"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	Status               GameStatus         `json:"status"`
	ShowResults          bool               `json:"showResults"`
	Answers              map[string]int     `json:"answers"`
	CreatedAt            time.Time          `json:"createdAt"`
	StartedAt            *time.Time         `json:"startedAt,omitempty"`
	EndedAt              *time.Time         `json:"endedAt,omitempty"`
}

// NewGameState builds a fresh lobby for a room.
func NewGameState(roomID, roomCode, hostName string, questions []Question, now time.Time) *GameState {
	return &GameState{
		RoomID:               roomID,
		RoomCode:             roomCode,
		HostName:             hostName,
		Players:              make(map[string]*Player),
		Questions:            questions,
		CurrentQuestionIndex: -1,
		Status:               StatusLobby,
		Answers:              make(map[string]int),
		CreatedAt:            now,
	}
}

// InLobby reports whether the quiz has not started.
func (g *GameState) InLobby() bool {
	return g.Status == StatusLobby
}

// IsActive reports whether a quiz run is in progress.
func (g *GameState) IsActive() bool {
	return g.Status == StatusActive
}

// IsCompleted reports whether the quiz advanced past its last question.
func (g *GameState) IsCompleted() bool {
	return g.Status == StatusCompleted
}

// CurrentQuestion returns the question in play, or nil outside active play.
func (g *GameState) CurrentQuestion() *Question {
	if g.CurrentQuestionIndex < 0 || g.CurrentQuestionIndex >= len(g.Questions) {
		return nil
	}
	return &g.Questions[g.CurrentQuestionIndex]
}

// Clone returns a deep copy safe to hand outside the coordinator's lock.
func (g *GameState) Clone() *GameState {
	out := *g
	out.Players = make(map[string]*Player, len(g.Players))
	for id, p := range g.Players {
		cp := *p
		out.Players[id] = &cp
	}
	out.Answers = make(map[string]int, len(g.Answers))
	for id, idx := range g.Answers {
		out.Answers[id] = idx
	}
	out.Questions = append([]Question(nil), g.Questions...)
	if g.StartedAt != nil {
		t := *g.StartedAt
		out.StartedAt = &t
	}
	if g.EndedAt != nil {
		t := *g.EndedAt
		out.EndedAt = &t
	}
	return &out
}
