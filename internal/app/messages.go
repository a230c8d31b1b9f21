package app

// Envelope is the wire frame for every message, both directions.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound action types.
const (
	ActionJoinGame      = "join-game"
	ActionStartQuiz     = "start-quiz"
	ActionSubmitAnswer  = "submit-answer"
	ActionRevealAnswers = "reveal-answers"
	ActionNextQuestion  = "next-question"
	ActionResetGame     = "reset-game"
)

// Outbound message types.
const (
	MsgJoinSuccess     = "join-success"
	MsgGameStateUpdate = "game-state-update"
	MsgQuizStarted     = "quiz-started"
	MsgQuizEnded       = "quiz-ended"
	MsgError           = "error"
)

// JoinSuccess acknowledges a join to the joining connection only.
type JoinSuccess struct {
	PlayerID string `json:"playerId"`
	IsAdmin  bool   `json:"isAdmin"`
}

// ErrorPayload carries a rejection to the offending connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Conn is the transport handle the coordinator sends through. The websocket
// layer adapts real connections to it; tests substitute fakes.
type Conn interface {
	Send(msg Envelope) error
}
