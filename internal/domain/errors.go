package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no room exists for a code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomCodeTaken is returned when a requested room code is in use.
	ErrRoomCodeTaken = errors.New("room code already in use")
	// ErrQuizNotFound indicates the question set could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrPlayerNotFound is returned when a connection acts before joining.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrHostRequired rejects host-only actions from non-host players.
	ErrHostRequired = errors.New("host required")
	// ErrUnknownAction rejects envelopes with an unrecognized type.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidPayload rejects envelopes missing or mistyping required fields.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrEmptyQuestionSet rejects room creation with no questions to play.
	ErrEmptyQuestionSet = errors.New("question set is empty")
)
