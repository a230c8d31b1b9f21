package app

import (
	"context"

	"quiz-room-service/internal/domain"
)

// StateStore persists one GameState snapshot per room, keyed by room code.
// The owning coordinator is the only writer for a room, so writes are plain
// last-writer-wins; recovery tooling may read but never write.
type StateStore interface {
	Get(ctx context.Context, roomCode string) (domain.GameState, bool, error)
	Put(ctx context.Context, roomCode string, state domain.GameState) error
}
