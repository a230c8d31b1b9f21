package memory

import (
	"context"
	"sync"

	"quiz-room-service/internal/domain"
)

// StateStore is an in-memory implementation of app.StateStore. Snapshots are
// deep-copied on both sides so callers never alias stored state.
type StateStore struct {
	mu    sync.RWMutex
	rooms map[string]*domain.GameState
}

func NewStateStore() *StateStore {
	return &StateStore{
		rooms: make(map[string]*domain.GameState),
	}
}

func (s *StateStore) Get(_ context.Context, roomCode string) (domain.GameState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.rooms[roomCode]
	if !ok {
		return domain.GameState{}, false, nil
	}
	return *state.Clone(), true, nil
}

func (s *StateStore) Put(_ context.Context, roomCode string, state domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomCode] = state.Clone()
	return nil
}
