package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-room-service/internal/domain"
)

// StateStore persists GameState snapshots in Redis, one JSON value per room
// code. The owning coordinator is the only writer for a room, so plain SET
// with last-writer-wins is sufficient; the TTL bounds how long an idle
// room's snapshot survives.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) Get(ctx context.Context, roomCode string) (domain.GameState, bool, error) {
	data, err := s.client.Get(ctx, s.key(roomCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameState{}, false, nil
	}
	if err != nil {
		return domain.GameState{}, false, fmt.Errorf("get room state: %w", err)
	}
	var state domain.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.GameState{}, false, fmt.Errorf("unmarshal room state: %w", err)
	}
	return state, true, nil
}

func (s *StateStore) Put(ctx context.Context, roomCode string, state domain.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal room state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(roomCode), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put room state: %w", err)
	}
	return nil
}

func (s *StateStore) key(roomCode string) string {
	return "room:state:" + roomCode
}
