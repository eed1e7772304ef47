package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps sessions in Redis under a per-process namespace,
// so sessions never outlive the process that created them.
type RedisSessionStore struct {
	redis    *redis.Client
	ttl      time.Duration
	instance string
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		redis:    client,
		ttl:      ttl,
		instance: uuid.NewString(),
	}
}

func (s *RedisSessionStore) key(id string) string {
	return fmt.Sprintf("nebo:%s:session:%s", s.instance, id)
}

func (s *RedisSessionStore) Load(ctx context.Context, id string) (*SessionState, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &state, nil
}

// Save writes the whole state and refreshes its TTL
func (s *RedisSessionStore) Save(ctx context.Context, state *SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(state.ID), string(data), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
