package game

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// PatternStore is the operator-facing queue of forced outcomes.
// Entries are consumed front to back, one per round. The coordinator
// only peeks and pops; appending and clearing belong to the admin
// surface. Values are strings: a crash point ("2.50") for aviator, a
// side name ("dragon") for dragontiger.
type PatternStore interface {
	PeekNext(ctx context.Context, gameType GameType) (string, bool, error)
	PopNext(ctx context.Context, gameType GameType) error
	Append(ctx context.Context, gameType GameType, values []string) error
	Clear(ctx context.Context, gameType GameType) error
}

const redisKeyPatternPrefix = "pattern:"

// RedisPatternStore keeps the queue in a redis list so it survives
// restarts and is shared across operator tooling.
type RedisPatternStore struct {
	client *redis.Client
}

func NewRedisPatternStore(client *redis.Client) *RedisPatternStore {
	return &RedisPatternStore{client: client}
}

func (s *RedisPatternStore) key(gameType GameType) string {
	return redisKeyPatternPrefix + string(gameType)
}

func (s *RedisPatternStore) PeekNext(ctx context.Context, gameType GameType) (string, bool, error) {
	val, err := s.client.LIndex(ctx, s.key(gameType), 0).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisPatternStore) PopNext(ctx context.Context, gameType GameType) error {
	err := s.client.LPop(ctx, s.key(gameType)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *RedisPatternStore) Append(ctx context.Context, gameType GameType, values []string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.client.RPush(ctx, s.key(gameType), args...).Err()
}

func (s *RedisPatternStore) Clear(ctx context.Context, gameType GameType) error {
	return s.client.Del(ctx, s.key(gameType)).Err()
}

// MemoryPatternStore is the in-process variant used in tests and when
// redis is not configured.
type MemoryPatternStore struct {
	mu     sync.Mutex
	queues map[GameType][]string
}

func NewMemoryPatternStore() *MemoryPatternStore {
	return &MemoryPatternStore{queues: make(map[GameType][]string)}
}

func (s *MemoryPatternStore) PeekNext(_ context.Context, gameType GameType) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[gameType]
	if len(q) == 0 {
		return "", false, nil
	}
	return q[0], true, nil
}

func (s *MemoryPatternStore) PopNext(_ context.Context, gameType GameType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[gameType]
	if len(q) > 0 {
		s.queues[gameType] = q[1:]
	}
	return nil
}

func (s *MemoryPatternStore) Append(_ context.Context, gameType GameType, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[gameType] = append(s.queues[gameType], values...)
	return nil
}

func (s *MemoryPatternStore) Clear(_ context.Context, gameType GameType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, gameType)
	return nil
}
