package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "scanrelay:session:"

// RedisStore persists session records as JSON values with a redis-side TTL
// as a safety net on top of the record-level ExpiresAt.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

func (s *RedisStore) Get(id string) (*Session, error) {
	data, err := s.client.Get(context.Background(), redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var record Session
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &record, nil
}

func (s *RedisStore) Put(id string, record *Session) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", id, err)
	}

	// The key outlives the record-level expiry by the grace window so
	// readers can still observe the lazy expired transition before redis
	// drops the key.
	ttl := record.ExpiresAt.Sub(s.now()) + sweepGrace
	if ttl <= 0 {
		ttl = sweepGrace
	}
	return s.client.Set(context.Background(), redisKeyPrefix+id, data, ttl).Err()
}

func (s *RedisStore) Delete(id string) error {
	return s.client.Del(context.Background(), redisKeyPrefix+id).Err()
}

// Sweep removes records whose record-level expiry has passed. Redis evicts
// keys on its own once the key TTL elapses; the scan only shortens the grace
// window.
func (s *RedisStore) Sweep() error {
	ctx := context.Background()
	now := s.now()

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var record Session
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		if now.After(record.ExpiresAt.Add(sweepGrace)) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return err
			}
		}
	}
	return iter.Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
