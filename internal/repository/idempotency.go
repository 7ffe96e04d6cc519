package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oliver453/lochlann-se/internal/model"
)

const pendingMarker = "pending"

// RedisIdempotencyStore remembers which booking an Idempotency-Key produced.
type RedisIdempotencyStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{Client: client, TTL: ttl}
}

func (s *RedisIdempotencyStore) MarkerKey(key string) string {
	return "booking:idempotency:" + key
}

// Reserve claims key for a new request. It returns the booking ID of an
// earlier completed request with the same key, uuid.Nil when the caller now
// owns the key, or model.ErrDuplicateRequest while another request holds it.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (uuid.UUID, error) {
	marker := s.MarkerKey(key)

	ok, err := s.Client.SetNX(ctx, marker, pendingMarker, s.TTL).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return uuid.Nil, nil
	}

	value, err := s.Client.Get(ctx, marker).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			return s.Reserve(ctx, key)
		}
		return uuid.Nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if value == pendingMarker {
		return uuid.Nil, model.ErrDuplicateRequest
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse idempotency value: %w", err)
	}
	return id, nil
}

// Complete binds key to the booking it produced.
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, bookingID uuid.UUID) error {
	return s.Client.Set(ctx, s.MarkerKey(key), bookingID.String(), s.TTL).Err()
}

// Release frees key after a failed request so the client may retry.
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.MarkerKey(key)).Err()
}
