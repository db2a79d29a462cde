package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = keyPrefix + "idem:" // escrow:idem:<caller>:<key> -> project id
)

// IdempotencyStore records which project a create request key produced.
// Entries expire after idempotencyTTL.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: idempotencyTTL}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (uint64, bool, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: bad value %q: %w", raw, err)
	}
	return id, true, nil
}

// Remember stores key only if it is not already present.
func (s *IdempotencyStore) Remember(ctx context.Context, key string, id uint64) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, strconv.FormatUint(id, 10), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency remember: %w", err)
	}
	return ok, nil
}
