package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

const (
	projectKeyPrefix = keyPrefix + "project:" // escrow:project:{id} -> JSON
	projectSeqKey    = keyPrefix + "project_seq"
	balanceBatch     = 500
)

// ProjectStore keeps each project as a JSON blob and allocates ids with INCR.
type ProjectStore struct {
	client *redis.Client
}

func NewProjectStore(client *redis.Client) *ProjectStore {
	return &ProjectStore{client: client}
}

// Allocate increments the sequence; INCR starts at 1, ids start at 0.
func (s *ProjectStore) Allocate(ctx context.Context) (uint64, error) {
	n, err := s.client.Incr(ctx, projectSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate project id: %w", err)
	}
	return uint64(n - 1), nil
}

func (s *ProjectStore) Get(ctx context.Context, id uint64) (*domain.Project, error) {
	data, err := s.client.Get(ctx, projectKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}

	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project %d: %w", id, err)
	}
	return &p, nil
}

func (s *ProjectStore) Put(ctx context.Context, p *domain.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project %d: %w", p.ID, err)
	}
	if err := s.client.Set(ctx, projectKey(p.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("put project %d: %w", p.ID, err)
	}
	return nil
}

// HeldBalance walks every allocated id in MGET batches.
func (s *ProjectStore) HeldBalance(ctx context.Context) (domain.Amount, error) {
	seq, err := s.client.Get(ctx, projectSeqKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("held balance: %w", err)
	}

	var total domain.Amount
	for start := int64(0); start < seq; start += balanceBatch {
		end := min(start+balanceBatch, seq)
		keys := make([]string, 0, end-start)
		for id := start; id < end; id++ {
			keys = append(keys, projectKey(uint64(id)))
		}

		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return 0, fmt.Errorf("held balance: %w", err)
		}
		for _, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var p domain.Project
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				return 0, fmt.Errorf("held balance: decode: %w", err)
			}
			total += p.Amount
		}
	}
	return total, nil
}

func projectKey(id uint64) string {
	return projectKeyPrefix + strconv.FormatUint(id, 10)
}
