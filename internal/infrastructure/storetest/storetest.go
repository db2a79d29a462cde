// Package storetest holds behaviour checks shared by every ProjectStore
// adapter.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
)

// Project returns a funded project for id with second-precision timestamps,
// which every backend round-trips exactly.
func Project(id uint64, amount domain.Amount) *domain.Project {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Project{
		ID:         id,
		Client:     "client-c",
		Freelancer: "freelancer-f",
		Amount:     amount,
		Status:     domain.StatusFunded,
		Details:    "logo redesign",
		Deadline:   now.Add(72 * time.Hour),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RunProjectStore exercises the ProjectStore contract against a fresh store
// per subtest.
func RunProjectStore(t *testing.T, newStore func(t *testing.T) ports.ProjectStore) {
	t.Run("AllocateSequentialFromZero", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for want := uint64(0); want < 3; want++ {
			id, err := s.Allocate(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}
	})

	t.Run("GetUnknownIsNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Get(ctx, 0)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)

		id, err := s.Allocate(ctx)
		require.NoError(t, err)
		_, err = s.Get(ctx, id+10)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("PutThenGetRoundTrips", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id, err := s.Allocate(ctx)
		require.NoError(t, err)

		p := Project(id, 250)
		p.IdempotencyKey = "key-1"
		require.NoError(t, s.Put(ctx, p))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, p.Client, got.Client)
		assert.Equal(t, p.Freelancer, got.Freelancer)
		assert.Equal(t, p.Amount, got.Amount)
		assert.Equal(t, p.Status, got.Status)
		assert.Equal(t, p.Details, got.Details)
		assert.Equal(t, p.IdempotencyKey, got.IdempotencyKey)
		assert.True(t, p.Deadline.Equal(got.Deadline), "deadline %v != %v", p.Deadline, got.Deadline)
		assert.True(t, p.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", p.CreatedAt, got.CreatedAt)
	})

	t.Run("PutOverwritesWholeRecord", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id, err := s.Allocate(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, Project(id, 90)))

		resolved := Project(id, 0)
		resolved.Status = domain.StatusResolved
		resolved.ClientApproved = true
		resolved.FreelancerCompleted = true
		resolved.Winner = resolved.Freelancer
		require.NoError(t, s.Put(ctx, resolved))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusResolved, got.Status)
		assert.Equal(t, domain.Amount(0), got.Amount)
		assert.True(t, got.ClientApproved)
		assert.True(t, got.FreelancerCompleted)
		assert.Equal(t, resolved.Freelancer, got.Winner)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id, err := s.Allocate(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, Project(id, 10)))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		got.Amount = 0

		again, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(10), again.Amount)
	})

	t.Run("HeldBalanceSumsAmounts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		held, err := s.HeldBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(0), held)

		for _, amount := range []domain.Amount{100, 0, 40} {
			id, err := s.Allocate(ctx)
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, Project(id, amount)))
		}

		held, err = s.HeldBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(140), held)
	})

	t.Run("ConcurrentAllocateIsUnique", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 20
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[uint64]bool, n)
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := s.Allocate(ctx)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				assert.False(t, ids[id], "id %d allocated twice", id)
				ids[id] = true
			}()
		}
		wg.Wait()
		assert.Len(t, ids, n)
	})
}
