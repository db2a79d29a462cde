package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
	"github.com/99minutos/escrow-service/internal/infrastructure/storetest"
)

// testDatabase connects to MONGO_TEST_URI and hands out a throwaway
// database that is dropped when the test ends.
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	name := fmt.Sprintf("escrow_test_%s", uuid.NewString()[:8])
	client, db, err := Connect(ctx, Config{URI: uri, Database: name, Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestProjectStore(t *testing.T) {
	storetest.RunProjectStore(t, func(t *testing.T) ports.ProjectStore {
		return NewProjectStore(testDatabase(t))
	})
}

func TestEventRepository_ListByProjectKeepsOrder(t *testing.T) {
	db := testDatabase(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	types := []domain.EventType{domain.EventProjectCreated, domain.EventProjectFunded, domain.EventProjectCompleted}
	for _, typ := range types {
		require.NoError(t, repo.Handle(ctx, domain.Event{
			ID: uuid.NewString(), ProjectID: 3, Type: typ, Actor: "client", OccurredAt: at,
		}))
	}
	require.NoError(t, repo.Append(ctx, domain.Event{
		ID: uuid.NewString(), ProjectID: 4, Type: domain.EventProjectCreated, Actor: "client", OccurredAt: at,
	}))

	events, err := repo.ListByProject(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, len(types))
	for i, typ := range types {
		assert.Equal(t, typ, events[i].Type)
		assert.Equal(t, uint64(3), events[i].ProjectID)
	}

	empty, err := repo.ListByProject(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAuthRepository_UniqueEmailAndIdentity(t *testing.T) {
	repo := NewAuthRepository(testDatabase(t))
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := repo.Create(ctx, &domain.User{
		Email: "ana@example.com", PasswordHash: "hash", Role: domain.RoleMember,
		Identity: "acct-ana", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, &domain.User{Email: "ana@example.com", PasswordHash: "x", Identity: "other"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	_, err = repo.Create(ctx, &domain.User{Email: "eve@example.com", PasswordHash: "x", Identity: "acct-ana"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	found, err := repo.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("acct-ana"), found.Identity)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
