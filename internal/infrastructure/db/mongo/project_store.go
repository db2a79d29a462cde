package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

const (
	collectionProjects = "projects"
	collectionCounters = "counters"
	projectCounterID   = "projects"
)

// ProjectStore implements ports.ProjectStore on a projects collection plus a
// counters document for id allocation.
type ProjectStore struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewProjectStore(db *mongo.Database) *ProjectStore {
	return &ProjectStore{
		col:      db.Collection(collectionProjects),
		counters: db.Collection(collectionCounters),
	}
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Allocate bumps the counter document atomically; the first id is 0.
func (r *ProjectStore) Allocate(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc counterDoc
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": projectCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("allocate project id: %w", err)
	}
	return uint64(doc.Seq - 1), nil
}

func (r *ProjectStore) Get(ctx context.Context, id uint64) (*domain.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.Project
	err := r.col.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return &p, nil
}

// Put replaces the whole document, inserting it on first write.
func (r *ProjectStore) Put(ctx context.Context, p *domain.Project) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": int64(p.ID)}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put project %d: %w", p.ID, err)
	}
	return nil
}

func (r *ProjectStore) HeldBalance(ctx context.Context) (domain.Amount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"amount": bson.M{"$gt": 0}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "held": bson.M{"$sum": "$amount"}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("held balance: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Held int64 `bson:"held"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("held balance: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return domain.Amount(rows[0].Held), nil
}

// EnsureIndexes creates the lookup indexes on the projects collection.
func (r *ProjectStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "client", Value: 1}}},
		{Keys: bson.D{{Key: "freelancer", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
