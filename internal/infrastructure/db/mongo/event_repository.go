package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

const collectionEvents = "project_events"

// EventRepository is the audit trail in MongoDB. It implements both
// ports.EventLog and ports.EventSink.
type EventRepository struct {
	col *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{col: db.Collection(collectionEvents)}
}

// eventDoc orders by ObjectID, which grows with insertion.
type eventDoc struct {
	ObjectID   primitive.ObjectID `bson:"_id"`
	EventID    string             `bson:"event_id"`
	ProjectID  int64              `bson:"project_id"`
	Type       string             `bson:"type"`
	Actor      string             `bson:"actor"`
	Amount     int64              `bson:"amount,omitempty"`
	Winner     string             `bson:"winner,omitempty"`
	OccurredAt time.Time          `bson:"occurred_at"`
	RecordedAt time.Time          `bson:"recorded_at"`
}

func (r *EventRepository) Name() string { return "mongo_event_log" }

func (r *EventRepository) Handle(ctx context.Context, e domain.Event) error {
	return r.Append(ctx, e)
}

// Append persists an event to the project_events collection.
func (r *EventRepository) Append(ctx context.Context, e domain.Event) error {
	doc := eventDoc{
		ObjectID:   primitive.NewObjectID(),
		EventID:    e.ID,
		ProjectID:  int64(e.ProjectID),
		Type:       string(e.Type),
		Actor:      string(e.Actor),
		Amount:     int64(e.Amount),
		Winner:     string(e.Winner),
		OccurredAt: e.OccurredAt.UTC(),
		RecordedAt: time.Now().UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append event %s: %w", e.ID, err)
	}
	return nil
}

func (r *EventRepository) ListByProject(ctx context.Context, projectID uint64) ([]domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx,
		bson.M{"project_id": int64(projectID)},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]domain.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, domain.Event{
			ID:         d.EventID,
			ProjectID:  uint64(d.ProjectID),
			Type:       domain.EventType(d.Type),
			Actor:      domain.Identity(d.Actor),
			Amount:     domain.Amount(d.Amount),
			Winner:     domain.Identity(d.Winner),
			OccurredAt: d.OccurredAt,
		})
	}
	return events, nil
}

// EnsureIndexes creates the indexes the audit queries rely on.
func (r *EventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}
