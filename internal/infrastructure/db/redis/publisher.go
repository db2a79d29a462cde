package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

const (
	// EventsChannel carries every event; EventsChannel+":"+id only one project's.
	EventsChannel = keyPrefix + "events"
)

// Publisher is a dispatcher sink that fans events out over Redis pub/sub.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Name() string { return "redis_pubsub" }

func (p *Publisher) Handle(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, EventsChannel, payload)
	pipe.Publish(ctx, ProjectChannel(e.ProjectID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}
	return nil
}

// ProjectChannel returns the channel dedicated to one project.
func ProjectChannel(projectID uint64) string {
	return EventsChannel + ":" + strconv.FormatUint(projectID, 10)
}
