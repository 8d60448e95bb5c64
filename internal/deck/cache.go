package deck

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRuntimeTTL = 2 * time.Hour

// RuntimeCache keeps materialized quiz decks in Redis so late-joining clients
// can fetch the running deck without hitting Postgres on every read.
type RuntimeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRuntimeCache(client *redis.Client, ttl time.Duration) *RuntimeCache {
	if ttl <= 0 {
		ttl = defaultRuntimeTTL
	}
	return &RuntimeCache{client: client, ttl: ttl}
}

func (c *RuntimeCache) key(sessionID uuid.UUID) string {
	return "challenge:deck:" + sessionID.String()
}

// Get returns the cached runtime deck, or nil when absent.
func (c *RuntimeCache) Get(ctx context.Context, sessionID uuid.UUID) ([]QuizItem, error) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var items []QuizItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *RuntimeCache) Set(ctx context.Context, sessionID uuid.UUID, items []QuizItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(sessionID), data, c.ttl).Err()
}
