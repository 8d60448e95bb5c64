package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultPresenceTTL = 30 * time.Second

// RedisChannel implements Channel on Redis Pub/Sub. Presence is a per-topic
// sorted set scored by last-seen time; members older than the TTL are pruned
// on read, so a client that vanishes without detaching ages out.
type RedisChannel struct {
	client      *redis.Client
	presenceTTL time.Duration
	logger      zerolog.Logger
}

func NewRedisChannel(client *redis.Client, presenceTTL time.Duration, logger zerolog.Logger) *RedisChannel {
	if presenceTTL <= 0 {
		presenceTTL = defaultPresenceTTL
	}
	return &RedisChannel{
		client:      client,
		presenceTTL: presenceTTL,
		logger:      logger.With().Str("component", "channel").Logger(),
	}
}

var _ Channel = (*RedisChannel)(nil)

func presenceKey(topic string) string {
	return "presence:" + topic
}

func (c *RedisChannel) Publish(ctx context.Context, topic string, data []byte) error {
	if err := c.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := c.client.Subscribe(ctx, topic)
	// Force the subscription handshake so a dead backend surfaces here
	// rather than as a silently empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan []byte, 64),
	}
	go sub.pump(topic, c.logger)
	return sub, nil
}

func (c *RedisChannel) Attach(ctx context.Context, topic, clientID string) error {
	key := presenceKey(topic)
	now := c.nowScore()
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: now, Member: clientID})
	pipe.Expire(ctx, key, 2*c.presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisChannel) Detach(ctx context.Context, topic, clientID string) error {
	if err := c.client.ZRem(ctx, presenceKey(topic), clientID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisChannel) Presence(ctx context.Context, topic string) ([]string, error) {
	key := presenceKey(topic)
	cutoff := c.nowScore() - c.presenceTTL.Seconds()

	pipe := c.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", cutoff))
	members := pipe.ZRange(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return members.Val(), nil
}

func (c *RedisChannel) nowScore() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan []byte
}

func (s *redisSubscription) pump(topic string, logger zerolog.Logger) {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		select {
		case s.events <- []byte(msg.Payload):
		default:
			// Slow consumer: drop rather than block the pump. Broadcasts
			// are best-effort and the consumer re-syncs from the store.
			logger.Warn().Str("topic", topic).Msg("subscriber lagging, message dropped")
		}
	}
}

func (s *redisSubscription) Events() <-chan []byte {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
