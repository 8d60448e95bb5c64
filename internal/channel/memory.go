package channel

import (
	"context"
	"sync"
)

// MemoryChannel is an in-process Channel for single-node deployments and
// tests. It mirrors the Redis implementation's delivery contract: unordered,
// at-most-once, dropped when a subscriber lags.
type MemoryChannel struct {
	mu       sync.RWMutex
	subs     map[string]map[*memorySubscription]struct{}
	presence map[string]map[string]struct{}
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{
		subs:     make(map[string]map[*memorySubscription]struct{}),
		presence: make(map[string]map[string]struct{}),
	}
}

var _ Channel = (*MemoryChannel)(nil)

func (c *MemoryChannel) Publish(_ context.Context, topic string, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for sub := range c.subs[topic] {
		select {
		case sub.events <- data:
		default:
			// subscriber lagging, drop
		}
	}
	return nil
}

func (c *MemoryChannel) Subscribe(_ context.Context, topic string) (Subscription, error) {
	sub := &memorySubscription{
		parent: c,
		topic:  topic,
		events: make(chan []byte, 64),
	}

	c.mu.Lock()
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[*memorySubscription]struct{})
	}
	c.subs[topic][sub] = struct{}{}
	c.mu.Unlock()

	return sub, nil
}

func (c *MemoryChannel) Attach(_ context.Context, topic, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.presence[topic] == nil {
		c.presence[topic] = make(map[string]struct{})
	}
	c.presence[topic][clientID] = struct{}{}
	return nil
}

func (c *MemoryChannel) Detach(_ context.Context, topic, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.presence[topic], clientID)
	return nil
}

func (c *MemoryChannel) Presence(_ context.Context, topic string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.presence[topic]))
	for id := range c.presence[topic] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *MemoryChannel) remove(sub *memorySubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if subs, ok := c.subs[sub.topic]; ok {
		if _, live := subs[sub]; live {
			delete(subs, sub)
			close(sub.events)
		}
	}
}

type memorySubscription struct {
	parent *MemoryChannel
	topic  string
	events chan []byte
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan []byte {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() { s.parent.remove(s) })
	return nil
}
