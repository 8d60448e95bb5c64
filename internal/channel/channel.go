// Package channel provides the per-session presence and broadcast topic used
// by challenge clients. Delivery is best-effort, unordered, at-most-once;
// nothing in the protocol depends on a broadcast arriving.
package channel

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the channel backend could not be reached.
// Callers degrade to store polling instead of failing.
var ErrUnavailable = errors.New("channel unavailable")

// Subscription delivers raw topic messages until closed.
type Subscription interface {
	// Events yields published payloads. The channel is closed when the
	// subscription ends.
	Events() <-chan []byte
	Close() error
}

// Channel is a per-topic pub/sub with a live presence set.
type Channel interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Attach registers a client identity on the topic's presence set.
	// Attaching twice refreshes the entry.
	Attach(ctx context.Context, topic, clientID string) error
	Detach(ctx context.Context, topic, clientID string) error
	Presence(ctx context.Context, topic string) ([]string, error)
}
