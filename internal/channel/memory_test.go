package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryChannelPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	ch := NewMemoryChannel()

	sub, err := ch.Subscribe(ctx, "challenge:1")
	assert.NoError(t, err)
	defer sub.Close()

	assert.NoError(t, ch.Publish(ctx, "challenge:1", []byte("hello")))

	select {
	case data := <-sub.Events():
		assert.Equal(t, []byte("hello"), data)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestMemoryChannelTopicIsolation(t *testing.T) {
	ctx := context.Background()
	ch := NewMemoryChannel()

	sub, err := ch.Subscribe(ctx, "challenge:1")
	assert.NoError(t, err)
	defer sub.Close()

	assert.NoError(t, ch.Publish(ctx, "challenge:2", []byte("elsewhere")))

	select {
	case <-sub.Events():
		t.Fatal("received event from another topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryChannelCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	ch := NewMemoryChannel()

	sub, err := ch.Subscribe(ctx, "challenge:1")
	assert.NoError(t, err)
	assert.NoError(t, sub.Close())
	// Closing twice is safe.
	assert.NoError(t, sub.Close())

	// Publishing after close must not panic.
	assert.NoError(t, ch.Publish(ctx, "challenge:1", []byte("late")))

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestMemoryChannelPresence(t *testing.T) {
	ctx := context.Background()
	ch := NewMemoryChannel()

	assert.NoError(t, ch.Attach(ctx, "challenge:1", "client-a"))
	assert.NoError(t, ch.Attach(ctx, "challenge:1", "client-b"))
	// Attach is idempotent.
	assert.NoError(t, ch.Attach(ctx, "challenge:1", "client-a"))

	present, err := ch.Presence(ctx, "challenge:1")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"client-a", "client-b"}, present)

	assert.NoError(t, ch.Detach(ctx, "challenge:1", "client-a"))
	present, err = ch.Presence(ctx, "challenge:1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"client-b"}, present)
}
