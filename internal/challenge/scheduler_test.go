package challenge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/meghanavb/cardclash/internal/channel"
	"github.com/meghanavb/cardclash/internal/deck"
)

func runtimeDeck(n int) []deck.QuizItem {
	items := make([]deck.QuizItem, 0, n)
	for i := 0; i < n; i++ {
		answer := fmt.Sprintf("answer-%d", i)
		items = append(items, deck.QuizItem{
			Prompt:  fmt.Sprintf("prompt-%d", i),
			Answer:  answer,
			Options: []string{answer, "other-1", "other-2", "other-3"},
		})
	}
	return items
}

// startedSession seeds a running session with cardCount cards and the first
// deadline armed at clock.Now()+10s.
func startedSession(t *testing.T, store *MemoryStore, clock clockwork.Clock, cardCount int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, uuid.New())
	assert.NoError(t, err)

	won, err := store.StartSession(ctx, sess.ID, runtimeDeck(cardCount), clock.Now().Add(10*time.Second))
	assert.NoError(t, err)
	assert.True(t, won)
	return sess.ID
}

func newTestRunner(sessionID uuid.UUID, clientID string, store *MemoryStore, ch channel.Channel, clock clockwork.Clock, hooks RunnerHooks) *Runner {
	return NewRunner(sessionID, clientID, store, ch, clock, nil, RunnerOptions{
		CardDuration: 10 * time.Second,
		TickInterval: time.Second,
		Hooks:        hooks,
	}, zerolog.Nop())
}

func TestAdvanceRaceHasExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ch := channel.NewMemoryChannel()
	sessionID := startedSession(t, store, clock, 3)

	a := newTestRunner(sessionID, "client-a", store, ch, clock, RunnerHooks{})
	b := newTestRunner(sessionID, "client-b", store, ch, clock, RunnerHooks{})
	a.refresh(ctx)
	b.refresh(ctx)

	clock.Advance(11 * time.Second)
	a.tick(ctx)
	b.tick(ctx)

	// One conditional write landed; the other adopted its result.
	got, err := store.GetSession(ctx, sessionID)
	assert.NoError(t, err)
	assert.Equal(t, 1, got.CurrentIndex)
	assert.Equal(t, 1, a.sess.CurrentIndex)
	assert.Equal(t, 1, b.sess.CurrentIndex)
	assert.True(t, a.sess.CardDeadline.Equal(got.CardDeadline))
	assert.True(t, b.sess.CardDeadline.Equal(got.CardDeadline))
}

func TestAdvanceSkipsWhileCardStillLive(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 3)

	var states []RunnerState
	r := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{
		OnState: func(s RunnerState) { states = append(states, s) },
	})
	r.refresh(ctx)

	clock.Advance(6 * time.Second)
	r.tick(ctx)

	got, _ := store.GetSession(ctx, sessionID)
	assert.Equal(t, 0, got.CurrentIndex)

	last := states[len(states)-1]
	assert.Equal(t, StatusRunning, last.Phase)
	assert.Equal(t, 4*time.Second, last.Remaining)
	if assert.NotNil(t, last.Card) {
		assert.Equal(t, "prompt-0", last.Card.Prompt)
	}
}

func TestFinalCardExpiryCompletesSession(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 1)

	var states []RunnerState
	r := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{
		OnState: func(s RunnerState) { states = append(states, s) },
	})
	r.refresh(ctx)

	clock.Advance(11 * time.Second)
	r.tick(ctx)

	got, _ := store.GetSession(ctx, sessionID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, StatusCompleted, states[len(states)-1].Phase)
}

func TestCompleteRaceHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 1)

	a := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{})
	b := newTestRunner(sessionID, "client-b", store, channel.NewMemoryChannel(), clock, RunnerHooks{})
	a.refresh(ctx)
	b.refresh(ctx)

	clock.Advance(11 * time.Second)
	a.tick(ctx)
	b.tick(ctx)

	got, _ := store.GetSession(ctx, sessionID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, StatusCompleted, a.sess.Status)
	assert.Equal(t, StatusCompleted, b.sess.Status)
}

func TestAdoptAdvanceNeverMovesBackward(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 5)

	r := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{})
	r.refresh(ctx)

	forward := clock.Now().Add(10 * time.Second)
	r.adoptAdvance(ctx, CardAdvancedEvent{Index: 2, Deadline: forward})
	assert.Equal(t, 2, r.sess.CurrentIndex)
	assert.True(t, r.sess.CardDeadline.Equal(forward))

	// A stale or duplicate broadcast is ignored.
	r.adoptAdvance(ctx, CardAdvancedEvent{Index: 1, Deadline: clock.Now()})
	assert.Equal(t, 2, r.sess.CurrentIndex)
	assert.True(t, r.sess.CardDeadline.Equal(forward))
}

func TestWaitingRunnerSeesStartOnNextTick(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)

	sess, err := store.CreateSession(ctx, uuid.New())
	assert.NoError(t, err)

	var states []RunnerState
	r := newTestRunner(sess.ID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{
		OnState: func(s RunnerState) { states = append(states, s) },
	})
	r.refresh(ctx)
	assert.Equal(t, StatusWaiting, states[len(states)-1].Phase)

	won, err := store.StartSession(ctx, sess.ID, runtimeDeck(2), clock.Now().Add(10*time.Second))
	assert.NoError(t, err)
	assert.True(t, won)

	r.tick(ctx)
	last := states[len(states)-1]
	assert.Equal(t, StatusRunning, last.Phase)
	assert.Equal(t, 0, last.Index)
}

func TestPeerAnswerEventReachesHook(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 2)

	var peer []PlayerAnsweredEvent
	r := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{
		OnPeerAnswer: func(ev PlayerAnsweredEvent) { peer = append(peer, ev) },
	})
	r.refresh(ctx)

	data, err := EncodeEvent(EventPlayerAnswered, PlayerAnsweredEvent{PlayerID: "p1", Index: 0, Correct: true})
	assert.NoError(t, err)
	r.handleEvent(ctx, data)

	if assert.Len(t, peer, 1) {
		assert.Equal(t, "p1", peer[0].PlayerID)
		assert.True(t, peer[0].Correct)
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 2)

	r := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{})
	r.refresh(ctx)

	r.handleEvent(ctx, []byte(`{"type":"deck_shuffled","payload":{}}`))
	assert.Equal(t, 0, r.sess.CurrentIndex)
	assert.Equal(t, StatusRunning, r.sess.Status)
}

func TestRunReturnsOnceSessionCompletes(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 1)

	won, err := store.CompleteSession(ctx, sessionID)
	assert.NoError(t, err)
	assert.True(t, won)

	r := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{})
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after completion")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 2)

	ctx, cancel := context.WithCancel(context.Background())
	r := newTestRunner(sessionID, "client-a", store, channel.NewMemoryChannel(), clock, RunnerHooks{})
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

// downChannel simulates a broker outage: every operation fails.
type downChannel struct{}

func (downChannel) Publish(context.Context, string, []byte) error { return channel.ErrUnavailable }
func (downChannel) Subscribe(context.Context, string) (channel.Subscription, error) {
	return nil, channel.ErrUnavailable
}
func (downChannel) Attach(context.Context, string, string) error  { return channel.ErrUnavailable }
func (downChannel) Detach(context.Context, string, string) error  { return channel.ErrUnavailable }
func (downChannel) Presence(context.Context, string) ([]string, error) {
	return nil, channel.ErrUnavailable
}

func TestAdvanceSurvivesChannelOutage(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	sessionID := startedSession(t, store, clock, 2)

	r := newTestRunner(sessionID, "client-a", store, downChannel{}, clock, RunnerHooks{})
	r.refresh(ctx)

	clock.Advance(11 * time.Second)
	r.tick(ctx)

	// The advance still lands; only the broadcast is lost.
	got, _ := store.GetSession(ctx, sessionID)
	assert.Equal(t, 1, got.CurrentIndex)
}
