package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/meghanavb/cardclash/internal/channel"
)

func newTestRecorder(store SessionStore, ledger AnswerLedger, clock clockwork.Clock) *Recorder {
	return NewRecorder(store, ledger, channel.NewMemoryChannel(), clock, nil, 10*time.Second, zerolog.Nop())
}

func TestSubmitRecordsCorrectAnswer(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ledger := NewMemoryLedger()
	sessionID := startedSession(t, store, clock, 3)
	playerID := uuid.New()

	clock.Advance(3 * time.Second)
	result, err := newTestRecorder(store, ledger, clock).Submit(ctx, sessionID, playerID, 0, "answer-0")
	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.IsCorrect)

	answers, err := ledger.ListBySession(ctx, sessionID)
	assert.NoError(t, err)
	if assert.Len(t, answers, 1) {
		assert.True(t, answers[0].IsCorrect)
		assert.Equal(t, 3000, answers[0].LatencyMs)
	}
}

func TestSubmitRecordsWrongAnswer(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ledger := NewMemoryLedger()
	sessionID := startedSession(t, store, clock, 3)

	result, err := newTestRecorder(store, ledger, clock).Submit(ctx, sessionID, uuid.New(), 0, "other-1")
	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, result.IsCorrect)
}

func TestSubmitDuplicateIsSuppressed(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ledger := NewMemoryLedger()
	sessionID := startedSession(t, store, clock, 3)
	playerID := uuid.New()
	recorder := newTestRecorder(store, ledger, clock)

	first, err := recorder.Submit(ctx, sessionID, playerID, 0, "other-1")
	assert.NoError(t, err)
	assert.True(t, first.Accepted)
	assert.False(t, first.IsCorrect)

	// The retry carries the right answer, but the first write stands.
	second, err := recorder.Submit(ctx, sessionID, playerID, 0, "answer-0")
	assert.NoError(t, err)
	assert.False(t, second.Accepted)

	answers, _ := ledger.ListBySession(ctx, sessionID)
	if assert.Len(t, answers, 1) {
		assert.False(t, answers[0].IsCorrect)
	}
}

func TestSubmitForSupersededCard(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ledger := NewMemoryLedger()
	sessionID := startedSession(t, store, clock, 3)

	won, err := store.AdvanceCard(ctx, sessionID, 0, clock.Now().Add(10*time.Second))
	assert.NoError(t, err)
	assert.True(t, won)

	_, err = newTestRecorder(store, ledger, clock).Submit(ctx, sessionID, uuid.New(), 0, "answer-0")
	assert.ErrorIs(t, err, ErrCardExpired)
}

func TestSubmitAfterDeadline(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ledger := NewMemoryLedger()
	sessionID := startedSession(t, store, clock, 3)

	clock.Advance(11 * time.Second)
	_, err := newTestRecorder(store, ledger, clock).Submit(ctx, sessionID, uuid.New(), 0, "answer-0")
	assert.ErrorIs(t, err, ErrTimeExpired)
}

func TestSubmitBeforeStart(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ledger := NewMemoryLedger()

	sess, err := store.CreateSession(ctx, uuid.New())
	assert.NoError(t, err)

	_, err = newTestRecorder(store, ledger, clock).Submit(ctx, sess.ID, uuid.New(), 0, "anything")
	assert.ErrorIs(t, err, ErrCardExpired)
}

func TestTwoPlayersScoreSameCardOnce(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ledger := NewMemoryLedger()
	sessionID := startedSession(t, store, clock, 10)
	recorder := newTestRecorder(store, ledger, clock)

	alice, bob := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{alice, bob} {
		_, err := store.UpsertPlayer(ctx, Player{SessionID: sessionID, UserID: id})
		assert.NoError(t, err)

		result, err := recorder.Submit(ctx, sessionID, id, 0, "answer-0")
		assert.NoError(t, err)
		assert.True(t, result.Accepted)
		assert.True(t, result.IsCorrect)
	}

	board, err := NewAggregator(store, ledger, zerolog.Nop()).ComputeLeaderboard(ctx, sessionID)
	assert.NoError(t, err)
	if assert.Len(t, board, 2) {
		assert.Equal(t, 1, board[0].CorrectCount)
		assert.Equal(t, 1, board[1].CorrectCount)
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	recorder := newTestRecorder(NewMemoryStore(clock), NewMemoryLedger(), clock)

	_, err := recorder.Submit(context.Background(), uuid.New(), uuid.New(), 0, "anything")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
