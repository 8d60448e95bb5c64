package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/meghanavb/cardclash/internal/deck"
)

// fakeDB records issued statements and replays canned command tags, so the
// CAS win/lose mapping can be exercised without a database.
type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	tag      pgconn.CommandTag
	execErr  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.tag, f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

type errRow struct{}

func (errRow) Scan(...any) error { return errors.New("not implemented") }

func TestAssignDeckReportsCASOutcome(t *testing.T) {
	ctx := context.Background()
	sessionID, deckID := uuid.New(), uuid.New()

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	won, err := NewSessionRepository(db).AssignDeck(ctx, sessionID, deckID)
	assert.NoError(t, err)
	assert.True(t, won)
	assert.Contains(t, db.execSQL[0], "deck_id IS NULL")
	assert.Contains(t, db.execSQL[0], "status = 'waiting'")
	assert.Equal(t, []any{sessionID, deckID}, db.execArgs[0])

	db = &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	won, err = NewSessionRepository(db).AssignDeck(ctx, sessionID, deckID)
	assert.NoError(t, err)
	assert.False(t, won)
}

func TestStartSessionConditionalOnWaiting(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.New()
	runtime := []deck.QuizItem{{Prompt: "p", Answer: "a", Options: []string{"a", "b"}}}
	deadline := time.Now().Add(10 * time.Second)

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	won, err := NewSessionRepository(db).StartSession(ctx, sessionID, runtime, deadline)
	assert.NoError(t, err)
	assert.True(t, won)
	assert.Contains(t, db.execSQL[0], "status = 'waiting'")
	assert.Contains(t, db.execSQL[0], "current_index = 0")
}

func TestAdvanceCardCarriesObservedIndex(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.New()
	deadline := time.Now().Add(10 * time.Second)

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	won, err := NewSessionRepository(db).AdvanceCard(ctx, sessionID, 4, deadline)
	assert.NoError(t, err)
	assert.True(t, won)
	// The precondition travels in the WHERE clause, not in app logic.
	assert.Contains(t, db.execSQL[0], "current_index = $2")
	assert.Contains(t, db.execSQL[0], "status = 'running'")
	assert.Equal(t, []any{sessionID, 4, deadline}, db.execArgs[0])

	db = &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	won, err = NewSessionRepository(db).AdvanceCard(ctx, sessionID, 4, deadline)
	assert.NoError(t, err)
	assert.False(t, won)
}

func TestCompleteSessionConditionalOnRunning(t *testing.T) {
	ctx := context.Background()

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	won, err := NewSessionRepository(db).CompleteSession(ctx, uuid.New())
	assert.NoError(t, err)
	assert.True(t, won)
	assert.Contains(t, db.execSQL[0], "status = 'running'")

	db = &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	won, err = NewSessionRepository(db).CompleteSession(ctx, uuid.New())
	assert.NoError(t, err)
	assert.False(t, won)
}

func TestExecErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{execErr: errors.New("connection refused")}

	_, err := NewSessionRepository(db).AdvanceCard(ctx, uuid.New(), 0, time.Now())
	assert.Error(t, err)
}
