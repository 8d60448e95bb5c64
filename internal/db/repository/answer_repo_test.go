package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/meghanavb/cardclash/internal/challenge"
)

func TestInsertIfAbsentFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	answer := challenge.Answer{
		SessionID: uuid.New(),
		PlayerID:  uuid.New(),
		CardIndex: 2,
		IsCorrect: true,
		LatencyMs: 1200,
	}

	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
	inserted, err := NewAnswerRepository(db).InsertIfAbsent(ctx, answer)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.Contains(t, db.execSQL[0], "ON CONFLICT (session_id, player_id, card_index) DO NOTHING")
	assert.Equal(t, []any{answer.SessionID, answer.PlayerID, 2, true, 1200}, db.execArgs[0])
}

func TestInsertIfAbsentDuplicateReportsFalse(t *testing.T) {
	ctx := context.Background()

	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 0")}
	inserted, err := NewAnswerRepository(db).InsertIfAbsent(ctx, challenge.Answer{
		SessionID: uuid.New(),
		PlayerID:  uuid.New(),
		CardIndex: 0,
	})
	assert.NoError(t, err)
	assert.False(t, inserted)
}
