package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meghanavb/cardclash/internal/challenge"
)

// AnswerRepository is the durable answer ledger. The primary key
// (session_id, player_id, card_index) is the at-most-once guard; duplicate
// submissions hit ON CONFLICT DO NOTHING and report zero rows affected.
type AnswerRepository struct {
	db querier
}

func NewAnswerRepository(db querier) *AnswerRepository {
	return &AnswerRepository{db: db}
}

const insertAnswerSQL = `
INSERT INTO challenge_answers (session_id, player_id, card_index, is_correct, latency_ms)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, player_id, card_index) DO NOTHING`

func (r *AnswerRepository) InsertIfAbsent(ctx context.Context, a challenge.Answer) (bool, error) {
	tag, err := r.db.Exec(ctx, insertAnswerSQL, a.SessionID, a.PlayerID, a.CardIndex, a.IsCorrect, a.LatencyMs)
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const listAnswersSQL = `
SELECT session_id, player_id, card_index, is_correct, latency_ms, created_at
FROM challenge_answers
WHERE session_id = $1
ORDER BY card_index, player_id`

func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]challenge.Answer, error) {
	rows, err := r.db.Query(ctx, listAnswersSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []challenge.Answer
	for rows.Next() {
		var a challenge.Answer
		if err := rows.Scan(&a.SessionID, &a.PlayerID, &a.CardIndex, &a.IsCorrect, &a.LatencyMs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
