package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meghanavb/cardclash/internal/challenge"
	"github.com/meghanavb/cardclash/internal/deck"
)

// SessionRepository persists challenge sessions in Postgres. Every bool-
// returning method is a single conditional UPDATE: the WHERE clause carries
// the precondition and RowsAffected distinguishes winning from losing the
// race. No explicit transactions or row locks are needed.
type SessionRepository struct {
	db querier
}

func NewSessionRepository(db querier) *SessionRepository {
	return &SessionRepository{db: db}
}

const createSessionSQL = `
INSERT INTO challenge_sessions (id, host_id, status, current_index)
VALUES ($1, $2, 'waiting', 0)
RETURNING created_at`

func (r *SessionRepository) CreateSession(ctx context.Context, hostID uuid.UUID) (*challenge.Session, error) {
	sess := &challenge.Session{
		ID:     uuid.New(),
		HostID: hostID,
		Status: challenge.StatusWaiting,
	}
	if err := r.db.QueryRow(ctx, createSessionSQL, sess.ID, hostID).Scan(&sess.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

const getSessionSQL = `
SELECT id, host_id, deck_id, status, deck, current_index, card_deadline, created_at
FROM challenge_sessions
WHERE id = $1`

func (r *SessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*challenge.Session, error) {
	var (
		sess     challenge.Session
		deckID   *uuid.UUID
		deckRaw  []byte
		deadline pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, getSessionSQL, id).Scan(
		&sess.ID,
		&sess.HostID,
		&deckID,
		&sess.Status,
		&deckRaw,
		&sess.CurrentIndex,
		&deadline,
		&sess.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	sess.DeckID = deckID
	if deadline.Valid {
		sess.CardDeadline = deadline.Time
	}
	if len(deckRaw) > 0 {
		if err := json.Unmarshal(deckRaw, &sess.Deck); err != nil {
			return nil, fmt.Errorf("decode runtime deck: %w", err)
		}
	}
	return &sess, nil
}

const assignDeckSQL = `
UPDATE challenge_sessions
SET deck_id = $2
WHERE id = $1 AND deck_id IS NULL AND status = 'waiting'`

func (r *SessionRepository) AssignDeck(ctx context.Context, id, deckID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, assignDeckSQL, id, deckID)
	if err != nil {
		return false, fmt.Errorf("assign deck: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const startSessionSQL = `
UPDATE challenge_sessions
SET status = 'running', deck = $2, current_index = 0, card_deadline = $3
WHERE id = $1 AND status = 'waiting'`

func (r *SessionRepository) StartSession(ctx context.Context, id uuid.UUID, runtime []deck.QuizItem, deadline time.Time) (bool, error) {
	deckRaw, err := json.Marshal(runtime)
	if err != nil {
		return false, fmt.Errorf("encode runtime deck: %w", err)
	}
	tag, err := r.db.Exec(ctx, startSessionSQL, id, deckRaw, deadline)
	if err != nil {
		return false, fmt.Errorf("start session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const advanceCardSQL = `
UPDATE challenge_sessions
SET current_index = $2 + 1, card_deadline = $3
WHERE id = $1 AND current_index = $2 AND status = 'running'`

func (r *SessionRepository) AdvanceCard(ctx context.Context, id uuid.UUID, fromIndex int, deadline time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, advanceCardSQL, id, fromIndex, deadline)
	if err != nil {
		return false, fmt.Errorf("advance card: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const completeSessionSQL = `
UPDATE challenge_sessions
SET status = 'completed'
WHERE id = $1 AND status = 'running'`

func (r *SessionRepository) CompleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, completeSessionSQL, id)
	if err != nil {
		return false, fmt.Errorf("complete session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const upsertPlayerSQL = `
INSERT INTO challenge_players (session_id, user_id, display_name)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, user_id) DO UPDATE
SET display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), challenge_players.display_name)
RETURNING display_name, joined_at`

func (r *SessionRepository) UpsertPlayer(ctx context.Context, p challenge.Player) (*challenge.Player, error) {
	row := p
	err := r.db.QueryRow(ctx, upsertPlayerSQL, p.SessionID, p.UserID, p.DisplayName).
		Scan(&row.DisplayName, &row.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert player: %w", err)
	}
	return &row, nil
}

const listPlayersSQL = `
SELECT session_id, user_id, display_name, joined_at
FROM challenge_players
WHERE session_id = $1
ORDER BY joined_at, user_id`

func (r *SessionRepository) ListPlayers(ctx context.Context, sessionID uuid.UUID) ([]challenge.Player, error) {
	rows, err := r.db.Query(ctx, listPlayersSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []challenge.Player
	for rows.Next() {
		var p challenge.Player
		if err := rows.Scan(&p.SessionID, &p.UserID, &p.DisplayName, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
