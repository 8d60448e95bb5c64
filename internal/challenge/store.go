package challenge

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meghanavb/cardclash/internal/deck"
)

// SessionStore is the durable record of challenge state. It must behave as a
// linearizable key-value store with conditional updates: every mutating
// method that returns a bool is a compare-and-swap whose false result means
// the precondition no longer held. A false CAS is the expected outcome of
// losing a race, never an error.
type SessionStore interface {
	CreateSession(ctx context.Context, hostID uuid.UUID) (*Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)

	// AssignDeck sets the deck only if none is assigned yet.
	AssignDeck(ctx context.Context, id, deckID uuid.UUID) (bool, error)

	// StartSession materializes the runtime state only if the session is
	// still waiting.
	StartSession(ctx context.Context, id uuid.UUID, runtime []deck.QuizItem, deadline time.Time) (bool, error)

	// AdvanceCard moves the cursor from fromIndex to fromIndex+1 and
	// rewrites the deadline, only if the stored cursor still equals
	// fromIndex and the session is running.
	AdvanceCard(ctx context.Context, id uuid.UUID, fromIndex int, deadline time.Time) (bool, error)

	// CompleteSession finishes the session only if it is still running.
	CompleteSession(ctx context.Context, id uuid.UUID) (bool, error)

	// UpsertPlayer registers a participant; repeating the call is a no-op
	// that may refresh the display name.
	UpsertPlayer(ctx context.Context, p Player) (*Player, error)
	ListPlayers(ctx context.Context, sessionID uuid.UUID) ([]Player, error)
}

// AnswerLedger is the durable, append-only-per-key record of answers.
type AnswerLedger interface {
	// InsertIfAbsent records the answer unless its key already exists.
	// The bool reports whether this call created the record.
	InsertIfAbsent(ctx context.Context, a Answer) (bool, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Answer, error)
}
