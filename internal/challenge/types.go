package challenge

import (
	"time"

	"github.com/google/uuid"

	"github.com/meghanavb/cardclash/internal/deck"
)

// Session lifecycle states. Transitions are one-directional:
// waiting -> running -> completed.
const (
	StatusWaiting   = "waiting"
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Session is one multiplayer challenge progressing through a fixed quiz deck.
// CurrentIndex only moves forward, one step at a time, through a conditional
// update that also rewrites CardDeadline.
type Session struct {
	ID           uuid.UUID
	HostID       uuid.UUID
	DeckID       *uuid.UUID
	Status       string
	Deck         []deck.QuizItem
	CurrentIndex int
	CardDeadline time.Time
	CreatedAt    time.Time
}

// Finished reports whether the cursor has run off the end of the deck.
func (s *Session) Finished() bool {
	return s.Status == StatusCompleted || (s.Status == StatusRunning && s.CurrentIndex >= len(s.Deck))
}

// CurrentCard returns the active quiz item, or nil outside the running window.
func (s *Session) CurrentCard() *deck.QuizItem {
	if s.Status != StatusRunning || s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Deck) {
		return nil
	}
	return &s.Deck[s.CurrentIndex]
}

// Player is one participant of a session. The (SessionID, UserID) pair is
// unique; join is an idempotent upsert and rows are never deleted while the
// session lives.
type Player struct {
	SessionID   uuid.UUID
	UserID      uuid.UUID
	DisplayName string
	JoinedAt    time.Time
}

// Answer is one player's recorded response to one card. The
// (SessionID, PlayerID, CardIndex) triple is the at-most-once guard: the
// first insert wins, every retry is a silent no-op.
type Answer struct {
	SessionID uuid.UUID
	PlayerID  uuid.UUID
	CardIndex int
	IsCorrect bool
	LatencyMs int
	CreatedAt time.Time
}

// LeaderboardEntry is one scoreboard row.
type LeaderboardEntry struct {
	PlayerID     uuid.UUID `json:"player_id"`
	DisplayName  string    `json:"display_name"`
	CorrectCount int       `json:"correct_count"`
}
