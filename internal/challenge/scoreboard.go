package challenge

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Aggregator computes the final scoreboard from the answer ledger. It is a
// pure read: recomputing it any number of times with no intervening writes
// yields identical output.
type Aggregator struct {
	store  SessionStore
	ledger AnswerLedger
	logger zerolog.Logger
}

func NewAggregator(store SessionStore, ledger AnswerLedger, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		ledger: ledger,
		logger: logger.With().Str("component", "scoreboard").Logger(),
	}
}

// ComputeLeaderboard tallies correct answers per player, descending, with
// ties broken ascending by player ID string so the ranking is stable.
// Players who joined but scored nothing still appear with a zero count.
func (a *Aggregator) ComputeLeaderboard(ctx context.Context, sessionID uuid.UUID) ([]LeaderboardEntry, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	players, err := a.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	answers, err := a.ledger.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	entries := make(map[uuid.UUID]*LeaderboardEntry, len(players))
	for _, p := range players {
		entries[p.UserID] = &LeaderboardEntry{
			PlayerID:    p.UserID,
			DisplayName: p.DisplayName,
		}
	}

	for _, ans := range answers {
		entry, ok := entries[ans.PlayerID]
		if !ok {
			// Answer from an identity without a player row; still counted.
			entry = &LeaderboardEntry{PlayerID: ans.PlayerID}
			entries[ans.PlayerID] = entry
		}
		if ans.IsCorrect {
			entry.CorrectCount++
		}
	}

	board := make([]LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		board = append(board, *entry)
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].CorrectCount != board[j].CorrectCount {
			return board[i].CorrectCount > board[j].CorrectCount
		}
		return board[i].PlayerID.String() < board[j].PlayerID.String()
	})
	return board, nil
}
