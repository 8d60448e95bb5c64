package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meghanavb/cardclash/internal/deck"
)

// DeckRepository reads shared flashcard decks. Cards live as a jsonb array
// on the deck row; decks are small enough that normalizing them bought
// nothing.
type DeckRepository struct {
	db querier
}

func NewDeckRepository(db querier) *DeckRepository {
	return &DeckRepository{db: db}
}

const getDeckSQL = `
SELECT id, name, cards, created_at
FROM shared_decks
WHERE id = $1`

func (r *DeckRepository) GetDeck(ctx context.Context, id uuid.UUID) (*deck.SharedDeck, error) {
	var (
		d        deck.SharedDeck
		cardsRaw []byte
	)
	err := r.db.QueryRow(ctx, getDeckSQL, id).Scan(&d.ID, &d.Name, &cardsRaw, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, deck.ErrDeckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select deck: %w", err)
	}
	if len(cardsRaw) > 0 {
		if err := json.Unmarshal(cardsRaw, &d.Cards); err != nil {
			return nil, fmt.Errorf("decode cards: %w", err)
		}
	}
	return &d, nil
}

const listDeckIDsSQL = `
SELECT id
FROM shared_decks
WHERE jsonb_array_length(cards) > 0
ORDER BY created_at`

func (r *DeckRepository) ListDeckIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, listDeckIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deck id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
