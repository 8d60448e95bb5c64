package deck

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDeckNotFound is returned when the referenced deck does not exist.
var ErrDeckNotFound = errors.New("deck not found")

// ErrDeckEmpty is returned when a deck exists but holds no cards.
var ErrDeckEmpty = errors.New("deck has no cards")

// Provider supplies flashcard content. The challenge core only consumes
// decks; authoring and generation live elsewhere.
type Provider interface {
	GetDeck(ctx context.Context, id uuid.UUID) (*SharedDeck, error)
	ListDeckIDs(ctx context.Context) ([]uuid.UUID, error)
}
