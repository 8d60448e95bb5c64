package deck

import (
	"time"

	"github.com/google/uuid"
)

// Card is a single flashcard as authored: a prompt side and an answer side.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// SharedDeck is a flashcard set published for challenge play.
type SharedDeck struct {
	ID        uuid.UUID
	Name      string
	Cards     []Card
	CreatedAt time.Time
}

// QuizItem is one runtime quiz card: the prompt, the correct answer, and the
// shuffled options shown to players. Answer never leaves the server.
type QuizItem struct {
	Prompt  string   `json:"prompt"`
	Answer  string   `json:"answer"`
	Options []string `json:"options"`
}
